// Package capture extracts DHCPv4 option regions from pcap files and decodes
// them.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/optwire/internal/observability"
	"github.com/danmuck/optwire/internal/protocol/dhcp"
	"github.com/danmuck/optwire/internal/protocol/frame"
	"github.com/danmuck/optwire/internal/protocol/options"
	_ "github.com/danmuck/optwire/internal/protocol/schema"
)

var DefaultPorts = []uint16{67, 68}

// Message is one DHCPv4 packet found in a capture. Err holds a framing or
// decode failure; Records is empty when Err is set.
type Message struct {
	Index     int
	Timestamp time.Time
	SrcPort   uint16
	DstPort   uint16
	Header    frame.Header
	Records   []options.Record
	Err       error
}

type Stats struct {
	Packets int
	Matched int
	Decoded int
	Faults  int
}

// Reader walks a capture and hands each DHCPv4 message to a callback. A nil
// Decoder uses options.Default, which holds the builtin option types.
type Reader struct {
	Decoder *options.Decoder
	Ports   []uint16
}

func NewReader(dec *options.Decoder, ports []uint16) *Reader {
	if len(ports) == 0 {
		ports = DefaultPorts
	}
	return &Reader{Decoder: dec, Ports: ports}
}

// Read consumes a pcap stream from src. It stops at the first error returned
// by fn, a cancelled ctx, or a malformed capture file; per-packet failures are
// reported through Message.Err instead.
func (r *Reader) Read(ctx context.Context, src io.Reader, fn func(Message) error) (Stats, error) {
	var stats Stats
	pr, err := pcapgo.NewReader(src)
	if err != nil {
		return stats, fmt.Errorf("capture: open: %w", err)
	}
	linkType := pr.LinkType()

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("capture: packet %d: %w", stats.Packets, err)
		}
		index := stats.Packets
		stats.Packets++

		pkt := gopacket.NewPacket(data, linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		udpLayer, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || !r.match(udpLayer) {
			continue
		}
		stats.Matched++

		msg := Message{
			Index:     index,
			Timestamp: ci.Timestamp,
			SrcPort:   uint16(udpLayer.SrcPort),
			DstPort:   uint16(udpLayer.DstPort),
		}
		r.decode(&msg, udpLayer.Payload)
		if msg.Err != nil {
			stats.Faults++
		} else {
			stats.Decoded++
		}
		if err := fn(msg); err != nil {
			return stats, err
		}
	}

	log.Debug().
		Int("packets", stats.Packets).
		Int("matched", stats.Matched).
		Int("decoded", stats.Decoded).
		Int("faults", stats.Faults).
		Msg("capture.Read done")
	return stats, nil
}

func (r *Reader) match(u *layers.UDP) bool {
	return slices.Contains(r.Ports, uint16(u.SrcPort)) || slices.Contains(r.Ports, uint16(u.DstPort))
}

func (r *Reader) decode(msg *Message, payload []byte) {
	parsed, err := frame.ParseDHCPv4(payload)
	if err != nil {
		msg.Err = err
		log.Debug().Int("packet", msg.Index).Err(err).Msg("capture: not a dhcp message")
		return
	}
	msg.Header = parsed.Header

	dec := r.Decoder
	if dec == nil {
		dec = options.NewDecoder(options.Default)
	}
	records, err := dec.Decode(dhcp.Family, parsed.Options)
	observability.RecordDecode(dhcp.Family.ID, parsed.Options.Len(), records, err)
	if err != nil {
		msg.Err = err
		return
	}
	msg.Records = records
}
