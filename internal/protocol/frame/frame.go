// Package frame locates option regions inside enclosing protocol headers.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"gvisor.dev/gvisor/pkg/tcpip"

	"github.com/danmuck/optwire/internal/protocol/view"
)

const (
	// FixedHeaderLen is the BOOTP header before the DHCP magic cookie.
	FixedHeaderLen = 236
	// OptionsOffset is where DHCPv4 options begin.
	OptionsOffset        = FixedHeaderLen + 4
	MagicCookie   uint32 = 0x63825363

	OpRequest uint8 = 1
	OpReply   uint8 = 2
)

var (
	ErrShortHeader = errors.New("frame: short bootp header")
	ErrBadMagic    = errors.New("frame: missing dhcp magic cookie")
	ErrBadHLen     = errors.New("frame: hardware address length exceeds chaddr")
)

// Header is the fixed BOOTP/DHCPv4 header (RFC 2131 section 2).
type Header struct {
	Op     uint8
	HType  uint8
	HLen   uint8
	Hops   uint8
	Xid    uint32
	Secs   uint16
	Flags  uint16
	CIAddr tcpip.Address
	YIAddr tcpip.Address
	SIAddr tcpip.Address
	GIAddr tcpip.Address
	CHAddr [16]byte
	SName  [64]byte
	File   [128]byte
}

// DHCPv4 is a parsed DHCPv4 message. Options borrows the input buffer.
type DHCPv4 struct {
	Header  Header
	Options view.View
}

// ParseDHCPv4 splits a UDP payload into the fixed header and the options
// region that follows the magic cookie.
func ParseDHCPv4(payload []byte) (DHCPv4, error) {
	if len(payload) < OptionsOffset {
		return DHCPv4{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(payload))
	}
	h, err := DecodeHeader(payload[:FixedHeaderLen])
	if err != nil {
		return DHCPv4{}, err
	}
	if binary.BigEndian.Uint32(payload[FixedHeaderLen:OptionsOffset]) != MagicCookie {
		return DHCPv4{}, ErrBadMagic
	}
	region, err := view.New(payload).Slice(OptionsOffset, len(payload)-OptionsOffset)
	if err != nil {
		return DHCPv4{}, err
	}
	return DHCPv4{Header: h, Options: region}, nil
}

// DHCPv4Options returns only the options region of a DHCPv4 payload.
func DHCPv4Options(payload []byte) (view.View, error) {
	msg, err := ParseDHCPv4(payload)
	if err != nil {
		return view.View{}, err
	}
	return msg.Options, nil
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != FixedHeaderLen {
		return Header{}, fmt.Errorf("frame: invalid fixed header length: %d", len(b))
	}
	h := Header{
		Op:     b[0],
		HType:  b[1],
		HLen:   b[2],
		Hops:   b[3],
		Xid:    binary.BigEndian.Uint32(b[4:8]),
		Secs:   binary.BigEndian.Uint16(b[8:10]),
		Flags:  binary.BigEndian.Uint16(b[10:12]),
		CIAddr: tcpip.AddrFromSlice(b[12:16]),
		YIAddr: tcpip.AddrFromSlice(b[16:20]),
		SIAddr: tcpip.AddrFromSlice(b[20:24]),
		GIAddr: tcpip.AddrFromSlice(b[24:28]),
	}
	if int(h.HLen) > len(h.CHAddr) {
		return Header{}, ErrBadHLen
	}
	copy(h.CHAddr[:], b[28:44])
	copy(h.SName[:], b[44:108])
	copy(h.File[:], b[108:236])
	return h, nil
}

// EncodeHeader writes the fixed header followed by the magic cookie. Zero
// addresses are written as 0.0.0.0.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, OptionsOffset)
	buf[0] = h.Op
	buf[1] = h.HType
	buf[2] = h.HLen
	buf[3] = h.Hops
	binary.BigEndian.PutUint32(buf[4:8], h.Xid)
	binary.BigEndian.PutUint16(buf[8:10], h.Secs)
	binary.BigEndian.PutUint16(buf[10:12], h.Flags)
	putAddr(buf[12:16], h.CIAddr)
	putAddr(buf[16:20], h.YIAddr)
	putAddr(buf[20:24], h.SIAddr)
	putAddr(buf[24:28], h.GIAddr)
	copy(buf[28:44], h.CHAddr[:])
	copy(buf[44:108], h.SName[:])
	copy(buf[108:236], h.File[:])
	binary.BigEndian.PutUint32(buf[FixedHeaderLen:OptionsOffset], MagicCookie)
	return buf
}

// BuildDHCPv4 returns a DHCPv4 payload made of h and an encoded options region.
func BuildDHCPv4(h Header, options []byte) []byte {
	return append(EncodeHeader(h), options...)
}

func putAddr(dst []byte, a tcpip.Address) {
	if a.Len() == len(dst) {
		copy(dst, a.AsSlice())
	}
}
