package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/optwire/internal/protocol/frame"
	"github.com/danmuck/optwire/internal/protocol/options"
	"github.com/danmuck/optwire/internal/report"
	"github.com/danmuck/optwire/internal/testutil/testlog"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(strings.NewReader(stdin), &out)
	err := app.Run(append([]string{"optctl"}, args...))
	return out.String(), err
}

func TestDecodeCommand(t *testing.T) {
	testlog.Start(t)
	out, err := run(t, "", "decode", "0c", "02", "6869", "ff")
	require.NoError(t, err)

	var got decodeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, "dhcpv4", got.Family)
	require.Equal(t, []report.Record{
		{Code: 12, Kind: "single_field", Data: "6869", Text: "hi"},
		{Code: 255, Kind: "marker"},
	}, got.Records)
}

func TestDecodeCommandReportsFault(t *testing.T) {
	testlog.Start(t)
	out, err := run(t, "0c 0a 61\n", "decode", "--family", "dhcpv4")
	require.True(t, errors.Is(err, options.ErrTruncatedPayload), "got %v", err)

	var got decodeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NotNil(t, got.Fault)
	require.Equal(t, "truncated_payload", got.Fault.Kind)
	require.Equal(t, 1, got.Fault.Offset)
}

func TestDecodeCommandBootp(t *testing.T) {
	testlog.Start(t)
	msg := frame.BuildDHCPv4(frame.Header{Op: frame.OpRequest, HType: 1, HLen: 6}, []byte{53, 1, 1, 255})
	out, err := run(t, "", "decode", "--bootp", hex.EncodeToString(msg))
	require.NoError(t, err)
	var got decodeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Records, 2)
	require.Equal(t, uint16(53), got.Records[0].Code)
}

func TestDecodeCommandBootpRequiresDHCPv4(t *testing.T) {
	testlog.Start(t)
	msg := frame.BuildDHCPv4(frame.Header{Op: frame.OpRequest, HType: 1, HLen: 6}, []byte{53, 1, 1, 255})
	out, err := run(t, "", "decode", "--bootp", "-f", "ipv6-mobility", hex.EncodeToString(msg))
	require.ErrorIs(t, err, ErrBootpFamily)
	require.Empty(t, out)
}

func TestEncodeCommandRoundTrip(t *testing.T) {
	testlog.Start(t)
	decoded, err := run(t, "", "decode", "-f", "dhcpv6", "0017 0010 20010db8000000000000000000000001")
	require.NoError(t, err)
	out, err := run(t, decoded, "encode", "-f", "dhcpv6")
	require.NoError(t, err)
	require.Equal(t, "0017001020010db8000000000000000000000001\n", out)
}

func TestUnknownFamily(t *testing.T) {
	testlog.Start(t)
	_, err := run(t, "", "decode", "-f", "isis", "00")
	require.ErrorIs(t, err, ErrUnknownFamily)
}

func TestCodesCommand(t *testing.T) {
	testlog.Start(t)
	out, err := run(t, "", "codes")
	require.NoError(t, err)
	var fams []report.Family
	require.NoError(t, json.Unmarshal([]byte(out), &fams))
	require.Len(t, fams, 3)

	out, err = run(t, "", "codes", "-f", "ipv6-mobility")
	require.NoError(t, err)
	var codes []report.Code
	require.NoError(t, json.Unmarshal([]byte(out), &codes))
	require.Equal(t, []report.Code{
		{Code: 1, Shape: "raw"},
		{Code: 20, Shape: "single_field", MinLen: 1, MaxLen: 255},
	}, codes)
}

func TestConfigExtendsRegistry(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "optwire.toml")
	_, err := run(t, "", "config", "init", "--output", path)
	require.NoError(t, err)

	out, err := run(t, "", "config", "validate", path)
	require.NoError(t, err)
	require.Equal(t, "ok: 2 extra option(s)\n", out)

	out, err = run(t, "", "--config", path, "decode", "e0 03 616263")
	require.NoError(t, err)
	var got decodeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, "single_field", got.Records[0].Kind)
}

func TestPcapCommand(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "dhcp.pcap")
	writePcap(t, path, frame.BuildDHCPv4(frame.Header{Op: frame.OpReply, Xid: 0x1234}, []byte{53, 1, 5, 255}))

	out, err := run(t, "", "pcap", path)
	require.NoError(t, err)
	var got pcapOutput
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &got))
	require.Equal(t, "0x00001234", got.Xid)
	require.Equal(t, uint16(67), got.SrcPort)
	require.Len(t, got.Records, 2)
}

func TestInvalidLogLevel(t *testing.T) {
	testlog.Start(t)
	_, err := run(t, "", "--log-level", "loud", "codes")
	require.Error(t, err)
}

func writePcap(t *testing.T, path string, payload []byte) {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: net.IPv4(10, 0, 0, 1), DstIP: net.IPv4(10, 0, 0, 2)}
	udp := &layers.UDP{SrcPort: 67, DstPort: 68}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}, eth, ip, udp, gopacket.Payload(payload)))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	data := buf.Bytes()
	require.NoError(t, w.WritePacket(gopacket.CaptureInfo{Timestamp: time.Unix(1_700_000_000, 0), CaptureLength: len(data), Length: len(data)}, data))
}
