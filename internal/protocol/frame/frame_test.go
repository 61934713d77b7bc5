package frame

import (
	"bytes"
	"errors"
	"testing"

	"gvisor.dev/gvisor/pkg/tcpip"

	"github.com/danmuck/optwire/internal/testutil/testlog"
)

func TestBuildParseDHCPv4RoundTrip(t *testing.T) {
	testlog.Start(t)
	in := Header{
		Op:     OpReply,
		HType:  1,
		HLen:   6,
		Xid:    0xdeadbeef,
		Flags:  0x8000,
		YIAddr: tcpip.AddrFrom4([4]byte{192, 168, 1, 20}),
		SIAddr: tcpip.AddrFrom4([4]byte{192, 168, 1, 1}),
	}
	copy(in.CHAddr[:], []byte{0x02, 0, 0, 0, 0, 0x01})
	opts := []byte{53, 1, 2, 255}

	msg, err := ParseDHCPv4(BuildDHCPv4(in, opts))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Header.Xid != in.Xid || msg.Header.YIAddr != in.YIAddr || msg.Header.CHAddr != in.CHAddr {
		t.Fatalf("header mismatch: got=%+v", msg.Header)
	}
	if msg.Header.CIAddr.String() != "0.0.0.0" {
		t.Fatalf("unexpected ciaddr %s", msg.Header.CIAddr)
	}
	if !bytes.Equal(msg.Options.Bytes(), opts) || msg.Options.Offset() != OptionsOffset {
		t.Fatalf("options region mismatch: %v at %d", msg.Options.Bytes(), msg.Options.Offset())
	}
}

func TestParseDHCPv4ShortHeaderIsDeterministic(t *testing.T) {
	testlog.Start(t)
	_, err := ParseDHCPv4(make([]byte, OptionsOffset-1))
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestParseDHCPv4BadMagic(t *testing.T) {
	testlog.Start(t)
	buf := EncodeHeader(Header{Op: OpRequest})
	buf[FixedHeaderLen] = 0
	if _, err := DHCPv4Options(buf); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestParseDHCPv4BadHardwareLength(t *testing.T) {
	testlog.Start(t)
	buf := EncodeHeader(Header{Op: OpRequest, HLen: 17})
	if _, err := ParseDHCPv4(buf); !errors.Is(err, ErrBadHLen) {
		t.Fatalf("expected ErrBadHLen, got %v", err)
	}
}

func TestEmptyOptionsRegion(t *testing.T) {
	testlog.Start(t)
	region, err := DHCPv4Options(EncodeHeader(Header{Op: OpRequest}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if region.Len() != 0 {
		t.Fatalf("expected empty region, got %d bytes", region.Len())
	}
}
