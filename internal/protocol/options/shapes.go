package options

import (
	"fmt"

	"gvisor.dev/gvisor/pkg/tcpip"

	"github.com/danmuck/optwire/internal/protocol/view"
)

// AddressListFactory decodes a payload made of back-to-back fixed-width
// addresses. A length that is not a multiple of Width is rejected, never
// rounded down.
type AddressListFactory struct {
	Width      int
	AllowEmpty bool
}

func (f AddressListFactory) Decode(code Code, payload view.View) (Record, error) {
	if f.Width != 4 && f.Width != 16 {
		return Record{}, fmt.Errorf("unsupported address width %d", f.Width)
	}
	n := payload.Len()
	if n == 0 && !f.AllowEmpty {
		return Record{}, fmt.Errorf("empty address list")
	}
	if n%f.Width != 0 {
		return Record{}, fmt.Errorf("length %d is not a multiple of address width %d", n, f.Width)
	}
	addrs := make([]tcpip.Address, 0, n/f.Width)
	for off := 0; off < n; off += f.Width {
		s, err := payload.Slice(off, f.Width)
		if err != nil {
			return Record{}, err
		}
		addrs = append(addrs, tcpip.AddrFromSlice(s.Bytes()))
	}
	return Record{Kind: KindAddressList, Code: code, Addresses: addrs}, nil
}

// SingleFieldFactory accepts one opaque field whose length lies in
// [MinLen, MaxLen].
type SingleFieldFactory struct {
	MinLen int
	MaxLen int
}

func (f SingleFieldFactory) Decode(code Code, payload view.View) (Record, error) {
	n := payload.Len()
	if n < f.MinLen || n > f.MaxLen {
		return Record{}, fmt.Errorf("length %d outside [%d, %d]", n, f.MinLen, f.MaxLen)
	}
	return Record{Kind: KindSingleField, Code: code, Data: payload}, nil
}

// RawFactory passes the payload through unvalidated. Registering it marks a
// code as known without giving it structure.
type RawFactory struct{}

func (RawFactory) Decode(code Code, payload view.View) (Record, error) {
	return Record{Kind: KindRaw, Code: code, Data: payload}, nil
}
