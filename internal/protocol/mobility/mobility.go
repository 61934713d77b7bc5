// Package mobility defines the IPv6 mobility header option family (RFC 6275
// section 6.2) and its builtin option types.
package mobility

import (
	"errors"
	"fmt"

	"gvisor.dev/gvisor/pkg/tcpip/header"

	"github.com/danmuck/optwire/internal/protocol/options"
	"github.com/danmuck/optwire/internal/protocol/view"
)

const (
	OptPad1             options.Code = 0
	OptPadN             options.Code = 1
	OptServiceSelection options.Code = 20
)

// Identifier bounds for Service Selection (RFC 5149).
const (
	MinIdentifierLength = 1
	MaxIdentifierLength = 255
)

// Family is the mobility options space. Pad1 is a lone type byte.
var Family = options.Family{
	ID:           "ipv6-mobility",
	CodeWidth:    1,
	LengthWidth:  1,
	AddressWidth: header.IPv6AddressSize,
	Markers:      []options.Code{OptPad1},
}

var ErrWrongOption = errors.New("mobility: wrong option")

var serviceSelection = options.SingleFieldFactory{MinLen: MinIdentifierLength, MaxLen: MaxIdentifierLength}

func Entries() []options.Entry {
	return []options.Entry{
		{Family: Family, Code: OptPadN, Factory: options.RawFactory{}},
		{Family: Family, Code: OptServiceSelection, Factory: serviceSelection},
	}
}

func Register(reg *options.Registry) error {
	return reg.RegisterAll(Entries())
}

// NewServiceSelection builds a Service Selection option such as "ims" or
// "voip.companyxyz.example.com".
func NewServiceSelection(identifier []byte) (options.Record, error) {
	rec, err := serviceSelection.Decode(OptServiceSelection, view.New(identifier))
	if err != nil {
		return options.Record{}, fmt.Errorf("mobility: service selection: %w", err)
	}
	return rec, nil
}

// ServiceSelection returns the identifier carried by rec.
func ServiceSelection(rec options.Record) ([]byte, error) {
	if rec.Code != OptServiceSelection || rec.Kind != options.KindSingleField {
		return nil, fmt.Errorf("%w: code %d kind %s", ErrWrongOption, rec.Code, rec.Kind)
	}
	return rec.Data.Bytes(), nil
}
