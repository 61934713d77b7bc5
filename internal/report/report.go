// Package report converts option records to and from their JSON form.
package report

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"unicode/utf8"

	"gvisor.dev/gvisor/pkg/tcpip"

	"github.com/danmuck/optwire/internal/protocol/options"
)

var ErrBadRecord = errors.New("report: bad record")

// Record is the JSON form of options.Record. Data is hex; Text is set when a
// payload is printable.
type Record struct {
	Code      uint16   `json:"code"`
	Kind      string   `json:"kind"`
	Addresses []string `json:"addresses,omitempty"`
	Data      string   `json:"data,omitempty"`
	Text      string   `json:"text,omitempty"`
}

// Fault is the JSON form of options.DecodeError.
type Fault struct {
	Kind   string  `json:"kind"`
	Offset int     `json:"offset"`
	Code   *uint16 `json:"code,omitempty"`
	Detail string  `json:"detail,omitempty"`
}

func FromRecords(records []options.Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, FromRecord(r))
	}
	return out
}

func FromRecord(r options.Record) Record {
	v := Record{Code: uint16(r.Code), Kind: r.Kind.String()}
	switch r.Kind {
	case options.KindAddressList:
		v.Addresses = make([]string, 0, len(r.Addresses))
		for _, a := range r.Addresses {
			v.Addresses = append(v.Addresses, a.String())
		}
	case options.KindMarker:
	default:
		b := r.Data.Bytes()
		v.Data = hex.EncodeToString(b)
		if printable(b) {
			v.Text = string(b)
		}
	}
	return v
}

// ToRecords parses JSON records for fam. Data wins over Text when both are set.
func ToRecords(fam options.Family, views []Record) ([]options.Record, error) {
	out := make([]options.Record, 0, len(views))
	for i, v := range views {
		r, err := toRecord(fam, v)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func toRecord(fam options.Family, v Record) (options.Record, error) {
	code := options.Code(v.Code)
	switch strings.ToLower(v.Kind) {
	case "marker":
		return options.NewMarker(code), nil
	case "address_list":
		addrs := make([]tcpip.Address, 0, len(v.Addresses))
		for _, s := range v.Addresses {
			a, err := ParseAddress(fam, s)
			if err != nil {
				return options.Record{}, err
			}
			addrs = append(addrs, a)
		}
		return options.NewAddressList(code, addrs), nil
	case "single_field", "raw", "":
		data, err := payload(v)
		if err != nil {
			return options.Record{}, err
		}
		if strings.ToLower(v.Kind) == "single_field" {
			return options.NewSingleField(code, data), nil
		}
		return options.NewRaw(code, data), nil
	default:
		return options.Record{}, fmt.Errorf("%w: unknown kind %q", ErrBadRecord, v.Kind)
	}
}

// ParseAddress parses s as an address of fam's width.
func ParseAddress(fam options.Family, s string) (tcpip.Address, error) {
	ip, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return tcpip.Address{}, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	switch {
	case fam.AddressWidth == 4 && ip.Is4():
		return tcpip.AddrFrom4(ip.As4()), nil
	case fam.AddressWidth == 16 && ip.Is6():
		return tcpip.AddrFrom16(ip.As16()), nil
	default:
		return tcpip.Address{}, fmt.Errorf("%w: %s is not a %d-byte address", ErrBadRecord, s, fam.AddressWidth)
	}
}

// FaultOf reports err as a Fault when it is a decode fault.
func FaultOf(err error) (Fault, bool) {
	de, ok := options.FaultOf(err)
	if !ok {
		return Fault{}, false
	}
	f := Fault{Kind: de.Kind.String(), Offset: de.Offset, Detail: de.Detail}
	if de.HasCode {
		c := uint16(de.Code)
		f.Code = &c
	}
	return f, true
}

func payload(v Record) ([]byte, error) {
	if v.Data != "" {
		b, err := hex.DecodeString(strings.TrimSpace(v.Data))
		if err != nil {
			return nil, fmt.Errorf("%w: data: %v", ErrBadRecord, err)
		}
		return b, nil
	}
	return []byte(v.Text), nil
}

func printable(b []byte) bool {
	if len(b) == 0 || !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if !strconv.IsPrint(r) {
			return false
		}
	}
	return true
}

// Code describes one registered option type.
type Code struct {
	Code       uint16 `json:"code"`
	Shape      string `json:"shape"`
	Width      int    `json:"width,omitempty"`
	MinLen     int    `json:"min_len,omitempty"`
	MaxLen     int    `json:"max_len,omitempty"`
	AllowEmpty bool   `json:"allow_empty,omitempty"`
}

// Family describes an option family layout.
type Family struct {
	ID           string   `json:"id"`
	CodeWidth    int      `json:"code_width"`
	LengthWidth  int      `json:"length_width"`
	AddressWidth int      `json:"address_width"`
	Markers      []uint16 `json:"markers,omitempty"`
	Codes        int      `json:"codes"`
}

// Describe reports the shape of a factory. Factories outside the builtin
// shapes are reported as "custom".
func Describe(code options.Code, f options.Factory) Code {
	c := Code{Code: uint16(code)}
	switch v := f.(type) {
	case options.AddressListFactory:
		c.Shape, c.Width, c.AllowEmpty = "address_list", v.Width, v.AllowEmpty
	case options.SingleFieldFactory:
		c.Shape, c.MinLen, c.MaxLen = "single_field", v.MinLen, v.MaxLen
	case options.RawFactory:
		c.Shape = "raw"
	default:
		c.Shape = "custom"
	}
	return c
}

// Codes lists the registered codes of fam in ascending order.
func Codes(reg *options.Registry, fam options.Family) []Code {
	codes := reg.Codes(fam)
	out := make([]Code, 0, len(codes))
	for _, code := range codes {
		f, ok := reg.Lookup(fam, code)
		if !ok {
			continue
		}
		out = append(out, Describe(code, f))
	}
	return out
}

func Families(reg *options.Registry) []Family {
	fams := reg.Families()
	out := make([]Family, 0, len(fams))
	for _, f := range fams {
		markers := make([]uint16, 0, len(f.Markers))
		for _, m := range f.Markers {
			markers = append(markers, uint16(m))
		}
		out = append(out, Family{
			ID:           f.ID,
			CodeWidth:    f.CodeWidth,
			LengthWidth:  f.LengthWidth,
			AddressWidth: f.AddressWidth,
			Markers:      markers,
			Codes:        len(reg.Codes(f)),
		})
	}
	return out
}
