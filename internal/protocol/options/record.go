package options

import (
	"gvisor.dev/gvisor/pkg/tcpip"

	"github.com/danmuck/optwire/internal/protocol/view"
)

// Kind selects which Record fields are meaningful.
type Kind uint8

const (
	// KindRaw carries an unvalidated payload in Data. Unknown codes decode to it.
	KindRaw Kind = iota
	// KindAddressList carries fixed-width addresses in Addresses.
	KindAddressList
	// KindSingleField carries one bounded payload in Data.
	KindSingleField
	// KindMarker has no length field and no payload.
	KindMarker
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindAddressList:
		return "address_list"
	case KindSingleField:
		return "single_field"
	case KindMarker:
		return "marker"
	default:
		return "unknown"
	}
}

// Record is one decoded option. Decoded records borrow the buffer they came
// from; use Clone to keep one past the buffer's lifetime.
type Record struct {
	Kind      Kind
	Code      Code
	Addresses []tcpip.Address
	Data      view.View
}

func NewAddressList(code Code, addrs []tcpip.Address) Record {
	return Record{Kind: KindAddressList, Code: code, Addresses: addrs}
}

func NewSingleField(code Code, data []byte) Record {
	return Record{Kind: KindSingleField, Code: code, Data: view.New(data)}
}

func NewRaw(code Code, data []byte) Record {
	return Record{Kind: KindRaw, Code: code, Data: view.New(data)}
}

func NewMarker(code Code) Record {
	return Record{Kind: KindMarker, Code: code}
}

// PayloadLen is the value the length field takes when the record is encoded.
func (r Record) PayloadLen() int {
	switch r.Kind {
	case KindAddressList:
		n := 0
		for _, a := range r.Addresses {
			n += a.Len()
		}
		return n
	case KindMarker:
		return 0
	default:
		return r.Data.Len()
	}
}

// Clone returns a record that no longer references the decode buffer.
// tcpip.Address is a value type, so only Data needs copying.
func (r Record) Clone() Record {
	out := r
	if r.Addresses != nil {
		out.Addresses = append([]tcpip.Address(nil), r.Addresses...)
	}
	if r.Data.Len() > 0 {
		out.Data = view.New(r.Data.Copy())
	}
	return out
}

// Equal compares kind, code and payload; buffer positions are ignored.
func (r Record) Equal(o Record) bool {
	if r.Kind != o.Kind || r.Code != o.Code {
		return false
	}
	if len(r.Addresses) != len(o.Addresses) {
		return false
	}
	for i := range r.Addresses {
		if r.Addresses[i] != o.Addresses[i] {
			return false
		}
	}
	return r.Data.Equal(o.Data)
}

// Find returns the first record with the given code.
func Find(records []Record, code Code) (Record, bool) {
	for _, r := range records {
		if r.Code == code {
			return r, true
		}
	}
	return Record{}, false
}
