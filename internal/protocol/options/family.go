package options

import "fmt"

// Code is an option type code. Families with one-byte code fields use the low
// eight bits only.
type Code uint16

// Family is one option numbering space together with its field layout.
type Family struct {
	ID           string
	CodeWidth    int // bytes in the type field: 1 or 2
	LengthWidth  int // bytes in the length field: 1 or 2
	AddressWidth int // bytes per address in address-list payloads
	// Markers are codes that occupy only the type field, with no length and no
	// payload (DHCP Pad and End, mobility Pad1).
	Markers []Code
}

// IsMarker reports whether code is a single-field marker in f.
func (f Family) IsMarker(code Code) bool {
	for _, m := range f.Markers {
		if m == code {
			return true
		}
	}
	return false
}

// MaxCode is the largest code the type field can carry.
func (f Family) MaxCode() Code {
	return Code(maxForWidth(f.CodeWidth))
}

// MaxLength is the largest payload length the length field can carry.
func (f Family) MaxLength() int {
	return int(maxForWidth(f.LengthWidth))
}

// HeaderLen is the number of bytes before a non-marker payload.
func (f Family) HeaderLen() int {
	return f.CodeWidth + f.LengthWidth
}

// Validate checks the layout fields.
func (f Family) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("options: family id is required")
	}
	if f.CodeWidth != 1 && f.CodeWidth != 2 {
		return fmt.Errorf("options: family %s: unsupported code width %d", f.ID, f.CodeWidth)
	}
	if f.LengthWidth != 1 && f.LengthWidth != 2 {
		return fmt.Errorf("options: family %s: unsupported length width %d", f.ID, f.LengthWidth)
	}
	if f.AddressWidth < 0 {
		return fmt.Errorf("options: family %s: negative address width", f.ID)
	}
	for _, m := range f.Markers {
		if m > f.MaxCode() {
			return fmt.Errorf("options: family %s: marker %d exceeds code width", f.ID, m)
		}
	}
	return nil
}

func (f Family) String() string {
	return f.ID
}

func maxForWidth(width int) uint32 {
	switch width {
	case 1:
		return 0xff
	case 2:
		return 0xffff
	default:
		return 0
	}
}
