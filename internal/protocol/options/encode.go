package options

import (
	"fmt"
	"io"
)

// Encode serializes records in order using fam's field layout.
func Encode(fam Family, records []Record) ([]byte, error) {
	return AppendEncode(nil, fam, records)
}

// EncodeTo writes the encoded records to w.
func EncodeTo(w io.Writer, fam Family, records []Record) error {
	buf, err := Encode(fam, records)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// AppendEncode appends the encoded records to dst. On error dst is returned
// unchanged.
func AppendEncode(dst []byte, fam Family, records []Record) ([]byte, error) {
	if err := fam.Validate(); err != nil {
		return dst, err
	}
	size, err := EncodedLen(fam, records)
	if err != nil {
		return dst, err
	}
	out := make([]byte, len(dst), len(dst)+size)
	copy(out, dst)
	for _, r := range records {
		out = appendUint(out, uint32(r.Code), fam.CodeWidth)
		if r.Kind == KindMarker {
			continue
		}
		out = appendUint(out, uint32(r.PayloadLen()), fam.LengthWidth)
		switch r.Kind {
		case KindAddressList:
			for _, a := range r.Addresses {
				out = append(out, a.AsSlice()...)
			}
		default:
			out = append(out, r.Data.Bytes()...)
		}
	}
	return out, nil
}

// EncodedLen returns the wire size of records, checking that every record fits
// fam's layout.
func EncodedLen(fam Family, records []Record) (int, error) {
	total := 0
	for i, r := range records {
		if err := checkEncodable(fam, r); err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		if r.Kind == KindMarker {
			total += fam.CodeWidth
			continue
		}
		total += fam.HeaderLen() + r.PayloadLen()
	}
	return total, nil
}

func checkEncodable(fam Family, r Record) error {
	if r.Code > fam.MaxCode() {
		return fmt.Errorf("%w: code %d exceeds %d-byte code field", ErrUnencodable, r.Code, fam.CodeWidth)
	}
	marker := fam.IsMarker(r.Code)
	if r.Kind == KindMarker && !marker {
		return fmt.Errorf("%w: code %d is not a %s marker", ErrUnencodable, r.Code, fam.ID)
	}
	if r.Kind != KindMarker && marker {
		return fmt.Errorf("%w: marker code %d cannot carry a payload", ErrUnencodable, r.Code)
	}
	if r.Kind == KindAddressList && fam.AddressWidth > 0 {
		for _, a := range r.Addresses {
			if a.Len() != fam.AddressWidth {
				return fmt.Errorf("%w: code %d: %d-byte address in %s list of %d-byte addresses",
					ErrUnencodable, r.Code, a.Len(), fam.ID, fam.AddressWidth)
			}
		}
	}
	if n := r.PayloadLen(); n > fam.MaxLength() {
		return fmt.Errorf("%w: code %d: payload %d exceeds %d-byte length field", ErrUnencodable, r.Code, n, fam.LengthWidth)
	}
	return nil
}

func appendUint(b []byte, v uint32, width int) []byte {
	switch width {
	case 1:
		return append(b, byte(v))
	default:
		return append(b, byte(v>>8), byte(v))
	}
}
