package options

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/optwire/internal/protocol/view"
)

// Limits bounds the work done on one region. Zero fields disable the bound.
type Limits struct {
	MaxRecords     int
	MaxRegionBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxRecords:     4096,
		MaxRegionBytes: 64 * 1024,
	}
}

// Decoder walks option regions using a registry.
type Decoder struct {
	Registry *Registry
	Limits   Limits
}

func NewDecoder(reg *Registry) *Decoder {
	return &Decoder{Registry: reg, Limits: DefaultLimits()}
}

// Decode walks region with the Default registry. Without the builtins
// installed every code decodes as raw.
func Decode(fam Family, region view.View) ([]Record, error) {
	return NewDecoder(Default).Decode(fam, region)
}

// Decode splits region into records. The walk succeeds only if the last record
// ends exactly at the end of region; the first fault aborts it.
func (d *Decoder) Decode(fam Family, region view.View) ([]Record, error) {
	if err := fam.Validate(); err != nil {
		return nil, err
	}
	if d.Limits.MaxRegionBytes > 0 && region.Len() > d.Limits.MaxRegionBytes {
		return nil, d.fault(&DecodeError{Kind: FaultRegionTooLarge, Family: fam.ID, Offset: 0})
	}

	records := make([]Record, 0, 8)
	c := view.NewCursor(region)
	for !c.Done() {
		if d.Limits.MaxRecords > 0 && len(records) >= d.Limits.MaxRecords {
			return nil, d.fault(&DecodeError{Kind: FaultTooManyRecords, Family: fam.ID, Offset: c.Offset()})
		}

		start := c.Offset()
		raw, err := c.ReadUint(fam.CodeWidth)
		if err != nil {
			return nil, d.fault(&DecodeError{Kind: FaultTruncatedHeader, Family: fam.ID, Offset: start})
		}
		code := Code(raw)
		if fam.IsMarker(code) {
			records = append(records, NewMarker(code))
			continue
		}

		lengthAt := c.Offset()
		length, err := c.ReadUint(fam.LengthWidth)
		if err != nil {
			return nil, d.fault(&DecodeError{Kind: FaultTruncatedHeader, Family: fam.ID, Offset: lengthAt, Code: code, HasCode: true})
		}
		remaining := c.Remaining()
		payload, err := c.Next(int(length))
		if err != nil {
			return nil, d.fault(&DecodeError{
				Kind:    FaultTruncatedPayload,
				Family:  fam.ID,
				Offset:  lengthAt,
				Code:    code,
				HasCode: true,
				Detail:  fmt.Sprintf("declared %d bytes, %d remain", length, remaining),
			})
		}

		rec, err := d.build(fam, code, payload)
		if err != nil {
			return nil, d.fault(&DecodeError{
				Kind:    FaultInvalidPayload,
				Family:  fam.ID,
				Offset:  start,
				Code:    code,
				HasCode: true,
				Detail:  err.Error(),
				Err:     err,
			})
		}
		records = append(records, rec)
	}
	return records, nil
}

func (d *Decoder) build(fam Family, code Code, payload view.View) (Record, error) {
	factory, ok := d.lookup(fam, code)
	if !ok {
		return Record{Kind: KindRaw, Code: code, Data: payload}, nil
	}
	rec, err := factory.Decode(code, payload)
	if err != nil {
		return Record{}, err
	}
	if rec.Kind == KindMarker {
		return Record{}, fmt.Errorf("factory returned a marker record for code %d", code)
	}
	rec.Code = code
	return rec, nil
}

func (d *Decoder) lookup(fam Family, code Code) (Factory, bool) {
	if d.Registry == nil {
		return nil, false
	}
	return d.Registry.Lookup(fam, code)
}

func (d *Decoder) fault(e *DecodeError) error {
	log.Debug().
		Str("family", e.Family).
		Str("kind", e.Kind.String()).
		Int("offset", e.Offset).
		Uint16("code", uint16(e.Code)).
		Str("detail", e.Detail).
		Msg("option decode fault")
	return e
}
