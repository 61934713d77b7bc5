package options

import (
	"errors"
	"fmt"
)

var (
	ErrTruncatedHeader       = errors.New("options: truncated header")
	ErrTruncatedPayload      = errors.New("options: truncated payload")
	ErrInvalidPayload        = errors.New("options: invalid payload")
	ErrTooManyRecords        = errors.New("options: too many records")
	ErrRegionTooLarge        = errors.New("options: region too large")
	ErrDuplicateRegistration = errors.New("options: duplicate registration")
	ErrRegistrySealed        = errors.New("options: registry sealed")
	ErrNilFactory            = errors.New("options: nil factory")
	ErrUnencodable           = errors.New("options: record cannot be encoded")
)

// FaultKind classifies a decode fault.
type FaultKind uint8

const (
	FaultTruncatedHeader FaultKind = iota + 1
	FaultTruncatedPayload
	FaultInvalidPayload
	FaultTooManyRecords
	FaultRegionTooLarge
)

func (k FaultKind) String() string {
	switch k {
	case FaultTruncatedHeader:
		return "truncated_header"
	case FaultTruncatedPayload:
		return "truncated_payload"
	case FaultInvalidPayload:
		return "invalid_payload"
	case FaultTooManyRecords:
		return "too_many_records"
	case FaultRegionTooLarge:
		return "region_too_large"
	default:
		return "unknown"
	}
}

func (k FaultKind) sentinel() error {
	switch k {
	case FaultTruncatedHeader:
		return ErrTruncatedHeader
	case FaultTruncatedPayload:
		return ErrTruncatedPayload
	case FaultInvalidPayload:
		return ErrInvalidPayload
	case FaultTooManyRecords:
		return ErrTooManyRecords
	case FaultRegionTooLarge:
		return ErrRegionTooLarge
	default:
		return nil
	}
}

// DecodeError is returned by the walker. Offset is relative to the start of the
// option region. Code is meaningful only when HasCode is set.
type DecodeError struct {
	Kind    FaultKind
	Family  string
	Offset  int
	Code    Code
	HasCode bool
	Detail  string
	Err     error // factory error for FaultInvalidPayload
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("options: %s: %s at offset %d", e.Family, e.Kind, e.Offset)
	if e.HasCode {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap exposes the kind sentinel and, when present, the factory error.
func (e *DecodeError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// FaultOf returns the DecodeError carried by err, if any.
func FaultOf(err error) (*DecodeError, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
