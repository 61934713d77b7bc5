package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/optwire/internal/protocol/dhcp"
	"github.com/danmuck/optwire/internal/protocol/dhcpv6"
	"github.com/danmuck/optwire/internal/protocol/mobility"
	"github.com/danmuck/optwire/internal/protocol/options"
)

// Shapes accepted in definitions.
const (
	ShapeAddressList = "address_list"
	ShapeSingleField = "single_field"
	ShapeRaw         = "raw"
)

// Definition declares an option type outside the builtin set, typically read
// from the [[option]] tables of a config file.
type Definition struct {
	Family     string `toml:"family"`
	Code       int    `toml:"code"`
	Name       string `toml:"name"`
	Shape      string `toml:"shape"`
	MinLen     int    `toml:"min_len"`
	MaxLen     int    `toml:"max_len"`
	AllowEmpty bool   `toml:"allow_empty"`
}

type ValidationError struct {
	Family string
	Code   int
	Reason string
}

func (e ValidationError) Error() string {
	if e.Family == "" {
		return fmt.Sprintf("schema: code=%d: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("schema: family=%s code=%d: %s", e.Family, e.Code, e.Reason)
}

var families = map[string]options.Family{
	dhcp.Family.ID:     dhcp.Family,
	dhcpv6.Family.ID:   dhcpv6.Family,
	mobility.Family.ID: mobility.Family,
}

// LookupFamily resolves a family id such as "dhcpv4".
func LookupFamily(id string) (options.Family, bool) {
	f, ok := families[strings.ToLower(strings.TrimSpace(id))]
	return f, ok
}

// FamilyIDs returns the known family ids.
func FamilyIDs() []string {
	return []string{dhcp.Family.ID, dhcpv6.Family.ID, mobility.Family.ID}
}

// Entry validates d and turns it into a registry entry.
func (d Definition) Entry() (options.Entry, error) {
	fam, ok := LookupFamily(d.Family)
	if !ok {
		return options.Entry{}, ValidationError{Family: d.Family, Code: d.Code, Reason: "unknown family"}
	}
	if d.Code < 0 || d.Code > int(fam.MaxCode()) {
		return options.Entry{}, ValidationError{Family: fam.ID, Code: d.Code, Reason: "code out of range"}
	}
	if fam.IsMarker(options.Code(d.Code)) {
		return options.Entry{}, ValidationError{Family: fam.ID, Code: d.Code, Reason: "code is a marker"}
	}

	var factory options.Factory
	switch strings.ToLower(strings.TrimSpace(d.Shape)) {
	case ShapeAddressList:
		if fam.AddressWidth == 0 {
			return options.Entry{}, ValidationError{Family: fam.ID, Code: d.Code, Reason: "family has no address width"}
		}
		factory = options.AddressListFactory{Width: fam.AddressWidth, AllowEmpty: d.AllowEmpty}
	case ShapeSingleField:
		maxLen := d.MaxLen
		if maxLen == 0 {
			maxLen = fam.MaxLength()
		}
		if d.MinLen < 0 || maxLen < d.MinLen || maxLen > fam.MaxLength() {
			return options.Entry{}, ValidationError{Family: fam.ID, Code: d.Code, Reason: "invalid length bounds"}
		}
		factory = options.SingleFieldFactory{MinLen: d.MinLen, MaxLen: maxLen}
	case ShapeRaw:
		factory = options.RawFactory{}
	default:
		return options.Entry{}, ValidationError{Family: fam.ID, Code: d.Code, Reason: fmt.Sprintf("unknown shape %q", d.Shape)}
	}
	return options.Entry{Family: fam, Code: options.Code(d.Code), Factory: factory}, nil
}

// Entries converts defs, stopping at the first invalid definition.
func Entries(defs []Definition) ([]options.Entry, error) {
	entries := make([]options.Entry, 0, len(defs))
	for _, d := range defs {
		e, err := d.Entry()
		if err != nil {
			log.Error().Err(err).Str("name", d.Name).Msg("schema.Entries invalid definition")
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Builtin returns the registrations shipped for every known family.
func Builtin() []options.Entry {
	entries := make([]options.Entry, 0, 64)
	entries = append(entries, dhcp.Entries()...)
	entries = append(entries, dhcpv6.Entries()...)
	entries = append(entries, mobility.Entries()...)
	return entries
}

// NewRegistry builds a sealed registry holding the builtin option types plus
// extra. A definition that collides with a builtin using a different shape
// fails with options.ErrDuplicateRegistration and no registry is returned.
func NewRegistry(extra []Definition) (*options.Registry, error) {
	entries, err := Entries(extra)
	if err != nil {
		return nil, err
	}
	reg := options.NewRegistry()
	if err := reg.RegisterAll(append(Builtin(), entries...)); err != nil {
		return nil, fmt.Errorf("schema: build registry: %w", err)
	}
	reg.Seal()
	log.Info().Int("builtin", len(Builtin())).Int("extra", len(entries)).Msg("schema.NewRegistry ok")
	return reg, nil
}

var (
	installOnce sync.Once
	installErr  error
)

func init() {
	if err := InstallDefault(); err != nil {
		panic(err)
	}
}

// InstallDefault registers the builtin option types into options.Default and
// seals it. Only the first call does any work.
func InstallDefault() error {
	installOnce.Do(func() {
		if installErr = options.Default.RegisterAll(Builtin()); installErr != nil {
			return
		}
		options.Default.Seal()
	})
	return installErr
}
