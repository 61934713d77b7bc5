package options

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/optwire/internal/protocol/view"
)

// Factory validates a payload and builds the typed record for one code.
type Factory interface {
	Decode(code Code, payload view.View) (Record, error)
}

// FactoryFunc lets a plain function register as a Factory.
type FactoryFunc func(code Code, payload view.View) (Record, error)

func (f FactoryFunc) Decode(code Code, payload view.View) (Record, error) {
	return f(code, payload)
}

// Entry is one registration request.
type Entry struct {
	Family  Family
	Code    Code
	Factory Factory
}

type registryKey struct {
	family string
	code   Code
}

// Registry maps (family, code) to factories. Registration happens during
// startup; Seal ends that phase. Lookups are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	items    map[registryKey]Factory
	families map[string]Family
	sealed   bool
}

// Default is the process-wide registry used by the package-level Decode.
// Importing package schema fills it with the builtin families and seals it.
var Default = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		items:    make(map[registryKey]Factory),
		families: make(map[string]Family),
	}
}

// Register binds factory to (fam, code). Binding the same factory again is a
// no-op; binding a different one returns ErrDuplicateRegistration.
func (r *Registry) Register(fam Family, code Code, factory Factory) error {
	return r.RegisterAll([]Entry{{Family: fam, Code: code, Factory: factory}})
}

// RegisterAll applies entries as one batch. Every entry is checked against the
// registry and against the rest of the batch first; on any error nothing is
// applied.
func (r *Registry) RegisterAll(entries []Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrRegistrySealed
	}

	pending := make(map[registryKey]Factory, len(entries))
	families := make(map[string]Family)
	for _, e := range entries {
		if err := r.checkEntry(e, pending, families); err != nil {
			log.Error().
				Str("family", e.Family.ID).
				Uint16("code", uint16(e.Code)).
				Err(err).
				Msg("option registration rejected")
			return err
		}
	}

	for key, factory := range pending {
		r.items[key] = factory
	}
	for id, fam := range families {
		r.families[id] = fam
	}
	log.Debug().Int("entries", len(entries)).Int("total", len(r.items)).Msg("option factories registered")
	return nil
}

func (r *Registry) checkEntry(e Entry, pending map[registryKey]Factory, families map[string]Family) error {
	if e.Factory == nil {
		return fmt.Errorf("%w: %s code %d", ErrNilFactory, e.Family.ID, e.Code)
	}
	if err := e.Family.Validate(); err != nil {
		return err
	}
	if e.Code > e.Family.MaxCode() {
		return fmt.Errorf("options: %s code %d exceeds %d-byte code field", e.Family.ID, e.Code, e.Family.CodeWidth)
	}
	if e.Family.IsMarker(e.Code) {
		return fmt.Errorf("options: %s code %d is a marker and takes no factory", e.Family.ID, e.Code)
	}
	if w, ok := addressWidth(e.Factory); ok && w != e.Family.AddressWidth {
		return fmt.Errorf("options: %s code %d: %d-byte address list in a family of %d-byte addresses",
			e.Family.ID, e.Code, w, e.Family.AddressWidth)
	}
	if known, ok := r.families[e.Family.ID]; ok && !sameFamily(known, e.Family) {
		return fmt.Errorf("options: family %s registered with a different layout", e.Family.ID)
	}
	if known, ok := families[e.Family.ID]; ok && !sameFamily(known, e.Family) {
		return fmt.Errorf("options: family %s registered with a different layout", e.Family.ID)
	}
	families[e.Family.ID] = e.Family

	key := registryKey{family: e.Family.ID, code: e.Code}
	if existing, ok := r.items[key]; ok && !sameFactory(existing, e.Factory) {
		return fmt.Errorf("%w: %s code %d", ErrDuplicateRegistration, e.Family.ID, e.Code)
	}
	if existing, ok := pending[key]; ok && !sameFactory(existing, e.Factory) {
		return fmt.Errorf("%w: %s code %d", ErrDuplicateRegistration, e.Family.ID, e.Code)
	}
	pending[key] = e.Factory
	return nil
}

// Seal ends the registration phase.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup returns the factory bound to (fam, code). A miss means the code is
// unknown, which is not an error.
func (r *Registry) Lookup(fam Family, code Code) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.items[registryKey{family: fam.ID, code: code}]
	return f, ok
}

// Family returns a family that has at least one registration.
func (r *Registry) Family(id string) (Family, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.families[id]
	return f, ok
}

// Families returns registered families ordered by id.
func (r *Registry) Families() []Family {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Family, 0, len(r.families))
	for _, f := range r.families {
		list = append(list, f)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list
}

// Codes returns the registered codes of fam in ascending order.
func (r *Registry) Codes(fam Family) []Code {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]Code, 0)
	for key := range r.items {
		if key.family == fam.ID {
			codes = append(codes, key.code)
		}
	}
	sort.Slice(codes, func(i, j int) bool {
		return codes[i] < codes[j]
	})
	return codes
}

func sameFamily(a, b Family) bool {
	return a.ID == b.ID &&
		a.CodeWidth == b.CodeWidth &&
		a.LengthWidth == b.LengthWidth &&
		a.AddressWidth == b.AddressWidth &&
		slices.Equal(a.Markers, b.Markers)
}

// addressWidth reports the address width of the builtin address-list factory.
func addressWidth(f Factory) (int, bool) {
	switch v := f.(type) {
	case AddressListFactory:
		return v.Width, true
	case *AddressListFactory:
		if v != nil {
			return v.Width, true
		}
	}
	return 0, false
}

// sameFactory treats comparable factory values as identical when equal and
// FactoryFuncs as identical when they share code. Values that cannot be
// compared at runtime, such as structs holding a func, never match.
func sameFactory(a, b Factory) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if fa, ok := a.(FactoryFunc); ok {
		return reflect.ValueOf(fa).Pointer() == reflect.ValueOf(b.(FactoryFunc)).Pointer()
	}
	if !reflect.ValueOf(a).Comparable() || !reflect.ValueOf(b).Comparable() {
		return false
	}
	return a == b
}
