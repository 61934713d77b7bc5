package options

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danmuck/optwire/internal/protocol/view"
	"github.com/danmuck/optwire/internal/testutil/testlog"
)

func rawFunc(code Code, payload view.View) (Record, error) {
	return Record{Kind: KindRaw, Code: code, Data: payload}, nil
}

func otherRawFunc(code Code, payload view.View) (Record, error) {
	return Record{Kind: KindRaw, Code: code, Data: payload}, nil
}

func TestRegisterDuplicateDeterministic(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	if err := reg.Register(shortFamily, 49, AddressListFactory{Width: 4}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(shortFamily, 49, AddressListFactory{Width: 4}); err != nil {
		t.Fatalf("identical re-registration should be a no-op, got %v", err)
	}
	err := reg.Register(shortFamily, 49, AddressListFactory{Width: 4, AllowEmpty: true})
	if !errors.Is(err, ErrDuplicateRegistration) {
		t.Fatalf("expected ErrDuplicateRegistration, got %v", err)
	}
	if err := reg.Register(shortFamily, 49, SingleFieldFactory{MinLen: 1, MaxLen: 4}); !errors.Is(err, ErrDuplicateRegistration) {
		t.Fatalf("expected ErrDuplicateRegistration for other factory type, got %v", err)
	}
	f, ok := reg.Lookup(shortFamily, 49)
	if !ok || f != (AddressListFactory{Width: 4}) {
		t.Fatalf("first factory replaced: %#v", f)
	}
}

func TestRegisterFuncIdentity(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	if err := reg.Register(shortFamily, 60, FactoryFunc(rawFunc)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(shortFamily, 60, FactoryFunc(rawFunc)); err != nil {
		t.Fatalf("same function should be a no-op, got %v", err)
	}
	if err := reg.Register(shortFamily, 60, FactoryFunc(otherRawFunc)); !errors.Is(err, ErrDuplicateRegistration) {
		t.Fatalf("expected ErrDuplicateRegistration, got %v", err)
	}
}

func TestSameCodeDifferentFamiliesIndependent(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	if err := reg.Register(shortFamily, 23, RawFactory{}); err != nil {
		t.Fatalf("register short: %v", err)
	}
	if err := reg.Register(wideFamily, 23, AddressListFactory{Width: 16}); err != nil {
		t.Fatalf("register wide: %v", err)
	}
	if f, _ := reg.Lookup(shortFamily, 23); f != (RawFactory{}) {
		t.Fatalf("unexpected short factory %#v", f)
	}
	if f, _ := reg.Lookup(wideFamily, 23); f != (AddressListFactory{Width: 16}) {
		t.Fatalf("unexpected wide factory %#v", f)
	}
}

func TestRegisterAllIsAtomic(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	if err := reg.Register(shortFamily, 12, SingleFieldFactory{MinLen: 1, MaxLen: 255}); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := reg.RegisterAll([]Entry{
		{Family: shortFamily, Code: 3, Factory: AddressListFactory{Width: 4}},
		{Family: shortFamily, Code: 12, Factory: RawFactory{}},
	})
	if !errors.Is(err, ErrDuplicateRegistration) {
		t.Fatalf("expected ErrDuplicateRegistration, got %v", err)
	}
	if _, ok := reg.Lookup(shortFamily, 3); ok {
		t.Fatalf("partial batch applied")
	}

	err = reg.RegisterAll([]Entry{
		{Family: shortFamily, Code: 4, Factory: AddressListFactory{Width: 4}},
		{Family: shortFamily, Code: 4, Factory: RawFactory{}},
	})
	if !errors.Is(err, ErrDuplicateRegistration) {
		t.Fatalf("expected in-batch conflict, got %v", err)
	}
	if _, ok := reg.Lookup(shortFamily, 4); ok {
		t.Fatalf("conflicting batch applied")
	}
}

func TestRegisterRejectsBadEntries(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	if err := reg.Register(shortFamily, 5, nil); !errors.Is(err, ErrNilFactory) {
		t.Fatalf("expected ErrNilFactory, got %v", err)
	}
	if err := reg.Register(shortFamily, 256, RawFactory{}); err == nil {
		t.Fatalf("expected code width error")
	}
	if err := reg.Register(shortFamily, 255, RawFactory{}); err == nil {
		t.Fatalf("expected marker registration error")
	}
	if err := reg.Register(Family{ID: "x", CodeWidth: 1, LengthWidth: 4}, 1, RawFactory{}); err == nil {
		t.Fatalf("expected family validation error")
	}

	if err := reg.Register(shortFamily, 5, RawFactory{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	relaid := shortFamily
	relaid.LengthWidth = 2
	if err := reg.Register(relaid, 6, RawFactory{}); err == nil {
		t.Fatalf("expected conflicting family layout error")
	}
}

func TestSealedRegistryRejectsRegistration(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	if err := reg.Register(shortFamily, 1, RawFactory{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg.Seal()
	if !reg.Sealed() {
		t.Fatalf("expected sealed")
	}
	if err := reg.Register(shortFamily, 2, RawFactory{}); !errors.Is(err, ErrRegistrySealed) {
		t.Fatalf("expected ErrRegistrySealed, got %v", err)
	}
	if _, ok := reg.Lookup(shortFamily, 1); !ok {
		t.Fatalf("lookup after seal failed")
	}
}

func TestCodesAndFamiliesAreSorted(t *testing.T) {
	testlog.Start(t)
	reg := testRegistry(t)
	if diff := cmp.Diff([]Code{codeLoose, codeIdent, codeAddrs}, reg.Codes(shortFamily)); diff != "" {
		t.Fatalf("codes mismatch (-want +got):\n%s", diff)
	}
	fams := reg.Families()
	if len(fams) != 2 || fams[0].ID != shortFamily.ID || fams[1].ID != wideFamily.ID {
		t.Fatalf("unexpected families: %+v", fams)
	}
	if f, ok := reg.Family(wideFamily.ID); !ok || f.CodeWidth != 2 {
		t.Fatalf("family lookup failed: %+v %v", f, ok)
	}
	if _, ok := reg.Lookup(shortFamily, 99); ok {
		t.Fatalf("unexpected factory for unregistered code")
	}
}

type wrappedFactory struct {
	Inner Factory
}

func (w wrappedFactory) Decode(code Code, payload view.View) (Record, error) {
	return w.Inner.Decode(code, payload)
}

func TestRegisterUncomparableFactoryConflicts(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	if err := reg.Register(shortFamily, 61, wrappedFactory{Inner: FactoryFunc(rawFunc)}); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := reg.Register(shortFamily, 61, wrappedFactory{Inner: FactoryFunc(otherRawFunc)})
	if !errors.Is(err, ErrDuplicateRegistration) {
		t.Fatalf("expected ErrDuplicateRegistration, got %v", err)
	}
	if err := reg.Register(shortFamily, 62, wrappedFactory{Inner: RawFactory{}}); err != nil {
		t.Fatalf("register comparable wrapper: %v", err)
	}
	if err := reg.Register(shortFamily, 62, wrappedFactory{Inner: RawFactory{}}); err != nil {
		t.Fatalf("equal comparable wrapper should be a no-op, got %v", err)
	}
}

func TestRegisterRejectsAddressWidthMismatch(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	if err := reg.Register(wideFamily, 99, AddressListFactory{Width: 4}); err == nil {
		t.Fatalf("expected address width mismatch error")
	}
	if err := reg.Register(shortFamily, 99, &AddressListFactory{Width: 16}); err == nil {
		t.Fatalf("expected address width mismatch error for pointer factory")
	}
	if _, ok := reg.Lookup(wideFamily, 99); ok {
		t.Fatalf("mismatched factory registered")
	}

	if err := reg.Register(wideFamily, 99, AddressListFactory{Width: 16}); err != nil {
		t.Fatalf("register: %v", err)
	}
	in := []byte{0x00, 0x63, 0x00, 0x10, 0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	recs, err := NewDecoder(reg).Decode(wideFamily, view.New(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out, err := Encode(wideFamily, recs)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRegisterEquivalentFamilyLayouts(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	nilMarkers := Family{ID: "test-plain", CodeWidth: 1, LengthWidth: 1, AddressWidth: 4}
	emptyMarkers := nilMarkers
	emptyMarkers.Markers = []Code{}
	if err := reg.Register(nilMarkers, 1, RawFactory{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(emptyMarkers, 2, RawFactory{}); err != nil {
		t.Fatalf("empty marker list should match nil markers, got %v", err)
	}
	moreMarkers := nilMarkers
	moreMarkers.Markers = []Code{0}
	if err := reg.Register(moreMarkers, 3, RawFactory{}); err == nil {
		t.Fatalf("expected conflicting marker set error")
	}
}
