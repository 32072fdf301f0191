package iprange

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"

	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/errdefs"
)

// fakeStore records ranges in a map and can be told to fail writes.
type fakeStore struct {
	mu      sync.Mutex
	ranges  map[string]Range
	failPut bool
}

func newFakeStore(seed ...Range) *fakeStore {
	s := &fakeStore{ranges: map[string]Range{}}
	for _, r := range seed {
		s.ranges[r.StartIP] = r
	}
	return s
}

func (s *fakeStore) ListRanges(context.Context) ([]Range, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Range, 0, len(s.ranges))
	for _, r := range s.ranges {
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeStore) PutRange(_ context.Context, r Range) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return errors.New("disk full")
	}
	s.ranges[r.StartIP] = r
	return nil
}

func (s *fakeStore) DeleteRange(_ context.Context, startIP string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ranges, startIP)
	return nil
}

func newTestRegistry(t *testing.T, seed ...Range) (*Registry, *fakeStore) {
	t.Helper()
	store := newFakeStore(seed...)
	reg, err := NewRegistry(context.Background(), store, logr.Discard())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg, store
}

func mustInsert(t *testing.T, reg *Registry, r Range) Range {
	t.Helper()
	out, err := reg.Insert(context.Background(), r)
	if err != nil {
		t.Fatalf("Insert(%s-%s): %v", r.StartIP, r.EndIP, err)
	}
	return out
}

func TestInsert_OverlapRejected(t *testing.T) {
	reg, _ := newTestRegistry(t)
	mustInsert(t, reg, Range{StartIP: "10.0.0.1", EndIP: "10.0.0.50", Country: "US"})

	_, err := reg.Insert(context.Background(), Range{StartIP: "10.0.0.40", EndIP: "10.0.0.60", Country: "CA"})
	var overlap *OverlapError
	if !errors.As(err, &overlap) {
		t.Fatalf("expected OverlapError, got %v", err)
	}
	if overlap.Existing.StartIP != "10.0.0.1" || overlap.Existing.Country != "US" {
		t.Errorf("expected conflict with 10.0.0.1/US, got %+v", overlap.Existing)
	}
	if !errdefs.IsConflict(err) {
		t.Error("expected overlap to classify as a conflict")
	}
	if reg.Len() != 1 {
		t.Errorf("expected rejected insert to leave 1 range, got %d", reg.Len())
	}
}

func TestInsert_OverlapShapes(t *testing.T) {
	existing := Range{StartIP: "10.0.1.0", EndIP: "10.0.1.255", Country: "US"}

	tests := []struct {
		name       string
		start, end string
		wantErr    bool
	}{
		{"contained", "10.0.1.10", "10.0.1.20", true},
		{"containing", "10.0.0.0", "10.0.2.255", true},
		{"same start", "10.0.1.0", "10.0.1.0", true},
		{"touching end", "10.0.1.255", "10.0.2.10", true},
		{"touching start", "10.0.0.0", "10.0.1.0", true},
		{"adjacent after", "10.0.2.0", "10.0.2.255", false},
		{"adjacent before", "10.0.0.0", "10.0.0.255", false},
		{"other family", "::", "::ffff:ffff", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, _ := newTestRegistry(t, existing)
			_, err := reg.Insert(context.Background(), Range{StartIP: tt.start, EndIP: tt.end, Country: "CA"})
			if tt.wantErr && !errdefs.IsConflict(err) {
				t.Fatalf("expected overlap conflict, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestInsert_Invalid(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tests := []struct {
		name string
		r    Range
		kind errdefs.Kind
	}{
		{"family mismatch", Range{StartIP: "10.0.0.1", EndIP: "2001:db8::1"}, errdefs.KindFamilyMismatch},
		{"reversed", Range{StartIP: "10.0.0.9", EndIP: "10.0.0.1"}, errdefs.KindInvalidRange},
		{"malformed start", Range{StartIP: "10.0.0", EndIP: "10.0.0.1"}, errdefs.KindMalformedAddress},
		{"malformed end", Range{StartIP: "10.0.0.1", EndIP: "ten"}, errdefs.KindMalformedAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Insert(context.Background(), tt.r)
			if !errdefs.IsValidation(err, tt.kind) {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
		})
	}
}

func TestInsert_Normalizes(t *testing.T) {
	reg, store := newTestRegistry(t)
	got := mustInsert(t, reg, Range{StartIP: "2001:DB8::", EndIP: "2001:db8:0:0:0:0:0:ffff", Country: " us "})

	want := Range{StartIP: "2001:db8::", EndIP: "2001:db8::ffff", Country: "us", ISOCode: "US"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Insert() mismatch (-want +got):\n%s", diff)
	}
	if _, ok := store.ranges["2001:db8::"]; !ok {
		t.Errorf("expected range stored under canonical key, got %v", store.ranges)
	}
}

func TestInsert_StoreFailureLeavesIndexUnchanged(t *testing.T) {
	reg, store := newTestRegistry(t)
	store.failPut = true

	if _, err := reg.Insert(context.Background(), Range{StartIP: "10.0.0.1", EndIP: "10.0.0.2"}); err == nil {
		t.Fatal("expected store error")
	}
	if _, ok, _ := reg.Lookup("10.0.0.1"); ok {
		t.Error("expected failed insert to not be indexed")
	}
}

func TestLookup(t *testing.T) {
	reg, _ := newTestRegistry(t)
	mustInsert(t, reg, Range{StartIP: "10.0.0.1", EndIP: "10.0.0.50", Country: "US"})
	mustInsert(t, reg, Range{StartIP: "10.0.0.100", EndIP: "10.0.0.200", Country: "CA"})
	mustInsert(t, reg, Range{StartIP: "2001:db8::", EndIP: "2001:db8::ffff", Country: "DE"})

	tests := []struct {
		addr        string
		wantCountry string
		wantOK      bool
	}{
		{"10.0.0.25", "US", true},
		{"10.0.0.1", "US", true},
		{"10.0.0.50", "US", true},
		{"10.0.0.51", "", false},
		{"10.0.0.0", "", false},
		{"10.0.0.150", "CA", true},
		{"10.0.0.201", "", false},
		{"::ffff:10.0.0.25", "US", true},
		{"2001:db8::abcd", "DE", true},
		{"2001:db8::1:0", "", false},
		{"::a00:19", "", false}, // 10.0.0.25 bits, but IPv6
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			got, ok, err := reg.Lookup(tt.addr)
			if err != nil {
				t.Fatalf("Lookup(%q): unexpected error: %v", tt.addr, err)
			}
			if ok != tt.wantOK {
				t.Fatalf("Lookup(%q): got ok=%v, want %v", tt.addr, ok, tt.wantOK)
			}
			if got.Country != tt.wantCountry {
				t.Errorf("Lookup(%q): got country %q, want %q", tt.addr, got.Country, tt.wantCountry)
			}
		})
	}

	if _, _, err := reg.Lookup("not-an-ip"); !errdefs.IsValidation(err, errdefs.KindMalformedAddress) {
		t.Errorf("expected MalformedAddress, got %v", err)
	}
}

func TestLookup_NumericNotLexicographic(t *testing.T) {
	reg, _ := newTestRegistry(t)
	// As strings "10.0.0.10" < "10.0.0.9"; as addresses it is the other way round.
	mustInsert(t, reg, Range{StartIP: "10.0.0.10", EndIP: "10.0.0.99", Country: "MX"})
	mustInsert(t, reg, Range{StartIP: "10.0.0.2", EndIP: "10.0.0.9", Country: "BR"})

	if r, ok, _ := reg.Lookup("10.0.0.9"); !ok || r.Country != "BR" {
		t.Errorf("Lookup(10.0.0.9): got %+v ok=%v, want BR", r, ok)
	}
	if r, ok, _ := reg.Lookup("10.0.0.50"); !ok || r.Country != "MX" {
		t.Errorf("Lookup(10.0.0.50): got %+v ok=%v, want MX", r, ok)
	}

	page, err := reg.List(0, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Ranges[0].StartIP != "10.0.0.2" {
		t.Errorf("expected 10.0.0.2 first, got %s", page.Ranges[0].StartIP)
	}
}

func TestLocate(t *testing.T) {
	reg, _ := newTestRegistry(t)
	mustInsert(t, reg, Range{StartIP: "81.0.0.0", EndIP: "81.0.255.255", Country: "Germany", ISOCode: "de"})

	loc, ok, err := reg.Locate("81.0.12.7")
	if err != nil || !ok {
		t.Fatalf("Locate: ok=%v err=%v", ok, err)
	}
	want := Location{
		IP:      "81.0.12.7",
		Country: "Germany",
		ISOCode: "DE",
		Region:  RegionEurope,
		Range:   Range{StartIP: "81.0.0.0", EndIP: "81.0.255.255", Country: "Germany", ISOCode: "DE"},
	}
	if diff := cmp.Diff(want, loc); diff != "" {
		t.Errorf("Locate() mismatch (-want +got):\n%s", diff)
	}

	if _, ok, err := reg.Locate("82.0.0.1"); ok || err != nil {
		t.Errorf("expected no match, got ok=%v err=%v", ok, err)
	}
}

func TestUpdate(t *testing.T) {
	reg, store := newTestRegistry(t)
	mustInsert(t, reg, Range{StartIP: "10.0.0.1", EndIP: "10.0.0.50", Country: "US"})
	mustInsert(t, reg, Range{StartIP: "10.0.0.100", EndIP: "10.0.0.200", Country: "CA"})
	ctx := context.Background()

	country := "Mexico"
	iso := "MX"
	got, err := reg.Update(ctx, "10.0.0.1", Patch{Country: &country, ISOCode: &iso})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Country != "Mexico" || got.ISOCode != "MX" || got.EndIP != "10.0.0.50" {
		t.Errorf("unexpected updated range %+v", got)
	}
	if store.ranges["10.0.0.1"].Country != "Mexico" {
		t.Error("expected update written through to store")
	}

	// Shrinking and growing within the gap is fine; the range may also
	// overlap its own previous extent.
	end := "10.0.0.99"
	if _, err := reg.Update(ctx, "10.0.0.1", Patch{EndIP: &end}); err != nil {
		t.Fatalf("Update grow: %v", err)
	}

	end = "10.0.0.100"
	if _, err := reg.Update(ctx, "10.0.0.1", Patch{EndIP: &end}); !errdefs.IsConflict(err) {
		t.Errorf("expected overlap when growing into neighbour, got %v", err)
	}

	end = "10.0.0.0"
	if _, err := reg.Update(ctx, "10.0.0.1", Patch{EndIP: &end}); !errdefs.IsValidation(err, errdefs.KindInvalidRange) {
		t.Errorf("expected InvalidRange, got %v", err)
	}

	end = "::1"
	if _, err := reg.Update(ctx, "10.0.0.1", Patch{EndIP: &end}); !errdefs.IsValidation(err, errdefs.KindFamilyMismatch) {
		t.Errorf("expected FamilyMismatch, got %v", err)
	}

	if _, err := reg.Update(ctx, "10.9.9.9", Patch{Country: &country}); !errdefs.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	reg, store := newTestRegistry(t)
	mustInsert(t, reg, Range{StartIP: "10.0.0.1", EndIP: "10.0.0.50", Country: "US"})
	ctx := context.Background()

	if err := reg.Delete(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := store.ranges["10.0.0.1"]; ok {
		t.Error("expected range removed from store")
	}
	if _, ok, _ := reg.Lookup("10.0.0.25"); ok {
		t.Error("expected lookup to miss after delete")
	}
	if err := reg.Delete(ctx, "10.0.0.1"); !errdefs.IsNotFound(err) {
		t.Errorf("expected NotFound on second delete, got %v", err)
	}
}

func TestList_Pagination(t *testing.T) {
	reg, _ := newTestRegistry(t)
	for _, start := range []string{"10.0.0.30", "10.0.0.10", "10.0.0.20", "10.0.0.40", "10.0.0.50"} {
		mustInsert(t, reg, Range{StartIP: start, EndIP: start, Country: "US"})
	}

	first, err := reg.List(2, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if first.Count != 2 || !first.HasMore || first.NextPageToken != "10.0.0.20" {
		t.Fatalf("unexpected first page %+v", first)
	}

	second, err := reg.List(2, first.NextPageToken)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if second.Ranges[0].StartIP != "10.0.0.30" || second.NextPageToken != "10.0.0.40" {
		t.Fatalf("unexpected second page %+v", second)
	}

	last, err := reg.List(2, second.NextPageToken)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if last.Count != 1 || last.HasMore || last.NextPageToken != "" {
		t.Fatalf("unexpected last page %+v", last)
	}

	if _, err := reg.List(10, "bogus"); !errdefs.IsValidation(err, errdefs.KindMalformedAddress) {
		t.Errorf("expected MalformedAddress for bad cursor, got %v", err)
	}
}

func TestList_LimitCapped(t *testing.T) {
	reg, _ := newTestRegistry(t)
	page, err := reg.List(MaxListLimit+500, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Count != 0 || page.HasMore {
		t.Errorf("unexpected page on empty registry %+v", page)
	}
}

func TestNewRegistry_RejectsOverlappingStore(t *testing.T) {
	store := newFakeStore(
		Range{StartIP: "10.0.0.1", EndIP: "10.0.0.50", Country: "US"},
		Range{StartIP: "10.0.0.40", EndIP: "10.0.0.60", Country: "CA"},
	)
	if _, err := NewRegistry(context.Background(), store, logr.Discard()); !errdefs.IsConflict(err) {
		t.Errorf("expected conflict loading overlapping ranges, got %v", err)
	}
}

func TestRegionFor(t *testing.T) {
	tests := map[string]string{
		"US": RegionNorthAmerica,
		"mx": RegionNorthAmerica,
		"BR": RegionSouthAmerica,
		"DE": RegionEurope,
		"JP": RegionAsia,
		"AU": RegionOceania,
		"NG": RegionAfrica,
		"CR": RegionCaribbean,
		"ZZ": RegionUnknown,
		"":   RegionUnknown,
	}
	for iso, want := range tests {
		if got := RegionFor(iso); got != want {
			t.Errorf("RegionFor(%q): got %q, want %q", iso, got, want)
		}
	}
}
