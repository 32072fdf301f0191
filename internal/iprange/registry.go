package iprange

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"sync"

	"github.com/go-logr/logr"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Store is the persistence contract for ranges, keyed by canonical start_ip.
type Store interface {
	ListRanges(ctx context.Context) ([]Range, error)
	// PutRange inserts or replaces the range stored under r.StartIP.
	PutRange(ctx context.Context, r Range) error
	DeleteRange(ctx context.Context, startIP string) error
}

// Page is one slice of the ordered range listing.
type Page struct {
	Ranges        []Range `json:"data"`
	Count         int     `json:"count"`
	NextPageToken string  `json:"next_page_token,omitempty"`
	HasMore       bool    `json:"has_more"`
}

// Location is the geo classification of a single address.
type Location struct {
	IP      string `json:"ip"`
	Country string `json:"country"`
	ISOCode string `json:"iso_code"`
	Region  string `json:"region"`
	Range   Range  `json:"range"`
}

// Registry indexes ranges in address order and writes changes through to a
// Store. Writers are serialized, so an overlap check and the insert that
// follows it happen atomically.
type Registry struct {
	mu      sync.RWMutex
	entries []entry // sorted by start, pairwise disjoint
	store   Store
	log     logr.Logger
}

// NewRegistry loads every stored range. Stored data that is malformed or
// overlapping is an error, since lookups would be ambiguous.
func NewRegistry(ctx context.Context, store Store, log logr.Logger) (*Registry, error) {
	stored, err := store.ListRanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading ip ranges: %w", err)
	}

	entries := make([]entry, 0, len(stored))
	for _, r := range stored {
		e, err := parseRange(r)
		if err != nil {
			return nil, fmt.Errorf("loading ip range %s: %w", r.StartIP, err)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].start.Less(entries[j].start) })
	for i := 1; i < len(entries); i++ {
		if entries[i-1].end.Compare(entries[i].start) >= 0 {
			return nil, fmt.Errorf("loading ip ranges: %w", &OverlapError{Range: entries[i].rng, Existing: entries[i-1].rng})
		}
	}

	log.Info("loaded ip ranges", "count", len(entries))
	return &Registry{entries: entries, store: store, log: log}, nil
}

// Insert adds r. It fails with an *OverlapError naming the stored range if
// the new interval intersects it.
func (reg *Registry) Insert(ctx context.Context, r Range) (Range, error) {
	e, err := parseRange(r)
	if err != nil {
		return Range{}, err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if existing, ok := reg.overlap(e, -1); ok {
		return Range{}, &OverlapError{Range: e.rng, Existing: existing.rng}
	}
	if err := reg.store.PutRange(ctx, e.rng); err != nil {
		return Range{}, fmt.Errorf("storing ip range %s: %w", e.rng.StartIP, err)
	}

	i := reg.upperBound(e.start)
	reg.entries = append(reg.entries, entry{})
	copy(reg.entries[i+1:], reg.entries[i:])
	reg.entries[i] = e

	reg.log.Info("ip range created", "start", e.rng.StartIP, "end", e.rng.EndIP, "country", e.rng.Country)
	return e.rng, nil
}

// Update applies patch to the range stored under startIP. A new end address
// is checked for ordering and overlap like an insert.
func (reg *Registry) Update(ctx context.Context, startIP string, patch Patch) (Range, error) {
	key, err := CanonicalKey(startIP)
	if err != nil {
		return Range{}, err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	i, ok := reg.find(key)
	if !ok {
		return Range{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	e, err := parseRange(patch.Apply(reg.entries[i].rng))
	if err != nil {
		return Range{}, err
	}
	if existing, ok := reg.overlap(e, i); ok {
		return Range{}, &OverlapError{Range: e.rng, Existing: existing.rng}
	}
	if err := reg.store.PutRange(ctx, e.rng); err != nil {
		return Range{}, fmt.Errorf("storing ip range %s: %w", key, err)
	}
	reg.entries[i] = e

	reg.log.Info("ip range updated", "start", e.rng.StartIP, "end", e.rng.EndIP, "country", e.rng.Country)
	return e.rng, nil
}

// Delete removes the range stored under startIP.
func (reg *Registry) Delete(ctx context.Context, startIP string) error {
	key, err := CanonicalKey(startIP)
	if err != nil {
		return err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	i, ok := reg.find(key)
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err := reg.store.DeleteRange(ctx, key); err != nil {
		return fmt.Errorf("deleting ip range %s: %w", key, err)
	}
	reg.entries = append(reg.entries[:i], reg.entries[i+1:]...)

	reg.log.Info("ip range deleted", "start", key)
	return nil
}

// Get returns the range stored under startIP.
func (reg *Registry) Get(startIP string) (Range, error) {
	key, err := CanonicalKey(startIP)
	if err != nil {
		return Range{}, err
	}

	reg.mu.RLock()
	defer reg.mu.RUnlock()

	i, ok := reg.find(key)
	if !ok {
		return Range{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return reg.entries[i].rng, nil
}

// Lookup returns the range containing address. Because stored ranges never
// overlap there is at most one.
func (reg *Registry) Lookup(address string) (Range, bool, error) {
	addr, err := ParseAddr(address)
	if err != nil {
		return Range{}, false, err
	}

	reg.mu.RLock()
	defer reg.mu.RUnlock()

	i := reg.upperBound(addr)
	if i == 0 {
		return Range{}, false, nil
	}
	if e := reg.entries[i-1]; e.contains(addr) {
		return e.rng, true, nil
	}
	return Range{}, false, nil
}

// Locate classifies address into country and region.
func (reg *Registry) Locate(address string) (Location, bool, error) {
	r, ok, err := reg.Lookup(address)
	if err != nil || !ok {
		return Location{}, ok, err
	}
	addr, _ := ParseAddr(address)
	return Location{
		IP:      addr.String(),
		Country: r.Country,
		ISOCode: r.ISOCode,
		Region:  RegionFor(r.ISOCode),
		Range:   r,
	}, true, nil
}

// List returns up to limit ranges in ascending start order, beginning after
// the startAfter key when one is given. limit <= 0 means DefaultListLimit
// and is capped at MaxListLimit.
func (reg *Registry) List(limit int, startAfter string) (Page, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	reg.mu.RLock()
	defer reg.mu.RUnlock()

	from := 0
	if startAfter != "" {
		after, err := ParseAddr(startAfter)
		if err != nil {
			return Page{}, err
		}
		from = reg.upperBound(after)
	}

	to := from + limit
	if to > len(reg.entries) {
		to = len(reg.entries)
	}
	page := Page{Ranges: make([]Range, 0, to-from)}
	for _, e := range reg.entries[from:to] {
		page.Ranges = append(page.Ranges, e.rng)
	}
	page.Count = len(page.Ranges)
	page.HasMore = to < len(reg.entries)
	if page.HasMore && page.Count > 0 {
		page.NextPageToken = page.Ranges[page.Count-1].StartIP
	}
	return page, nil
}

// Len returns the number of stored ranges.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.entries)
}

// upperBound returns the index of the first entry starting after a.
func (reg *Registry) upperBound(a netip.Addr) int {
	return sort.Search(len(reg.entries), func(i int) bool {
		return reg.entries[i].start.Compare(a) > 0
	})
}

func (reg *Registry) find(key string) (int, bool) {
	addr, err := netip.ParseAddr(key)
	if err != nil {
		return 0, false
	}
	i := reg.upperBound(addr) - 1
	if i >= 0 && reg.entries[i].start == addr {
		return i, true
	}
	return 0, false
}

// overlap reports the stored entry that e would intersect, ignoring the
// entry at index skip. Entries are disjoint and sorted, so only the nearest
// neighbours on either side of e.start can intersect it.
func (reg *Registry) overlap(e entry, skip int) (entry, bool) {
	i := reg.upperBound(e.start)

	for j := i - 1; j >= 0; j-- {
		if j == skip {
			continue
		}
		if reg.entries[j].end.Compare(e.start) >= 0 {
			return reg.entries[j], true
		}
		break
	}
	for j := i; j < len(reg.entries); j++ {
		if j == skip {
			continue
		}
		if reg.entries[j].start.Compare(e.end) <= 0 {
			return reg.entries[j], true
		}
		break
	}
	return entry{}, false
}
