// Package memory is a store backend that keeps everything in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/iprange"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/record"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/store"
)

func init() {
	store.Register("memory", func(log logr.Logger, _ map[string]string) (store.Backend, error) {
		return New(log), nil
	})
}

// Backend holds records and ranges in maps. Values are copied on the way in
// and out so callers never alias stored slices.
type Backend struct {
	mu      sync.RWMutex
	records map[string]record.Record
	ranges  map[string]iprange.Range
	log     logr.Logger
}

func New(log logr.Logger) *Backend {
	return &Backend{
		records: make(map[string]record.Record),
		ranges:  make(map[string]iprange.Range),
		log:     log,
	}
}

func (b *Backend) GetRecord(_ context.Context, fqdn string) (record.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.records[fqdn]
	if !ok {
		return record.Record{}, fmt.Errorf("%s: %w", fqdn, record.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (b *Backend) ListRecords(context.Context) ([]record.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]record.Record, 0, len(b.records))
	for _, rec := range b.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FQDN < out[j].FQDN })
	return out, nil
}

func (b *Backend) CreateRecord(_ context.Context, rec record.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.records[rec.FQDN]; exists {
		return fmt.Errorf("%s: %w", rec.FQDN, record.ErrDuplicateFQDN)
	}
	b.records[rec.FQDN] = rec.Clone()
	b.log.V(1).Info("record stored", "fqdn", rec.FQDN)
	return nil
}

func (b *Backend) UpdateRecord(_ context.Context, rec record.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.records[rec.FQDN]; !exists {
		return fmt.Errorf("%s: %w", rec.FQDN, record.ErrNotFound)
	}
	b.records[rec.FQDN] = rec.Clone()
	b.log.V(1).Info("record replaced", "fqdn", rec.FQDN)
	return nil
}

func (b *Backend) DeleteRecord(_ context.Context, fqdn string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.records[fqdn]; !exists {
		return fmt.Errorf("%s: %w", fqdn, record.ErrNotFound)
	}
	delete(b.records, fqdn)
	b.log.V(1).Info("record removed", "fqdn", fqdn)
	return nil
}

func (b *Backend) ListRanges(context.Context) ([]iprange.Range, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]iprange.Range, 0, len(b.ranges))
	for _, r := range b.ranges {
		out = append(out, r)
	}
	return out, nil
}

func (b *Backend) PutRange(_ context.Context, r iprange.Range) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ranges[r.StartIP] = r
	return nil
}

func (b *Backend) DeleteRange(_ context.Context, startIP string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.ranges[startIP]; !exists {
		return fmt.Errorf("%s: %w", startIP, iprange.ErrNotFound)
	}
	delete(b.ranges, startIP)
	return nil
}

// Snapshot returns copies of every stored record and range.
func (b *Backend) Snapshot() ([]record.Record, []iprange.Range) {
	recs, _ := b.ListRecords(context.Background())
	rngs, _ := b.ListRanges(context.Background())
	sort.Slice(rngs, func(i, j int) bool {
		a, _ := iprange.ParseAddr(rngs[i].StartIP)
		c, _ := iprange.ParseAddr(rngs[j].StartIP)
		return a.Less(c)
	})
	return recs, rngs
}

// Restore replaces the whole contents of the backend.
func (b *Backend) Restore(recs []record.Record, rngs []iprange.Range) {
	records := make(map[string]record.Record, len(recs))
	for _, rec := range recs {
		records[rec.FQDN] = rec.Clone()
	}
	ranges := make(map[string]iprange.Range, len(rngs))
	for _, r := range rngs {
		ranges[r.StartIP] = r
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = records
	b.ranges = ranges
}
