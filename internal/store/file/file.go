// Package file is a store backend that keeps state in memory and writes a
// YAML snapshot to disk after every change.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-logr/logr"
	"go.yaml.in/yaml/v3"

	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/iprange"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/record"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/store"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/store/memory"
)

const defaultPath = "data/geodns.yaml"

func init() {
	store.Register("file", func(log logr.Logger, settings map[string]string) (store.Backend, error) {
		path := settings["path"]
		if path == "" {
			path = defaultPath
		}
		return Open(path, log)
	})
}

// snapshot is the on-disk layout.
type snapshot struct {
	Records  []record.Record `yaml:"records"`
	IPRanges []iprange.Range `yaml:"ip_ranges"`
}

// Backend serves reads from memory. Writes are applied in memory and then
// flushed; a failed flush rolls the in-memory state back.
type Backend struct {
	// mu serializes mutations with their flush. Reads go straight to inner.
	mu    sync.Mutex
	path  string
	inner *memory.Backend
	log   logr.Logger
}

// Open loads path if it exists; a missing file starts an empty store.
func Open(path string, log logr.Logger) (*Backend, error) {
	b := &Backend{
		path:  path,
		inner: memory.New(log),
		log:   log,
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Info("store file not found, starting empty", "path", path)
		return b, nil
	case err != nil:
		return nil, fmt.Errorf("reading store file: %w", err)
	}

	var snap snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing store file %s: %w", path, err)
	}
	b.inner.Restore(snap.Records, snap.IPRanges)
	log.Info("loaded store file", "path", path, "records", len(snap.Records), "ipRanges", len(snap.IPRanges))
	return b, nil
}

func (b *Backend) GetRecord(ctx context.Context, fqdn string) (record.Record, error) {
	return b.inner.GetRecord(ctx, fqdn)
}

func (b *Backend) ListRecords(ctx context.Context) ([]record.Record, error) {
	return b.inner.ListRecords(ctx)
}

func (b *Backend) ListRanges(ctx context.Context) ([]iprange.Range, error) {
	return b.inner.ListRanges(ctx)
}

func (b *Backend) CreateRecord(ctx context.Context, rec record.Record) error {
	return b.mutate(func() error { return b.inner.CreateRecord(ctx, rec) })
}

func (b *Backend) UpdateRecord(ctx context.Context, rec record.Record) error {
	return b.mutate(func() error { return b.inner.UpdateRecord(ctx, rec) })
}

func (b *Backend) DeleteRecord(ctx context.Context, fqdn string) error {
	return b.mutate(func() error { return b.inner.DeleteRecord(ctx, fqdn) })
}

func (b *Backend) PutRange(ctx context.Context, r iprange.Range) error {
	return b.mutate(func() error { return b.inner.PutRange(ctx, r) })
}

func (b *Backend) DeleteRange(ctx context.Context, startIP string) error {
	return b.mutate(func() error { return b.inner.DeleteRange(ctx, startIP) })
}

func (b *Backend) mutate(apply func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prevRecords, prevRanges := b.inner.Snapshot()
	if err := apply(); err != nil {
		return err
	}
	if err := b.flush(); err != nil {
		b.inner.Restore(prevRecords, prevRanges)
		return err
	}
	return nil
}

// flush writes the snapshot to a temp file next to path and renames it into
// place, so readers of the file never see a partial write.
func (b *Backend) flush() error {
	records, ranges := b.inner.Snapshot()
	data, err := yaml.Marshal(snapshot{Records: records, IPRanges: ranges})
	if err != nil {
		return fmt.Errorf("encoding store snapshot: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".geodns-*.yaml")
	if err != nil {
		return fmt.Errorf("creating store temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing store snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing store snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("replacing store file: %w", err)
	}
	b.log.V(1).Info("store flushed", "path", b.path, "records", len(records), "ipRanges", len(ranges))
	return nil
}
