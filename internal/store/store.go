// Package store defines the persistence contract for records and IP ranges
// and a registry of backends that self-register in init().
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/iprange"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/record"
)

// RecordStore persists records keyed by canonical fqdn.
type RecordStore interface {
	GetRecord(ctx context.Context, fqdn string) (record.Record, error)
	// ListRecords returns every record ordered by fqdn.
	ListRecords(ctx context.Context) ([]record.Record, error)
	// CreateRecord stores rec only if its fqdn is free, otherwise it
	// returns record.ErrDuplicateFQDN. The check and the write are atomic.
	CreateRecord(ctx context.Context, rec record.Record) error
	// UpdateRecord replaces an existing record or returns record.ErrNotFound.
	UpdateRecord(ctx context.Context, rec record.Record) error
	DeleteRecord(ctx context.Context, fqdn string) error
}

// Backend is what a storage implementation provides.
type Backend interface {
	RecordStore
	iprange.Store
}

// Factory is a constructor function that backends register to create themselves.
type Factory func(log logr.Logger, settings map[string]string) (Backend, error)

var (
	mu        sync.Mutex
	factories = make(map[string]Factory)
)

// Register is called by backend packages in their init() to self-register.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("store: backend %q already registered", name))
	}
	factories[name] = f
}

// New looks up the named backend in the registry and creates it.
func New(name string, log logr.Logger, settings map[string]string) (Backend, error) {
	mu.Lock()
	f, ok := factories[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unsupported store backend: %q (registered: %v)", name, Names())
	}
	return f(log, settings)
}

// Names lists the registered backends in sorted order.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
