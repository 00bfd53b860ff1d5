// Package storage contains the warehouse abstraction used by the warehouse
// output sink: a small Repository contract, a registry of backends keyed by
// kind, and backend-agnostic helpers for creating a table from a frame and
// bulk-loading its rows.
//
// Concrete backends (postgres, mssql, mysql, sqlite) live in subpackages and
// register themselves from init; import storage/all to enable all of them.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"duckpond/internal/ddl"
)

// Config selects and configures a backend.
type Config struct {
	// Kind names a registered backend, e.g. "postgres".
	Kind string
	// DSN is passed to the backend's driver unchanged.
	DSN string
}

// Dialect carries the per-backend DDL conventions.
type Dialect struct {
	Quote   ddl.Quoter
	MapType ddl.TypeMapper
}

// Repository is the minimal surface a warehouse backend provides.
type Repository interface {
	// CopyFrom bulk-inserts rows (aligned to columns) into table and returns
	// the number of rows the backend reports as written.
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	// Exec runs a single statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	// TableExists reports whether table is present.
	TableExists(ctx context.Context, table string) (bool, error)
	// Dialect returns the backend's quoting and type mapping.
	Dialect() Dialect
	// Close releases the underlying connection pool.
	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
