// Package engine runs bound SQL against an embedded database. Frames
// referenced by a statement are registered as temporary tables on a dedicated
// connection for the lifetime of that one query, so concurrent queries never
// see each other's registrations.
//
// The database itself is supplied by a Dialect registered under a name;
// "duckdb" is the production engine and "sqlite" a pure-Go fallback. Import
// engine/all (or a single dialect package) for side effects.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/jmoiron/sqlx"

	"duckpond/internal/ddl"
	"duckpond/internal/frame"
)

// DefaultDialect is used when Config.Dialect is empty.
const DefaultDialect = "duckdb"

// Dialect adapts one embedded database to the engine.
type Dialect interface {
	// Open returns a pool whose connections are fully initialised from cfg.
	Open(ctx context.Context, cfg Config) (*sql.DB, error)
	// DriverName is the database/sql driver name, used by sqlx for binds.
	DriverName() string
	// MapType maps a frame column type onto a column type for registration.
	MapType(frame.Type) string
	// BindValue converts a frame value into a driver argument.
	BindValue(any) any
	// ScanValue converts a scanned driver value into a frame value.
	ScanValue(any) any
}

var (
	regMu    sync.RWMutex
	dialects = map[string]Dialect{}
)

// Register makes a dialect available under name, replacing any previous one.
func Register(name string, d Dialect) {
	regMu.Lock()
	defer regMu.Unlock()
	dialects[name] = d
}

// Dialects returns the registered dialect names, sorted.
func Dialects() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(dialects))
	for k := range dialects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func lookup(name string) (Dialect, error) {
	if name == "" {
		name = DefaultDialect
	}
	regMu.RLock()
	d, ok := dialects[name]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("engine: unknown dialect %q (registered: %v)", name, Dialects())
	}
	return d, nil
}

// Config selects a dialect and carries its connection options.
type Config struct {
	// Dialect names a registered dialect; empty means DefaultDialect.
	Dialect string
	// DSN is the database path; empty means a private in-memory database.
	DSN string
	// S3 configures object storage access for dialects that read or write
	// s3:// URLs directly.
	S3 S3Config
	// Setup lists extra statements run on every new connection.
	Setup []string
	// BatchSize bounds the rows per INSERT when registering frames.
	BatchSize int
}

// DB is a goroutine-safe handle to an embedded database.
type DB struct {
	db      *sqlx.DB
	dialect Dialect
	name    string
	cfg     Config
}

// Open opens the database described by cfg.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	d, err := lookup(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	raw, err := d.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: open %s: %w", dialectName(cfg), err)
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("engine: ping %s: %w", dialectName(cfg), err)
	}
	return &DB{
		db:      sqlx.NewDb(raw, d.DriverName()),
		dialect: d,
		name:    dialectName(cfg),
		cfg:     cfg,
	}, nil
}

func dialectName(cfg Config) string {
	if cfg.Dialect == "" {
		return DefaultDialect
	}
	return cfg.Dialect
}

// Dialect returns the name of the dialect backing db.
func (db *DB) Dialect() string { return db.name }

// Close closes the underlying pool.
func (db *DB) Close() error { return db.db.Close() }

func (db *DB) quote(s string) string { return ddl.DoubleQuote(s) }
