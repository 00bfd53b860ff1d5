// Package sqlite registers the "sqlite" engine dialect backed by the pure-Go
// modernc.org/sqlite driver. It needs no cgo, which makes it the dialect of
// choice for tests and for environments without a DuckDB build. It cannot
// read or write s3:// URLs; pair it with an s3, local or warehouse sink.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"duckpond/internal/engine"
	"duckpond/internal/frame"
)

func init() { engine.Register("sqlite", Dialect{}) }

// Dialect implements engine.Dialect for SQLite.
type Dialect struct{}

func (Dialect) Open(ctx context.Context, cfg engine.Config) (*sql.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if dsn == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	for _, s := range cfg.Setup {
		if _, err := db.ExecContext(ctx, s); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: setup %q: %w", s, err)
		}
	}
	return db, nil
}

func (Dialect) DriverName() string { return "sqlite" }

func (Dialect) MapType(t frame.Type) string {
	switch t {
	case frame.Integer, frame.Boolean:
		return "INTEGER"
	case frame.Real:
		return "REAL"
	default:
		return "TEXT"
	}
}

// BindValue stores dates as ISO-8601 text, which sorts and compares the way
// DuckDB dates do.
func (Dialect) BindValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.UTC().Format("2006-01-02 15:04:05.999999999")
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}

func (Dialect) ScanValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
