package pond

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"duckpond/internal/frame"
	"duckpond/internal/metrics"
	"duckpond/internal/sqlbind"
)

// ErrExists is returned in Create mode when the target already exists.
var ErrExists = errors.New("pond: output already exists")

// WriteMode decides what happens when an output is written twice.
type WriteMode string

const (
	// Overwrite replaces the previous output; the last write wins.
	Overwrite WriteMode = "overwrite"
	// Create refuses to replace an existing output.
	Create WriteMode = "create"
)

// ParseWriteMode parses s; the empty string means Overwrite.
func ParseWriteMode(s string) (WriteMode, error) {
	switch WriteMode(s) {
	case "", Overwrite:
		return Overwrite, nil
	case Create:
		return Create, nil
	}
	return "", fmt.Errorf("pond: unknown write mode %q", s)
}

// Querier runs SQL-binding objects. *engine.DB implements it.
type Querier interface {
	Query(ctx context.Context, s *sqlbind.SQL) (*frame.Frame, error)
	Exec(ctx context.Context, s *sqlbind.SQL) (int64, error)
}

// Sink persists the result of a select statement at a Location.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string
	// Exists reports whether loc already holds an output.
	Exists(ctx context.Context, loc Location) (bool, error)
	// Write runs sel and stores its result at loc, replacing any previous
	// output. It returns the number of rows written.
	Write(ctx context.Context, loc Location, sel *sqlbind.SQL) (int64, error)
	// Input returns a statement that reads loc back.
	Input(ctx context.Context, loc Location) (*sqlbind.SQL, error)
}

// Result describes one hand-off.
type Result struct {
	Location Location
	Rows     int64
	Duration time.Duration
	// Skipped is true when there was nothing to write.
	Skipped bool
}

// IOManager hands query results off to a sink under a fixed bucket and
// environment prefix. It is safe for concurrent use when the sink is.
type IOManager struct {
	Bucket string
	Prefix string
	Sink   Sink
	Mode   WriteMode
}

// Location returns the validated location of table.
func (m *IOManager) Location(table string) (Location, error) {
	return NewLocation(m.Bucket, m.Prefix, table)
}

// URL returns the s3:// URL of table.
func (m *IOManager) URL(table string) (string, error) {
	loc, err := m.Location(table)
	if err != nil {
		return "", err
	}
	return loc.URL(), nil
}

// HandleOutput runs sel and persists its result as table. A nil sel is a
// no-op. In Create mode an existing output yields ErrExists.
func (m *IOManager) HandleOutput(ctx context.Context, table string, sel *sqlbind.SQL) (Result, error) {
	loc, err := m.Location(table)
	if err != nil {
		return Result{}, err
	}
	entry := log.WithFields(log.Fields{"table": table, "url": loc.URL(), "sink": m.Sink.Name()})
	if sel == nil {
		entry.Debug("pond: no statement, nothing to hand off")
		return Result{Location: loc, Skipped: true}, nil
	}

	if m.Mode == Create {
		exists, err := m.Sink.Exists(ctx, loc)
		if err != nil {
			return Result{}, fmt.Errorf("pond: %s: %w", table, err)
		}
		if exists {
			return Result{}, fmt.Errorf("%w: %s", ErrExists, loc)
		}
	}

	start := time.Now()
	rows, err := m.Sink.Write(ctx, loc, sel)
	if err != nil {
		return Result{}, fmt.Errorf("pond: hand off %s: %w", table, err)
	}
	res := Result{Location: loc, Rows: rows, Duration: time.Since(start)}
	metrics.RecordRows(metrics.FlowFrom(ctx), "written", rows)
	entry.WithFields(log.Fields{"rows": rows, "duration": res.Duration}).Info("pond: handed off")
	return res, nil
}

// LoadInput returns a statement reading a previously handed-off table.
func (m *IOManager) LoadInput(ctx context.Context, table string) (*sqlbind.SQL, error) {
	loc, err := m.Location(table)
	if err != nil {
		return nil, err
	}
	return m.Sink.Input(ctx, loc)
}
