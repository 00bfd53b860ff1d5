package storage

import (
	"context"
	"errors"
	"fmt"

	"duckpond/internal/ddl"
	"duckpond/internal/frame"
	"duckpond/internal/metrics"
)

// DefaultBatchSize is used when LoadOptions.BatchSize is zero.
const DefaultBatchSize = 500

// ErrTableExists is returned by LoadFrame when the target exists and
// LoadOptions.Replace is false.
var ErrTableExists = errors.New("storage: table already exists")

// LoadOptions controls LoadFrame.
type LoadOptions struct {
	BatchSize int
	// Replace drops an existing table first. Without it an existing table is
	// an error.
	Replace bool
}

// LoadFrame creates table from the frame's schema and copies all its rows in
// batches. It returns the number of rows loaded.
func LoadFrame(ctx context.Context, repo Repository, table string, f *frame.Frame, opts LoadOptions) (int64, error) {
	if repo == nil {
		return 0, fmt.Errorf("storage: nil repository")
	}
	d := repo.Dialect()
	def, err := ddl.FromFrame(table, f, d.MapType)
	if err != nil {
		return 0, err
	}
	createSQL, err := ddl.BuildCreateTableSQL(def, d.Quote)
	if err != nil {
		return 0, err
	}

	exists, err := repo.TableExists(ctx, table)
	if err != nil {
		return 0, fmt.Errorf("storage: check %s: %w", table, err)
	}
	if exists {
		if !opts.Replace {
			return 0, fmt.Errorf("%w: %s", ErrTableExists, table)
		}
		if err := repo.Exec(ctx, ddl.BuildDropTableSQL(table, d.Quote)); err != nil {
			return 0, fmt.Errorf("storage: drop %s: %w", table, err)
		}
	}
	if err := repo.Exec(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("storage: create %s: %w", table, err)
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan []any, batchSize)
	go func() {
		defer close(in)
		for i := 0; i < f.Len(); i++ {
			select {
			case in <- f.Row(i):
			case <-ctx.Done():
				return
			}
		}
	}()

	n, err := LoadBatches(ctx, f.Columns(), in, batchSize, func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
		return repo.CopyFrom(ctx, table, cols, rows)
	})
	if err != nil {
		return n, fmt.Errorf("storage: load %s: %w", table, err)
	}
	metrics.RecordRows(metrics.FlowFrom(ctx), "loaded", n)
	return n, nil
}
