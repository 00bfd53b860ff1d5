package pond

import (
	"context"
	"fmt"

	"duckpond/internal/engine"
	"duckpond/internal/storage"
)

// SinkConfig selects and configures a sink.
type SinkConfig struct {
	// Kind is one of duckdb, s3, local, warehouse.
	Kind string
	// Dir is the root of the local sink.
	Dir string
	S3  engine.S3Config
	// Warehouse and BatchSize configure the warehouse sink.
	Warehouse storage.Config
	BatchSize int
}

// NewSink builds the sink named by cfg.Kind on top of db. The returned close
// function releases resources held by the sink and is never nil.
func NewSink(ctx context.Context, db Querier, cfg SinkConfig) (Sink, func(), error) {
	nop := func() {}
	switch cfg.Kind {
	case "", "duckdb":
		return &DuckDBSink{DB: db}, nop, nil
	case "s3":
		s, err := NewS3Sink(db, cfg.S3)
		if err != nil {
			return nil, nop, err
		}
		return s, nop, nil
	case "local":
		if cfg.Dir == "" {
			return nil, nop, fmt.Errorf("pond: local sink needs a directory")
		}
		return &LocalSink{DB: db, Dir: cfg.Dir}, nop, nil
	case "warehouse":
		repo, err := storage.New(ctx, cfg.Warehouse)
		if err != nil {
			return nil, nop, fmt.Errorf("pond: warehouse: %w", err)
		}
		return &WarehouseSink{DB: db, Repo: repo, BatchSize: cfg.BatchSize}, repo.Close, nil
	}
	return nil, nop, fmt.Errorf("pond: unknown sink %q", cfg.Kind)
}
