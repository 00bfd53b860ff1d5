package pond

import (
	"context"
	"errors"
	"fmt"

	"duckpond/internal/sqlbind"
	"duckpond/internal/storage"
)

// ErrNotReadable is returned by sinks whose outputs the engine cannot read.
var ErrNotReadable = errors.New("pond: output is not readable from the engine")

// WarehouseSink loads outputs into a relational warehouse table named
// <prefix>_<table>, replacing it on every write.
type WarehouseSink struct {
	DB        Querier
	Repo      storage.Repository
	BatchSize int
}

func (s *WarehouseSink) Name() string { return "warehouse" }

func (s *WarehouseSink) Write(ctx context.Context, loc Location, sel *sqlbind.SQL) (int64, error) {
	f, err := s.DB.Query(ctx, sel)
	if err != nil {
		return 0, err
	}
	n, err := storage.LoadFrame(ctx, s.Repo, loc.TableName(), f, storage.LoadOptions{BatchSize: s.BatchSize, Replace: true})
	if err != nil {
		return n, fmt.Errorf("warehouse sink: %w", err)
	}
	return n, nil
}

func (s *WarehouseSink) Exists(ctx context.Context, loc Location) (bool, error) {
	return s.Repo.TableExists(ctx, loc.TableName())
}

func (s *WarehouseSink) Input(context.Context, Location) (*sqlbind.SQL, error) {
	return nil, ErrNotReadable
}
