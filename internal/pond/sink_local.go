package pond

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"duckpond/internal/sqlbind"
)

// LocalSink mirrors the bucket layout under a directory:
// <Dir>/<bucket>/<prefix>/<table>.parquet. Files are encoded in-process, so
// it works with any engine dialect.
type LocalSink struct {
	DB  Querier
	Dir string
}

func (s *LocalSink) Name() string { return "local" }

// Path returns the file backing loc.
func (s *LocalSink) Path(loc Location) string {
	return filepath.Join(s.Dir, loc.Bucket, filepath.FromSlash(loc.Key()))
}

func (s *LocalSink) Write(ctx context.Context, loc Location, sel *sqlbind.SQL) (int64, error) {
	f, err := s.DB.Query(ctx, sel)
	if err != nil {
		return 0, err
	}
	if err := WriteParquet(s.Path(loc), f); err != nil {
		return 0, err
	}
	return int64(f.Len()), nil
}

func (s *LocalSink) Exists(_ context.Context, loc Location) (bool, error) {
	_, err := os.Stat(s.Path(loc))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	}
	return false, fmt.Errorf("local sink: %w", err)
}

// Input decodes the file and binds it as a frame.
func (s *LocalSink) Input(ctx context.Context, loc Location) (*sqlbind.SQL, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := ReadParquet(s.Path(loc))
	if err != nil {
		return nil, err
	}
	return sqlbind.New("select * from $df", sqlbind.Bindings{"df": f}), nil
}
