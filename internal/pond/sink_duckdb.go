package pond

import (
	"context"
	"fmt"

	"duckpond/internal/sqlbind"
)

// DuckDBSink writes outputs with DuckDB's COPY ... TO 's3://...' through the
// httpfs extension. The engine must be configured with S3 credentials.
type DuckDBSink struct {
	DB Querier
}

func (s *DuckDBSink) Name() string { return "duckdb" }

func copyStatement(loc Location, sel *sqlbind.SQL) *sqlbind.SQL {
	return sqlbind.New("COPY $sel TO $url (FORMAT parquet)", sqlbind.Bindings{"sel": sel, "url": loc.URL()})
}

func readStatement(loc Location) *sqlbind.SQL {
	return sqlbind.New("select * from read_parquet($url)", sqlbind.Bindings{"url": loc.URL()})
}

// Write copies the result of sel to loc. DuckDB reports the copied row count.
func (s *DuckDBSink) Write(ctx context.Context, loc Location, sel *sqlbind.SQL) (int64, error) {
	n, err := s.DB.Exec(ctx, copyStatement(loc, sel))
	if err != nil {
		return 0, fmt.Errorf("duckdb sink: copy to %s: %w", loc, err)
	}
	return n, nil
}

func (s *DuckDBSink) Exists(ctx context.Context, loc Location) (bool, error) {
	f, err := s.DB.Query(ctx, sqlbind.New("select count(*) as n from glob($url)", sqlbind.Bindings{"url": loc.URL()}))
	if err != nil {
		return false, fmt.Errorf("duckdb sink: glob %s: %w", loc, err)
	}
	if f.Len() == 0 {
		return false, nil
	}
	n, _ := f.Value(0, "n")
	c, _ := n.(int64)
	return c > 0, nil
}

func (s *DuckDBSink) Input(_ context.Context, loc Location) (*sqlbind.SQL, error) {
	return readStatement(loc), nil
}
