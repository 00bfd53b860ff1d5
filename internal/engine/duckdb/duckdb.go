// Package duckdb registers the "duckdb" engine dialect backed by
// github.com/marcboeker/go-duckdb/v2. Every new connection loads the httpfs
// extension and receives the configured S3 options, so statements can read
// and write s3:// URLs directly.
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math/big"

	"github.com/marcboeker/go-duckdb/v2"
	log "github.com/sirupsen/logrus"

	"duckpond/internal/engine"
	"duckpond/internal/frame"
)

func init() { engine.Register("duckdb", Dialect{}) }

// Dialect implements engine.Dialect for DuckDB.
type Dialect struct{}

// InitStatements lists the statements applied to each new connection.
func InitStatements(cfg engine.Config) []string {
	var out []string
	if cfg.S3.Enabled() {
		out = append(out, "INSTALL httpfs", "LOAD httpfs")
		out = append(out, cfg.S3.Statements()...)
	}
	return append(out, cfg.Setup...)
}

func (Dialect) Open(ctx context.Context, cfg engine.Config) (*sql.DB, error) {
	stmts := InitStatements(cfg)
	connector, err := duckdb.NewConnector(cfg.DSN, func(execer driver.ExecerContext) error {
		for _, s := range stmts {
			if _, err := execer.ExecContext(ctx, s, nil); err != nil {
				return fmt.Errorf("duckdb: init %q: %w", redact(s), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("duckdb: connector: %w", err)
	}
	log.WithFields(log.Fields{"dsn": cfg.DSN, "init": len(stmts)}).Debug("duckdb: connector ready")
	return sql.OpenDB(connector), nil
}

func (Dialect) DriverName() string { return "duckdb" }

func (Dialect) MapType(t frame.Type) string {
	switch t {
	case frame.Integer:
		return "BIGINT"
	case frame.Real:
		return "DOUBLE"
	case frame.Boolean:
		return "BOOLEAN"
	case frame.Date:
		return "DATE"
	case frame.Timestamp:
		return "TIMESTAMPTZ"
	default:
		return "VARCHAR"
	}
}

func (Dialect) BindValue(v any) any { return v }

// ScanValue flattens DuckDB-specific scan types: HUGEINT arrives as *big.Int
// and DECIMAL as duckdb.Decimal.
func (Dialect) ScanValue(v any) any {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return nil
		}
		if x.IsInt64() {
			return x.Int64()
		}
		return x.String()
	case duckdb.Decimal:
		return x.Float64()
	default:
		return v
	}
}

// redact hides secret values in init errors.
func redact(stmt string) string {
	for _, p := range []string{"SET s3_secret_access_key", "SET s3_session_token"} {
		if len(stmt) >= len(p) && stmt[:len(p)] == p {
			return p + " = '***'"
		}
	}
	return stmt
}
