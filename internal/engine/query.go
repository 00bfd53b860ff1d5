package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"duckpond/internal/ddl"
	"duckpond/internal/frame"
	"duckpond/internal/metrics"
	"duckpond/internal/sqlbind"
	"duckpond/internal/storage"
)

// maxBindParams keeps multi-row INSERTs under SQLite's bind parameter limit.
const maxBindParams = 30000

// QueryError wraps a failure of the database on a rendered statement.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("engine: query failed: %v\n%s", e.Err, e.Query)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Query renders s, registers the frames it references and returns the result
// as a frame.
func (db *DB) Query(ctx context.Context, s *sqlbind.SQL) (*frame.Frame, error) {
	var out *frame.Frame
	err := db.run(ctx, s, func(conn *sqlx.Conn, q string) error {
		rows, err := conn.QueryxContext(ctx, q)
		if err != nil {
			return &QueryError{Query: q, Err: err}
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return &QueryError{Query: q, Err: err}
		}
		var data [][]any
		for rows.Next() {
			vals, err := rows.SliceScan()
			if err != nil {
				return &QueryError{Query: q, Err: err}
			}
			for i, v := range vals {
				vals[i] = db.scanValue(v)
			}
			data = append(data, vals)
		}
		if err := rows.Err(); err != nil {
			return &QueryError{Query: q, Err: err}
		}
		out, err = frame.New(uniqueNames(cols), data)
		if err != nil {
			return fmt.Errorf("engine: result: %w", err)
		}
		return nil
	})
	return out, err
}

// Exec renders s, registers the frames it references and executes it without
// a result set. It returns the affected row count when the driver reports one.
func (db *DB) Exec(ctx context.Context, s *sqlbind.SQL) (int64, error) {
	var n int64
	err := db.run(ctx, s, func(conn *sqlx.Conn, q string) error {
		res, err := conn.ExecContext(ctx, q)
		if err != nil {
			return &QueryError{Query: q, Err: err}
		}
		if c, err := res.RowsAffected(); err == nil {
			n = c
		}
		return nil
	})
	return n, err
}

func (db *DB) run(ctx context.Context, s *sqlbind.SQL, fn func(*sqlx.Conn, string) error) error {
	if s == nil {
		return fmt.Errorf("engine: nil statement")
	}
	r, err := s.Render()
	if err != nil {
		return err
	}

	conn, err := db.db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("engine: acquire connection: %w", err)
	}
	defer conn.Close()

	names := make([]string, 0, len(r.Frames))
	for name := range r.Frames {
		names = append(names, name)
	}
	sort.Strings(names)

	// Temp tables belong to this connection; drop them before it returns to
	// the pool even if ctx was cancelled.
	var registered []string
	defer func() {
		cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		for _, name := range registered {
			if _, err := conn.ExecContext(cleanup, ddl.BuildDropTableSQL(name, db.quote)); err != nil {
				log.WithField("table", name).WithError(err).Warn("engine: drop temp table")
			}
		}
	}()

	for _, name := range names {
		registered = append(registered, name)
		if err := db.register(ctx, conn, name, r.Frames[name]); err != nil {
			return err
		}
	}

	start := time.Now()
	err = fn(conn, r.Query)
	log.WithFields(log.Fields{
		"dialect": db.name,
		"frames":  len(names),
		"elapsed": time.Since(start).Truncate(time.Millisecond),
	}).Debug("engine: statement done")
	return err
}

// register creates a temporary table for f and copies its rows in batches.
func (db *DB) register(ctx context.Context, conn *sqlx.Conn, name string, f *frame.Frame) error {
	def, err := ddl.FromFrame(name, f, db.dialect.MapType)
	if err != nil {
		return fmt.Errorf("engine: register %s: %w", name, err)
	}
	def.Temporary = true
	create, err := ddl.BuildCreateTableSQL(def, db.quote)
	if err != nil {
		return fmt.Errorf("engine: register %s: %w", name, err)
	}
	if _, err := conn.ExecContext(ctx, ddl.BuildDropTableSQL(name, db.quote)); err != nil {
		return fmt.Errorf("engine: register %s: %w", name, err)
	}
	if _, err := conn.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("engine: register %s: %w", name, err)
	}
	if f.Len() == 0 {
		return nil
	}

	batch := db.cfg.BatchSize
	if limit := maxBindParams / f.Width(); batch > limit {
		batch = max(limit, 1)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	in := make(chan []any, batch)
	go func() {
		defer close(in)
		for i := 0; i < f.Len(); i++ {
			row := f.Row(i)
			for j, v := range row {
				row[j] = db.dialect.BindValue(v)
			}
			select {
			case in <- row:
			case <-ctx.Done():
				return
			}
		}
	}()

	n, err := storage.LoadBatches(ctx, f.Columns(), in, batch, func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
		q, err := ddl.BuildInsertSQL(name, cols, len(rows), db.quote, ddl.QuestionMark)
		if err != nil {
			return 0, err
		}
		args := make([]any, 0, len(rows)*len(cols))
		for _, r := range rows {
			args = append(args, r...)
		}
		if _, err := conn.ExecContext(ctx, q, args...); err != nil {
			return 0, err
		}
		return int64(len(rows)), nil
	})
	if err != nil {
		return fmt.Errorf("engine: register %s: %w", name, err)
	}
	metrics.RecordRows(metrics.FlowFrom(ctx), "registered", n)
	return nil
}

func (db *DB) scanValue(v any) any {
	v = db.dialect.ScanValue(v)
	n, err := frame.Normalize(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return n
}

// uniqueNames suffixes repeated result column names with _1, _2, ...
func uniqueNames(cols []string) []string {
	used := make(map[string]bool, len(cols))
	out := make([]string, len(cols))
	for i, c := range cols {
		if c == "" {
			c = "col" + strconv.Itoa(i)
		}
		name := c
		for k := 1; used[name]; k++ {
			name = c + "_" + strconv.Itoa(k)
		}
		used[name] = true
		out[i] = name
	}
	return out
}
