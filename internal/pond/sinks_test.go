package pond

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duckpond/internal/engine"
	_ "duckpond/internal/engine/sqlite"
	"duckpond/internal/frame"
	"duckpond/internal/sqlbind"
	"duckpond/internal/storage"
	_ "duckpond/internal/storage/sqlite"
)

func openDB(t *testing.T) *engine.DB {
	t.Helper()
	db, err := engine.Open(context.Background(), engine.Config{Dialect: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func customers(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := frame.FromStrings(
		[]string{"customer_id", "first_name", "last_name"},
		[][]string{{"1", "Michael", "P."}, {"2", "Shawn", "M."}, {"3", "Kathleen", "P."}},
	)
	require.NoError(t, err)
	return f
}

func mustLocation(t *testing.T, table string) Location {
	t.Helper()
	loc, err := NewLocation("datalake", "test_env", table)
	require.NoError(t, err)
	return loc
}

func TestDuckDBSink_Statements(t *testing.T) {
	n, err := frame.New([]string{"n"}, [][]any{{int64(1)}})
	require.NoError(t, err)
	q := &stubQuerier{result: n, rows: 3}
	s := &DuckDBSink{DB: q}
	loc := mustLocation(t, "customers")
	ctx := context.Background()

	rows, err := s.Write(ctx, loc, sqlbind.New("select * from stg", nil))
	require.NoError(t, err)
	assert.EqualValues(t, 3, rows)

	ok, err := s.Exists(ctx, loc)
	require.NoError(t, err)
	assert.True(t, ok)

	in, err := s.Input(ctx, loc)
	require.NoError(t, err)
	r, err := in.Render()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"COPY (select * from stg) TO 's3://datalake/test_env/customers.parquet' (FORMAT parquet)",
		"select count(*) as n from glob('s3://datalake/test_env/customers.parquet')",
	}, q.queries)
	assert.Equal(t, "select * from read_parquet('s3://datalake/test_env/customers.parquet')", r.Query)
}

func TestDuckDBSink_NestedSelect(t *testing.T) {
	q := &stubQuerier{}
	s := &DuckDBSink{DB: q}
	df := customers(t)
	stg := sqlbind.New("select * from $df", sqlbind.Bindings{"df": df})
	sel := sqlbind.New("select count(*) from $stg", sqlbind.Bindings{"stg": stg})

	_, err := s.Write(context.Background(), mustLocation(t, "c"), sel)
	require.NoError(t, err)
	require.Len(t, q.queries, 1)
	assert.Equal(t,
		"COPY (select count(*) from (select * from "+sqlbind.FrameTable(df)+")) TO 's3://datalake/test_env/c.parquet' (FORMAT parquet)",
		q.queries[0])
}

func TestParquet_RoundTrip(t *testing.T) {
	day := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := time.Date(2018, 1, 2, 3, 4, 5, 6000, time.UTC)
	f, err := frame.New(
		[]string{"id", "amount", "ok", "day", "at", "first name"},
		[][]any{
			{1, 10.5, true, day, ts, "Michael"},
			{2, nil, false, nil, nil, nil},
			{3, 2.25, true, day.AddDate(0, 0, 1), ts.Add(time.Hour), "Kathleen"},
		},
	)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "t.parquet")
	require.NoError(t, WriteParquet(path, f))
	assert.NoFileExists(t, path+".tmp")

	got, err := ReadParquet(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "amount", "ok", "day", "at", "first_name"}, got.Columns())
	assert.Equal(t, f.Types(), got.Types())
	require.Equal(t, 3, got.Len())
	assert.Equal(t, []any{int64(1), 10.5, true, day, ts, "Michael"}, got.Row(0))
	assert.Equal(t, []any{int64(2), nil, false, nil, nil, nil}, got.Row(1))
	v, _ := got.Value(2, "day")
	assert.Equal(t, day.AddDate(0, 0, 1), v)
}

func TestParquet_KeepsLowercaseColumnNames(t *testing.T) {
	day := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	f, err := frame.New(
		[]string{"customer_id", "first_name", "order_date", "amount"},
		[][]any{{int64(1), "Michael", day, 10.5}},
	)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "orders.parquet")
	require.NoError(t, WriteParquet(path, f))
	got, err := ReadParquet(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"customer_id", "first_name", "order_date", "amount"}, got.Columns())
	v, ok := got.Value(0, "customer_id")
	require.True(t, ok)
	assert.Equal(t, int64(1), v)
	v, _ = got.Value(0, "order_date")
	assert.Equal(t, day, v)
}

func TestParquet_Errors(t *testing.T) {
	_, err := ReadParquet(filepath.Join(t.TempDir(), "missing.parquet"))
	assert.Error(t, err)
}

func TestParquetColumnName(t *testing.T) {
	for in, want := range map[string]string{
		"id":         "id",
		"first name": "first_name",
		"2019":       "c2019",
		"":           "c",
		"a.b":        "a_b",
	} {
		assert.Equal(t, want, parquetColumnName(in), in)
	}
}

func TestLocalSink_RoundTrip(t *testing.T) {
	db := openDB(t)
	dir := t.TempDir()
	s := &LocalSink{DB: db, Dir: dir}
	loc := mustLocation(t, "customers")
	ctx := context.Background()

	ok, err := s.Exists(ctx, loc)
	require.NoError(t, err)
	assert.False(t, ok)

	sel := sqlbind.New("select * from $df order by customer_id", sqlbind.Bindings{"df": customers(t)})
	n, err := s.Write(ctx, loc, sel)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.FileExists(t, filepath.Join(dir, "datalake", "test_env", "customers.parquet"))

	ok, err = s.Exists(ctx, loc)
	require.NoError(t, err)
	assert.True(t, ok)

	in, err := s.Input(ctx, loc)
	require.NoError(t, err)
	got, err := db.Query(ctx, sqlbind.New("select count(*) as n from $c where last_name = 'P.'", sqlbind.Bindings{"c": in}))
	require.NoError(t, err)
	v, _ := got.Value(0, "n")
	assert.EqualValues(t, 2, v)

	got, err = db.Query(ctx, sqlbind.New("select customer_id, first_name from $c order by customer_id", sqlbind.Bindings{"c": in}))
	require.NoError(t, err)
	assert.Equal(t, []string{"customer_id", "first_name"}, got.Columns())
	v, _ = got.Value(2, "first_name")
	assert.Equal(t, "Kathleen", v)
}

func TestLocalSink_InputMissing(t *testing.T) {
	s := &LocalSink{DB: openDB(t), Dir: t.TempDir()}
	_, err := s.Input(context.Background(), mustLocation(t, "nope"))
	assert.Error(t, err)
}

func TestWarehouseSink(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	repo, err := storage.New(ctx, storage.Config{Kind: "sqlite", DSN: filepath.Join(t.TempDir(), "wh.db")})
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	s := &WarehouseSink{DB: db, Repo: repo, BatchSize: 2}
	loc := mustLocation(t, "customers")
	sel := sqlbind.New("select * from $df", sqlbind.Bindings{"df": customers(t)})

	n, err := s.Write(ctx, loc, sel)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	ok, err := s.Exists(ctx, loc)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.TableExists(ctx, "test_env_customers")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err = s.Write(ctx, loc, sel)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	_, err = s.Input(ctx, loc)
	assert.ErrorIs(t, err, ErrNotReadable)
}

// fakeS3 serves path-style PUT and HEAD for a single bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		f.objects[key] = b
		f.meta[key] = r.Header.Get("X-Amz-Meta-Record-Count")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if _, ok := f.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3Sink_UploadAndExists(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, meta: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	db := openDB(t)
	s, err := NewS3Sink(db, engine.S3Config{
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Endpoint:        strings.TrimPrefix(srv.URL, "http://"),
		Region:          "us-east-1",
		URLStyle:        "path",
	})
	require.NoError(t, err)
	s.tempDir = t.TempDir()
	loc := mustLocation(t, "customers")
	ctx := context.Background()

	ok, err := s.Exists(ctx, loc)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Write(ctx, loc, sqlbind.New("select * from $df", sqlbind.Bindings{"df": customers(t)}))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	fake.mu.Lock()
	body := fake.objects["datalake/test_env/customers.parquet"]
	count := fake.meta["datalake/test_env/customers.parquet"]
	fake.mu.Unlock()
	require.NotEmpty(t, body)
	assert.Equal(t, "PAR1", string(body[:4]))
	assert.Equal(t, "3", count)

	ok, err = s.Exists(ctx, loc)
	require.NoError(t, err)
	assert.True(t, ok)

	in, err := s.Input(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, "select * from read_parquet($url)", in.Template())
}

func TestNewSink(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	for kind, want := range map[string]string{"": "duckdb", "duckdb": "duckdb", "s3": "s3"} {
		s, closeFn, err := NewSink(ctx, db, SinkConfig{Kind: kind, S3: engine.S3Config{Region: "us-east-1"}})
		require.NoError(t, err)
		closeFn()
		assert.Equal(t, want, s.Name())
	}

	s, closeFn, err := NewSink(ctx, db, SinkConfig{Kind: "local", Dir: t.TempDir()})
	require.NoError(t, err)
	closeFn()
	assert.Equal(t, "local", s.Name())

	s, closeFn, err = NewSink(ctx, db, SinkConfig{Kind: "warehouse", Warehouse: storage.Config{Kind: "sqlite", DSN: filepath.Join(t.TempDir(), "w.db")}})
	require.NoError(t, err)
	assert.Equal(t, "warehouse", s.Name())
	closeFn()

	_, _, err = NewSink(ctx, db, SinkConfig{Kind: "local"})
	assert.Error(t, err)
	_, _, err = NewSink(ctx, db, SinkConfig{Kind: "warehouse", Warehouse: storage.Config{Kind: "oracle"}})
	assert.Error(t, err)
	_, _, err = NewSink(ctx, db, SinkConfig{Kind: "ftp"})
	assert.Error(t, err)
}
