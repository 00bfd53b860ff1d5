package flows

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duckpond/internal/config"
	"duckpond/internal/datasource/httpds"
	"duckpond/internal/engine"
	_ "duckpond/internal/engine/sqlite"
	"duckpond/internal/flow"
	"duckpond/internal/pond"
	"duckpond/internal/sqlbind"
)

const (
	rawCustomers = "id,first_name,last_name\n1,Michael,P.\n2,Shawn,M.\n3,Kathleen,P.\n"
	rawOrders    = "id,user_id,order_date,status\n1,1,2018-01-01,returned\n2,3,2018-01-02,completed\n3,1,2018-01-04,completed\n"
	rawPayments  = "id,order_id,payment_method,amount\n1,1,credit_card,1000\n2,2,credit_card,2000\n3,3,coupon,100\n4,3,gift_card,2500\n"
)

func testEnv(t *testing.T, opts config.Options) (*Env, *pond.LocalSink) {
	t.Helper()
	db, err := engine.Open(context.Background(), engine.Config{Dialect: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sink := &pond.LocalSink{DB: db, Dir: t.TempDir()}
	return &Env{
		DB:      db,
		IO:      &pond.IOManager{Bucket: "datalake", Prefix: "test_env", Sink: sink},
		HTTP:    httpds.NewClient(httpds.Config{}),
		Options: opts,
	}, sink
}

func serve(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func noRetries() flow.Options {
	zero := 0
	return flow.Options{MaxConcurrency: 4, Retries: &zero}
}

func TestRegistry(t *testing.T) {
	var names []string
	for _, d := range List() {
		names = append(names, d.Name)
		assert.NotEmpty(t, d.Description)
		assert.NotNil(t, d.Body)
	}
	assert.Equal(t, []string{"countries", "jaffle", "stars"}, names)

	d, ok := Lookup("jaffle")
	require.True(t, ok)
	assert.Equal(t, "ETL DuckDB", d.Title)

	_, err := Run(context.Background(), "nope", &Env{}, flow.Options{})
	assert.ErrorContains(t, err, "unknown flow")
}

func TestJaffle_EndToEnd(t *testing.T) {
	srv := serve(t, map[string]string{
		"/raw_customers.csv": rawCustomers,
		"/raw_orders.csv":    rawOrders,
		"/raw_payments.csv":  rawPayments,
	})
	env, sink := testEnv(t, config.Options{
		"customers_url": srv.URL + "/raw_customers.csv",
		"orders_url":    srv.URL + "/raw_orders.csv",
		"payments_url":  srv.URL + "/raw_payments.csv",
	})
	var out bytes.Buffer
	env.Out = &out

	sum, err := Run(context.Background(), "jaffle", env, noRetries())
	require.NoError(t, err)
	assert.Equal(t, flow.Completed, sum.State)
	assert.Equal(t, 5, sum.Count(flow.Completed))

	for _, table := range []string{"stg_customers", "stg_orders", "stg_payments", "customers", "orders"} {
		assert.FileExists(t, filepath.Join(sink.Dir, "datalake", "test_env", table+".parquet"))
		assert.Contains(t, out.String(), table+"\n")
	}

	customers, err := pond.ReadParquet(filepath.Join(sink.Dir, "datalake", "test_env", "customers.parquet"))
	require.NoError(t, err)
	require.Equal(t, 3, customers.Len())
	ltv := map[int64]any{}
	orders := map[int64]any{}
	for i := 0; i < customers.Len(); i++ {
		id, _ := customers.Value(i, "customer_id")
		ltv[id.(int64)], _ = customers.Value(i, "customer_lifetime_value")
		orders[id.(int64)], _ = customers.Value(i, "number_of_orders")
	}
	assert.InDelta(t, 36.0, ltv[1], 1e-9)
	assert.Nil(t, ltv[2])
	assert.InDelta(t, 20.0, ltv[3], 1e-9)
	assert.EqualValues(t, 2, orders[1])

	ordersModel, err := pond.ReadParquet(filepath.Join(sink.Dir, "datalake", "test_env", "orders.parquet"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"order_id", "customer_id", "order_date", "status",
		"credit_card_amount", "coupon_amount", "bank_transfer_amount", "gift_card_amount", "amount",
	}, ordersModel.Columns())
	for i := 0; i < ordersModel.Len(); i++ {
		id, _ := ordersModel.Value(i, "order_id")
		if id == int64(3) {
			gift, _ := ordersModel.Value(i, "gift_card_amount")
			total, _ := ordersModel.Value(i, "amount")
			assert.InDelta(t, 25.0, gift, 1e-9)
			assert.InDelta(t, 26.0, total, 1e-9)
		}
	}
}

func TestJaffle_StagingFailureSkipsModels(t *testing.T) {
	srv := serve(t, map[string]string{
		"/raw_customers.csv": rawCustomers,
		"/raw_orders.csv":    rawOrders,
	})
	env, _ := testEnv(t, config.Options{
		"customers_url": srv.URL + "/raw_customers.csv",
		"orders_url":    srv.URL + "/raw_orders.csv",
		"payments_url":  srv.URL + "/missing.csv",
	})

	sum, err := Run(context.Background(), "jaffle", env, noRetries())
	require.Error(t, err)
	assert.Equal(t, flow.Failed, sum.State)

	states := map[string]flow.State{}
	for _, task := range sum.Tasks {
		states[task.Name] = task.State
	}
	assert.Equal(t, flow.Completed, states["stg_customers"])
	assert.Equal(t, flow.Completed, states["stg_orders"])
	assert.Equal(t, flow.Failed, states["stg_payments"])
	assert.Equal(t, flow.UpstreamFailed, states["customers"])
	assert.Equal(t, flow.UpstreamFailed, states["orders"])
}

func TestOrdersSQL(t *testing.T) {
	o := sqlbind.New("select 1 as order_id", nil)
	p := sqlbind.New("select 2 as order_id", nil)
	s := OrdersSQL(o, p, []string{"credit_card", "coupon"})

	r, err := s.Render()
	require.NoError(t, err)
	assert.Contains(t, r.Query, "sum(case when payment_method = 'credit_card' then amount else 0 end) as credit_card_amount,\n")
	assert.Contains(t, r.Query, "        order_payments.coupon_amount,\n        order_payments.total_amount as amount")
	assert.Contains(t, r.Query, "select * from (select 1 as order_id)")
	assert.NotContains(t, r.Query, "gift_card")
}

func TestCustomersSQL_NilStatement(t *testing.T) {
	_, err := CustomersSQL(sqlbind.New("select 1", nil), nil, nil).Render()
	var unsup *sqlbind.UnsupportedBindingError
	require.ErrorAs(t, err, &unsup)
	assert.Equal(t, "stg_orders", unsup.Name)
}

func TestCentsToDollars(t *testing.T) {
	assert.Equal(t, 10.0, centsToDollars(int64(1000)))
	assert.Equal(t, 0.5, centsToDollars(50.0))
	assert.Nil(t, centsToDollars(nil))
	assert.Equal(t, "x", centsToDollars("x"))
}

func TestStars(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/repos/a/one":
			_, _ = w.Write([]byte(`{"full_name":"a/one","stargazers_count":42}`))
		case "/repos/b/two":
			_, _ = w.Write([]byte(`{"full_name":"b/two","stargazers_count":7}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	env, _ := testEnv(t, config.Options{
		"repos":        []any{"a/one", "b/two"},
		"api_url":      srv.URL + "/",
		"sample_delay": "1ms",
	})
	env.Token = "tok"

	sum, err := Run(context.Background(), "stars", env, noRetries())
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Count(flow.Completed))
	assert.EqualValues(t, 2, calls.Load())

	var names []string
	for _, task := range sum.Tasks {
		names = append(names, task.Name)
	}
	assert.Equal(t, []string{"get_stars", "sample_task", "get_stars-1", "sample_task-1"}, names)
}

func TestStars_BadDelay(t *testing.T) {
	env, _ := testEnv(t, config.Options{"repos": []any{"a/b"}, "sample_delay": "soon"})
	_, err := Run(context.Background(), "stars", env, noRetries())
	assert.ErrorContains(t, err, "sample_delay")
}

func TestRepos(t *testing.T) {
	env := &Env{Options: config.Options{}}
	repos, err := env.Repos()
	require.NoError(t, err)
	assert.Equal(t, DefaultRepos, repos)

	path := filepath.Join(t.TempDir(), "repos.txt")
	require.NoError(t, os.WriteFile(path, []byte("# tracked\nx/y\n\nz/w\n"), 0o644))
	env.Options = config.Options{"repos": []any{"a/b"}, "repos_file": path}
	repos, err = env.Repos()
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b", "x/y", "z/w"}, repos)
}

const populationPage = `<html><body>
<table class="wikitable">
<caption>Population</caption>
<tr><th>Location</th><th>Population<sup>[1]</sup></th><th>UN region</th></tr>
<tr><td>India</td><td>1,428,627,663</td><td>Asia</td></tr>
<tr><td>China</td><td>1,425,671,352</td><td>Asia</td></tr>
<tr><td>Nigeria</td><td>223,804,632</td><td>Africa</td></tr>
</table>
</body></html>`

func TestCountries(t *testing.T) {
	srv := serve(t, map[string]string{"/wiki/pop": populationPage})
	env, sink := testEnv(t, config.Options{"url": srv.URL + "/wiki/pop"})

	sum, err := Run(context.Background(), "countries", env, noRetries())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Count(flow.Completed))

	got, err := pond.ReadParquet(filepath.Join(sink.Dir, "datalake", "test_env", "countries.parquet"))
	require.NoError(t, err)
	assert.Equal(t, []string{"location", "population", "un_region"}, got.Columns())
	require.Equal(t, 3, got.Len())
	pop, _ := got.Value(0, "population")
	assert.Equal(t, int64(1428627663), pop)
}

func TestShow_WritesTable(t *testing.T) {
	env, _ := testEnv(t, nil)
	var out bytes.Buffer
	env.Out = &out
	env.PrintLimit = 1

	err := env.show(context.Background(), "numbers", sqlbind.New("select 1 as n union all select 2", nil))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "numbers\n"))
	assert.Contains(t, out.String(), "[2 rows x 1 columns]")
}
