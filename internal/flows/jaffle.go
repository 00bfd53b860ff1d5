package flows

import (
	"context"
	"fmt"
	"strings"

	"duckpond/internal/flow"
	"duckpond/internal/sqlbind"
)

const rawDataURL = "https://raw.githubusercontent.com/abhr1994/DuckDB_Datalake/main/data/"

// PaymentMethods are the methods broken out into per-method amount columns
// of the orders model.
var PaymentMethods = []string{"credit_card", "coupon", "bank_transfer", "gift_card"}

func init() {
	Register(Definition{
		Name:        "jaffle",
		Title:       "ETL DuckDB",
		Description: "stage raw jaffle shop CSVs and build the customers and orders models",
		Body:        jaffle,
	})
}

type staging struct {
	table  string
	option string
	file   string
	rename map[string]string
	amount bool
}

var stagings = []staging{
	{table: "stg_customers", option: "customers_url", file: "raw_customers.csv", rename: map[string]string{"id": "customer_id"}},
	{table: "stg_orders", option: "orders_url", file: "raw_orders.csv", rename: map[string]string{"id": "order_id", "user_id": "customer_id"}},
	{table: "stg_payments", option: "payments_url", file: "raw_payments.csv", rename: map[string]string{"id": "payment_id"}, amount: true},
}

func jaffle(f *flow.Flow, env *Env) error {
	futures := make([]*flow.Future[*sqlbind.SQL], len(stagings))
	for i, st := range stagings {
		url := env.Options.String(st.option, rawDataURL+st.file)
		futures[i] = flow.Submit(f, stageTask(env, st, url))
	}
	stgCustomers, stgOrders, stgPayments := futures[0], futures[1], futures[2]

	flow.Submit(f, flow.Task[*sqlbind.SQL]{
		Name:    "customers",
		Retries: DefaultRetries,
		Run: func(ctx context.Context) (*sqlbind.SQL, error) {
			c, o, p, err := results3(ctx, stgCustomers, stgOrders, stgPayments)
			if err != nil {
				return nil, err
			}
			return env.publish(ctx, "customers", CustomersSQL(c, o, p))
		},
	}, stgCustomers, stgOrders, stgPayments)

	flow.Submit(f, flow.Task[*sqlbind.SQL]{
		Name:    "orders",
		Retries: DefaultRetries,
		Run: func(ctx context.Context) (*sqlbind.SQL, error) {
			o, err := stgOrders.Result(ctx)
			if err != nil {
				return nil, err
			}
			p, err := stgPayments.Result(ctx)
			if err != nil {
				return nil, err
			}
			return env.publish(ctx, "orders", OrdersSQL(o, p, PaymentMethods))
		},
	}, stgOrders, stgPayments)
	return nil
}

func stageTask(env *Env, st staging, url string) flow.Task[*sqlbind.SQL] {
	return flow.Task[*sqlbind.SQL]{
		Name:    st.table,
		Retries: DefaultRetries,
		Run: func(ctx context.Context) (*sqlbind.SQL, error) {
			df, err := env.loadCSV(ctx, url)
			if err != nil {
				return nil, err
			}
			if df, err = df.Rename(st.rename); err != nil {
				return nil, err
			}
			if st.amount {
				if df, err = df.Map("amount", centsToDollars); err != nil {
					return nil, err
				}
			}
			return env.publish(ctx, st.table, sqlbind.New("select * from $df", sqlbind.Bindings{"df": df}))
		},
	}
}

func centsToDollars(v any) any {
	switch x := v.(type) {
	case int64:
		return float64(x) / 100
	case float64:
		return x / 100
	}
	return v
}

func results3(ctx context.Context, a, b, c *flow.Future[*sqlbind.SQL]) (*sqlbind.SQL, *sqlbind.SQL, *sqlbind.SQL, error) {
	out := make([]*sqlbind.SQL, 3)
	for i, fu := range []*flow.Future[*sqlbind.SQL]{a, b, c} {
		s, err := fu.Result(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		out[i] = s
	}
	return out[0], out[1], out[2], nil
}

const customersTemplate = `
with customers as (
    select * from $stg_customers
),
orders as (
    select * from $stg_orders
),
payments as (
    select * from $stg_payments
),
customer_orders as (
    select
        customer_id,
        min(order_date) as first_order,
        max(order_date) as most_recent_order,
        count(order_id) as number_of_orders
    from orders
    group by customer_id
),
customer_payments as (
    select
        orders.customer_id,
        sum(amount) as total_amount
    from payments
    left join orders on
         payments.order_id = orders.order_id
    group by orders.customer_id
),
final as (
    select
        customers.customer_id,
        customers.first_name,
        customers.last_name,
        customer_orders.first_order,
        customer_orders.most_recent_order,
        customer_orders.number_of_orders,
        customer_payments.total_amount as customer_lifetime_value
    from customers
    left join customer_orders
        on customers.customer_id = customer_orders.customer_id
    left join customer_payments
        on  customers.customer_id = customer_payments.customer_id
)
select * from final
`

// CustomersSQL builds the customers model over the three staging statements.
func CustomersSQL(stgCustomers, stgOrders, stgPayments *sqlbind.SQL) *sqlbind.SQL {
	return sqlbind.New(customersTemplate, sqlbind.Bindings{
		"stg_customers": stgCustomers,
		"stg_orders":    stgOrders,
		"stg_payments":  stgPayments,
	})
}

// OrdersSQL builds the orders model with one amount column per payment
// method. Method names must be plain identifiers.
func OrdersSQL(stgOrders, stgPayments *sqlbind.SQL, methods []string) *sqlbind.SQL {
	var sums, cols strings.Builder
	for _, m := range methods {
		fmt.Fprintf(&sums, "        sum(case when payment_method = %s then amount else 0 end) as %s_amount,\n", sqlbind.QuoteLiteral(m), m)
		fmt.Fprintf(&cols, "        order_payments.%s_amount,\n", m)
	}
	tpl := `
with orders as (
    select * from $stg_orders
),
payments as (
    select * from $stg_payments
),
order_payments as (
    select
        order_id,
` + sums.String() + `        sum(amount) as total_amount
    from payments
    group by order_id
),
final as (
    select
        orders.order_id,
        orders.customer_id,
        orders.order_date,
        orders.status,
` + cols.String() + `        order_payments.total_amount as amount
    from orders
    left join order_payments
        on orders.order_id = order_payments.order_id
)
select * from final
`
	return sqlbind.New(tpl, sqlbind.Bindings{"stg_orders": stgOrders, "stg_payments": stgPayments})
}
