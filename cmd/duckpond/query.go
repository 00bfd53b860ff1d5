package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"duckpond/internal/datasource"
	"duckpond/internal/frame"
	"duckpond/internal/parser/csv"
	"duckpond/internal/parser/html"
	"duckpond/internal/parser/json"
	"duckpond/internal/sqlbind"
)

type queryOptions struct {
	csv   []string
	html  []string
	json  []string
	limit int
	save  string
}

func (c *cli) queryCmd() *cobra.Command {
	var o queryOptions
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run an ad-hoc query over CSV or HTML sources bound by name",
		Long: `Run an ad-hoc query. Each --csv, --json or --html source is loaded into a frame
and bound to the given name, so the query can reference it as $name:

  duckpond query --csv orders=raw_orders.csv "select status, count(*) from $orders group by 1"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.query(cmd.Context(), args[0], o)
		},
	}
	fs := cmd.Flags()
	fs.StringArrayVar(&o.csv, "csv", nil, "bind a CSV `name=URL`; repeatable")
	fs.StringArrayVar(&o.json, "json", nil, "bind a JSON array, envelope or NDJSON document as `name=URL`; repeatable")
	fs.StringArrayVar(&o.html, "html", nil, "bind the first table of an HTML page as `name=URL`; repeatable")
	fs.IntVar(&o.limit, "limit", 0, "rows to print; 0 prints all")
	fs.StringVar(&o.save, "save", "", "also hand the result off as `table`")
	return cmd
}

// parseBinding splits "name=location".
func parseBinding(s string) (string, string, error) {
	name, loc, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.TrimSpace(loc) == "" {
		return "", "", fmt.Errorf("duckpond: binding %q: want name=URL", s)
	}
	return name, strings.TrimSpace(loc), nil
}

func (c *cli) query(ctx context.Context, text string, o queryOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if o.save != "" {
		if err := c.checkConfig(); err != nil {
			return err
		}
	}
	a, err := openApp(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	bindings := sqlbind.Bindings{}
	load := func(specs []string, read func(context.Context, *app, string) (*frame.Frame, error)) error {
		for _, spec := range specs {
			name, loc, err := parseBinding(spec)
			if err != nil {
				return err
			}
			f, err := read(ctx, a, loc)
			if err != nil {
				return err
			}
			bindings[name] = f
		}
		return nil
	}
	if err := load(o.csv, readCSV); err != nil {
		return err
	}
	if err := load(o.json, readJSON); err != nil {
		return err
	}
	if err := load(o.html, readHTML); err != nil {
		return err
	}

	s := sqlbind.New(text, bindings)
	f, err := a.db.Query(ctx, s)
	if err != nil {
		return err
	}
	f.Render(c.stdout, o.limit)

	if o.save != "" {
		res, err := a.io.HandleOutput(ctx, o.save, s)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "saved %d rows to %s\n", res.Rows, res.Location)
	}
	return nil
}

func readCSV(ctx context.Context, a *app, loc string) (*frame.Frame, error) {
	rc, err := datasource.ForURL(loc, a.http).Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	f, _, err := csv.ReadFrame(ctx, rc, csv.Options{TrimSpace: true})
	return f, err
}

func readJSON(ctx context.Context, a *app, loc string) (*frame.Frame, error) {
	rc, err := datasource.ForURL(loc, a.http).Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return json.ReadFrame(ctx, rc, json.Options{NormalizeHeaders: true})
}

func readHTML(ctx context.Context, a *app, loc string) (*frame.Frame, error) {
	rc, err := datasource.ForURL(loc, a.http).Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return html.ReadFrame(rc, 0, html.Options{Thousands: true, NormalizeHeaders: true})
}
