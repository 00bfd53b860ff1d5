package flows

import (
	"context"

	"duckpond/internal/flow"
	"duckpond/internal/parser/html"
	"duckpond/internal/sqlbind"
)

const populationURL = "https://en.wikipedia.org/wiki/List_of_countries_by_population_(United_Nations)"

func init() {
	Register(Definition{
		Name:        "countries",
		Title:       "Countries by population",
		Description: "scrape a Wikipedia population table and hand it off through nested statements",
		Body:        countries,
	})
}

func countries(f *flow.Flow, env *Env) error {
	url := env.Options.String("url", populationURL)
	index := env.Options.Int("table", 0)
	table := env.Options.String("output", "countries")
	opt := html.Options{
		Match:            env.Options.String("match", ""),
		Thousands:        true,
		NormalizeHeaders: true,
	}

	flow.Submit(f, flow.Task[*sqlbind.SQL]{
		Name:    "countries",
		Retries: DefaultRetries,
		Run: func(ctx context.Context) (*sqlbind.SQL, error) {
			rc, err := openURL(ctx, env, url)
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			df, err := html.ReadFrame(rc, index, opt)
			if err != nil {
				return nil, err
			}
			s := sqlbind.New("select * from $df", sqlbind.Bindings{"df": df})
			s1 := sqlbind.New("select * from $s", sqlbind.Bindings{"s": s})
			flow.Log(ctx).WithField("bindings", s1.Names()).Debug("countries: composed")
			return env.publish(ctx, table, s1)
		},
	})
	return nil
}
