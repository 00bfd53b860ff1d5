// Package flows holds the pipelines duckpond ships with and a registry the
// CLI resolves flow names against.
package flows

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"

	"duckpond/internal/config"
	"duckpond/internal/datasource"
	"duckpond/internal/datasource/httpds"
	"duckpond/internal/flow"
	"duckpond/internal/frame"
	"duckpond/internal/metrics"
	"duckpond/internal/parser/csv"
	"duckpond/internal/pond"
	"duckpond/internal/sqlbind"
)

// DefaultRetries is the retry count of every shipped task.
const DefaultRetries = 3

// Env is what a flow needs at run time.
type Env struct {
	DB   pond.Querier
	IO   *pond.IOManager
	HTTP *httpds.Client
	// Options is the flow's block from the configuration file.
	Options config.Options
	// Token authenticates API calls (the GitHub token for stars).
	Token string
	// Out receives the rendered result of every staged query; nil discards.
	Out io.Writer
	// PrintLimit caps printed rows; 0 prints everything.
	PrintLimit int

	outMu sync.Mutex
}

// Definition describes a registered flow.
type Definition struct {
	Name        string
	Title       string
	Description string
	Body        func(f *flow.Flow, env *Env) error
}

var (
	regMu    sync.RWMutex
	registry = map[string]Definition{}
)

// Register adds (or replaces) a flow definition.
func Register(d Definition) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[d.Name] = d
}

// Lookup returns the definition registered as name.
func Lookup(name string) (Definition, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	d, ok := registry[name]
	return d, ok
}

// List returns all definitions sorted by name.
func List() []Definition {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]Definition, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run executes the flow registered as name.
func Run(ctx context.Context, name string, env *Env, opts flow.Options) (flow.Summary, error) {
	d, ok := Lookup(name)
	if !ok {
		return flow.Summary{}, fmt.Errorf("flows: unknown flow %q", name)
	}
	if env.HTTP == nil {
		env.HTTP = httpds.NewClient(httpds.Config{})
	}
	return flow.Run(ctx, d.Name, opts, func(f *flow.Flow) error {
		return d.Body(f, env)
	})
}

// show queries s and writes the result table to env.Out.
func (env *Env) show(ctx context.Context, title string, s *sqlbind.SQL) error {
	f, err := env.DB.Query(ctx, s)
	if err != nil {
		return err
	}
	flow.Log(ctx).WithField("rows", f.Len()).Debugf("flows: %s", title)
	if env.Out == nil {
		return nil
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n", title)
	f.Render(&buf, env.PrintLimit)
	env.outMu.Lock()
	defer env.outMu.Unlock()
	_, err = env.Out.Write(buf.Bytes())
	return err
}

// publish prints the result of s and hands it off as table.
func (env *Env) publish(ctx context.Context, table string, s *sqlbind.SQL) (*sqlbind.SQL, error) {
	if err := env.show(ctx, table, s); err != nil {
		return nil, err
	}
	if env.IO != nil {
		if _, err := env.IO.HandleOutput(ctx, table, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (env *Env) headers() http.Header {
	h := http.Header{}
	if env.Token != "" {
		h.Set("Authorization", "Bearer "+env.Token)
	}
	return h
}

func openURL(ctx context.Context, env *Env, loc string) (io.ReadCloser, error) {
	return datasource.ForURL(loc, env.HTTP).Open(ctx)
}

// loadCSV reads a CSV from a URL or local path into a frame.
func (env *Env) loadCSV(ctx context.Context, loc string) (*frame.Frame, error) {
	rc, err := openURL(ctx, env, loc)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	f, st, err := csv.ReadFrame(ctx, rc, csv.Options{TrimSpace: true})
	if err != nil {
		return nil, fmt.Errorf("flows: %s: %w", loc, err)
	}
	metrics.RecordRows(metrics.FlowFrom(ctx), "fetched", int64(st.Rows))
	return f, nil
}
