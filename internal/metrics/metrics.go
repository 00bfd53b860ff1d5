// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from flow runs.
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//
// Concrete metric systems live in subpackages (prompush, datadog) so the flow
// runner and sinks depend only on this package.
package metrics

import (
	"context"
	"sync"
	"time"
)

// Metric names emitted by the helpers below.
const (
	TaskTotal       = "duckpond_task_total"
	TaskDuration    = "duckpond_task_duration_seconds"
	TaskRetries     = "duckpond_task_retries_total"
	RowsTotal       = "duckpond_rows_total"
	BatchesTotal    = "duckpond_batches_total"
	StatusSuccess   = "success"
	StatusFailure   = "failure"
	StatusUpstream  = "upstream_failed"
	StatusCancelled = "cancelled"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordTask records one finished task run: a counter partitioned by status
// and the wall time spent across all attempts.
func RecordTask(flow, task, status string, d time.Duration) {
	lbls := Labels{
		"flow":   flow,
		"task":   task,
		"status": status,
	}
	b := current()
	b.IncCounter(TaskTotal, 1, lbls)
	b.ObserveHistogram(TaskDuration, d.Seconds(), lbls)
}

// RecordRetry increments the retry counter for a task.
func RecordRetry(flow, task string) {
	current().IncCounter(TaskRetries, 1, Labels{"flow": flow, "task": task})
}

// RecordRows increments a row-level counter for the given flow and kind.
//
// Kinds used in this module:
//   - "fetched"    rows parsed from a remote source
//   - "registered" rows staged into the query engine
//   - "written"    rows handed to an output sink
//   - "loaded"     rows copied into a warehouse table
func RecordRows(flow, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{
		"flow": flow,
		"kind": kind,
	})
}

// RecordBatches increments a batch-level counter for the given flow.
func RecordBatches(flow string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{
		"flow": flow,
	})
}

type flowKey struct{}

// WithFlow tags ctx with the name of the running flow so that sinks and
// loaders can label their counters without extra parameters.
func WithFlow(ctx context.Context, flow string) context.Context {
	return context.WithValue(ctx, flowKey{}, flow)
}

// FlowFrom returns the flow name stored by WithFlow, or "adhoc".
func FlowFrom(ctx context.Context) string {
	if s, ok := ctx.Value(flowKey{}).(string); ok && s != "" {
		return s
	}
	return "adhoc"
}
