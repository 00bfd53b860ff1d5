// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// Flow runs are short-lived batch processes, so collected series are pushed to
// a Pushgateway on Flush instead of being exposed on a scrape endpoint. The
// flow name becomes the Pushgateway grouping job; task, status and kind are
// carried as labels.
package prompush

import (
	"fmt"

	"duckpond/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	taskCounter  *prometheus.CounterVec // duckpond_task_total
	taskDuration *prometheus.SummaryVec // duckpond_task_duration_seconds
	retryCounter *prometheus.CounterVec // duckpond_task_retries_total
	rowCounter   *prometheus.CounterVec // duckpond_rows_total
	batchCounter prometheus.Counter     // duckpond_batches_total
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name; defaults to "duckpond".
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "duckpond"
	}

	reg := prometheus.NewRegistry()

	taskCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.TaskTotal,
			Help: "Finished task runs, partitioned by task and terminal status.",
		},
		[]string{"task", "status"},
	)
	taskDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.TaskDuration,
			Help:       "Wall time of task runs across all attempts, in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"task", "status"},
	)
	retryCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.TaskRetries,
			Help: "Task attempts beyond the first.",
		},
		[]string{"task"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Row counts per kind (fetched, registered, written, loaded).",
		},
		[]string{"kind"},
	)
	batchCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Insert batches flushed to a warehouse or engine.",
		},
	)

	for _, c := range []prometheus.Collector{taskCounter, taskDuration, retryCounter, rowCounter, batchCounter} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:   gatewayURL,
		jobName:      jobName,
		reg:          reg,
		taskCounter:  taskCounter,
		taskDuration: taskDuration,
		retryCounter: retryCounter,
		rowCounter:   rowCounter,
		batchCounter: batchCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.TaskTotal:
		if b.taskCounter == nil {
			return
		}
		b.taskCounter.WithLabelValues(labels["task"], labels["status"]).Add(delta)

	case metrics.TaskRetries:
		if b.retryCounter == nil {
			return
		}
		b.retryCounter.WithLabelValues(labels["task"]).Add(delta)

	case metrics.RowsTotal:
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)

	case metrics.BatchesTotal:
		if b.batchCounter == nil {
			return
		}
		b.batchCounter.Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.TaskDuration || b.taskDuration == nil {
		return
	}
	b.taskDuration.WithLabelValues(labels["task"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
