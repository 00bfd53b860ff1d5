package main

import (
	log "github.com/sirupsen/logrus"

	"duckpond/internal/config"
	"duckpond/internal/metrics"
	"duckpond/internal/metrics/datadog"
	"duckpond/internal/metrics/prompush"
)

// setupMetrics installs the configured backend and returns a function that
// flushes it. A backend that cannot be built leaves metrics disabled.
func setupMetrics(m config.Metrics) func() {
	flush := func() {
		if err := metrics.Flush(); err != nil {
			log.WithError(err).Warn("metrics: flush failed")
		}
	}
	switch m.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(m.Job, m.PushgatewayURL)
		if err != nil {
			log.WithError(err).Warn("metrics: pushgateway backend unavailable; using nop")
			return func() {}
		}
		log.WithFields(log.Fields{"url": m.PushgatewayURL, "job": m.Job}).Debug("metrics: pushgateway")
		metrics.SetBackend(b)
		return flush
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       m.DatadogAddr,
			GlobalTags: []string{"service:" + m.Job},
		})
		if err != nil {
			log.WithError(err).Warn("metrics: datadog backend unavailable; using nop")
			return func() {}
		}
		log.WithField("addr", m.DatadogAddr).Debug("metrics: datadog")
		metrics.SetBackend(b)
		return func() {
			flush()
			if err := b.Close(); err != nil {
				log.WithError(err).Warn("metrics: datadog close failed")
			}
		}
	case "", "none":
		log.Debug("metrics: disabled")
	default:
		log.WithField("backend", m.Backend).Warn("metrics: unknown backend; metrics disabled")
	}
	return func() {}
}
