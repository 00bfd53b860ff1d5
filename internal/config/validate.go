package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one validation finding. Path is a dotted path into the config,
// e.g. "output.warehouse.dsn".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements error so an Issue can be returned on its own.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Known values. The CLI registers the same names with the engine, sink and
// storage registries.
var (
	KnownDialects   = []string{"duckdb", "sqlite"}
	KnownSinks      = []string{"duckdb", "s3", "local", "warehouse"}
	KnownModes      = []string{"overwrite", "create"}
	KnownWarehouses = []string{"mssql", "mysql", "postgres", "sqlite"}
	KnownMetrics    = []string{"none", "pushgateway", "datadog"}
)

// Validate performs static checks over cfg without touching the network.
func Validate(cfg Config) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if !oneOf(cfg.Engine.Dialect, KnownDialects) {
		add(SeverityError, "engine.dialect", "unknown dialect %q; want one of %s", cfg.Engine.Dialect, strings.Join(KnownDialects, ", "))
	}
	if cfg.Engine.BatchSize < 0 {
		add(SeverityError, "engine.batch_size", "must be >= 0")
	}

	issues = append(issues, validateStorage(cfg)...)
	issues = append(issues, validateOutput(cfg.Output)...)

	if cfg.Flow.MaxConcurrency < 1 {
		add(SeverityError, "flow.max_concurrency", "must be >= 1")
	}
	if _, err := time.ParseDuration(cfg.Flow.RetryDelay); err != nil && cfg.Flow.RetryDelay != "" {
		add(SeverityError, "flow.retry_delay", "invalid duration %q", cfg.Flow.RetryDelay)
	}

	if d, err := time.ParseDuration(cfg.HTTP.Timeout); err != nil {
		add(SeverityError, "http.timeout", "invalid duration %q", cfg.HTTP.Timeout)
	} else if d <= 0 {
		add(SeverityError, "http.timeout", "must be positive")
	}
	if cfg.HTTP.MaxRetries < 0 {
		add(SeverityError, "http.max_retries", "must be >= 0")
	}
	if cfg.HTTP.CacheSize < 0 {
		add(SeverityError, "http.cache_size", "must be >= 0")
	}

	issues = append(issues, validateMetrics(cfg.Metrics)...)
	return issues
}

func validateStorage(cfg Config) []Issue {
	var issues []Issue
	s := cfg.Storage
	if strings.Contains(s.Endpoint, "://") {
		issues = append(issues, Issue{SeverityError, "storage.endpoint", "endpoint is host:port without a scheme; use use_ssl to select https"})
	}
	if s.URLStyle != "path" && s.URLStyle != "vhost" {
		issues = append(issues, Issue{SeverityError, "storage.url_style", fmt.Sprintf("url_style must be path or vhost, got %q", s.URLStyle)})
	}
	needsS3 := cfg.Output.Sink == "s3" || cfg.Output.Sink == "duckdb"
	if needsS3 && (s.AccessKeyID == "") != (s.SecretAccessKey == "") {
		issues = append(issues, Issue{SeverityError, "storage.secret_access_key", "access_key_id and secret_access_key must be set together"})
	}
	if cfg.Output.Sink == "duckdb" && cfg.Engine.Dialect == "sqlite" {
		issues = append(issues, Issue{SeverityError, "output.sink", "the duckdb sink needs engine.dialect=duckdb"})
	}
	return issues
}

func validateOutput(o Output) []Issue {
	var issues []Issue
	if strings.TrimSpace(o.Bucket) == "" {
		issues = append(issues, Issue{SeverityError, "output.bucket", "bucket must not be empty"})
	}
	if strings.Contains(o.Prefix, "..") || strings.HasPrefix(o.Prefix, "/") {
		issues = append(issues, Issue{SeverityError, "output.prefix", "prefix must be relative and must not contain '..'"})
	}
	if o.Prefix == "" {
		issues = append(issues, Issue{SeverityWarning, "output.prefix", "empty prefix; outputs land at the bucket root"})
	}
	if !oneOf(o.Sink, KnownSinks) {
		issues = append(issues, Issue{SeverityError, "output.sink", fmt.Sprintf("unknown sink %q; want one of %s", o.Sink, strings.Join(KnownSinks, ", "))})
	}
	if !oneOf(o.Mode, KnownModes) {
		issues = append(issues, Issue{SeverityError, "output.mode", fmt.Sprintf("mode must be overwrite or create, got %q", o.Mode)})
	}
	switch o.Sink {
	case "local":
		if strings.TrimSpace(o.Dir) == "" {
			issues = append(issues, Issue{SeverityError, "output.dir", "local sink requires a directory"})
		}
	case "warehouse":
		if !oneOf(o.Warehouse.Kind, KnownWarehouses) {
			issues = append(issues, Issue{SeverityError, "output.warehouse.kind", fmt.Sprintf("unknown warehouse kind %q; want one of %s", o.Warehouse.Kind, strings.Join(KnownWarehouses, ", "))})
		}
		if strings.TrimSpace(o.Warehouse.DSN) == "" && o.Warehouse.Kind != "sqlite" {
			issues = append(issues, Issue{SeverityError, "output.warehouse.dsn", "warehouse sink requires a DSN"})
		}
		if o.Warehouse.BatchSize <= 0 {
			issues = append(issues, Issue{SeverityWarning, "output.warehouse.batch_size", "batch_size <= 0; the default of 500 is used"})
		}
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	if !oneOf(m.Backend, KnownMetrics) && m.Backend != "" {
		issues = append(issues, Issue{SeverityError, "metrics.backend", fmt.Sprintf("unknown metrics backend %q", m.Backend)})
		return issues
	}
	switch m.Backend {
	case "pushgateway":
		u, err := url.Parse(m.PushgatewayURL)
		if m.PushgatewayURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url", "pushgateway backend requires an absolute URL"})
		}
	case "datadog":
		if m.DatadogAddr == "" {
			issues = append(issues, Issue{SeverityError, "metrics.datadog_addr", "datadog backend requires host:port"})
		}
	}
	if m.Job == "" && m.Backend != "none" && m.Backend != "" {
		issues = append(issues, Issue{SeverityWarning, "metrics.job", "empty job; metrics are grouped under \"duckpond\""})
	}
	return issues
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
