// Package config defines duckpond's configuration model and how it is
// assembled: built-in defaults, then an optional JSON or HCL file, then
// environment variables. The CLI applies flags last.
//
// Example (HCL):
//
//	engine {
//	  dialect = "duckdb"
//	}
//	storage {
//	  endpoint = "localhost:4566"
//	  url_style = "path"
//	}
//	output {
//	  bucket = "datalake"
//	  prefix = "test_env"
//	  sink   = "duckdb"
//	}
//	flows "stars" {
//	  repos = ["PrefectHQ/Prefect"]
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl"
)

// Config is the full runtime configuration.
type Config struct {
	Engine  Engine             `json:"engine" hcl:"engine"`
	Storage Storage            `json:"storage" hcl:"storage"`
	Output  Output             `json:"output" hcl:"output"`
	Flow    FlowRuntime        `json:"flow" hcl:"flow"`
	HTTP    HTTP               `json:"http" hcl:"http"`
	Metrics Metrics            `json:"metrics" hcl:"metrics"`
	Flows   map[string]Options `json:"flows" hcl:"flows"`
}

// Engine selects the embedded SQL database.
type Engine struct {
	// Dialect is "duckdb" or "sqlite".
	Dialect string `json:"dialect" hcl:"dialect"`
	// DSN is passed to the driver; empty means in-memory.
	DSN string `json:"dsn" hcl:"dsn"`
	// Setup statements run on every new connection.
	Setup     []string `json:"setup" hcl:"setup"`
	BatchSize int      `json:"batch_size" hcl:"batch_size"`
}

// Storage holds the object storage connection used by the engine (httpfs)
// and by the s3 sink.
type Storage struct {
	AccessKeyID     string `json:"access_key_id" hcl:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" hcl:"secret_access_key"`
	SessionToken    string `json:"session_token" hcl:"session_token"`
	// Endpoint is host:port without a scheme.
	Endpoint string `json:"endpoint" hcl:"endpoint"`
	Region   string `json:"region" hcl:"region"`
	UseSSL   bool   `json:"use_ssl" hcl:"use_ssl"`
	// URLStyle is "path" or "vhost".
	URLStyle string `json:"url_style" hcl:"url_style"`
}

// Output configures the hand-off of query results.
type Output struct {
	Bucket string `json:"bucket" hcl:"bucket"`
	Prefix string `json:"prefix" hcl:"prefix"`
	// Sink is one of duckdb, s3, local, warehouse.
	Sink string `json:"sink" hcl:"sink"`
	// Mode is overwrite or create.
	Mode string `json:"mode" hcl:"mode"`
	// Dir is the root directory of the local sink.
	Dir       string    `json:"dir" hcl:"dir"`
	Warehouse Warehouse `json:"warehouse" hcl:"warehouse"`
}

// Warehouse is the relational target of the warehouse sink.
type Warehouse struct {
	// Kind is a storage backend: postgres, mssql, mysql, sqlite.
	Kind      string `json:"kind" hcl:"kind"`
	DSN       string `json:"dsn" hcl:"dsn"`
	BatchSize int    `json:"batch_size" hcl:"batch_size"`
}

// FlowRuntime tunes the task runner.
type FlowRuntime struct {
	MaxConcurrency int `json:"max_concurrency" hcl:"max_concurrency"`
	// Retries overrides every task's retry count when >= 0.
	Retries int `json:"retries" hcl:"retries"`
	// RetryDelay is a Go duration string.
	RetryDelay string `json:"retry_delay" hcl:"retry_delay"`
}

// HTTP configures the datasource client.
type HTTP struct {
	Timeout    string `json:"timeout" hcl:"timeout"`
	MaxRetries int    `json:"max_retries" hcl:"max_retries"`
	CacheSize  int    `json:"cache_size" hcl:"cache_size"`
	UserAgent  string `json:"user_agent" hcl:"user_agent"`
	// Token is sent as a bearer token to api.github.com.
	Token string `json:"token" hcl:"token"`
}

// Metrics selects a metrics backend: none, pushgateway or datadog.
type Metrics struct {
	Backend        string `json:"backend" hcl:"backend"`
	Job            string `json:"job" hcl:"job"`
	PushgatewayURL string `json:"pushgateway_url" hcl:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" hcl:"datadog_addr"`
}

// Default returns the configuration used when nothing else is given. The
// storage values target a LocalStack-style endpoint.
func Default() Config {
	return Config{
		Engine: Engine{Dialect: "duckdb", BatchSize: 500},
		Storage: Storage{
			AccessKeyID:     "test",
			SecretAccessKey: "test",
			Endpoint:        "localhost:4566",
			Region:          "us-east-1",
			UseSSL:          false,
			URLStyle:        "path",
		},
		Output: Output{
			Bucket: "datalake",
			Prefix: "test_env",
			Sink:   "duckdb",
			Mode:   "overwrite",
			Dir:    "pond",
			Warehouse: Warehouse{
				BatchSize: 500,
			},
		},
		Flow: FlowRuntime{
			MaxConcurrency: 4,
			Retries:        -1,
			RetryDelay:     "0s",
		},
		HTTP: HTTP{
			Timeout:    "30s",
			MaxRetries: 2,
			CacheSize:  128,
			UserAgent:  "duckpond",
		},
		Metrics: Metrics{Backend: "none", Job: "duckpond"},
		Flows:   map[string]Options{},
	}
}

// LoadFile decodes path over cfg. Files ending in .hcl are HCL; anything
// else is JSON.
func LoadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		err = DecodeHCL(b, cfg)
	} else {
		err = json.Unmarshal(b, cfg)
	}
	if err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	return nil
}

// DecodeHCL decodes an HCL document over cfg.
func DecodeHCL(b []byte, cfg *Config) error {
	return hcl.Decode(cfg, string(b))
}

// ApplyEnv overrides cfg from environment variables read through getenv.
// Unset or empty variables are ignored.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	var errs []string
	boolean := func(key string, dst *bool) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q: not a boolean", key, v))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q: not an integer", key, v))
				return
			}
			*dst = n
		}
	}

	str("DUCKPOND_ENGINE", &cfg.Engine.Dialect)
	str("DUCKPOND_DSN", &cfg.Engine.DSN)

	str("DUCKPOND_S3_ACCESS_KEY_ID", &cfg.Storage.AccessKeyID)
	str("DUCKPOND_S3_SECRET_ACCESS_KEY", &cfg.Storage.SecretAccessKey)
	str("DUCKPOND_S3_SESSION_TOKEN", &cfg.Storage.SessionToken)
	str("DUCKPOND_S3_ENDPOINT", &cfg.Storage.Endpoint)
	str("DUCKPOND_S3_REGION", &cfg.Storage.Region)
	boolean("DUCKPOND_S3_USE_SSL", &cfg.Storage.UseSSL)
	str("DUCKPOND_S3_URL_STYLE", &cfg.Storage.URLStyle)

	str("DUCKPOND_BUCKET", &cfg.Output.Bucket)
	str("DUCKPOND_PREFIX", &cfg.Output.Prefix)
	str("DUCKPOND_SINK", &cfg.Output.Sink)
	str("DUCKPOND_WRITE_MODE", &cfg.Output.Mode)
	str("DUCKPOND_OUTPUT_DIR", &cfg.Output.Dir)
	str("DUCKPOND_WAREHOUSE_KIND", &cfg.Output.Warehouse.Kind)
	str("DUCKPOND_WAREHOUSE_DSN", &cfg.Output.Warehouse.DSN)

	integer("DUCKPOND_MAX_CONCURRENCY", &cfg.Flow.MaxConcurrency)
	integer("DUCKPOND_RETRIES", &cfg.Flow.Retries)
	str("DUCKPOND_RETRY_DELAY", &cfg.Flow.RetryDelay)

	str("DUCKPOND_HTTP_TIMEOUT", &cfg.HTTP.Timeout)
	integer("DUCKPOND_HTTP_MAX_RETRIES", &cfg.HTTP.MaxRetries)
	str("GITHUB_TOKEN", &cfg.HTTP.Token)

	str("METRICS_BACKEND", &cfg.Metrics.Backend)
	str("PUSHGATEWAY_URL", &cfg.Metrics.PushgatewayURL)
	str("DATADOG_ADDR", &cfg.Metrics.DatadogAddr)

	if len(errs) > 0 {
		return fmt.Errorf("config: environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load builds a Config from defaults, the optional file at path, and the
// process environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RetryDelayDuration parses RetryDelay; invalid values yield zero.
func (f FlowRuntime) RetryDelayDuration() time.Duration {
	d, _ := time.ParseDuration(f.RetryDelay)
	return d
}

// TimeoutDuration parses Timeout; invalid values yield zero.
func (h HTTP) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(h.Timeout)
	return d
}

// FlowOptions returns the options block for a flow; never nil.
func (c Config) FlowOptions(name string) Options {
	if o, ok := c.Flows[name]; ok && o != nil {
		return o
	}
	return Options{}
}
