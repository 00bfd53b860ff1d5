package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefault_MatchesLocalStack(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if cfg.Storage.AccessKeyID != "test" || cfg.Storage.SecretAccessKey != "test" {
		t.Fatalf("credentials = %q/%q", cfg.Storage.AccessKeyID, cfg.Storage.SecretAccessKey)
	}
	if cfg.Storage.Endpoint != "localhost:4566" || cfg.Storage.UseSSL || cfg.Storage.URLStyle != "path" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Output.Bucket != "datalake" || cfg.Output.Prefix != "test_env" {
		t.Fatalf("output = %+v", cfg.Output)
	}
	if issues := Validate(cfg); len(issues) != 0 {
		t.Fatalf("default config has issues: %+v", issues)
	}
}

func TestLoadFile_JSON(t *testing.T) {
	t.Parallel()

	const js = `{
	  "engine": { "dialect": "sqlite" },
	  "output": { "bucket": "lake", "sink": "local", "dir": "/tmp/pond" },
	  "flow": { "max_concurrency": 2, "retry_delay": "250ms" },
	  "flows": {
	    "stars": { "repos": ["a/b", "c/d"], "sleep": "10ms" },
	    "countries": null
	  }
	}`
	path := filepath.Join(t.TempDir(), "duckpond.json")
	if err := os.WriteFile(path, []byte(js), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	if err := LoadFile(path, &cfg); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Engine.Dialect != "sqlite" || cfg.Output.Bucket != "lake" || cfg.Output.Sink != "local" {
		t.Fatalf("decoded %+v", cfg)
	}
	// Unset keys keep their defaults.
	if cfg.Output.Prefix != "test_env" || cfg.Storage.Endpoint != "localhost:4566" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if got := cfg.Flow.RetryDelayDuration(); got != 250*time.Millisecond {
		t.Fatalf("retry delay = %v", got)
	}
	if got := cfg.FlowOptions("stars").StringSlice("repos"); !reflect.DeepEqual(got, []string{"a/b", "c/d"}) {
		t.Fatalf("repos = %v", got)
	}
	if o := cfg.FlowOptions("countries"); o == nil || len(o) != 0 {
		t.Fatalf("null options = %#v", o)
	}
	if o := cfg.FlowOptions("missing"); o == nil {
		t.Fatal("FlowOptions must never return nil")
	}
}

func TestDecodeHCL(t *testing.T) {
	t.Parallel()

	const doc = `
engine {
  dialect = "sqlite"
  setup = ["PRAGMA foreign_keys = ON"]
}
storage {
  endpoint = "minio:9000"
  use_ssl = true
}
output {
  prefix = "prod"
  warehouse {
    kind = "postgres"
    dsn = "postgres://localhost/lake"
  }
}
metrics {
  backend = "pushgateway"
  pushgateway_url = "http://pushgateway:9091"
}
`
	cfg := Default()
	if err := DecodeHCL([]byte(doc), &cfg); err != nil {
		t.Fatalf("DecodeHCL: %v", err)
	}
	if cfg.Engine.Dialect != "sqlite" || !reflect.DeepEqual(cfg.Engine.Setup, []string{"PRAGMA foreign_keys = ON"}) {
		t.Fatalf("engine = %+v", cfg.Engine)
	}
	if cfg.Storage.Endpoint != "minio:9000" || !cfg.Storage.UseSSL {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Output.Prefix != "prod" || cfg.Output.Warehouse.Kind != "postgres" {
		t.Fatalf("output = %+v", cfg.Output)
	}
	if cfg.Metrics.PushgatewayURL != "http://pushgateway:9091" {
		t.Fatalf("metrics = %+v", cfg.Metrics)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if err := LoadFile(filepath.Join(t.TempDir(), "nope.json"), &cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.hcl")
	if err := os.WriteFile(path, []byte("engine {"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := LoadFile(path, &cfg)
	if err == nil || !strings.Contains(err.Error(), "bad.hcl") {
		t.Fatalf("err = %v, want path in message", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"DUCKPOND_ENGINE":          "sqlite",
		"DUCKPOND_S3_ENDPOINT":     "s3.local:9000",
		"DUCKPOND_S3_USE_SSL":      "true",
		"DUCKPOND_BUCKET":          "other",
		"DUCKPOND_SINK":            "warehouse",
		"DUCKPOND_WAREHOUSE_KIND":  "mysql",
		"DUCKPOND_MAX_CONCURRENCY": "8",
		"GITHUB_TOKEN":             "ghp_x",
		"METRICS_BACKEND":          "pushgateway",
		"PUSHGATEWAY_URL":          "http://pgw:9091",
		"DUCKPOND_PREFIX":          "   ",
	}
	cfg := Default()
	if err := ApplyEnv(&cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Engine.Dialect != "sqlite" || cfg.Storage.Endpoint != "s3.local:9000" || !cfg.Storage.UseSSL {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Output.Bucket != "other" || cfg.Output.Sink != "warehouse" || cfg.Output.Warehouse.Kind != "mysql" {
		t.Fatalf("output = %+v", cfg.Output)
	}
	if cfg.Output.Prefix != "test_env" {
		t.Fatalf("blank env must not override, prefix = %q", cfg.Output.Prefix)
	}
	if cfg.Flow.MaxConcurrency != 8 || cfg.HTTP.Token != "ghp_x" || cfg.Metrics.PushgatewayURL != "http://pgw:9091" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestApplyEnv_BadValues(t *testing.T) {
	t.Parallel()

	env := map[string]string{"DUCKPOND_S3_USE_SSL": "maybe", "DUCKPOND_MAX_CONCURRENCY": "lots"}
	cfg := Default()
	err := ApplyEnv(&cfg, func(k string) string { return env[k] })
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"DUCKPOND_S3_USE_SSL", "DUCKPOND_MAX_CONCURRENCY"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestOptions_Accessors(t *testing.T) {
	t.Parallel()

	var o Options
	if err := json.Unmarshal([]byte(`{"s":"x","b":true,"n":3,"l":["a",1,"b"],"m":{"k":"v","n":2}}`), &o); err != nil {
		t.Fatal(err)
	}
	if o.String("s", "") != "x" || o.String("missing", "d") != "d" || o.String("n", "d") != "d" {
		t.Fatal("String")
	}
	if !o.Bool("b", false) || o.Bool("s", false) {
		t.Fatal("Bool")
	}
	if o.Int("n", 0) != 3 || o.Int("s", 7) != 7 || (Options{"n": 4}).Int("n", 0) != 4 {
		t.Fatal("Int")
	}
	if got := o.StringSlice("l"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("StringSlice = %v", got)
	}
	if got := o.StringMap("m"); !reflect.DeepEqual(got, map[string]string{"k": "v"}) {
		t.Fatalf("StringMap = %v", got)
	}
	hclStyle := Options{"m": []map[string]any{{"a": "1"}, {"b": "2"}}}
	if got := hclStyle.StringMap("m"); len(got) != 2 {
		t.Fatalf("StringMap(list) = %v", got)
	}

	var empty Options
	if err := json.Unmarshal([]byte(`null`), &empty); err != nil || empty == nil {
		t.Fatalf("null decode: %v %#v", err, empty)
	}
}
