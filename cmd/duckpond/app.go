package main

import (
	"context"
	"fmt"
	"net/http"

	"duckpond/internal/config"
	"duckpond/internal/datasource/httpds"
	"duckpond/internal/engine"
	"duckpond/internal/flow"
	"duckpond/internal/pond"
	"duckpond/internal/storage"
)

// app is the set of long-lived resources a command works with.
type app struct {
	db        *engine.DB
	io        *pond.IOManager
	http      *httpds.Client
	closeSink func()
}

func s3Config(cfg config.Config) engine.S3Config {
	s := cfg.Storage
	return engine.S3Config{
		AccessKeyID:     s.AccessKeyID,
		SecretAccessKey: s.SecretAccessKey,
		SessionToken:    s.SessionToken,
		Endpoint:        s.Endpoint,
		Region:          s.Region,
		UseSSL:          s.UseSSL,
		URLStyle:        s.URLStyle,
	}
}

func engineConfig(cfg config.Config) engine.Config {
	ec := engine.Config{
		Dialect:   cfg.Engine.Dialect,
		DSN:       cfg.Engine.DSN,
		Setup:     cfg.Engine.Setup,
		BatchSize: cfg.Engine.BatchSize,
	}
	// only the duckdb sink has the engine itself talk to object storage
	if cfg.Output.Sink == "duckdb" || cfg.Output.Sink == "" {
		ec.S3 = s3Config(cfg)
	}
	return ec
}

func sinkConfig(cfg config.Config) pond.SinkConfig {
	return pond.SinkConfig{
		Kind: cfg.Output.Sink,
		Dir:  cfg.Output.Dir,
		S3:   s3Config(cfg),
		Warehouse: storage.Config{
			Kind: cfg.Output.Warehouse.Kind,
			DSN:  cfg.Output.Warehouse.DSN,
		},
		BatchSize: cfg.Output.Warehouse.BatchSize,
	}
}

func flowOptions(cfg config.Config) flow.Options {
	opts := flow.Options{
		MaxConcurrency: cfg.Flow.MaxConcurrency,
		RetryDelay:     cfg.Flow.RetryDelayDuration(),
	}
	if cfg.Flow.Retries >= 0 {
		n := cfg.Flow.Retries
		opts.Retries = &n
	}
	return opts
}

func httpClient(h config.HTTP) (*httpds.Client, error) {
	hc := httpds.Config{
		Timeout:    h.TimeoutDuration(),
		MaxRetries: h.MaxRetries,
	}
	if h.UserAgent != "" {
		hc.BaseHeaders = http.Header{"User-Agent": []string{h.UserAgent}}
	}
	if h.CacheSize > 0 {
		cache, err := httpds.NewCache(h.CacheSize)
		if err != nil {
			return nil, err
		}
		hc.Cache = cache
	}
	return httpds.NewClient(hc), nil
}

func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	mode, err := pond.ParseWriteMode(cfg.Output.Mode)
	if err != nil {
		return nil, err
	}
	client, err := httpClient(cfg.HTTP)
	if err != nil {
		return nil, err
	}
	db, err := engine.Open(ctx, engineConfig(cfg))
	if err != nil {
		return nil, err
	}
	sink, closeSink, err := pond.NewSink(ctx, db, sinkConfig(cfg))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("duckpond: sink: %w", err)
	}
	return &app{
		db: db,
		io: &pond.IOManager{
			Bucket: cfg.Output.Bucket,
			Prefix: cfg.Output.Prefix,
			Sink:   sink,
			Mode:   mode,
		},
		http:      client,
		closeSink: closeSink,
	}, nil
}

func (a *app) Close() {
	a.closeSink()
	a.db.Close()
}
