package main

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"duckpond/internal/config"
)

// cli holds the state shared by all subcommands.
type cli struct {
	stdout io.Writer

	configFile string
	logFile    string
	logLevel   string
	logWriter  io.WriteCloser

	// flag name -> config field, applied when the flag is set
	overrides map[string]*string
	engine    string
	dsn       string
	sink      string
	bucket    string
	prefix    string
	mode      string
	dir       string

	cfg config.Config
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, logLevel: "info"}

	root := &cobra.Command{
		Use:               "duckpond",
		Short:             "Run SQL data flows over an embedded database",
		Long:              "duckpond stages CSV, HTML and JSON sources as tables in an embedded SQL engine, composes queries from nested bindings and hands results off to object storage.",
		SilenceUsage:      true,
		PersistentPreRunE: c.preRun,
		PersistentPostRun: c.postRun,
	}
	root.SetOut(stdout)

	fs := root.PersistentFlags()
	fs.StringVar(&c.configFile, "config", "", "`file` to load config from (JSON or HCL)")
	fs.StringVar(&c.logFile, "log-file", "", "`file` to append logs to; stderr when empty")
	fs.StringVar(&c.logLevel, "log-level", c.logLevel,
		"log level: trace, debug, info, warn, error, fatal, or panic")

	c.overrides = map[string]*string{}
	c.override(fs, &c.engine, "engine", "engine `dialect`: duckdb or sqlite")
	c.override(fs, &c.dsn, "dsn", "engine database `path`; in-memory when empty")
	c.override(fs, &c.sink, "sink", "output `sink`: duckdb, s3, local or warehouse")
	c.override(fs, &c.bucket, "bucket", "output `bucket`")
	c.override(fs, &c.prefix, "prefix", "output environment `prefix`")
	c.override(fs, &c.mode, "mode", "write `mode`: overwrite or create")
	c.override(fs, &c.dir, "output-dir", "root `directory` of the local sink")

	root.AddCommand(c.runCmd(), c.queryCmd(), c.validateCmd(), c.flowsCmd())
	return root
}

func (c *cli) override(fs *pflag.FlagSet, dst *string, name, usage string) {
	fs.StringVar(dst, name, "", usage)
	c.overrides[name] = dst
}

func (c *cli) preRun(cmd *cobra.Command, _ []string) error {
	if c.logFile != "" {
		w, err := os.OpenFile(c.logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
		if err != nil {
			return fmt.Errorf("duckpond: %w", err)
		}
		c.logWriter = w
		log.SetOutput(w)
	}
	ll, err := log.ParseLevel(c.logLevel)
	if err != nil {
		return fmt.Errorf("duckpond: %w", err)
	}
	log.SetLevel(ll)
	log.SetFormatter(&log.TextFormatter{DisableLevelTruncation: true})

	cfg, err := config.Load(c.configFile)
	if err != nil {
		return fmt.Errorf("duckpond: %w", err)
	}
	targets := map[string]*string{
		"engine":     &cfg.Engine.Dialect,
		"dsn":        &cfg.Engine.DSN,
		"sink":       &cfg.Output.Sink,
		"bucket":     &cfg.Output.Bucket,
		"prefix":     &cfg.Output.Prefix,
		"mode":       &cfg.Output.Mode,
		"output-dir": &cfg.Output.Dir,
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if src, ok := c.overrides[f.Name]; ok {
			*targets[f.Name] = *src
		}
	})
	c.cfg = cfg
	return nil
}

func (c *cli) postRun(*cobra.Command, []string) {
	if c.logWriter != nil {
		c.logWriter.Close()
		log.SetOutput(os.Stderr)
	}
}

// checkConfig validates c.cfg, logging warnings, and fails on errors.
func (c *cli) checkConfig() error {
	issues := config.Validate(c.cfg)
	for _, iss := range issues {
		if iss.Severity == config.SeverityError {
			log.WithField("path", iss.Path).Error(iss.Message)
		} else {
			log.WithField("path", iss.Path).Warn(iss.Message)
		}
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("duckpond: invalid configuration")
	}
	return nil
}
