package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"duckpond/internal/flows"
)

func (c *cli) runCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "run <flow>",
		Short: "Run a flow and print its summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runFlow(cmd.Context(), args[0], limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "rows to print per staged query; 0 prints all")
	return cmd
}

func (c *cli) runFlow(ctx context.Context, name string, limit int) error {
	if _, ok := flows.Lookup(name); !ok {
		return fmt.Errorf("duckpond: unknown flow %q (see duckpond flows)", name)
	}
	if err := c.checkConfig(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	flush := setupMetrics(c.cfg.Metrics)
	defer flush()

	a, err := openApp(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	env := &flows.Env{
		DB:         a.db,
		IO:         a.io,
		HTTP:       a.http,
		Options:    c.cfg.FlowOptions(name),
		Token:      c.cfg.HTTP.Token,
		Out:        c.stdout,
		PrintLimit: limit,
	}
	log.WithFields(log.Fields{
		"flow":   name,
		"engine": a.db.Dialect(),
		"sink":   a.io.Sink.Name(),
		"bucket": a.io.Bucket,
		"prefix": a.io.Prefix,
	}).Info("duckpond: running flow")

	sum, err := flows.Run(ctx, name, env, flowOptions(c.cfg))
	sum.Render(c.stdout)
	return err
}
