package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"duckpond/internal/config"
)

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			issues := config.Validate(c.cfg)
			for _, iss := range issues {
				fmt.Fprintf(c.stdout, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
			}
			if config.HasErrors(issues) {
				return fmt.Errorf("duckpond: configuration is invalid")
			}
			fmt.Fprintln(c.stdout, "configuration is valid")
			return nil
		},
	}
}
