package main

import (
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"duckpond/internal/flows"
)

func (c *cli) flowsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flows",
		Short: "List the available flows",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			tw := tablewriter.NewWriter(c.stdout)
			tw.SetHeader([]string{"flow", "title", "description"})
			tw.SetAutoFormatHeaders(false)
			tw.SetAutoWrapText(false)
			for _, d := range flows.List() {
				tw.Append([]string{d.Name, d.Title, d.Description})
			}
			tw.Render()
		},
	}
}
