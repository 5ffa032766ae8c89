package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/reillywatson/impact/internal/metrics"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "List available metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := metrics.Default()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, slug := range registry.Slugs() {
			m, _ := registry.Lookup(slug)
			fmt.Fprintf(w, "%s\t%s\n", slug, m.Name())
		}
		return w.Flush()
	},
}
