package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/reillywatson/impact/internal/dump"
	apperrors "github.com/reillywatson/impact/internal/errors"
	"github.com/reillywatson/impact/internal/ledger"
	"github.com/reillywatson/impact/internal/metrics"
	"github.com/reillywatson/impact/internal/report"
)

var (
	reportDump    string
	reportMetrics []string
	reportUser    string
	reportSince   string
	reportUntil   string
	reportFormat  string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Compute metrics for a user from a dump directory",
	Long: `Ingests a dump, builds the activity ledger and runs the requested metrics.
The user and window default to those recorded in the dump manifest.`,
	Example: `  impact report --dump ./dump
  impact report --dump ./dump --metrics cycle_time,review_leverage --since 2026-01-01 --format json`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDump, "dump", "", "dump directory")
	reportCmd.Flags().StringSliceVar(&reportMetrics, "metrics", nil, "metric slugs to run (default: config or all)")
	reportCmd.Flags().StringVar(&reportUser, "user", "", "login to report on (default: manifest user)")
	reportCmd.Flags().StringVar(&reportSince, "since", "", "window start, YYYY-MM-DD or RFC3339 (default: manifest)")
	reportCmd.Flags().StringVar(&reportUntil, "until", "", "window end, YYYY-MM-DD (whole day) or RFC3339 (default: manifest)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "", "output format: text, json or yaml (default: config)")
	_ = reportCmd.MarkFlagRequired("dump")
}

func runReport(cmd *cobra.Command, args []string) error {
	since, err := parseDate("since", reportSince)
	if err != nil {
		return err
	}
	until, err := parseUntil(reportUntil)
	if err != nil {
		return err
	}

	bundle, manifest, err := dump.NewIngester(dump.DefaultRegistry(logger), logger).Ingest(reportDump)
	if err != nil {
		return err
	}

	user := reportUser
	if user == "" {
		user = manifest.User
	}
	if since == nil {
		since = manifest.From
	}
	if until == nil {
		until = manifest.To
	}
	if user == "" {
		return apperrors.NewValidationError("no user given and none in manifest")
	}

	slugs := reportMetrics
	if len(slugs) == 0 {
		slugs = cfg.Report.Metrics
	}
	format := reportFormat
	if format == "" {
		format = cfg.Report.Format
	}

	logger.WithFields(logrus.Fields{
		"user":    user,
		"metrics": len(slugs),
	}).Debug("Running report")

	mc := &metrics.Context{
		Ledger:    ledger.New(bundle),
		UserLogin: user,
		StartDate: since,
		EndDate:   until,
	}
	rep, err := report.NewRunner(metrics.Default(), logger).Run(cmd.Context(), mc, slugs)
	if err != nil {
		return err
	}

	return report.Write(cmd.OutOrStdout(), format, rep)
}
