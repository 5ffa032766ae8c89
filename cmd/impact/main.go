package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/reillywatson/impact/internal/config"
	"github.com/reillywatson/impact/internal/logging"
)

var (
	// Version information (set by build flags)
	Version = "dev"

	cfgFile string
	verbose bool
	logger  *logrus.Logger
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "impact",
	Short: "Engineering productivity metrics from GitHub activity",
	Long: `impact computes per-developer metrics (throughput, cycle time, review
leverage and friends) from a GitHub dump, and can fetch such a dump live.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			logger = logging.New("info", "text")
			logger.WithError(err).Warn("Failed to load config, using defaults")
			cfg = config.Default()
		}

		logger = logging.New(cfg.Log.Level, cfg.Log.Format)
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .impact/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(metricsCmd)
}
