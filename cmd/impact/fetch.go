package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/reillywatson/impact/internal/cache"
	"github.com/reillywatson/impact/internal/dump"
	"github.com/reillywatson/impact/internal/github"
)

var (
	fetchUser  string
	fetchRepos []string
	fetchSince string
	fetchUntil string
	fetchOut   string
)

var fetchCmd = &cobra.Command{
	Use:     "fetch",
	Short:   "Fetch live GitHub activity into a dump directory",
	Example: `  impact fetch --user alice --repo acme/api --repo acme/web --since 2026-01-01 --out ./dump`,
	RunE:    runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchUser, "user", "", "login the dump is for")
	fetchCmd.Flags().StringSliceVar(&fetchRepos, "repo", nil, "repository in owner/name form (repeatable)")
	fetchCmd.Flags().StringVar(&fetchSince, "since", "", "window start (defaults to 30 days ago)")
	fetchCmd.Flags().StringVar(&fetchUntil, "until", "", "window end, a bare date covers the whole day (defaults to now)")
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "output directory")
	_ = fetchCmd.MarkFlagRequired("user")
	_ = fetchCmd.MarkFlagRequired("repo")
	_ = fetchCmd.MarkFlagRequired("out")
}

func runFetch(cmd *cobra.Command, args []string) error {
	since := time.Now().AddDate(0, 0, -30)
	if s, err := parseDate("since", fetchSince); err != nil {
		return err
	} else if s != nil {
		since = *s
	}
	until := time.Now()
	if u, err := parseUntil(fetchUntil); err != nil {
		return err
	} else if u != nil {
		until = *u
	}

	if cfg.GitHub.Token == "" {
		logger.Warn("No GitHub token configured, using unauthenticated requests")
	}

	client, err := github.NewClient(cfg.GitHub.Token, github.Options{
		RateLimit:       cfg.GitHub.RateLimit,
		BreakerFailures: cfg.GitHub.BreakerFailures,
	}, logger)
	if err != nil {
		return err
	}

	cacheImpl, err := cache.New(cfg.Cache.Backend, cfg.Cache.Directory)
	if err != nil {
		return fmt.Errorf("error creating cache: %w", err)
	}
	cached := github.NewCachedClient(client, cacheImpl, logger)
	defer cached.Close()

	writer, err := dump.NewWriter(fetchOut)
	if err != nil {
		return err
	}

	manifest, err := github.NewFetcher(cached, writer, cfg.GitHub.Workers, logger).Run(cmd.Context(), github.FetchRequest{
		User:  fetchUser,
		Repos: fetchRepos,
		Since: since,
		Until: until,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote dump for %s (%d repositories) to %s\n", manifest.User, len(manifest.Repositories), writer.Dir())
	return nil
}
