// Command daemon runs the exporter daemon (C9): it tails the event log,
// scans session files and running processes, and syncs telemetry to the
// remote datastore until terminated.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mhofwell/claude-dashboard/internal/config"
	"github.com/mhofwell/claude-dashboard/internal/daemon"
	"github.com/mhofwell/claude-dashboard/internal/datastore/turso"
	"github.com/mhofwell/claude-dashboard/internal/logging"
	"github.com/mhofwell/claude-dashboard/internal/visibility"
)

var backfill bool

var rootCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the facility telemetry exporter daemon",
	RunE:  run,
}

func init() {
	rootCmd.Flags().BoolVar(&backfill, "backfill", false, "run a one-shot cold backfill instead of the normal startup/loop sequence")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := logging.New()

	paths := daemon.DefaultPaths()
	dotenv := filepath.Join(filepath.Dir(paths.PIDFile), ".env")
	cfg, err := config.Load(dotenv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := turso.Open(cfg.URL, cfg.Key)
	if err != nil {
		return fmt.Errorf("connecting to datastore: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := turso.Migrate(ctx, db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	store := turso.New(db)

	opts := daemon.DefaultOptions()
	opts.WatchInterval = cfg.WatchLogInterval
	opts.AggregateInterval = cfg.WatchAggregateInterval
	opts.AutoClose = cfg.WatchAutoClose
	opts.GapThreshold = cfg.WatchGapThreshold

	var enumer visibility.RepoEnumerator
	if cfg.GitHubOrg != "" {
		enumer = visibility.NewGitHubEnumerator(cfg.GitHubOrg, cfg.GitHubToken)
	}

	d := daemon.New(opts, paths, log, store, enumer)

	log.Info("daemon starting", "backfill", backfill)
	if err := d.Run(ctx, backfill); err != nil {
		return fmt.Errorf("daemon run: %w", err)
	}
	log.Info("daemon exiting cleanly")
	return nil
}
