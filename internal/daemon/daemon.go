// Package daemon implements the exporter daemon (C9): process identity,
// startup-mode dispatch (cold backfill vs normal-with-gap-backfill), and
// the two concurrent polling loops described in §4.8.
//
// Process identity and signal handling are grounded in
// deeklead-horde/internal/daemon/daemon.go's Run (flock-backed PID file,
// SIGINT/SIGTERM -> cancel -> drain -> remove PID file -> exit); the
// two-loop split and its column-ownership rules are original to this
// spec (§4.8, §5, §9).
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mhofwell/claude-dashboard/internal/datastore"
	"github.com/mhofwell/claude-dashboard/internal/domain"
	"github.com/mhofwell/claude-dashboard/internal/eventlog"
	"github.com/mhofwell/claude-dashboard/internal/lock"
	"github.com/mhofwell/claude-dashboard/internal/logging"
	"github.com/mhofwell/claude-dashboard/internal/procscan"
	"github.com/mhofwell/claude-dashboard/internal/sessionscan"
	"github.com/mhofwell/claude-dashboard/internal/slugs"
	"github.com/mhofwell/claude-dashboard/internal/visibility"
	"github.com/mhofwell/claude-dashboard/internal/watcher"
)

// Options configures a Daemon's cycle intervals (§4.8, §10).
type Options struct {
	WatchInterval     time.Duration // watcher loop period, default 250ms
	AggregateInterval time.Duration // aggregate loop period, default 5s
	AutoClose         time.Duration // idle duration before auto-close, default 2h
	GapThreshold      time.Duration // startup gap-backfill trigger, default 120s
}

// DefaultOptions returns the spec's default cycle intervals (§4.8).
func DefaultOptions() Options {
	return Options{
		WatchInterval:     250 * time.Millisecond,
		AggregateInterval: 5 * time.Second,
		AutoClose:         2 * time.Hour,
		GapThreshold:      120 * time.Second,
	}
}

// Daemon orchestrates C1-C8 via the watcher and aggregate loops.
type Daemon struct {
	opts   Options
	paths  Paths
	log    logging.Logger
	store  datastore.Store

	resolver   *slugs.Resolver
	tailer     *eventlog.Tailer
	sessions   *sessionscan.Scanner
	watcher    *watcher.Watcher
	visibility *visibility.Resolver

	caches *telemetryCaches

	entriesMu sync.Mutex
	entries   []domain.Event

	slugMap domain.SlugMap

	autoCloseDone bool
	autoCloseMu   sync.Mutex
	lastActiveAt  time.Time

	aggregateTicks int

	lockInstance *lock.Instance
}

// New constructs a Daemon. enumer may be nil, in which case every
// project resolves conservatively private without any remote lookup
// (§4.7). Callers must call Run to start the loops.
func New(opts Options, paths Paths, log logging.Logger, store datastore.Store, enumer visibility.RepoEnumerator) *Daemon {
	resolver := slugs.New()
	scanner := procscan.New()

	if enumer == nil {
		enumer = noopEnumerator{}
	}

	return &Daemon{
		opts:         opts,
		paths:        paths,
		log:          log,
		store:        store,
		resolver:     resolver,
		tailer:       eventlog.NewTailer(paths.EventLog),
		sessions:     sessionscan.New(paths.SessionsRoot, paths.OrgRoot, resolver),
		watcher:      watcher.New(scanner, resolver, paths.OrgRoot),
		visibility:   visibility.New(paths.VisibilityCache, enumer),
		caches:       newTelemetryCaches(),
		lastActiveAt: time.Now().UTC(),
	}
}

// noopEnumerator backs the visibility resolver when no GitHub org is
// configured: every project answers conservatively private (§4.7).
type noopEnumerator struct{}

func (noopEnumerator) EnumerateRepos(ctx context.Context) (map[string]bool, error) {
	return map[string]bool{}, nil
}

// Run acquires the single-instance lock, performs startup (backfill or
// normal-with-gap-backfill), then runs the two loops until ctx is
// canceled or a termination signal arrives (§4.8, §5).
func (d *Daemon) Run(ctx context.Context, backfill bool) error {
	inst, err := lock.Acquire(d.paths.PIDFile)
	if err != nil {
		return fmt.Errorf("acquiring single-instance lock: %w", err)
	}
	d.lockInstance = inst
	defer d.lockInstance.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			d.log.Info("received signal, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if backfill {
		if err := d.runColdBackfill(ctx); err != nil {
			return fmt.Errorf("cold backfill: %w", err)
		}
		return nil
	}

	if err := d.runNormalStartup(ctx); err != nil {
		return fmt.Errorf("daemon startup: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); d.watcherLoop(ctx) }()
	go func() { defer wg.Done(); d.aggregateLoop(ctx) }()
	wg.Wait()

	return nil
}

// pruneEntries keeps the in-memory event buffer within a 31-day window
// (§4.8, §5 backpressure).
func (d *Daemon) pruneEntries() {
	d.entriesMu.Lock()
	defer d.entriesMu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -31)
	kept := d.entries[:0]
	for _, e := range d.entries {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	d.entries = kept
}

func (d *Daemon) appendEntries(events []domain.Event) {
	d.entriesMu.Lock()
	defer d.entriesMu.Unlock()
	d.entries = append(d.entries, events...)
}
