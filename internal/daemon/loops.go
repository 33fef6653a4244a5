package daemon

import (
	"context"
	"time"

	"github.com/mhofwell/claude-dashboard/internal/datastore"
	"github.com/mhofwell/claude-dashboard/internal/domain"
	"github.com/mhofwell/claude-dashboard/internal/statscache"
)

// aggregateLoopCyclesPerMaintenance is the "every 60 iterations (~5 min
// at a 5s period)" maintenance cadence named in §4.8.
const aggregateLoopCyclesPerMaintenance = 60

// watcherLoop runs the C5 sliding-window tick at opts.WatchInterval,
// pushing agent-state writes only on ticks that produced transitions,
// and firing the auto-close latch once after opts.AutoClose of
// continuous idleness (§4.8, §8 "auto-close latching").
func (d *Daemon) watcherLoop(ctx context.Context) {
	ticker := time.NewTicker(d.opts.WatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.watcherTick(ctx)
		}
	}
}

func (d *Daemon) watcherTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("watcher loop tick panicked, continuing", r)
		}
	}()

	tick := d.watcher.Tick(ctx)

	if len(tick.Transitions) > 0 {
		perProject := map[string]datastore.AgentColumns{}
		for slug, summary := range tick.ProjectSummary {
			active := 0
			if summary.Active {
				active = 1
			}
			perProject[slug] = datastore.AgentColumns{ActiveAgents: active, AgentCount: summary.Count}
		}

		facilityCols := datastore.AgentColumns{ActiveAgents: tick.Facility.ActiveCount, AgentCount: tick.Facility.AgentCount}

		if err := d.store.PushAgentState(ctx, perProject, facilityCols, tick.Facility.ActiveProjects); err != nil {
			d.log.Error("pushing agent state failed", err)
		}
		for _, t := range tick.Transitions {
			d.log.Info("agent transition", t.Kind, t.PID, t.Slug)
		}
	}

	if d.watcher.AnyWindowedActive() {
		d.autoCloseMu.Lock()
		d.lastActiveAt = time.Now().UTC()
		d.autoCloseDone = false
		d.autoCloseMu.Unlock()
		return
	}

	d.autoCloseMu.Lock()
	idleFor := time.Since(d.lastActiveAt)
	shouldClose := idleFor >= d.opts.AutoClose && !d.autoCloseDone
	if shouldClose {
		d.autoCloseDone = true
	}
	d.autoCloseMu.Unlock()

	if shouldClose {
		d.log.Info("auto-close latch firing after idle period", idleFor)
		if err := d.store.SetFacilityOpen(ctx, false); err != nil {
			d.log.Error("auto-close flag write failed", err)
		}
	}
}

// aggregateLoop runs at opts.AggregateInterval: poll the tailer, insert
// new events idempotently, refresh aggregate telemetry, and every
// aggregateLoopCyclesPerMaintenance iterations run the heavier
// maintenance pass (§4.8).
func (d *Daemon) aggregateLoop(ctx context.Context) {
	ticker := time.NewTicker(d.opts.AggregateInterval)
	defer ticker.Stop()

	var lastPruneDate string

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.aggregateTick(ctx, &lastPruneDate)
		}
	}
}

func (d *Daemon) aggregateTick(ctx context.Context, lastPruneDate *string) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("aggregate loop tick panicked, continuing", r)
		}
	}()

	newEvents := d.tailer.Poll()
	if len(newEvents) > 0 {
		resolved, _ := d.resolveProjects(ctx, newEvents)
		if len(resolved) > 0 {
			if _, err := d.store.InsertEvents(ctx, resolved); err != nil {
				d.log.Error("inserting polled events failed", err)
			}
			for _, e := range resolved {
				d.caches.addEvent(e.Project, e.Type)
			}
			d.appendEntries(resolved)

			dailyMetrics := dailyMetricsFromEvents(resolved)
			if err := d.store.SyncDailyMetrics(ctx, dailyMetrics); err != nil {
				d.log.Error("syncing per-project daily metrics failed", err)
			}
		}
	}

	rows := d.caches.snapshot()
	if len(rows) > 0 {
		if failed, err := d.store.UpsertProjectTelemetry(ctx, rows); err != nil {
			d.log.Warn("project telemetry upsert had per-row failures", failed, err)
		}
	}

	lifetimeTokens, todayTokens, lifetime := d.caches.facilityTotals()
	if err := d.store.UpdateFacilityAggregates(ctx, lifetimeTokens, todayTokens, lifetime); err != nil {
		d.log.Error("updating facility aggregates failed", err)
	}

	d.aggregateTicks++
	if d.aggregateTicks%aggregateLoopCyclesPerMaintenance == 0 {
		d.runMaintenance(ctx, lastPruneDate)
	}
}

// runMaintenance is the "every 60 iterations" pass of §4.8: refresh the
// slug map (with rename migration), rescan session files to refresh
// today's tokens, sync global and per-project daily metrics, prune
// events if the date rolled over, and prune the in-memory entries
// buffer to a 31-day window.
func (d *Daemon) runMaintenance(ctx context.Context, lastPruneDate *string) {
	d.refreshSlugMap(ctx)

	usage := d.sessions.Scan()
	today := time.Now().UTC().Format("2006-01-02")

	if merged := mergeSessionUsageIntoDailyMetrics(nil, usage); len(merged) > 0 {
		if err := d.store.SyncDailyMetrics(ctx, merged); err != nil {
			d.log.Error("maintenance: syncing per-project daily metrics failed", err)
		}
	}

	for slug, byDate := range usage {
		if byModel, ok := byDate[today]; ok {
			d.caches.replaceToday(slug, domain.TokensByModel(byModel))
		}
	}

	if cache, err := statscache.Load(d.paths.StatsCache); err == nil {
		if err := d.store.SyncDailyMetrics(ctx, cache.FacilityDailyMetrics()); err != nil {
			d.log.Error("maintenance: syncing facility daily metrics failed", err)
		}
	}

	if *lastPruneDate != today {
		*lastPruneDate = today
		cutoff := time.Now().UTC().AddDate(0, 0, -14)
		if err := d.store.PruneEventsOlderThan(ctx, cutoff); err != nil {
			d.log.Error("maintenance: pruning old events failed", err)
		}
	}

	d.pruneEntries()
}
