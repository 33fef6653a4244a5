package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mhofwell/claude-dashboard/internal/domain"
	"github.com/mhofwell/claude-dashboard/internal/slugs"
	"github.com/mhofwell/claude-dashboard/internal/statscache"
)

// runColdBackfill implements §4.8 mode 1: build the slug map, read the
// entire event log, register every newly observed project, insert all
// events, sync all daily aggregates from stats-cache, delete stale
// per-project daily rows, scan session files and upsert per-project
// daily aggregates, refresh lifetime counters, update telemetry, verify
// by read-back.
func (d *Daemon) runColdBackfill(ctx context.Context) error {
	runID := uuid.New().String()
	d.refreshSlugMap(ctx)

	events := d.tailer.ReadAll()
	d.log.Info("cold backfill: read events from log", "run", runID, "count", len(events))

	return d.backfillEvents(ctx, events, true)
}

// runNormalStartup implements §4.8 mode 2: build the slug map,
// ReadAll (positions the tailer at EOF), then gap-backfill any entries
// strictly after the facility row's last-update instant if the wall
// clock gap exceeds opts.GapThreshold.
func (d *Daemon) runNormalStartup(ctx context.Context) error {
	d.refreshSlugMap(ctx)

	allEvents := d.tailer.ReadAll()

	facility, err := d.store.ReadFacility(ctx)
	if err != nil {
		d.log.Warn("could not read facility row for gap check, skipping gap backfill", err)
	} else {
		lastUpdate := time.UnixMilli(facility.UpdatedAtUnixMs).UTC()
		gap := time.Since(lastUpdate)
		if gap > d.opts.GapThreshold {
			runID := uuid.New().String()
			var toReplay []domain.Event
			for _, e := range allEvents {
				if e.Timestamp.After(lastUpdate) {
					toReplay = append(toReplay, e)
				}
			}
			d.log.Info("gap backfill: replaying events after last facility update", "run", runID, "count", len(toReplay), "gap", gap)
			if err := d.backfillEvents(ctx, toReplay, false); err != nil {
				return fmt.Errorf("gap backfill: %w", err)
			}
		}
	}

	// Seed in-memory telemetry caches from the datastore's
	// project_telemetry rows (§4.8).
	slugs := make([]string, 0, len(d.slugMap))
	seen := map[string]bool{}
	for _, slug := range d.slugMap {
		if !seen[slug] {
			seen[slug] = true
			slugs = append(slugs, slug)
		}
	}
	if rows, err := d.store.ReadProjectTelemetry(ctx, slugs); err == nil {
		d.caches.seed(rows)
	}

	d.appendEntries(allEvents)
	return nil
}

// refreshSlugMap builds the current on-disk slug map, diffs it against
// the persisted snapshot to detect renames, migrates any renamed slug's
// rows in the datastore, and persists the new snapshot (§4.6).
func (d *Daemon) refreshSlugMap(ctx context.Context) {
	previous := slugs.LoadSnapshot(d.paths.SlugSnapshot)
	next := domain.SlugMap(slugs.BuildSlugMap(d.resolver, d.paths.OrgRoot))

	for _, rename := range previous.Diff(next) {
		d.log.Info("slug rename detected", rename.Dir, rename.OldSlug, rename.NewSlug)
		if err := d.store.RenameSlug(ctx, rename.OldSlug, rename.NewSlug); err != nil {
			d.log.Error("slug rename migration failed", rename.OldSlug, rename.NewSlug, err)
		}
	}

	if err := slugs.SaveSnapshot(d.paths.SlugSnapshot, next); err != nil {
		d.log.Warn("could not persist slug snapshot", err)
	}
	d.slugMap = next
}

// backfillEvents runs the shared insert-events + daily-aggregates +
// telemetry-refresh path used by both cold backfill and gap backfill
// (§4.8's "through the same path as (1) above"). isFullBackfill governs
// whether per-project daily rows are deleted first (only meaningful
// when replaying the complete log) and whether stats-cache-derived
// facility rows are synced (always harmless to re-sync, but only
// necessary on a full run).
func (d *Daemon) backfillEvents(ctx context.Context, rawEvents []domain.Event, isFullBackfill bool) error {
	resolved, touchedSlugs := d.resolveProjects(ctx, rawEvents)

	if len(resolved) == 0 {
		return nil
	}

	if _, err := d.store.InsertEvents(ctx, resolved); err != nil {
		d.log.Error("inserting backfill events failed", err)
	}

	if isFullBackfill {
		if cache, err := statscache.Load(d.paths.StatsCache); err == nil {
			if err := d.store.SyncDailyMetrics(ctx, cache.FacilityDailyMetrics()); err != nil {
				d.log.Error("syncing facility daily metrics from stats-cache failed", err)
			}
		}
		if err := d.store.DeleteProjectDailyMetrics(ctx, touchedSlugs); err != nil {
			d.log.Error("deleting stale per-project daily metrics failed", err)
		}
	}

	perProjectDaily := dailyMetricsFromEvents(resolved)

	usage := d.sessions.Scan()
	perProjectDaily = mergeSessionUsageIntoDailyMetrics(perProjectDaily, usage)

	if err := d.store.SyncDailyMetrics(ctx, perProjectDaily); err != nil {
		d.log.Error("syncing per-project daily metrics failed", err)
	}

	for _, e := range resolved {
		d.caches.addEvent(e.Project, e.Type)
	}
	today := time.Now().UTC().Format("2006-01-02")
	for slug, byDate := range usage {
		if byModel, ok := byDate[today]; ok {
			d.caches.replaceToday(slug, domain.TokensByModel(byModel))
		}
		var slugLifetime int64
		for _, byModel := range byDate {
			for _, n := range byModel {
				slugLifetime += n
			}
		}
		d.caches.addLifetimeTokens(slug, slugLifetime)
	}

	rows := d.caches.snapshot()
	if failed, err := d.store.UpsertProjectTelemetry(ctx, rows); err != nil {
		d.log.Error("project telemetry upsert had failures", failed, err)
	}

	if mismatched, err := d.store.VerifyProjectTelemetry(ctx, d.caches.wantLifetimeTokens()); err == nil && len(mismatched) > 0 {
		d.log.Warn("project telemetry read-back mismatch", mismatched)
	}

	lifetimeTokens, todayTokens, lifetime := d.caches.facilityTotals()
	if err := d.store.UpdateFacilityAggregates(ctx, lifetimeTokens, todayTokens, lifetime); err != nil {
		d.log.Error("updating facility aggregates failed", err)
	}

	return nil
}

// resolveProjects maps each raw event's on-disk directory name to a
// slug via the current slug map, registering newly observed projects
// with the datastore and discarding events whose project has no slug
// (§3: "without a project attribution is discarded", extended here to
// "without a resolvable slug").
func (d *Daemon) resolveProjects(ctx context.Context, raw []domain.Event) ([]domain.Event, []string) {
	resolved := make([]domain.Event, 0, len(raw))
	touched := map[string]bool{}

	for _, e := range raw {
		slug, ok := d.slugMap[e.Project]
		if !ok {
			continue
		}
		if !touched[slug] {
			touched[slug] = true
			_, created, err := d.store.GetOrCreateProject(ctx, slug, e.Project)
			if err != nil {
				d.log.Error("registering project failed", slug, err)
			} else if created {
				vis := d.visibility.Resolve(ctx, slug)
				if err := d.store.UpdateProjectVisibility(ctx, slug, vis); err != nil {
					d.log.Error("setting project visibility failed", slug, err)
				}
			}
		}
		e.Project = slug
		resolved = append(resolved, e)
	}

	slugList := make([]string, 0, len(touched))
	for s := range touched {
		slugList = append(slugList, s)
	}
	return resolved, slugList
}

// dailyMetricsFromEvents aggregates a resolved event slice into
// per-(date, slug) DailyMetric rows using the event-type counter rules
// of §3's EventCounters.Add.
func dailyMetricsFromEvents(events []domain.Event) []domain.DailyMetric {
	type key struct{ date, slug string }
	byKey := map[key]*domain.DailyMetric{}

	for _, e := range events {
		date := e.Timestamp.UTC().Format("2006-01-02")
		k := key{date: date, slug: e.Project}
		m, ok := byKey[k]
		if !ok {
			m = &domain.DailyMetric{Date: date, Project: e.Project, Tokens: domain.TokensByModel{}}
			byKey[k] = m
		}
		m.Add(e.Type)
	}

	out := make([]domain.DailyMetric, 0, len(byKey))
	for _, m := range byKey {
		out = append(out, *m)
	}
	return out
}

// mergeSessionUsageIntoDailyMetrics folds a session-file token scan
// into the matching per-(date, slug) DailyMetric row, creating the row
// if no event touched that date/slug.
func mergeSessionUsageIntoDailyMetrics(metrics []domain.DailyMetric, usage domain.SessionUsage) []domain.DailyMetric {
	index := map[string]int{}
	for i, m := range metrics {
		index[m.Date+"\x00"+m.Project] = i
	}

	for slug, byDate := range usage {
		for date, byModel := range byDate {
			k := date + "\x00" + slug
			if i, ok := index[k]; ok {
				metrics[i].Tokens.Merge(domain.TokensByModel(byModel))
				continue
			}
			m := domain.DailyMetric{Date: date, Project: slug, Tokens: domain.TokensByModel{}}
			m.Tokens.Merge(domain.TokensByModel(byModel))
			index[k] = len(metrics)
			metrics = append(metrics, m)
		}
	}
	return metrics
}
