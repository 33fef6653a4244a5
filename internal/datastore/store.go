// Package datastore defines the sync-layer port (C7): the interface the
// daemon and the open/close commands use against the remote relational
// datastore, plus the concrete turso/ adapter.
//
// All writes the port exposes are idempotent (§8 "event idempotence",
// "aggregate idempotence") — callers may retry or replay without
// double-counting, which is what makes gap backfill and cold backfill
// safe to run repeatedly.
package datastore

import (
	"context"
	"time"

	"github.com/mhofwell/claude-dashboard/internal/domain"
)

// AgentColumns is the subset of a project/facility row's columns that
// the watcher loop (and only the watcher loop) is allowed to write.
type AgentColumns struct {
	ActiveAgents int
	AgentCount   int
}

// Store is the sync-layer port consumed by the daemon and by the
// open/close preflight commands.
type Store interface {
	// InsertEvents idempotently upserts events in batches of 500 rows
	// (§4.5) with conflict target (project, event_type, event_text,
	// timestamp). Returns the count actually inserted; a failing batch
	// is counted but does not abort the call.
	InsertEvents(ctx context.Context, events []domain.Event) (inserted int, err error)

	// SyncDailyMetrics blind-upserts daily_metrics rows, splitting into
	// insert vs update after fetching existing ids for the date set, and
	// chunking updates 50-concurrent (§4.5).
	SyncDailyMetrics(ctx context.Context, metrics []domain.DailyMetric) error

	// UpsertProjectTelemetry prefers a single multi-row upsert on
	// conflict key "project"; on failure it falls back to per-row
	// upsert and returns the slugs that could not be persisted.
	UpsertProjectTelemetry(ctx context.Context, rows []domain.ProjectTelemetry) (failedSlugs []string, err error)

	// PushAgentState updates only the agent columns on project_telemetry
	// rows, only the agent columns and active-projects list on the
	// facility row, and last_active on every project in activeSlugs.
	// Writes fan out in parallel; one failed write does not stop the
	// others, and all failures are joined into the returned error, which
	// the caller logs (§4.5).
	PushAgentState(ctx context.Context, perProject map[string]AgentColumns, facility AgentColumns, activeSlugs []string) error

	// GetOrCreateProject inserts a new project row on first sighting of
	// slug, or updates its LastActive/LocalNames on subsequent calls.
	// created is true only when this call performed the insert.
	GetOrCreateProject(ctx context.Context, slug, localName string) (project domain.Project, created bool, err error)

	// UpdateProjectVisibility writes the visibility classification (C8)
	// for slug. Called once per newly observed project, after C8
	// resolves the project's public/private status.
	UpdateProjectVisibility(ctx context.Context, slug string, visibility domain.Visibility) error

	// ReadFacility reads the singleton facility row.
	ReadFacility(ctx context.Context) (domain.FacilityStatus, error)

	// SetFacilityOpen writes the open/closed flag. Per §4.8/§8 ("flag
	// ownership"), callers must be the open/close commands or the
	// daemon's auto-close latch — the aggregate loop never calls this.
	SetFacilityOpen(ctx context.Context, open bool) error

	// RenameSlug rewrites every row in events, daily_metrics, and
	// project_telemetry carrying oldSlug to newSlug (§4.6).
	RenameSlug(ctx context.Context, oldSlug, newSlug string) error

	// PruneEventsOlderThan deletes every event row older than cutoff
	// (§4.5's 14-day retention horizon).
	PruneEventsOlderThan(ctx context.Context, cutoff time.Time) error

	// DeleteProjectDailyMetrics deletes per-project (non-facility-wide)
	// daily_metrics rows for the given slugs, run before a backfill to
	// prevent stale inflated rows from surviving recomputation (§4.5).
	DeleteProjectDailyMetrics(ctx context.Context, slugs []string) error

	// ReadProjectTelemetry reads back project_telemetry rows for slugs,
	// used both for startup cache seeding and for the sync layer's own
	// post-write consistency probe (§4.5).
	ReadProjectTelemetry(ctx context.Context, slugs []string) (map[string]domain.ProjectTelemetry, error)

	// UpdateFacilityAggregates writes only the aggregate columns on the
	// facility row (never the open flag, never the agent columns),
	// matching the aggregate loop's exclusive ownership of these
	// columns (§4.8, §8 "no cross-writer clobbering").
	UpdateFacilityAggregates(ctx context.Context, lifetimeTokens, todayTokens int64, lifetime domain.EventCounters) error

	// VerifyProjectTelemetry reads back the slugs in want and returns
	// those whose persisted lifetime token total disagrees with the
	// caller's expectation — a consistency probe, not an error (§4.5).
	VerifyProjectTelemetry(ctx context.Context, want map[string]int64) ([]string, error)

	Close() error
}
