package turso_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/stretchr/testify/require"

	"github.com/mhofwell/claude-dashboard/internal/datastore/turso"
	"github.com/mhofwell/claude-dashboard/internal/domain"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", "file::memory:?cache=shared")
	require.NoError(t, err)

	require.NoError(t, turso.Migrate(context.Background(), db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInsertEventsIdempotent(t *testing.T) {
	db := testDB(t)
	store := turso.New(db)
	ctx := context.Background()

	events := []domain.Event{
		{Timestamp: time.Unix(1000, 0), Project: "A", Type: domain.EventSessionStart, Text: "start"},
		{Timestamp: time.Unix(1010, 0), Project: "A", Type: domain.EventTool, Text: "tool"},
	}

	n, err := store.InsertEvents(ctx, events)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// Re-inserting the same set must not duplicate rows (§8 event idempotence).
	n, err = store.InsertEvents(ctx, events)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&count))
	require.Equal(t, 2, count)
}

func TestInsertEventsPartitionIndependence(t *testing.T) {
	db1 := testDB(t)
	db2 := testDB(t)
	ctx := context.Background()

	events := []domain.Event{
		{Timestamp: time.Unix(1000, 0), Project: "A", Type: domain.EventSessionStart, Text: "start"},
		{Timestamp: time.Unix(1010, 0), Project: "A", Type: domain.EventTool, Text: "tool"},
		{Timestamp: time.Unix(1020, 0), Project: "B", Type: domain.EventResponseFinish, Text: "done"},
	}

	storeAll := turso.New(db1)
	_, err := storeAll.InsertEvents(ctx, events)
	require.NoError(t, err)

	storeSplit := turso.New(db2)
	_, err = storeSplit.InsertEvents(ctx, events[:1])
	require.NoError(t, err)
	_, err = storeSplit.InsertEvents(ctx, events[1:])
	require.NoError(t, err)

	var countAll, countSplit int
	require.NoError(t, db1.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&countAll))
	require.NoError(t, db2.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&countSplit))
	require.Equal(t, countAll, countSplit)
}

func TestSyncDailyMetricsInsertThenUpdate(t *testing.T) {
	db := testDB(t)
	store := turso.New(db)
	ctx := context.Background()

	m := domain.DailyMetric{
		Date:    "2026-08-03",
		Project: "A",
		EventCounters: domain.EventCounters{Sessions: 1, ToolCalls: 2},
		Tokens:  domain.TokensByModel{"claude": 100},
	}
	require.NoError(t, store.SyncDailyMetrics(ctx, []domain.DailyMetric{m}))

	m.Sessions = 5
	m.Tokens["claude"] = 500
	require.NoError(t, store.SyncDailyMetrics(ctx, []domain.DailyMetric{m}))

	var sessions int64
	var tokensJSON string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT sessions, tokens FROM daily_metrics WHERE date = ? AND project = ?", "2026-08-03", "A").
		Scan(&sessions, &tokensJSON))
	require.Equal(t, int64(5), sessions)

	var rowCount int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM daily_metrics").Scan(&rowCount))
	require.Equal(t, 1, rowCount, "blind upsert must not duplicate the (date, project) row")
}

func TestSyncDailyMetricsFacilityNullSentinel(t *testing.T) {
	db := testDB(t)
	store := turso.New(db)
	ctx := context.Background()

	facilityWide := domain.DailyMetric{Date: "2026-08-03", Project: "", EventCounters: domain.EventCounters{Messages: 3}}
	perProject := domain.DailyMetric{Date: "2026-08-03", Project: "A", EventCounters: domain.EventCounters{Messages: 1}}

	require.NoError(t, store.SyncDailyMetrics(ctx, []domain.DailyMetric{facilityWide, perProject}))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM daily_metrics WHERE date = ?", "2026-08-03").Scan(&count))
	require.Equal(t, 2, count, "facility-wide row (project='') and per-project row must coexist")
}

func TestGetOrCreateProjectAppendsLocalNames(t *testing.T) {
	db := testDB(t)
	store := turso.New(db)
	ctx := context.Background()

	p, created, err := store.GetOrCreateProject(ctx, "slug-a", "dir-a")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, []string{"dir-a"}, p.LocalNames)

	p, created, err = store.GetOrCreateProject(ctx, "slug-a", "dir-a-renamed")
	require.NoError(t, err)
	require.False(t, created)
	require.ElementsMatch(t, []string{"dir-a", "dir-a-renamed"}, p.LocalNames)
}

func TestUpdateProjectVisibility(t *testing.T) {
	db := testDB(t)
	store := turso.New(db)
	ctx := context.Background()

	_, created, err := store.GetOrCreateProject(ctx, "slug-a", "dir-a")
	require.NoError(t, err)
	require.True(t, created)

	require.NoError(t, store.UpdateProjectVisibility(ctx, "slug-a", domain.VisibilityPublic))

	_, _, err = store.GetOrCreateProject(ctx, "slug-a", "dir-a")
	require.NoError(t, err)

	var visibility string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT visibility FROM projects WHERE content_slug = ?", "slug-a").Scan(&visibility))
	require.Equal(t, string(domain.VisibilityPublic), visibility)
}

func TestRenameSlugClosure(t *testing.T) {
	db := testDB(t)
	store := turso.New(db)
	ctx := context.Background()

	_, err := store.InsertEvents(ctx, []domain.Event{
		{Timestamp: time.Unix(1000, 0), Project: "slug-old", Type: domain.EventTool, Text: "t"},
	})
	require.NoError(t, err)
	require.NoError(t, store.SyncDailyMetrics(ctx, []domain.DailyMetric{
		{Date: "2026-08-03", Project: "slug-old", EventCounters: domain.EventCounters{Messages: 1}},
	}))
	_, err = store.UpsertProjectTelemetry(ctx, []domain.ProjectTelemetry{{Project: "slug-old", LifetimeTokens: 10}})
	require.NoError(t, err)

	require.NoError(t, store.RenameSlug(ctx, "slug-old", "slug-new"))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE project = ?", "slug-old").Scan(&count))
	require.Equal(t, 0, count)
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM daily_metrics WHERE project = ?", "slug-old").Scan(&count))
	require.Equal(t, 0, count)
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM project_telemetry WHERE project = ?", "slug-old").Scan(&count))
	require.Equal(t, 0, count)

	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE project = ?", "slug-new").Scan(&count))
	require.Equal(t, 1, count)
}

func TestFacilityOpenFlagRoundTrip(t *testing.T) {
	db := testDB(t)
	store := turso.New(db)
	ctx := context.Background()

	f, err := store.ReadFacility(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.FacilityDormant, f.Status)

	require.NoError(t, store.SetFacilityOpen(ctx, true))
	f, err = store.ReadFacility(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.FacilityActive, f.Status)
}

func TestPruneEventsOlderThan(t *testing.T) {
	db := testDB(t)
	store := turso.New(db)
	ctx := context.Background()

	old := time.Now().UTC().Add(-30 * 24 * time.Hour)
	recent := time.Now().UTC().Add(-1 * time.Hour)

	_, err := store.InsertEvents(ctx, []domain.Event{
		{Timestamp: old, Project: "A", Type: domain.EventTool, Text: "old"},
		{Timestamp: recent, Project: "A", Type: domain.EventTool, Text: "new"},
	})
	require.NoError(t, err)

	require.NoError(t, store.PruneEventsOlderThan(ctx, time.Now().UTC().Add(-14*24*time.Hour)))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&count))
	require.Equal(t, 1, count)
}

func TestDeleteProjectDailyMetricsSparesFacilityWide(t *testing.T) {
	db := testDB(t)
	store := turso.New(db)
	ctx := context.Background()

	require.NoError(t, store.SyncDailyMetrics(ctx, []domain.DailyMetric{
		{Date: "2026-08-03", Project: "A", EventCounters: domain.EventCounters{Messages: 1}},
		{Date: "2026-08-03", Project: "", EventCounters: domain.EventCounters{Messages: 9}},
	}))

	require.NoError(t, store.DeleteProjectDailyMetrics(ctx, []string{"A"}))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM daily_metrics WHERE project = ?", "A").Scan(&count))
	require.Equal(t, 0, count)
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM daily_metrics WHERE project = ''").Scan(&count))
	require.Equal(t, 1, count)
}
