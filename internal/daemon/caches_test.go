package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mhofwell/claude-dashboard/internal/domain"
)

func mustParse(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestTelemetryCachesAddEventAndSnapshot(t *testing.T) {
	c := newTelemetryCaches()
	c.addEvent("proj-a", domain.EventSessionStart)
	c.addEvent("proj-a", domain.EventTool)
	c.addLifetimeTokens("proj-a", 100)
	c.replaceToday("proj-a", domain.TokensByModel{"claude-sonnet": 50})

	rows := c.snapshot()
	require.Len(t, rows, 1)
	require.Equal(t, "proj-a", rows[0].Project)
	require.Equal(t, int64(100), rows[0].LifetimeTokens)
	require.Equal(t, int64(50), rows[0].TodayTokens)
	require.EqualValues(t, 1, rows[0].Lifetime.Sessions)
	require.EqualValues(t, 1, rows[0].Lifetime.ToolCalls)
}

func TestTelemetryCachesFacilityTotalsSumsAllSlugs(t *testing.T) {
	c := newTelemetryCaches()
	c.addLifetimeTokens("a", 10)
	c.addLifetimeTokens("b", 20)
	c.replaceToday("a", domain.TokensByModel{"m1": 5})
	c.replaceToday("b", domain.TokensByModel{"m1": 7})
	c.addEvent("a", domain.EventMessage)
	c.addEvent("b", domain.EventMessage)

	lifetimeTokens, todayTokens, lifetime := c.facilityTotals()
	require.Equal(t, int64(30), lifetimeTokens)
	require.Equal(t, int64(12), todayTokens)
	require.EqualValues(t, 2, lifetime.Messages)
}

func TestTelemetryCachesSeedLoadsRowValues(t *testing.T) {
	c := newTelemetryCaches()
	c.seed(map[string]domain.ProjectTelemetry{
		"proj-a": {Project: "proj-a", LifetimeTokens: 500, TodayTokensByModel: domain.TokensByModel{"m": 10}},
	})

	require.Equal(t, int64(500), c.wantLifetimeTokens()["proj-a"])
}

func TestDailyMetricsFromEventsGroupsByDateAndProject(t *testing.T) {
	e1 := domain.Event{Project: "p1", Type: domain.EventMessage, Timestamp: mustParse("2026-08-01T10:00:00Z")}
	e2 := domain.Event{Project: "p1", Type: domain.EventMessage, Timestamp: mustParse("2026-08-01T11:00:00Z")}
	e3 := domain.Event{Project: "p2", Type: domain.EventTool, Timestamp: mustParse("2026-08-02T09:00:00Z")}

	metrics := dailyMetricsFromEvents([]domain.Event{e1, e2, e3})
	require.Len(t, metrics, 2)

	byKey := map[string]domain.DailyMetric{}
	for _, m := range metrics {
		byKey[m.Date+"/"+m.Project] = m
	}
	require.EqualValues(t, 2, byKey["2026-08-01/p1"].Messages)
	require.EqualValues(t, 1, byKey["2026-08-02/p2"].ToolCalls)
}

func TestMergeSessionUsageIntoDailyMetricsCreatesAndMerges(t *testing.T) {
	existing := []domain.DailyMetric{
		{Date: "2026-08-01", Project: "p1", Tokens: domain.TokensByModel{"claude-sonnet": 10}},
	}
	usage := domain.SessionUsage{
		"p1": {"2026-08-01": {"claude-sonnet": 5}},
		"p2": {"2026-08-02": {"claude-opus": 7}},
	}

	merged := mergeSessionUsageIntoDailyMetrics(existing, usage)
	require.Len(t, merged, 2)

	var p1, p2 *domain.DailyMetric
	for i := range merged {
		switch merged[i].Project {
		case "p1":
			p1 = &merged[i]
		case "p2":
			p2 = &merged[i]
		}
	}
	require.NotNil(t, p1)
	require.NotNil(t, p2)
	require.Equal(t, int64(15), p1.Tokens["claude-sonnet"])
	require.Equal(t, int64(7), p2.Tokens["claude-opus"])
}
