package statscache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mhofwell/claude-dashboard/internal/statscache"
)

func TestLoadMissingFileYieldsEmptyCache(t *testing.T) {
	c, err := statscache.Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Empty(t, c.DailyActivity)
}

func TestFacilityDailyMetricsMergesActivityAndTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats-cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"dailyActivity": [{"date": "2026-08-03", "messageCount": 4, "sessionCount": 2, "toolCallCount": 9}],
		"dailyModelTokens": [{"date": "2026-08-03", "tokensByModel": {"claude-opus": 1000, "claude-haiku": 50}}]
	}`), 0o644))

	c, err := statscache.Load(path)
	require.NoError(t, err)

	metrics := c.FacilityDailyMetrics()
	require.Len(t, metrics, 1)
	m := metrics[0]
	require.Equal(t, "2026-08-03", m.Date)
	require.Equal(t, "", m.Project)
	require.EqualValues(t, 2, m.Sessions)
	require.EqualValues(t, 4, m.Messages)
	require.EqualValues(t, 9, m.ToolCalls)
	require.EqualValues(t, 1000, m.Tokens["claude-opus"])
	require.EqualValues(t, 50, m.Tokens["claude-haiku"])
}

func TestLoadModelStatsSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model-stats")
	require.NoError(t, os.WriteFile(path, []byte(
		"claude-opus 1000 400 100 300 200\n"+
			"garbage line\n"+
			"claude-haiku 50 20 5 15 10\n",
	), 0o644))

	stats, err := statscache.LoadModelStats(path)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	require.Equal(t, "claude-opus", stats[0].Model)
	require.EqualValues(t, 1000, stats[0].Total)
	require.Equal(t, "claude-haiku", stats[1].Model)
}
