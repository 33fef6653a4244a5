package eventlog

import (
	"testing"
	"time"

	"github.com/mhofwell/claude-dashboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FourFieldLine(t *testing.T) {
	ev, ok := Parse("10:00 AM│a│main│🟢 Session started [claude-opus-4-6]")
	require.True(t, ok)
	assert.Equal(t, "a", ev.Project)
	assert.Equal(t, "main", ev.Branch)
	assert.Equal(t, domain.EventSessionStart, ev.Type)
}

func TestParse_BranchDashNormalizedToEmpty(t *testing.T) {
	ev, ok := Parse("10:00 AM│a│-│🔧 Tool use")
	require.True(t, ok)
	assert.Equal(t, "", ev.Branch)
}

func TestParse_TwoFieldLineHasEmptyProjectAndIsDiscarded(t *testing.T) {
	_, ok := Parse("10:00 AM│🔧 Tool use")
	assert.False(t, ok)
}

func TestParse_NoProjectDiscarded(t *testing.T) {
	_, ok := Parse("just one field")
	assert.False(t, ok)
}

func TestParse_UnknownMarkerYieldsUnknown(t *testing.T) {
	ev, ok := Parse("10:00 AM│a│main│some text with no glyph")
	require.True(t, ok)
	assert.Equal(t, domain.EventUnknown, ev.Type)
}

func TestParse_StripsANSI(t *testing.T) {
	ev, ok := Parse("\x1b[1m10:00 AM\x1b[0m│a│main│🔧 Tool use")
	require.True(t, ok)
	assert.Equal(t, "a", ev.Project)
}

func TestParseTimestamp_DateForm(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	ts, ok := ParseTimestamp("03/15 10:30 AM", now)
	require.True(t, ok)
	assert.Equal(t, 2026, ts.Year())
	assert.Equal(t, time.March, ts.Month())
	assert.Equal(t, 15, ts.Day())
	assert.Equal(t, 10, ts.Hour())
}

func TestParseTimestamp_NoDateDefaultsToday(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	ts, ok := ParseTimestamp("10:30 AM", now)
	require.True(t, ok)
	assert.Equal(t, now.Year(), ts.Year())
	assert.Equal(t, now.Month(), ts.Month())
	assert.Equal(t, now.Day(), ts.Day())
}

func TestParseTimestamp_StripsTimezoneAbbreviation(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	ts, ok := ParseTimestamp("10:30 AM PST", now)
	require.True(t, ok)
	assert.Equal(t, 10, ts.Hour())
}

func TestParseTimestamp_Empty(t *testing.T) {
	_, ok := ParseTimestamp("", time.Now())
	assert.False(t, ok)
}

func TestParse_WithSeconds(t *testing.T) {
	ev, ok := Parse("03/15 10:30:45 AM│a│main│🏁 Done")
	require.True(t, ok)
	assert.Equal(t, 45, ev.Timestamp.Second())
}
