package eventlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "events.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTailer_ReadAllSetsOffsetToEOF(t *testing.T) {
	path := writeLog(t, "10:00 AM│a│main│🟢 start\n10:01 AM│a│main│🔧 tool\n")
	tailer := NewTailer(path)
	entries := tailer.ReadAll()
	assert.Len(t, entries, 2)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), tailer.Offset())
}

func TestTailer_PollReturnsOnlyNewBytes(t *testing.T) {
	path := writeLog(t, "10:00 AM│a│main│🟢 start\n")
	tailer := NewTailer(path)
	tailer.ReadAll()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("10:01 AM│a│main│🔧 tool\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries := tailer.Poll()
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Project)
}

func TestTailer_PollEmptyWhenNoNewBytes(t *testing.T) {
	path := writeLog(t, "10:00 AM│a│main│🟢 start\n")
	tailer := NewTailer(path)
	tailer.ReadAll()
	assert.Empty(t, tailer.Poll())
}

func TestTailer_TruncationResetsOffset(t *testing.T) {
	path := writeLog(t, "10:00 AM│a│main│🟢 start\n10:01 AM│a│main│🔧 tool\n")
	tailer := NewTailer(path)
	tailer.ReadAll()

	require.NoError(t, os.WriteFile(path, []byte("10:02 AM│b│main│🏁 done\n"), 0o644))

	entries := tailer.Poll()
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Project)
}

func TestTailer_FailedReadLeavesOffsetUnchanged(t *testing.T) {
	tailer := NewTailer(filepath.Join(t.TempDir(), "missing.log"))
	assert.Empty(t, tailer.Poll())
	assert.Equal(t, int64(0), tailer.Offset())
}

func TestTailer_OffsetMonotonicAcrossPolls(t *testing.T) {
	path := writeLog(t, "")
	tailer := NewTailer(path)
	tailer.ReadAll()
	prev := tailer.Offset()

	for i := 0; i < 3; i++ {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		_, _ = f.WriteString("10:00 AM│a│main│🔧 tool\n")
		require.NoError(t, f.Close())

		tailer.Poll()
		assert.Greater(t, tailer.Offset(), prev)
		prev = tailer.Offset()
	}
}
