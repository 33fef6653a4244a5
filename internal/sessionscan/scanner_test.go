package sessionscan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mhofwell/claude-dashboard/internal/slugs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupProject(t *testing.T, orgRoot, name, slug string) {
	t.Helper()
	dir := filepath.Join(orgRoot, name)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".facility"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".facility", "project.md"),
		[]byte("---\ncontent_slug: "+slug+"\n---\n"), 0o644))
}

func writeSessionFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScan_ResolvesEncodedDirAndSumsTokens(t *testing.T) {
	orgRoot := filepath.Join(t.TempDir(), "Users", "me", "projects")
	require.NoError(t, os.MkdirAll(orgRoot, 0o755))
	setupProject(t, orgRoot, "repo-x", "repo-x-slug")

	sessionsRoot := t.TempDir()

	// Build the expected encoded form used by resolveSlug: orgRoot with
	// slashes replaced by dashes, plus "-" plus the project dir name.
	encoded := toEncoded(orgRoot) + "-repo-x"
	sessionDir := filepath.Join(sessionsRoot, encoded)

	writeSessionFile(t, filepath.Join(sessionDir, "session1.jsonl"),
		`{"message":{"model":"claude-opus-4-6","usage":{"input_tokens":10,"output_tokens":5}},"timestamp":"2026-08-03T10:00:00Z","requestId":"req1"}`+"\n")

	resolver := slugs.New()
	scanner := New(sessionsRoot, orgRoot, resolver)
	usage := scanner.Scan()

	require.Contains(t, usage, "repo-x-slug")
	require.Contains(t, usage["repo-x-slug"], "2026-08-03")
	assert.Equal(t, int64(15), usage["repo-x-slug"]["2026-08-03"]["claude-opus-4-6"])
}

func TestScan_DedupsByRequestID(t *testing.T) {
	orgRoot := filepath.Join(t.TempDir(), "Users", "me", "projects")
	require.NoError(t, os.MkdirAll(orgRoot, 0o755))
	setupProject(t, orgRoot, "repo", "repo-slug")

	sessionsRoot := t.TempDir()
	encoded := toEncoded(orgRoot) + "-repo"
	sessionDir := filepath.Join(sessionsRoot, encoded)

	writeSessionFile(t, filepath.Join(sessionDir, "s.jsonl"),
		`{"message":{"model":"m","usage":{"input_tokens":10}},"timestamp":"2026-08-03T10:00:00Z","requestId":"dup"}`+"\n"+
			`{"message":{"model":"m","usage":{"input_tokens":10}},"timestamp":"2026-08-03T10:00:01Z","requestId":"dup"}`+"\n")

	resolver := slugs.New()
	scanner := New(sessionsRoot, orgRoot, resolver)
	usage := scanner.Scan()

	assert.Equal(t, int64(10), usage["repo-slug"]["2026-08-03"]["m"])
}

func TestScan_SubagentFilesCounted(t *testing.T) {
	orgRoot := filepath.Join(t.TempDir(), "Users", "me", "projects")
	require.NoError(t, os.MkdirAll(orgRoot, 0o755))
	setupProject(t, orgRoot, "repo", "repo-slug")

	sessionsRoot := t.TempDir()
	encoded := toEncoded(orgRoot) + "-repo"
	sessionDir := filepath.Join(sessionsRoot, encoded)

	writeSessionFile(t, filepath.Join(sessionDir, "sess1", "subagents", "sub.jsonl"),
		`{"message":{"model":"m","usage":{"output_tokens":7}},"timestamp":"2026-08-03T10:00:00Z"}`+"\n")

	resolver := slugs.New()
	scanner := New(sessionsRoot, orgRoot, resolver)
	usage := scanner.Scan()

	assert.Equal(t, int64(7), usage["repo-slug"]["2026-08-03"]["m"])
}

func TestScan_SkipsUntrackedDir(t *testing.T) {
	orgRoot := filepath.Join(t.TempDir(), "Users", "me", "projects")
	require.NoError(t, os.MkdirAll(orgRoot, 0o755))
	// no .facility marker
	require.NoError(t, os.MkdirAll(filepath.Join(orgRoot, "untracked"), 0o755))

	sessionsRoot := t.TempDir()
	encoded := toEncoded(orgRoot) + "-untracked"
	writeSessionFile(t, filepath.Join(sessionsRoot, encoded, "s.jsonl"),
		`{"message":{"model":"m","usage":{"input_tokens":1}},"timestamp":"2026-08-03T10:00:00Z"}`+"\n")

	resolver := slugs.New()
	scanner := New(sessionsRoot, orgRoot, resolver)
	usage := scanner.Scan()
	assert.Empty(t, usage)
}

func toEncoded(orgRoot string) string {
	return replaceSlashes(trimTrailingSlash(orgRoot))
}

func trimTrailingSlash(p string) string {
	for len(p) > 0 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	return p
}

func replaceSlashes(p string) string {
	out := []byte(p)
	for i, c := range out {
		if c == '/' {
			out[i] = '-'
		}
	}
	return string(out)
}
