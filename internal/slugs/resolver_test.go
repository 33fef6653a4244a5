package slugs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeProject(t *testing.T, root, name, frontmatter string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, markerDir), 0o755))
	if frontmatter != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, markerDir, markerFile), []byte(frontmatter), 0o644))
	}
	return dir
}

func TestResolve_NoMarkerDirYieldsEmptySlug(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "untracked")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	r := New()
	assert.Equal(t, "", r.Resolve(dir))
}

func TestResolve_ContentSlugWins(t *testing.T) {
	root := t.TempDir()
	dir := makeProject(t, root, "proj", "---\ncontent_slug: my-slug\nslug: other\n---\n")

	r := New()
	assert.Equal(t, "my-slug", r.Resolve(dir))
}

func TestResolve_SlugFallback(t *testing.T) {
	root := t.TempDir()
	dir := makeProject(t, root, "proj", "---\nslug: other-slug\n---\n")

	r := New()
	assert.Equal(t, "other-slug", r.Resolve(dir))
}

func TestResolve_NoFrontmatterFieldsFallsBackToBasename(t *testing.T) {
	root := t.TempDir()
	dir := makeProject(t, root, "my-project", "---\ntitle: hi\n---\n")

	r := New()
	assert.Equal(t, "my-project", r.Resolve(dir))
}

func TestResolve_CachesResult(t *testing.T) {
	root := t.TempDir()
	dir := makeProject(t, root, "proj", "---\ncontent_slug: s1\n---\n")

	r := New()
	assert.Equal(t, "s1", r.Resolve(dir))

	// Mutate frontmatter after first resolve; cached value should stick.
	require.NoError(t, os.WriteFile(filepath.Join(dir, markerDir, markerFile), []byte("---\ncontent_slug: s2\n---\n"), 0o644))
	assert.Equal(t, "s1", r.Resolve(dir))

	r.ClearCache()
	assert.Equal(t, "s2", r.Resolve(dir))
}

func TestSortedDirsLongestFirst(t *testing.T) {
	got := SortedDirsLongestFirst([]string{"repo", "repo-x", "a"})
	assert.Equal(t, []string{"repo-x", "repo", "a"}, got)
}

func TestBuildSlugMap(t *testing.T) {
	root := t.TempDir()
	makeProject(t, root, "tracked", "---\ncontent_slug: tracked-slug\n---\n")
	untracked := filepath.Join(root, "untracked")
	require.NoError(t, os.MkdirAll(untracked, 0o755))

	r := New()
	m := BuildSlugMap(r, root)
	assert.Equal(t, map[string]string{"tracked": "tracked-slug"}, m)
}
