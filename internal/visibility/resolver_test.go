package visibility

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mhofwell/claude-dashboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnumerator struct {
	repos map[string]bool
	calls int
	err   error
}

func (f *fakeEnumerator) EnumerateRepos(ctx context.Context) (map[string]bool, error) {
	f.calls++
	return f.repos, f.err
}

func TestResolve_PublicWhenNotPrivate(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "cache.json")
	enum := &fakeEnumerator{repos: map[string]bool{"proj-a": false}}
	r := New(cache, enum)

	assert.Equal(t, domain.VisibilityPublic, r.Resolve(context.Background(), "proj-a"))
}

func TestResolve_PrivateWhenIsPrivateTrue(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "cache.json")
	enum := &fakeEnumerator{repos: map[string]bool{"proj-a": true}}
	r := New(cache, enum)

	assert.Equal(t, domain.VisibilityPrivate, r.Resolve(context.Background(), "proj-a"))
}

func TestResolve_PrivateWhenNoRecord(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "cache.json")
	enum := &fakeEnumerator{repos: map[string]bool{}}
	r := New(cache, enum)

	assert.Equal(t, domain.VisibilityPrivate, r.Resolve(context.Background(), "unknown"))
}

func TestResolve_EnumeratesOnlyOnce(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "cache.json")
	enum := &fakeEnumerator{repos: map[string]bool{"a": false, "b": true}}
	r := New(cache, enum)

	r.Resolve(context.Background(), "a")
	r.Resolve(context.Background(), "b")
	r.Resolve(context.Background(), "c")

	assert.Equal(t, 1, enum.calls)
}

func TestResolve_FlushesCacheToDisk(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "cache.json")
	enum := &fakeEnumerator{repos: map[string]bool{"a": false}}
	r := New(cache, enum)
	r.Resolve(context.Background(), "a")

	_, err := os.Stat(cache)
	require.NoError(t, err)

	r2 := New(cache, enum)
	assert.Equal(t, domain.VisibilityPublic, r2.Resolve(context.Background(), "a"))
	assert.Equal(t, 1, enum.calls) // r2 found "a" in the loaded cache, never re-enumerated
}
