// Package visibility implements the visibility resolver (C8): a
// persistent (name -> public|private) disk cache backed by a one-shot
// remote repository enumeration.
//
// Original to this spec (§4.7's ADDED notes); the persistent JSON cache
// follows the same read-modify-flush idiom as the slug-mapping snapshot
// (slugs.LoadSnapshot/SaveSnapshot) and the daemon's own project
// telemetry caches.
package visibility

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/mhofwell/claude-dashboard/internal/domain"
)

// RepoEnumerator is a one-shot remote lookup of repository name ->
// is-private. Implementations typically hit a source-control API once
// per process and cache the result themselves.
type RepoEnumerator interface {
	EnumerateRepos(ctx context.Context) (map[string]bool, error)
}

// Resolver answers public/private visibility for a project name,
// conservatively defaulting to private when no remote record exists.
type Resolver struct {
	cachePath string
	enumer    RepoEnumerator

	mu       sync.Mutex
	cache    map[string]domain.Visibility
	fetched  bool
	remote   map[string]bool // name -> isPrivate, populated on first unknown name
}

// New returns a Resolver backed by the JSON cache at cachePath.
func New(cachePath string, enumer RepoEnumerator) *Resolver {
	r := &Resolver{cachePath: cachePath, enumer: enumer, cache: map[string]domain.Visibility{}}
	r.load()
	return r
}

func (r *Resolver) load() {
	data, err := os.ReadFile(r.cachePath)
	if err != nil {
		return
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return
	}
	for k, v := range raw {
		r.cache[k] = domain.Visibility(v)
	}
}

func (r *Resolver) flush() {
	raw := make(map[string]string, len(r.cache))
	for k, v := range r.cache {
		raw[k] = string(v)
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(r.cachePath, data, 0o644)
}

// Resolve returns name's cached visibility, consulting the one-shot
// remote enumeration on first unknown name. Answers public only when a
// remote record exists and is-private is false; every other case
// (missing record, enumeration failure) conservatively defaults private.
func (r *Resolver) Resolve(ctx context.Context, name string) domain.Visibility {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache[name]; ok {
		return v
	}

	if !r.fetched {
		r.fetched = true
		if remote, err := r.enumer.EnumerateRepos(ctx); err == nil {
			r.remote = remote
		}
	}

	v := domain.VisibilityPrivate
	if isPrivate, ok := r.remote[name]; ok && !isPrivate {
		v = domain.VisibilityPublic
	}

	r.cache[name] = v
	r.flush()
	return v
}
