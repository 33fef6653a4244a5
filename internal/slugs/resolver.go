// Package slugs implements the slug resolver (C6): mapping an on-disk
// project directory to its canonical content slug via an opt-in
// frontmatter file, and detecting slug renames between runs.
//
// Frontmatter parsing is grounded in grovetools-core/util/frontmatter's
// line-oriented "---"-delimited key:value scan — generalized here to
// read content_slug/slug instead of the teacher's id/title/status
// fields. A YAML library was considered and rejected for this
// single-file, two-field read (see DESIGN.md).
package slugs

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// markerDir is the opt-in subdirectory whose presence signals that a
// project directory is tracked at all (§4.6).
const markerDir = ".facility"

// markerFile is the frontmatter file read from inside markerDir.
const markerFile = "project.md"

// Resolver resolves on-disk project directories to canonical slugs,
// caching lookups in a process-wide map (cleared via ClearCache).
type Resolver struct {
	mu    sync.Mutex
	cache map[string]*string // dir -> slug, nil means "no slug"
}

// New returns a Resolver with an empty cache.
func New() *Resolver {
	return &Resolver{cache: map[string]*string{}}
}

// Resolve returns the canonical slug for project directory dir, or ""
// if dir has no opt-in marker subdirectory (not a tracked project).
// Results are cached per absolute directory path.
func (r *Resolver) Resolve(dir string) string {
	r.mu.Lock()
	if slug, ok := r.cache[dir]; ok {
		r.mu.Unlock()
		if slug == nil {
			return ""
		}
		return *slug
	}
	r.mu.Unlock()

	slug := resolveUncached(dir)

	r.mu.Lock()
	if slug == "" {
		r.cache[dir] = nil
	} else {
		s := slug
		r.cache[dir] = &s
	}
	r.mu.Unlock()

	return slug
}

// ClearCache empties the process-wide lookup cache.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = map[string]*string{}
}

func resolveUncached(dir string) string {
	markerPath := filepath.Join(dir, markerDir)
	if info, err := os.Stat(markerPath); err != nil || !info.IsDir() {
		return ""
	}

	fmPath := filepath.Join(markerPath, markerFile)
	f, err := os.Open(fmPath)
	if err != nil {
		return filepath.Base(dir)
	}
	defer f.Close()

	fields := parseFrontmatter(f)
	if slug := fields["content_slug"]; slug != "" {
		return slug
	}
	if slug := fields["slug"]; slug != "" {
		return slug
	}
	return filepath.Base(dir)
}

// parseFrontmatter scans a "---"-delimited YAML-ish frontmatter block
// and returns its key:value pairs, mirroring frontmatter.Parse's
// approach without pulling in a YAML decoder.
func parseFrontmatter(r io.Reader) map[string]string {
	fields := map[string]string{}
	scanner := bufio.NewScanner(r)

	inFrontmatter := false
	lineCount := 0

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if trimmed == "---" {
			if !inFrontmatter {
				inFrontmatter = true
				continue
			}
			break
		}

		if !inFrontmatter {
			lineCount++
			if lineCount > 5 {
				break
			}
			continue
		}

		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		fields[key] = value
	}
	return fields
}

// BuildSlugMap scans every immediate subdirectory of root once and
// returns a directory-name -> slug map, skipping directories with no
// tracked slug.
func BuildSlugMap(r *Resolver, root string) map[string]string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return map[string]string{}
	}

	out := map[string]string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if slug := r.Resolve(dir); slug != "" {
			out[e.Name()] = slug
		}
	}
	return out
}

// SortedDirsLongestFirst returns dir names sorted longest-first, so a
// longer match like "repo-x" is preferred over a prefix match "repo"
// when resolving an encoded session directory (§4.3).
func SortedDirsLongestFirst(dirs []string) []string {
	out := make([]string, len(dirs))
	copy(out, dirs)
	sort.Slice(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}
