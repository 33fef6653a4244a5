// Package sessionscan implements the session-file scanner (C3): it walks
// per-session record files under an external per-session root and
// aggregates token counters per project slug/date/model.
//
// JSON decoding follows the teacher's own transcript parser
// (internal/tracker/adapters/transcript/parser.go): a bufio.Scanner with
// an enlarged line buffer and loose decoding into a narrow struct whose
// unknown fields are ignored, adapted here to care only about the usage/token shape (§9 "dynamic
// parsing" note) rather than the teacher's full transcript statistics.
package sessionscan

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mhofwell/claude-dashboard/internal/domain"
	"github.com/mhofwell/claude-dashboard/internal/slugs"
)

// usageRecord is the loosely-decoded shape of one JSONL line of interest
// (§9): only the fields this scanner cares about, with every numeric
// field defaulting to zero when absent.
type usageRecord struct {
	Message struct {
		Model string `json:"model"`
		Usage struct {
			InputTokens              int64 `json:"input_tokens"`
			CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
			CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
			OutputTokens             int64 `json:"output_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"requestId"`
}

func (u usageRecord) tokens() int64 {
	us := u.Message.Usage
	return us.InputTokens + us.CacheCreationInputTokens + us.CacheReadInputTokens + us.OutputTokens
}

// Scanner walks the external per-session root and resolves each
// encoded-cwd subdirectory against the on-disk project tree via a
// slugs.Resolver.
type Scanner struct {
	sessionsRoot string // e.g. ~/.claude/projects
	orgRoot      string // canonical organization root whose children are project dirs
	resolver     *slugs.Resolver

	seen map[string]map[string]bool // slug -> dedup key set, persists across Scan calls
}

// New returns a Scanner rooted at sessionsRoot, resolving encoded
// directory names against projects found under orgRoot.
func New(sessionsRoot, orgRoot string, resolver *slugs.Resolver) *Scanner {
	return &Scanner{
		sessionsRoot: sessionsRoot,
		orgRoot:      orgRoot,
		resolver:     resolver,
		seen:         map[string]map[string]bool{},
	}
}

// Scan walks every subdirectory of sessionsRoot, resolves it to a
// project slug, and returns a nested slug -> date -> model -> token-sum
// map. Files already counted (by dedup key) in a previous Scan call on
// this Scanner are skipped.
func (s *Scanner) Scan() domain.SessionUsage {
	usage := domain.SessionUsage{}

	entries, err := os.ReadDir(s.sessionsRoot)
	if err != nil {
		return usage
	}

	projectDirs := s.onDiskProjectDirs()

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		slug := s.resolveSlug(e.Name(), projectDirs)
		if slug == "" {
			continue
		}
		s.scanSessionDir(filepath.Join(s.sessionsRoot, e.Name()), slug, usage)
	}

	return usage
}

// onDiskProjectDirs lists the canonical root's immediate subdirectories,
// sorted longest-first per §4.3 so "repo-x" is preferred over "repo"
// when both are valid prefixes of an encoded name.
func (s *Scanner) onDiskProjectDirs() []string {
	entries, err := os.ReadDir(s.orgRoot)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return slugs.SortedDirsLongestFirst(names)
}

// resolveSlug implements §4.3's resolution rule: the canonical root
// path, with slashes replaced by dashes, followed by a dash separator,
// must prefix the encoded directory name; the remainder is matched
// against on-disk project directories sorted longest-first.
func (s *Scanner) resolveSlug(encoded string, projectDirs []string) string {
	prefix := strings.ReplaceAll(strings.TrimRight(s.orgRoot, "/"), "/", "-") + "-"
	if !strings.HasPrefix(encoded, prefix) {
		return ""
	}
	remainder := strings.TrimPrefix(encoded, prefix)

	for _, dir := range projectDirs {
		if dir == remainder || strings.HasPrefix(remainder, dir) {
			return s.resolver.Resolve(filepath.Join(s.orgRoot, dir))
		}
	}
	return ""
}

func (s *Scanner) scanSessionDir(dir, slug string, usage domain.SessionUsage) {
	dedup := s.seen[slug]
	if dedup == nil {
		dedup = map[string]bool{}
		s.seen[slug] = dedup
	}

	topLevel, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, e := range topLevel {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") {
			key := e.Name()
			if dedup[key] {
				continue
			}
			dedup[key] = true
			scanFile(filepath.Join(dir, e.Name()), slug, usage)
			continue
		}
		if e.IsDir() {
			s.scanSubagents(dir, e.Name(), slug, dedup, usage)
		}
	}
}

func (s *Scanner) scanSubagents(sessionDir, sessionID, slug string, dedup map[string]bool, usage domain.SessionUsage) {
	subDir := filepath.Join(sessionDir, sessionID, "subagents")
	files, err := os.ReadDir(subDir)
	if err != nil {
		return
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".jsonl") {
			continue
		}
		key := sessionID + "/subagents/" + f.Name()
		if dedup[key] {
			continue
		}
		dedup[key] = true
		scanFile(filepath.Join(subDir, f.Name()), slug, usage)
	}
}

// scanFile parses one *.jsonl file, summing tokens per date/model into
// usage. Lines are filtered by a substring pre-test for "usage" before
// any JSON decoding (§4.3), and requestId values are deduplicated
// per-file to suppress streaming chunks.
func scanFile(path, slug string, usage domain.SessionUsage) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	const maxCapacity = 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	seenRequests := map[string]bool{}

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "usage") {
			continue
		}

		var rec usageRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if rec.Message.Model == "" || rec.Timestamp == "" {
			continue
		}
		if rec.RequestID != "" {
			if seenRequests[rec.RequestID] {
				continue
			}
			seenRequests[rec.RequestID] = true
		}

		tokens := rec.tokens()
		if tokens == 0 {
			continue
		}
		date := rec.Timestamp
		if len(date) > 10 {
			date = date[:10]
		}
		usage.Add(slug, date, rec.Message.Model, tokens)
	}
}

// SortedModels is a small display/test helper returning a usage map's
// model names in stable sorted order.
func SortedModels(byModel map[string]int64) []string {
	out := make([]string, 0, len(byModel))
	for m := range byModel {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
