// Package statscache reads the two facility-wide external data sources
// named in §6: stats-cache.json (daily activity + daily model tokens,
// written by the interactive terminal dashboard this system shares
// source files with) and model-stats (a flat per-model token total
// file). Both are read-only to this system (§3 ownership).
package statscache

import (
	"bufio"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/mhofwell/claude-dashboard/internal/domain"
)

// DailyActivity is one entry of stats-cache.json's dailyActivity[].
type DailyActivity struct {
	Date          string `json:"date"`
	MessageCount  int64  `json:"messageCount"`
	SessionCount  int64  `json:"sessionCount"`
	ToolCallCount int64  `json:"toolCallCount"`
}

// DailyModelTokens is one entry of stats-cache.json's dailyModelTokens[].
type DailyModelTokens struct {
	Date          string           `json:"date"`
	TokensByModel map[string]int64 `json:"tokensByModel"`
}

// ModelUsage is one model's lifetime token breakdown.
type ModelUsage struct {
	Input          int64 `json:"input"`
	Output         int64 `json:"output"`
	CacheRead      int64 `json:"cacheRead"`
	CacheCreation  int64 `json:"cacheCreation"`
}

// Cache is the loosely-decoded shape of stats-cache.json (§6, §9
// "dynamic parsing" note): only the fields this system consumes are
// typed; everything else is ignored by encoding/json's default
// unknown-field tolerance.
type Cache struct {
	DailyActivity    []DailyActivity             `json:"dailyActivity"`
	DailyModelTokens []DailyModelTokens          `json:"dailyModelTokens"`
	ModelUsage       map[string]ModelUsage       `json:"modelUsage"`
	TotalSessions    int64                       `json:"totalSessions"`
	TotalMessages    int64                       `json:"totalMessages"`
	FirstSessionDate string                      `json:"firstSessionDate"`
	HourCounts       map[string]int64            `json:"hourCounts"`
}

// Load reads and decodes stats-cache.json at path. A missing file
// yields an empty Cache rather than an error, matching the rest of this
// system's "absent external file means no data yet" convention.
func Load(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Cache{}, nil
		}
		return nil, err
	}
	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// FacilityDailyMetrics merges dailyActivity and dailyModelTokens by date
// into the facility-wide (project == "") daily_metrics rows the
// aggregate loop syncs (§4.5, §4.8). Event-derived counters are never
// used for the facility-wide row — this cache is the authoritative
// source for facility-wide daily counts.
func (c *Cache) FacilityDailyMetrics() []domain.DailyMetric {
	byDate := map[string]*domain.DailyMetric{}

	get := func(date string) *domain.DailyMetric {
		m, ok := byDate[date]
		if !ok {
			m = &domain.DailyMetric{Date: date, Project: "", Tokens: domain.TokensByModel{}}
			byDate[date] = m
		}
		return m
	}

	for _, a := range c.DailyActivity {
		m := get(a.Date)
		m.Sessions = a.SessionCount
		m.Messages = a.MessageCount
		m.ToolCalls = a.ToolCallCount
	}
	for _, t := range c.DailyModelTokens {
		m := get(t.Date)
		for model, n := range t.TokensByModel {
			m.Tokens[model] += n
		}
	}

	out := make([]domain.DailyMetric, 0, len(byDate))
	for _, m := range byDate {
		out = append(out, *m)
	}
	return out
}

// ModelTotal is one line of the model-stats file: whitespace-separated
// `model total input cache_write cache_read output`.
type ModelTotal struct {
	Model        string
	Total        int64
	Input        int64
	CacheWrite   int64
	CacheRead    int64
	Output       int64
}

// LoadModelStats parses the model-stats file. Malformed lines are
// skipped (§7b "data" errors: the specific record is discarded).
func LoadModelStats(path string) ([]ModelTotal, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []ModelTotal
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		nums := make([]int64, 5)
		ok := true
		for i := 0; i < 5; i++ {
			n, err := strconv.ParseInt(fields[i+1], 10, 64)
			if err != nil {
				ok = false
				break
			}
			nums[i] = n
		}
		if !ok {
			continue
		}
		out = append(out, ModelTotal{
			Model: fields[0], Total: nums[0], Input: nums[1],
			CacheWrite: nums[2], CacheRead: nums[3], Output: nums[4],
		})
	}
	return out, scanner.Err()
}
