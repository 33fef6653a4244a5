package daemon

import (
	"sync"

	"github.com/mhofwell/claude-dashboard/internal/domain"
)

// telemetryCaches holds the per-slug sibling caches §9 describes as
// "parallel maps... never a pointer graph": lifetime token totals,
// lifetime event counters, and today's tokens by model. Startup and the
// aggregate loop read and write these caches; the watcher loop does not
// touch them. The mutex guards each read or write, since the loops run
// as separate goroutines.
type telemetryCaches struct {
	mu sync.Mutex

	lifetimeTokens   map[string]int64
	lifetimeCounters map[string]domain.EventCounters
	todayTokens      map[string]domain.TokensByModel
}

func newTelemetryCaches() *telemetryCaches {
	return &telemetryCaches{
		lifetimeTokens:   map[string]int64{},
		lifetimeCounters: map[string]domain.EventCounters{},
		todayTokens:      map[string]domain.TokensByModel{},
	}
}

// seed loads a set of project_telemetry rows read back from the
// datastore into the caches (§4.8 "Seed in-memory telemetry caches from
// the datastore's project-telemetry rows"). Each row's slug gets the
// row's lifetime tokens and counters, and its today-by-model map when
// that map is non-nil; slugs with no row keep their existing entries.
func (c *telemetryCaches) seed(rows map[string]domain.ProjectTelemetry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for slug, row := range rows {
		c.lifetimeTokens[slug] = row.LifetimeTokens
		c.lifetimeCounters[slug] = row.Lifetime
		if row.TodayTokensByModel != nil {
			c.todayTokens[slug] = row.TodayTokensByModel
		}
	}
}

// addEvent folds one processed event's type into slug's lifetime
// counters.
func (c *telemetryCaches) addEvent(slug string, t domain.EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	counters := c.lifetimeCounters[slug]
	counters.Add(t)
	c.lifetimeCounters[slug] = counters
}

// addLifetimeTokens adds n lifetime tokens to slug's running total.
func (c *telemetryCaches) addLifetimeTokens(slug string, n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lifetimeTokens[slug] += n
}

// replaceToday replaces slug's today-tokens-by-model map wholesale, the
// "read or replace in whole" contract §5 requires.
func (c *telemetryCaches) replaceToday(slug string, byModel domain.TokensByModel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.todayTokens[slug] = byModel
}

// snapshot returns ProjectTelemetry rows (aggregate columns only — the
// caller fills in agent columns separately, §8 "no cross-writer
// clobbering") for every slug currently known to any cache.
func (c *telemetryCaches) snapshot() []domain.ProjectTelemetry {
	c.mu.Lock()
	defer c.mu.Unlock()

	slugs := map[string]bool{}
	for s := range c.lifetimeTokens {
		slugs[s] = true
	}
	for s := range c.lifetimeCounters {
		slugs[s] = true
	}
	for s := range c.todayTokens {
		slugs[s] = true
	}

	out := make([]domain.ProjectTelemetry, 0, len(slugs))
	for slug := range slugs {
		byModel := c.todayTokens[slug]
		var todayTotal int64
		for _, n := range byModel {
			todayTotal += n
		}
		out = append(out, domain.ProjectTelemetry{
			Project:            slug,
			LifetimeTokens:     c.lifetimeTokens[slug],
			TodayTokens:        todayTotal,
			TodayTokensByModel: byModel,
			Lifetime:           c.lifetimeCounters[slug],
		})
	}
	return out
}

// facilityTotals sums every per-slug cache into the facility-wide
// aggregate the aggregate loop writes (§4.8: "Facility-wide aggregates
// are computed from per-project caches... the daemon never re-reads the
// event log to compute lifetime values").
func (c *telemetryCaches) facilityTotals() (lifetimeTokens, todayTokens int64, lifetime domain.EventCounters) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range c.lifetimeTokens {
		lifetimeTokens += n
	}
	for _, byModel := range c.todayTokens {
		for _, n := range byModel {
			todayTokens += n
		}
	}
	for _, counters := range c.lifetimeCounters {
		lifetime.Sessions += counters.Sessions
		lifetime.Messages += counters.Messages
		lifetime.ToolCalls += counters.ToolCalls
		lifetime.AgentSpawns += counters.AgentSpawns
		lifetime.TeamMessages += counters.TeamMessages
	}
	return
}

// wantLifetimeTokens is a read-only helper for the sync layer's
// consistency probe (§4.5).
func (c *telemetryCaches) wantLifetimeTokens() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.lifetimeTokens))
	for slug, n := range c.lifetimeTokens {
		out[slug] = n
	}
	return out
}
