package domain

// ProjectTelemetry is a per-slug snapshot of lifetime and today's usage
// plus the current agent-state columns. Aggregate fields (lifetime/today
// tokens, lifetime counters) are written only by the aggregate loop; agent
// fields (ActiveAgents, AgentCount) are written only by the watcher loop.
// The two writers never touch the same columns.
type ProjectTelemetry struct {
	Project           string
	LifetimeTokens    int64
	TodayTokens       int64
	TodayTokensByModel TokensByModel
	Lifetime          EventCounters
	ActiveAgents      int
	AgentCount        int
}

// FacilityStatus is the singleton row (id = 1) that carries the one
// externally visible open/closed flag plus facility-wide aggregates.
type FacilityStatus struct {
	Status          FacilityState
	ActiveAgents    int
	AgentCount      int
	ActiveProjects  []string
	LifetimeTokens  int64
	TodayTokens     int64
	Lifetime        EventCounters
	UpdatedAtUnixMs int64
}

// FacilityState is the two-valued open/closed flag.
type FacilityState string

const (
	FacilityActive  FacilityState = "active"
	FacilityDormant FacilityState = "dormant"
)
