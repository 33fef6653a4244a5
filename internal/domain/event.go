package domain

import "time"

// EventType is the closed set of event-type tags a log line can carry.
type EventType string

const (
	EventTool            EventType = "tool"
	EventRead            EventType = "read"
	EventSearch          EventType = "search"
	EventFetch           EventType = "fetch"
	EventMCP             EventType = "mcp"
	EventSkill           EventType = "skill"
	EventAgentSpawn      EventType = "agent_spawn"
	EventAgentTask       EventType = "agent_task"
	EventAgentFinish     EventType = "agent_finish"
	EventSessionStart    EventType = "session_start"
	EventSessionEnd      EventType = "session_end"
	EventResponseFinish  EventType = "response_finish"
	EventPlan            EventType = "plan"
	EventInputNeeded     EventType = "input_needed"
	EventPermission      EventType = "permission"
	EventQuestion        EventType = "question"
	EventCompleted       EventType = "completed"
	EventCompact         EventType = "compact"
	EventTask            EventType = "task"
	EventMessage         EventType = "message"
	EventUnknown         EventType = "unknown"
)

// Event is one parsed line from the append-only agent event log.
type Event struct {
	Timestamp time.Time
	Project   string // on-disk directory name; mapped to a slug before persistence
	Branch    string
	Type      EventType
	Text      string
}

// Valid reports whether the event carries the two attributes the spec
// requires for persistence: a parsed timestamp and a project attribution.
func (e Event) Valid() bool {
	return !e.Timestamp.IsZero() && e.Project != ""
}
