package turso

import (
	"context"
	"database/sql"
	"strings"
)

// schema mirrors the five tables named in §6: events, projects,
// daily_metrics, project_telemetry, facility_status. daily_metrics and
// project rows use "" (never SQL NULL) as the facility-wide sentinel so
// a UNIQUE(date, project) index behaves correctly — SQLite treats
// distinct NULLs as non-equal, which would defeat the "NULL
// participates as a distinct value" invariant (§3) if we stored NULL
// literally; an empty string is a real, comparable value instead.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project TEXT NOT NULL,
	branch TEXT NOT NULL DEFAULT '',
	event_type TEXT NOT NULL,
	event_text TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	UNIQUE(project, event_type, event_text, timestamp)
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_project ON events(project);

CREATE TABLE IF NOT EXISTS projects (
	content_slug TEXT PRIMARY KEY,
	local_names TEXT NOT NULL DEFAULT '[]',
	visibility TEXT NOT NULL DEFAULT 'private',
	first_seen INTEGER NOT NULL,
	last_active INTEGER NOT NULL,
	total_events INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS daily_metrics (
	date TEXT NOT NULL,
	project TEXT NOT NULL DEFAULT '',
	sessions INTEGER NOT NULL DEFAULT 0,
	messages INTEGER NOT NULL DEFAULT 0,
	tool_calls INTEGER NOT NULL DEFAULT 0,
	agent_spawns INTEGER NOT NULL DEFAULT 0,
	team_messages INTEGER NOT NULL DEFAULT 0,
	tokens TEXT NOT NULL DEFAULT '{}',
	UNIQUE(date, project)
);

CREATE TABLE IF NOT EXISTS project_telemetry (
	project TEXT PRIMARY KEY,
	lifetime_tokens INTEGER NOT NULL DEFAULT 0,
	today_tokens INTEGER NOT NULL DEFAULT 0,
	today_tokens_by_model TEXT NOT NULL DEFAULT '{}',
	lifetime_sessions INTEGER NOT NULL DEFAULT 0,
	lifetime_messages INTEGER NOT NULL DEFAULT 0,
	lifetime_tool_calls INTEGER NOT NULL DEFAULT 0,
	lifetime_agent_spawns INTEGER NOT NULL DEFAULT 0,
	lifetime_team_messages INTEGER NOT NULL DEFAULT 0,
	active_agents INTEGER NOT NULL DEFAULT 0,
	agent_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS facility_status (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	status TEXT NOT NULL DEFAULT 'dormant',
	active_agents INTEGER NOT NULL DEFAULT 0,
	agent_count INTEGER NOT NULL DEFAULT 0,
	active_projects TEXT NOT NULL DEFAULT '[]',
	lifetime_tokens INTEGER NOT NULL DEFAULT 0,
	today_tokens INTEGER NOT NULL DEFAULT 0,
	lifetime_sessions INTEGER NOT NULL DEFAULT 0,
	lifetime_messages INTEGER NOT NULL DEFAULT 0,
	lifetime_tool_calls INTEGER NOT NULL DEFAULT 0,
	lifetime_agent_spawns INTEGER NOT NULL DEFAULT 0,
	lifetime_team_messages INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL DEFAULT 0
);

INSERT OR IGNORE INTO facility_status (id, status, updated_at) VALUES (1, 'dormant', 0);
`

// Migrate creates every table this adapter depends on if absent. The
// exporter runs this once at startup (cold backfill and normal daemon
// start alike); repeated calls are no-ops via IF NOT EXISTS.
//
// The libsql driver's no-args ExecContext only runs the first statement
// in a multi-statement string, so each DDL statement is executed
// separately here.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
