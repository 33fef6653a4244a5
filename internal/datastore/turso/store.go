package turso

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mhofwell/claude-dashboard/internal/datastore"
	"github.com/mhofwell/claude-dashboard/internal/domain"
)

// batchSize bounds the largest outstanding INSERT request (§4.5, §5).
const batchSize = 500

// updateConcurrency is the chunk width for concurrent per-row updates in
// SyncDailyMetrics (§4.5: "updating existing rows in chunks of 50
// concurrent requests").
const updateConcurrency = 50

// Store implements datastore.Store against a Turso/libsql database.
type Store struct {
	db *sql.DB
}

// New wraps an already-open, already-migrated *sql.DB.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ datastore.Store = (*Store)(nil)

func (s *Store) Close() error { return s.db.Close() }

// InsertEvents batches events to batchSize rows and upserts each batch
// with conflict target (project, event_type, event_text, timestamp)
// that skips existing rows (§4.5). A failing batch is counted but does
// not abort the call, preserving "event idempotence" (§8) across
// partially-failed replays.
func (s *Store) InsertEvents(ctx context.Context, events []domain.Event) (int, error) {
	inserted := 0
	var firstErr error

	for start := 0; start < len(events); start += batchSize {
		end := start + batchSize
		if end > len(events) {
			end = len(events)
		}
		batch := events[start:end]

		n, err := s.insertBatch(ctx, batch)
		inserted += n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return inserted, firstErr
}

func (s *Store) insertBatch(ctx context.Context, batch []domain.Event) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO events (project, branch, event_type, event_text, timestamp) VALUES ")
	args := make([]any, 0, len(batch)*5)
	for i, e := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, e.Project, e.Branch, string(e.Type), e.Text, e.Timestamp.UnixMilli())
	}
	sb.WriteString(" ON CONFLICT (project, event_type, event_text, timestamp) DO NOTHING")

	var res sql.Result
	err := withRetry(ctx, 2, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, sb.String(), args...)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("inserting event batch: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// SyncDailyMetrics blind-upserts daily_metrics rows: it first fetches
// existing (date, project) keys to split the set into insert vs update,
// bulk-inserts new rows, and updates existing rows in chunks of
// updateConcurrency concurrent requests (§4.5).
func (s *Store) SyncDailyMetrics(ctx context.Context, metrics []domain.DailyMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	existing, err := s.existingDailyMetricKeys(ctx, metrics)
	if err != nil {
		return fmt.Errorf("fetching existing daily_metrics keys: %w", err)
	}

	var toInsert, toUpdate []domain.DailyMetric
	for _, m := range metrics {
		if existing[m.Key()] {
			toUpdate = append(toUpdate, m)
		} else {
			toInsert = append(toInsert, m)
		}
	}

	if err := s.bulkInsertDailyMetrics(ctx, toInsert); err != nil {
		return fmt.Errorf("inserting daily_metrics: %w", err)
	}
	return s.chunkedUpdateDailyMetrics(ctx, toUpdate)
}

func (s *Store) existingDailyMetricKeys(ctx context.Context, metrics []domain.DailyMetric) (map[domain.DailyMetricKey]bool, error) {
	dates := map[string]bool{}
	for _, m := range metrics {
		dates[m.Date] = true
	}
	placeholders := make([]string, 0, len(dates))
	args := make([]any, 0, len(dates))
	for d := range dates {
		placeholders = append(placeholders, "?")
		args = append(args, d)
	}

	query := fmt.Sprintf("SELECT date, project FROM daily_metrics WHERE date IN (%s)", strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[domain.DailyMetricKey]bool{}
	for rows.Next() {
		var date, project string
		if err := rows.Scan(&date, &project); err != nil {
			return nil, err
		}
		out[domain.DailyMetricKey{Date: date, Project: project}] = true
	}
	return out, rows.Err()
}

func (s *Store) bulkInsertDailyMetrics(ctx context.Context, metrics []domain.DailyMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	for start := 0; start < len(metrics); start += batchSize {
		end := start + batchSize
		if end > len(metrics) {
			end = len(metrics)
		}
		if err := s.insertDailyMetricChunk(ctx, metrics[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertDailyMetricChunk(ctx context.Context, chunk []domain.DailyMetric) error {
	var sb strings.Builder
	sb.WriteString("INSERT INTO daily_metrics (date, project, sessions, messages, tool_calls, agent_spawns, team_messages, tokens) VALUES ")
	args := make([]any, 0, len(chunk)*8)
	for i, m := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
		tokens, _ := json.Marshal(m.Tokens)
		args = append(args, m.Date, m.Project, m.Sessions, m.Messages, m.ToolCalls, m.AgentSpawns, m.TeamMessages, string(tokens))
	}
	sb.WriteString(` ON CONFLICT (date, project) DO UPDATE SET
		sessions = excluded.sessions,
		messages = excluded.messages,
		tool_calls = excluded.tool_calls,
		agent_spawns = excluded.agent_spawns,
		team_messages = excluded.team_messages,
		tokens = excluded.tokens`)

	return withRetry(ctx, 2, func() error {
		_, err := s.db.ExecContext(ctx, sb.String(), args...)
		return err
	})
}

func (s *Store) chunkedUpdateDailyMetrics(ctx context.Context, metrics []domain.DailyMetric) error {
	for start := 0; start < len(metrics); start += updateConcurrency {
		end := start + updateConcurrency
		if end > len(metrics) {
			end = len(metrics)
		}
		chunk := metrics[start:end]

		var wg sync.WaitGroup
		errs := make([]error, len(chunk))
		for i, m := range chunk {
			wg.Add(1)
			go func(i int, m domain.DailyMetric) {
				defer wg.Done()
				errs[i] = s.updateDailyMetric(ctx, m)
			}(i, m)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) updateDailyMetric(ctx context.Context, m domain.DailyMetric) error {
	tokens, _ := json.Marshal(m.Tokens)
	return withRetry(ctx, 2, func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE daily_metrics SET
			sessions = ?, messages = ?, tool_calls = ?, agent_spawns = ?, team_messages = ?, tokens = ?
			WHERE date = ? AND project = ?`,
			m.Sessions, m.Messages, m.ToolCalls, m.AgentSpawns, m.TeamMessages, string(tokens), m.Date, m.Project)
		return err
	})
}

// UpsertProjectTelemetry prefers a single multi-row upsert on conflict
// key "project"; on failure it falls back to per-row upsert and returns
// the slugs that could not be persisted (§4.5).
func (s *Store) UpsertProjectTelemetry(ctx context.Context, rows []domain.ProjectTelemetry) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	if err := s.multiRowUpsertTelemetry(ctx, rows); err == nil {
		return nil, nil
	}

	var failed []string
	for _, r := range rows {
		if err := s.upsertOneTelemetry(ctx, r); err != nil {
			failed = append(failed, r.Project)
		}
	}
	var err error
	if len(failed) > 0 {
		err = fmt.Errorf("per-row fallback failed for %d project(s)", len(failed))
	}
	return failed, err
}

func (s *Store) multiRowUpsertTelemetry(ctx context.Context, rows []domain.ProjectTelemetry) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO project_telemetry
		(project, lifetime_tokens, today_tokens, today_tokens_by_model,
		 lifetime_sessions, lifetime_messages, lifetime_tool_calls, lifetime_agent_spawns, lifetime_team_messages)
		VALUES `)
	args := make([]any, 0, len(rows)*9)
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		tbm, _ := json.Marshal(r.TodayTokensByModel)
		args = append(args, r.Project, r.LifetimeTokens, r.TodayTokens, string(tbm),
			r.Lifetime.Sessions, r.Lifetime.Messages, r.Lifetime.ToolCalls, r.Lifetime.AgentSpawns, r.Lifetime.TeamMessages)
	}
	sb.WriteString(` ON CONFLICT (project) DO UPDATE SET
		lifetime_tokens = excluded.lifetime_tokens,
		today_tokens = excluded.today_tokens,
		today_tokens_by_model = excluded.today_tokens_by_model,
		lifetime_sessions = excluded.lifetime_sessions,
		lifetime_messages = excluded.lifetime_messages,
		lifetime_tool_calls = excluded.lifetime_tool_calls,
		lifetime_agent_spawns = excluded.lifetime_agent_spawns,
		lifetime_team_messages = excluded.lifetime_team_messages`)

	return withRetry(ctx, 2, func() error {
		_, err := s.db.ExecContext(ctx, sb.String(), args...)
		return err
	})
}

func (s *Store) upsertOneTelemetry(ctx context.Context, r domain.ProjectTelemetry) error {
	tbm, _ := json.Marshal(r.TodayTokensByModel)
	return withRetry(ctx, 2, func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO project_telemetry
			(project, lifetime_tokens, today_tokens, today_tokens_by_model,
			 lifetime_sessions, lifetime_messages, lifetime_tool_calls, lifetime_agent_spawns, lifetime_team_messages)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (project) DO UPDATE SET
			lifetime_tokens = excluded.lifetime_tokens,
			today_tokens = excluded.today_tokens,
			today_tokens_by_model = excluded.today_tokens_by_model,
			lifetime_sessions = excluded.lifetime_sessions,
			lifetime_messages = excluded.lifetime_messages,
			lifetime_tool_calls = excluded.lifetime_tool_calls,
			lifetime_agent_spawns = excluded.lifetime_agent_spawns,
			lifetime_team_messages = excluded.lifetime_team_messages`,
			r.Project, r.LifetimeTokens, r.TodayTokens, string(tbm),
			r.Lifetime.Sessions, r.Lifetime.Messages, r.Lifetime.ToolCalls, r.Lifetime.AgentSpawns, r.Lifetime.TeamMessages)
		return err
	})
}

// VerifyProjectTelemetry reads back the affected slugs and returns those
// whose persisted lifetime token total disagrees with what the caller
// believes it wrote — a consistency probe, not an error (§4.5).
func (s *Store) VerifyProjectTelemetry(ctx context.Context, want map[string]int64) ([]string, error) {
	slugs := make([]string, 0, len(want))
	for slug := range want {
		slugs = append(slugs, slug)
	}
	got, err := s.ReadProjectTelemetry(ctx, slugs)
	if err != nil {
		return nil, err
	}
	var mismatched []string
	for slug, wantTokens := range want {
		if row, ok := got[slug]; !ok || row.LifetimeTokens != wantTokens {
			mismatched = append(mismatched, slug)
		}
	}
	return mismatched, nil
}

// PushAgentState updates only the agent columns on project_telemetry
// rows, only the agent columns and active-projects list on the facility
// row, and last_active on every project in activeSlugs. Writes fan out
// in parallel; individual failures are logged by the caller (§4.5).
func (s *Store) PushAgentState(ctx context.Context, perProject map[string]datastore.AgentColumns, facility datastore.AgentColumns, activeSlugs []string) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(perProject)+2)

	for slug, cols := range perProject {
		wg.Add(1)
		go func(slug string, cols datastore.AgentColumns) {
			defer wg.Done()
			if err := s.updateProjectAgentColumns(ctx, slug, cols); err != nil {
				errCh <- fmt.Errorf("project %s: %w", slug, err)
			}
		}(slug, cols)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.updateFacilityAgentColumns(ctx, facility, activeSlugs); err != nil {
			errCh <- fmt.Errorf("facility: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.touchLastActive(ctx, activeSlugs); err != nil {
			errCh <- fmt.Errorf("last_active: %w", err)
		}
	}()

	wg.Wait()
	close(errCh)

	var errs []string
	for err := range errCh {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("push agent state: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (s *Store) updateProjectAgentColumns(ctx context.Context, slug string, cols datastore.AgentColumns) error {
	return withRetry(ctx, 2, func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO project_telemetry (project, active_agents, agent_count)
			VALUES (?, ?, ?)
			ON CONFLICT (project) DO UPDATE SET active_agents = excluded.active_agents, agent_count = excluded.agent_count`,
			slug, cols.ActiveAgents, cols.AgentCount)
		return err
	})
}

func (s *Store) updateFacilityAgentColumns(ctx context.Context, cols datastore.AgentColumns, activeSlugs []string) error {
	projects, _ := json.Marshal(activeSlugs)
	return withRetry(ctx, 2, func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE facility_status SET
			active_agents = ?, agent_count = ?, active_projects = ? WHERE id = 1`,
			cols.ActiveAgents, cols.AgentCount, string(projects))
		return err
	})
}

func (s *Store) touchLastActive(ctx context.Context, slugs []string) error {
	if len(slugs) == 0 {
		return nil
	}
	now := time.Now().UTC().UnixMilli()
	for _, slug := range slugs {
		err := withRetry(ctx, 2, func() error {
			_, err := s.db.ExecContext(ctx, `UPDATE projects SET last_active = ? WHERE content_slug = ?`, now, slug)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// GetOrCreateProject inserts a new project row on first sighting of
// slug, or updates its LastActive/LocalNames on subsequent calls (§3).
func (s *Store) GetOrCreateProject(ctx context.Context, slug, localName string) (domain.Project, bool, error) {
	now := time.Now().UTC()

	var existing domain.Project
	var localNamesJSON, visibility string
	var firstSeenMs, lastActiveMs int64
	var totalEvents int64

	err := s.db.QueryRowContext(ctx, `SELECT local_names, visibility, first_seen, last_active, total_events
		FROM projects WHERE content_slug = ?`, slug).
		Scan(&localNamesJSON, &visibility, &firstSeenMs, &lastActiveMs, &totalEvents)

	if err == sql.ErrNoRows {
		existing = domain.Project{
			Slug:       slug,
			LocalNames: []string{localName},
			Visibility: domain.VisibilityPrivate,
			FirstSeen:  now,
			LastActive: now,
		}
		names, _ := json.Marshal(existing.LocalNames)
		_, err := s.db.ExecContext(ctx, `INSERT INTO projects
			(content_slug, local_names, visibility, first_seen, last_active, total_events)
			VALUES (?, ?, ?, ?, ?, 0)
			ON CONFLICT (content_slug) DO NOTHING`,
			slug, string(names), string(existing.Visibility), now.UnixMilli(), now.UnixMilli())
		if err != nil {
			return domain.Project{}, false, fmt.Errorf("creating project %s: %w", slug, err)
		}
		return existing, true, nil
	}
	if err != nil {
		return domain.Project{}, false, fmt.Errorf("reading project %s: %w", slug, err)
	}

	var localNames []string
	_ = json.Unmarshal([]byte(localNamesJSON), &localNames)
	existing = domain.Project{
		Slug:        slug,
		LocalNames:  localNames,
		Visibility:  domain.Visibility(visibility),
		FirstSeen:   time.UnixMilli(firstSeenMs).UTC(),
		LastActive:  time.UnixMilli(lastActiveMs).UTC(),
		TotalEvents: totalEvents,
	}
	existing.AddLocalName(localName)
	names, _ := json.Marshal(existing.LocalNames)

	_, err = s.db.ExecContext(ctx, `UPDATE projects SET local_names = ?, last_active = ? WHERE content_slug = ?`,
		string(names), now.UnixMilli(), slug)
	if err != nil {
		return domain.Project{}, false, fmt.Errorf("updating project %s: %w", slug, err)
	}
	existing.LastActive = now
	return existing, false, nil
}

// UpdateProjectVisibility writes the visibility classification (C8) for
// an existing project row.
func (s *Store) UpdateProjectVisibility(ctx context.Context, slug string, visibility domain.Visibility) error {
	_, err := s.db.ExecContext(ctx, `UPDATE projects SET visibility = ? WHERE content_slug = ?`,
		string(visibility), slug)
	if err != nil {
		return fmt.Errorf("updating visibility for %s: %w", slug, err)
	}
	return nil
}

// ReadFacility reads the singleton facility row.
func (s *Store) ReadFacility(ctx context.Context) (domain.FacilityStatus, error) {
	var status string
	var activeAgents, agentCount int
	var activeProjectsJSON string
	var lifetimeTokens, todayTokens int64
	var sessions, messages, toolCalls, agentSpawns, teamMessages int64
	var updatedAt int64

	err := s.db.QueryRowContext(ctx, `SELECT status, active_agents, agent_count, active_projects,
		lifetime_tokens, today_tokens, lifetime_sessions, lifetime_messages, lifetime_tool_calls,
		lifetime_agent_spawns, lifetime_team_messages, updated_at
		FROM facility_status WHERE id = 1`).
		Scan(&status, &activeAgents, &agentCount, &activeProjectsJSON,
			&lifetimeTokens, &todayTokens, &sessions, &messages, &toolCalls, &agentSpawns, &teamMessages, &updatedAt)
	if err != nil {
		return domain.FacilityStatus{}, fmt.Errorf("reading facility row: %w", err)
	}

	var activeProjects []string
	_ = json.Unmarshal([]byte(activeProjectsJSON), &activeProjects)

	return domain.FacilityStatus{
		Status:         domain.FacilityState(status),
		ActiveAgents:   activeAgents,
		AgentCount:     agentCount,
		ActiveProjects: activeProjects,
		LifetimeTokens: lifetimeTokens,
		TodayTokens:    todayTokens,
		Lifetime: domain.EventCounters{
			Sessions: sessions, Messages: messages, ToolCalls: toolCalls,
			AgentSpawns: agentSpawns, TeamMessages: teamMessages,
		},
		UpdatedAtUnixMs: updatedAt,
	}, nil
}

// SetFacilityOpen writes the open/closed flag. Per §4.8/§8, callers must
// be the open/close commands or the daemon's auto-close latch.
func (s *Store) SetFacilityOpen(ctx context.Context, open bool) error {
	status := domain.FacilityDormant
	if open {
		status = domain.FacilityActive
	}
	_, err := s.db.ExecContext(ctx, `UPDATE facility_status SET status = ?, updated_at = ? WHERE id = 1`,
		string(status), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("setting facility open=%v: %w", open, err)
	}
	return nil
}

// UpdateFacilityAggregates writes only the aggregate columns on the
// facility row (never the open flag, never the agent columns), matching
// the aggregate loop's column ownership (§4.8, §8 "no cross-writer
// clobbering").
func (s *Store) UpdateFacilityAggregates(ctx context.Context, lifetimeTokens, todayTokens int64, lifetime domain.EventCounters) error {
	_, err := s.db.ExecContext(ctx, `UPDATE facility_status SET
		lifetime_tokens = ?, today_tokens = ?,
		lifetime_sessions = ?, lifetime_messages = ?, lifetime_tool_calls = ?,
		lifetime_agent_spawns = ?, lifetime_team_messages = ?, updated_at = ?
		WHERE id = 1`,
		lifetimeTokens, todayTokens, lifetime.Sessions, lifetime.Messages, lifetime.ToolCalls,
		lifetime.AgentSpawns, lifetime.TeamMessages, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("updating facility aggregates: %w", err)
	}
	return nil
}

// RenameSlug rewrites every row in events, daily_metrics, and
// project_telemetry carrying oldSlug to newSlug (§4.6, §8 "slug-rename
// closure").
func (s *Store) RenameSlug(ctx context.Context, oldSlug, newSlug string) error {
	stmts := []string{
		`UPDATE events SET project = ? WHERE project = ?`,
		`UPDATE daily_metrics SET project = ? WHERE project = ?`,
		`UPDATE project_telemetry SET project = ? WHERE project = ?`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt, newSlug, oldSlug); err != nil {
			return fmt.Errorf("renaming slug %s -> %s: %w", oldSlug, newSlug, err)
		}
	}
	return nil
}

// PruneEventsOlderThan deletes every event row older than cutoff (§4.5's
// 14-day retention horizon).
func (s *Store) PruneEventsOlderThan(ctx context.Context, cutoff time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE timestamp < ?`, cutoff.UnixMilli())
	if err != nil {
		return fmt.Errorf("pruning events older than %s: %w", cutoff, err)
	}
	return nil
}

// DeleteProjectDailyMetrics deletes per-project (non-facility-wide)
// daily_metrics rows for the given slugs, run before a backfill (§4.5).
func (s *Store) DeleteProjectDailyMetrics(ctx context.Context, slugs []string) error {
	if len(slugs) == 0 {
		return nil
	}
	placeholders := make([]string, len(slugs))
	args := make([]any, len(slugs))
	for i, slug := range slugs {
		placeholders[i] = "?"
		args[i] = slug
	}
	query := fmt.Sprintf("DELETE FROM daily_metrics WHERE project IN (%s) AND project != ''", strings.Join(placeholders, ","))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting stale per-project daily_metrics: %w", err)
	}
	return nil
}

// ReadProjectTelemetry reads back project_telemetry rows for slugs.
func (s *Store) ReadProjectTelemetry(ctx context.Context, slugs []string) (map[string]domain.ProjectTelemetry, error) {
	out := map[string]domain.ProjectTelemetry{}
	if len(slugs) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(slugs))
	args := make([]any, len(slugs))
	for i, slug := range slugs {
		placeholders[i] = "?"
		args[i] = slug
	}
	query := fmt.Sprintf(`SELECT project, lifetime_tokens, today_tokens, today_tokens_by_model,
		lifetime_sessions, lifetime_messages, lifetime_tool_calls, lifetime_agent_spawns, lifetime_team_messages,
		active_agents, agent_count
		FROM project_telemetry WHERE project IN (%s)`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading project_telemetry: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var project, tbmJSON string
		var lifetimeTokens, todayTokens int64
		var sessions, messages, toolCalls, agentSpawns, teamMessages int64
		var activeAgents, agentCount int
		if err := rows.Scan(&project, &lifetimeTokens, &todayTokens, &tbmJSON,
			&sessions, &messages, &toolCalls, &agentSpawns, &teamMessages, &activeAgents, &agentCount); err != nil {
			return nil, err
		}
		var tbm domain.TokensByModel
		_ = json.Unmarshal([]byte(tbmJSON), &tbm)
		out[project] = domain.ProjectTelemetry{
			Project:            project,
			LifetimeTokens:     lifetimeTokens,
			TodayTokens:        todayTokens,
			TodayTokensByModel: tbm,
			Lifetime: domain.EventCounters{
				Sessions: sessions, Messages: messages, ToolCalls: toolCalls,
				AgentSpawns: agentSpawns, TeamMessages: teamMessages,
			},
			ActiveAgents: activeAgents,
			AgentCount:   agentCount,
		}
	}
	return out, rows.Err()
}
