package sqlite

import (
	"context"
	"fmt"

	"github.com/untoldecay/rwm/internal/types"
)

// Search runs three parallel substring matches: events by summary or
// ID, tasks by title or ID, facts by key or value. SQLite LIKE is
// case-insensitive for ASCII, which is the behavior callers expect.
// Facts are project-wide, so their match ignores the session filter.
func (s *Store) Search(ctx context.Context, sessionID, query string, limit int) (*types.SearchResults, error) {
	pattern := "%" + query + "%"
	results := &types.SearchResults{
		Events: []types.Event{},
		Tasks:  []types.Task{},
		Facts:  []types.Fact{},
	}

	// Events
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, task_id, session_id, summary, evidence_ids, ts
		FROM events
		WHERE session_id = ? AND (summary LIKE ? OR id LIKE ?)
		ORDER BY ts DESC, rowid DESC
		LIMIT ?
	`, sessionID, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}
	events, err := collectEvents(rows)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		results.Events = append(results.Events, *e)
	}

	// Tasks
	rows, err = s.db.QueryContext(ctx, `
		SELECT id, session_id, parent_id, title, status, accept_criteria, created_at, updated_at
		FROM tasks
		WHERE session_id = ? AND (title LIKE ? OR id LIKE ?)
		ORDER BY updated_at DESC, rowid DESC
		LIMIT ?
	`, sessionID, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search tasks: %w", err)
	}
	tasks, err := collectTasks(rows)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		results.Tasks = append(results.Tasks, *t)
	}

	// Facts (no session filter)
	rows, err = s.db.QueryContext(ctx, `
		SELECT id, key, value, scope
		FROM facts
		WHERE key LIKE ? OR value LIKE ?
		ORDER BY key ASC, scope ASC
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search facts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var fact types.Fact
		if err := rows.Scan(&fact.ID, &fact.Key, &fact.Value, &fact.Scope); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		results.Facts = append(results.Facts, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate facts: %w", err)
	}

	return results, nil
}

// ListRecordIDs returns every record ID across tasks, events, artifacts,
// facts, and checkpoints. Intended for fuzzy matching, where the full
// candidate list is required; callers should treat the result as a
// snapshot and fetch the suggested record afterwards.
func (s *Store) ListRecordIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM tasks
		UNION SELECT id FROM events
		UNION SELECT id FROM artifacts
		UNION SELECT id FROM facts
		UNION SELECT id FROM checkpoints
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query record ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan record id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate record ids: %w", err)
	}
	return ids, nil
}
