package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/untoldecay/rwm/internal/types"
)

const limitClause = " LIMIT ?"

// InsertEvent appends an event to the log. The log is append-only:
// a duplicate ID is an error, never an overwrite.
func (s *Store) InsertEvent(ctx context.Context, event *types.Event) error {
	return insertEvent(ctx, s.db, event)
}

// GetEvent retrieves an event by ID. Returns (nil, nil) when no row
// matches.
func (s *Store) GetEvent(ctx context.Context, id string) (*types.Event, error) {
	return getEvent(ctx, s.db, id)
}

// ListRecentEvents returns the session's newest events first. Events
// sharing a timestamp (batch inserts) keep insertion order via rowid.
func (s *Store) ListRecentEvents(ctx context.Context, sessionID string, limit int) ([]*types.Event, error) {
	args := []interface{}{sessionID}
	limitSQL := ""
	if limit > 0 {
		limitSQL = limitClause
		args = append(args, limit)
	}

	// #nosec G201 - safe SQL with controlled formatting
	query := fmt.Sprintf(`
		SELECT id, kind, task_id, session_id, summary, evidence_ids, ts
		FROM events
		WHERE session_id = ?
		ORDER BY ts DESC, rowid DESC
		%s
	`, limitSQL)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectEvents(rows)
}

// ListRecentEventsSince returns the session's events at or after the
// given time, newest first.
func (s *Store) ListRecentEventsSince(ctx context.Context, sessionID string, since time.Time, limit int) ([]*types.Event, error) {
	args := []interface{}{sessionID, since}
	limitSQL := ""
	if limit > 0 {
		limitSQL = limitClause
		args = append(args, limit)
	}

	// #nosec G201 - safe SQL with controlled formatting
	query := fmt.Sprintf(`
		SELECT id, kind, task_id, session_id, summary, evidence_ids, ts
		FROM events
		WHERE session_id = ? AND ts >= ?
		ORDER BY ts DESC, rowid DESC
		%s
	`, limitSQL)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events since: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectEvents(rows)
}

func insertEvent(ctx context.Context, q dbtx, event *types.Event) error {
	if event.ID == "" {
		return fmt.Errorf("event ID is required")
	}
	if !event.Kind.IsValid() {
		return fmt.Errorf("invalid event kind: %s", event.Kind)
	}

	evidence, err := marshalEvidence(event.EvidenceIDs)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO events (id, kind, task_id, session_id, summary, evidence_ids, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.Kind, event.TaskID, event.SessionID, event.Summary, evidence, event.TS)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func getEvent(ctx context.Context, q dbtx, id string) (*types.Event, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, kind, task_id, session_id, summary, evidence_ids, ts
		FROM events
		WHERE id = ?
	`, id)

	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

func marshalEvidence(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("failed to marshal evidence IDs: %w", err)
	}
	return string(raw), nil
}

func scanEvent(row rowScanner) (*types.Event, error) {
	var event types.Event
	var taskID sql.NullString
	var evidence string

	err := row.Scan(
		&event.ID, &event.Kind, &taskID, &event.SessionID,
		&event.Summary, &evidence, &event.TS,
	)
	if err != nil {
		return nil, err
	}

	if taskID.Valid {
		event.TaskID = &taskID.String
	}
	if err := json.Unmarshal([]byte(evidence), &event.EvidenceIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal evidence IDs for %s: %w", event.ID, err)
	}

	return &event, nil
}

func collectEvents(rows *sql.Rows) ([]*types.Event, error) {
	events := []*types.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}
