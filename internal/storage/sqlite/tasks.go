package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/untoldecay/rwm/internal/types"
)

// UpsertTask inserts a task or updates the existing row in place.
// created_at is preserved on update; updated_at always moves forward.
func (s *Store) UpsertTask(ctx context.Context, task *types.Task) error {
	return upsertTask(ctx, s.db, task)
}

// GetTask retrieves a task by ID. Returns (nil, nil) when no row
// matches.
func (s *Store) GetTask(ctx context.Context, id string) (*types.Task, error) {
	return getTask(ctx, s.db, id)
}

// ListActiveTasks returns the session's in-flight tasks (doing or
// blocked), most recently updated first. Tasks parked in todo or
// review are not "active" and stay out of rehydration bundles.
func (s *Store) ListActiveTasks(ctx context.Context, sessionID string, limit int) ([]*types.Task, error) {
	args := []interface{}{sessionID}
	limitSQL := ""
	if limit > 0 {
		limitSQL = limitClause
		args = append(args, limit)
	}

	// #nosec G201 - safe SQL with controlled formatting
	query := fmt.Sprintf(`
		SELECT id, session_id, parent_id, title, status, accept_criteria, created_at, updated_at
		FROM tasks
		WHERE session_id = ? AND status IN ('doing', 'blocked')
		ORDER BY updated_at DESC, rowid DESC
		%s
	`, limitSQL)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTasks(rows)
}

func upsertTask(ctx context.Context, q dbtx, task *types.Task) error {
	if task.ID == "" {
		return fmt.Errorf("task ID is required")
	}
	if !task.Status.IsValid() {
		return fmt.Errorf("invalid task status: %s", task.Status)
	}

	// created_at survives conflicts; everything else is caller truth.
	// Field preservation across partial updates happens upstream, where
	// JSON presence is known.
	_, err := q.ExecContext(ctx, `
		INSERT INTO tasks (id, session_id, parent_id, title, status, accept_criteria, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			session_id = excluded.session_id,
			parent_id = excluded.parent_id,
			title = excluded.title,
			status = excluded.status,
			accept_criteria = excluded.accept_criteria,
			updated_at = excluded.updated_at
	`, task.ID, task.SessionID, task.ParentID, task.Title, task.Status,
		task.AcceptCriteria, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}
	return nil
}

func getTask(ctx context.Context, q dbtx, id string) (*types.Task, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, session_id, parent_id, title, status, accept_criteria, created_at, updated_at
		FROM tasks
		WHERE id = ?
	`, id)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*types.Task, error) {
	var task types.Task
	var parentID, acceptCriteria sql.NullString

	err := row.Scan(
		&task.ID, &task.SessionID, &parentID, &task.Title, &task.Status,
		&acceptCriteria, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if parentID.Valid {
		task.ParentID = &parentID.String
	}
	if acceptCriteria.Valid {
		task.AcceptCriteria = &acceptCriteria.String
	}

	return &task, nil
}

func collectTasks(rows *sql.Rows) ([]*types.Task, error) {
	tasks := []*types.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}
