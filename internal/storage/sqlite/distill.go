package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/untoldecay/rwm/internal/types"
)

// DigestPrefix marks a NOTE event as a distillation digest. Its
// presence on a task marks the task as already distilled.
const DigestPrefix = "Digest:"

// ListDistillableTasks returns done tasks last touched at or before
// cutoff that carry no digest event yet, oldest first.
func (s *Store) ListDistillableTasks(ctx context.Context, cutoff time.Time, limit int) ([]*types.Task, error) {
	args := []interface{}{cutoff, DigestPrefix + "%"}
	limitSQL := ""
	if limit > 0 {
		limitSQL = limitClause
		args = append(args, limit)
	}

	// #nosec G201 - safe SQL with controlled formatting
	query := fmt.Sprintf(`
		SELECT id, session_id, parent_id, title, status, accept_criteria, created_at, updated_at
		FROM tasks t
		WHERE status = 'done'
		  AND updated_at <= ?
		  AND NOT EXISTS (
			SELECT 1 FROM events e
			WHERE e.task_id = t.id AND e.kind = 'NOTE' AND e.summary LIKE ?
		  )
		ORDER BY updated_at ASC, rowid ASC
		%s
	`, limitSQL)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list distillable tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTasks(rows)
}

// ListTaskEvents returns every event recorded against the task,
// oldest first.
func (s *Store) ListTaskEvents(ctx context.Context, taskID string) ([]*types.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, task_id, session_id, summary, evidence_ids, ts
		FROM events
		WHERE task_id = ?
		ORDER BY ts ASC, rowid ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list task events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectEvents(rows)
}

// CheckDistillable reports whether the task is eligible for
// distillation, with a reason when it is not.
func (s *Store) CheckDistillable(ctx context.Context, taskID string, cutoff time.Time) (bool, string, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return false, "", err
	}
	if task == nil {
		return false, "task not found", nil
	}
	if task.Status != types.StatusDone {
		return false, fmt.Sprintf("status is %s, not done", task.Status), nil
	}
	if task.UpdatedAt.After(cutoff) {
		return false, "task updated too recently", nil
	}

	var n int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events
		WHERE task_id = ? AND kind = 'NOTE' AND summary LIKE ?
	`, taskID, DigestPrefix+"%").Scan(&n)
	if err != nil {
		return false, "", fmt.Errorf("failed to check digest events: %w", err)
	}
	if n > 0 {
		return false, "already distilled", nil
	}

	return true, "", nil
}
