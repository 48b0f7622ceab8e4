package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/untoldecay/rwm/internal/types"
)

// sessionTables are the tables carrying a session_id column, in the
// order canonicalization rewrites them.
var sessionTables = []string{"tasks", "events", "checkpoints", "token_metrics"}

// CanonicalizeSessions folds every row whose session_id starts with
// "<base>@" into the canonical ID. Returns the total number of rows
// rewritten across all session-bearing tables. Rows already on the
// canonical ID are left untouched.
func (s *Store) CanonicalizeSessions(ctx context.Context, base, canonical string) (int64, error) {
	if base == "" || canonical == "" {
		return 0, fmt.Errorf("base and canonical session IDs are required")
	}

	pattern := base + "@%"
	var total int64

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range sessionTables {
			// #nosec G201 - table names come from a fixed list
			query := fmt.Sprintf(`
				UPDATE %s SET session_id = ?
				WHERE session_id LIKE ? AND session_id != ?
			`, table)
			res, err := tx.ExecContext(ctx, query, canonical, pattern, canonical)
			if err != nil {
				return fmt.Errorf("failed to canonicalize %s: %w", table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to count canonicalized %s rows: %w", table, err)
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ListSessions returns every distinct session ID seen across the
// session-bearing tables, sorted.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id FROM tasks
		UNION
		SELECT session_id FROM events
		UNION
		SELECT session_id FROM checkpoints
		ORDER BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sessions := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session ID: %w", err)
		}
		sessions = append(sessions, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

// GetStatistics returns aggregate counts for status reporting.
func (s *Store) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	stats := &types.Statistics{}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan task count: %w", err)
		}
		stats.TotalTasks += count
		switch types.TaskStatus(status) {
		case types.StatusTodo:
			stats.TodoTasks = count
		case types.StatusDoing:
			stats.DoingTasks = count
		case types.StatusBlocked:
			stats.BlockedTasks = count
		case types.StatusDone:
			stats.DoneTasks = count
		case types.StatusReview:
			stats.ReviewTasks = count
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to iterate task counts: %w", err)
	}
	_ = rows.Close()

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(CASE WHEN kind = 'DECISION' THEN 1 END),
		       COUNT(CASE WHEN kind IN ('TEST_FAIL', 'BLOCKER') THEN 1 END)
		FROM events
	`).Scan(&stats.TotalEvents, &stats.DecisionEvents, &stats.FailureEvents)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(CASE WHEN uri != '' AND uri NOT LIKE 'artifact://%' THEN 1 END)
		FROM artifacts
	`).Scan(&stats.TotalArtifacts, &stats.PointerArtifacts)
	if err != nil {
		return nil, fmt.Errorf("failed to count artifacts: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts`).Scan(&stats.TotalFacts); err != nil {
		return nil, fmt.Errorf("failed to count facts: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM checkpoints`).Scan(&stats.TotalCheckpoints); err != nil {
		return nil, fmt.Errorf("failed to count checkpoints: %w", err)
	}

	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	stats.Sessions = len(sessions)

	return stats, nil
}
