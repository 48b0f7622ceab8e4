package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/untoldecay/rwm/internal/types"
)

// InsertCheckpoint appends a checkpoint. Checkpoints are append-only;
// a duplicate ID is an error.
func (s *Store) InsertCheckpoint(ctx context.Context, checkpoint *types.Checkpoint) error {
	if checkpoint.ID == "" {
		return fmt.Errorf("checkpoint ID is required")
	}

	meta := checkpoint.BundleMeta
	if len(meta) == 0 {
		meta = json.RawMessage("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (id, session_id, label, ts, bundle_meta)
		VALUES (?, ?, ?, ?, ?)
	`, checkpoint.ID, checkpoint.SessionID, checkpoint.Label, checkpoint.TS, string(meta))
	if err != nil {
		return fmt.Errorf("failed to insert checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves a checkpoint by ID. Returns (nil, nil) when
// no row matches.
func (s *Store) GetCheckpoint(ctx context.Context, id string) (*types.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, label, ts, bundle_meta
		FROM checkpoints
		WHERE id = ?
	`, id)

	checkpoint, err := scanCheckpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return checkpoint, nil
}

// ListCheckpoints returns the session's checkpoints, newest first.
func (s *Store) ListCheckpoints(ctx context.Context, sessionID string, limit int) ([]*types.Checkpoint, error) {
	args := []interface{}{sessionID}
	limitSQL := ""
	if limit > 0 {
		limitSQL = limitClause
		args = append(args, limit)
	}

	// #nosec G201 - safe SQL with controlled formatting
	query := fmt.Sprintf(`
		SELECT id, session_id, label, ts, bundle_meta
		FROM checkpoints
		WHERE session_id = ?
		ORDER BY ts DESC, rowid DESC
		%s
	`, limitSQL)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	checkpoints := []*types.Checkpoint{}
	for rows.Next() {
		checkpoint, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, checkpoint)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkpoints: %w", err)
	}
	return checkpoints, nil
}

func scanCheckpoint(row rowScanner) (*types.Checkpoint, error) {
	var checkpoint types.Checkpoint
	var meta string

	err := row.Scan(
		&checkpoint.ID, &checkpoint.SessionID, &checkpoint.Label,
		&checkpoint.TS, &meta,
	)
	if err != nil {
		return nil, err
	}

	checkpoint.BundleMeta = json.RawMessage(meta)
	return &checkpoint, nil
}
