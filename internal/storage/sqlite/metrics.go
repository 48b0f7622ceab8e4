package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/untoldecay/rwm/internal/types"
)

// InsertTokenMetrics records the per-pointer token costs of one
// composed bundle. The batch is written in a single transaction so a
// bundle's accounting is all-or-nothing.
func (s *Store) InsertTokenMetrics(ctx context.Context, entries []*types.TokenMetric) error {
	if len(entries) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO token_metrics (session_id, pointer_id, token_cost, budget, created_at)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare token metrics insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, entry := range entries {
			if _, err := stmt.ExecContext(ctx, entry.SessionID, entry.PointerID,
				entry.TokenCost, entry.Budget, entry.CreatedAt); err != nil {
				return fmt.Errorf("failed to insert token metric: %w", err)
			}
		}
		return nil
	})
}
