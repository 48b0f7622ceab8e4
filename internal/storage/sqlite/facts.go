package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/untoldecay/rwm/internal/types"
)

// UpsertFact inserts a fact or updates the existing row's value in
// place. Fact IDs are deterministic over (key, scope), so repeated
// commits of the same key converge on one row.
func (s *Store) UpsertFact(ctx context.Context, fact *types.Fact) error {
	return upsertFact(ctx, s.db, fact)
}

// GetFact retrieves a fact by ID. Returns (nil, nil) when no row
// matches.
func (s *Store) GetFact(ctx context.Context, id string) (*types.Fact, error) {
	return getFact(ctx, s.db, id)
}

// ListFacts returns all facts ordered by key then scope for
// deterministic output. Facts are project-wide; there is no session
// filter.
func (s *Store) ListFacts(ctx context.Context) ([]*types.Fact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, value, scope
		FROM facts
		ORDER BY key ASC, scope ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list facts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	facts := []*types.Fact{}
	for rows.Next() {
		var fact types.Fact
		if err := rows.Scan(&fact.ID, &fact.Key, &fact.Value, &fact.Scope); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		facts = append(facts, &fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate facts: %w", err)
	}
	return facts, nil
}

func upsertFact(ctx context.Context, q dbtx, fact *types.Fact) error {
	if fact.ID == "" {
		return fmt.Errorf("fact ID is required")
	}
	if !fact.Scope.IsValid() {
		return fmt.Errorf("invalid fact scope: %s", fact.Scope)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO facts (id, key, value, scope)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			key = excluded.key,
			value = excluded.value,
			scope = excluded.scope
	`, fact.ID, fact.Key, fact.Value, fact.Scope)
	if err != nil {
		return fmt.Errorf("failed to upsert fact: %w", err)
	}
	return nil
}

func getFact(ctx context.Context, q dbtx, id string) (*types.Fact, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, key, value, scope
		FROM facts
		WHERE id = ?
	`, id)

	var fact types.Fact
	err := row.Scan(&fact.ID, &fact.Key, &fact.Value, &fact.Scope)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fact: %w", err)
	}
	return &fact, nil
}
