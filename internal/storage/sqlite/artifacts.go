package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/untoldecay/rwm/internal/types"
)

// UpsertArtifact inserts an artifact row or replaces the existing
// row's payload fields. created_at is preserved on update.
func (s *Store) UpsertArtifact(ctx context.Context, artifact *types.Artifact) error {
	return upsertArtifact(ctx, s.db, artifact)
}

// GetArtifact retrieves an artifact by ID. Returns (nil, nil) when no
// row matches.
func (s *Store) GetArtifact(ctx context.Context, id string) (*types.Artifact, error) {
	return getArtifact(ctx, s.db, id)
}

// ListArtifactHashes returns every distinct sha256 referenced by an
// artifact row. Pointer hashes are included; they simply never match
// a pool file.
func (s *Store) ListArtifactHashes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT sha256 FROM artifacts`)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifact hashes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hashes := []string{}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan artifact hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate artifact hashes: %w", err)
	}
	return hashes, nil
}

func upsertArtifact(ctx context.Context, q dbtx, artifact *types.Artifact) error {
	if artifact.ID == "" {
		return fmt.Errorf("artifact ID is required")
	}
	if !artifact.Kind.IsValid() {
		return fmt.Errorf("invalid artifact kind: %s", artifact.Kind)
	}

	meta, err := marshalMeta(artifact.Meta)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO artifacts (id, kind, uri, sha256, size, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			kind = excluded.kind,
			uri = excluded.uri,
			sha256 = excluded.sha256,
			size = excluded.size,
			meta = excluded.meta
	`, artifact.ID, artifact.Kind, artifact.URI, artifact.SHA256, artifact.Size, meta, artifact.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert artifact: %w", err)
	}
	return nil
}

func getArtifact(ctx context.Context, q dbtx, id string) (*types.Artifact, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, kind, uri, sha256, size, meta, created_at
		FROM artifacts
		WHERE id = ?
	`, id)

	var artifact types.Artifact
	var meta string

	err := row.Scan(
		&artifact.ID, &artifact.Kind, &artifact.URI, &artifact.SHA256,
		&artifact.Size, &meta, &artifact.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}

	if err := json.Unmarshal([]byte(meta), &artifact.Meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifact meta for %s: %w", id, err)
	}

	return &artifact, nil
}

func marshalMeta(meta map[string]any) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal artifact meta: %w", err)
	}
	return string(raw), nil
}
