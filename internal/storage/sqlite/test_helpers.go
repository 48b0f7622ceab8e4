package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/untoldecay/rwm/internal/types"
)

// newTestStore creates a store for testing with automatic cleanup.
// Pass "" for dbPath to use a temp file.
func newTestStore(t *testing.T, dbPath string) *Store {
	t.Helper()

	// Default to temp file for test isolation
	// File-based databases are more reliable than in-memory for connection pool scenarios
	if dbPath == "" {
		dbPath = t.TempDir() + "/test.db"
	}

	ctx := context.Background()
	store, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		if cerr := store.Close(); cerr != nil {
			t.Fatalf("Failed to close test database: %v", cerr)
		}
	})

	return store
}

// testTime is a fixed reference time so ordering assertions do not
// race the clock or trip over driver timestamp truncation.
var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func makeTask(id, sessionID, title string, status types.TaskStatus, at time.Time) *types.Task {
	return &types.Task{
		ID:        id,
		SessionID: sessionID,
		Title:     title,
		Status:    status,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func makeEvent(id string, kind types.EventKind, sessionID, summary string, at time.Time) *types.Event {
	return &types.Event{
		ID:          id,
		Kind:        kind,
		SessionID:   sessionID,
		Summary:     summary,
		EvidenceIDs: []string{},
		TS:          at,
	}
}

func makeArtifact(id string, kind types.ArtifactKind, uri, sha string, size int64, at time.Time) *types.Artifact {
	return &types.Artifact{
		ID:        id,
		Kind:      kind,
		URI:       uri,
		SHA256:    sha,
		Size:      size,
		CreatedAt: at,
	}
}

func mustUpsertTask(t *testing.T, store *Store, task *types.Task) {
	t.Helper()
	if err := store.UpsertTask(context.Background(), task); err != nil {
		t.Fatalf("UpsertTask(%q) failed: %v", task.ID, err)
	}
}

func mustInsertEvent(t *testing.T, store *Store, event *types.Event) {
	t.Helper()
	if err := store.InsertEvent(context.Background(), event); err != nil {
		t.Fatalf("InsertEvent(%q) failed: %v", event.ID, err)
	}
}
