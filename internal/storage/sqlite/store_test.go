package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/untoldecay/rwm/internal/types"
)

func TestNewCreatesSchema(t *testing.T) {
	store := newTestStore(t, "")

	tables := []string{"tasks", "events", "artifacts", "facts", "checkpoints", "token_metrics", "edges", "meta"}
	for _, table := range tables {
		var name string
		err := store.UnderlyingDB().QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after New: %v", table, err)
		}
	}
}

func TestNewStampsSchemaVersion(t *testing.T) {
	store := newTestStore(t, "")

	var value string
	err := store.UnderlyingDB().QueryRow(
		`SELECT value FROM meta WHERE key = 'schema_version'`,
	).Scan(&value)
	if err != nil {
		t.Fatalf("schema_version not stamped: %v", err)
	}
	if value != "1" {
		t.Errorf("schema_version = %q, want %q", value, "1")
	}
}

func TestNewRejectsNewerSchema(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := store.UnderlyingDB().Exec(
		`UPDATE meta SET value = '99' WHERE key = 'schema_version'`,
	); err != nil {
		t.Fatalf("failed to bump schema version: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err = New(ctx, dbPath)
	if err == nil {
		t.Fatal("expected error opening database with newer schema version")
	}
	if !strings.Contains(err.Error(), "newer than supported") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewInMemory(t *testing.T) {
	ctx := context.Background()
	store, err := New(ctx, ":memory:")
	if err != nil {
		t.Fatalf("New(:memory:) failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	task := makeTask("T-mem", "proj@main", "In-memory task", types.StatusTodo, testTime)
	if err := store.UpsertTask(ctx, task); err != nil {
		t.Fatalf("UpsertTask failed: %v", err)
	}

	got, err := store.GetTask(ctx, "T-mem")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got == nil || got.Title != "In-memory task" {
		t.Errorf("GetTask = %+v, want in-memory task back", got)
	}
}

func TestReopenPersists(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	mustUpsertTask(t, store, makeTask("T-persist", "proj@main", "Persisted", types.StatusDoing, testTime))
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, err := reopened.GetTask(ctx, "T-persist")
	if err != nil {
		t.Fatalf("GetTask after reopen failed: %v", err)
	}
	if got == nil {
		t.Fatal("task lost across close/reopen")
	}
	if got.Status != types.StatusDoing {
		t.Errorf("Status = %s, want doing", got.Status)
	}
}

func TestPathIsAbsolute(t *testing.T) {
	store := newTestStore(t, "")
	if !filepath.IsAbs(store.Path()) {
		t.Errorf("Path() = %q, want absolute path", store.Path())
	}
}

func TestIsClosed(t *testing.T) {
	ctx := context.Background()
	store, err := New(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if store.IsClosed() {
		t.Error("IsClosed true before Close")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !store.IsClosed() {
		t.Error("IsClosed false after Close")
	}
}
