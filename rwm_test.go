package rwm_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/untoldecay/rwm"
)

func TestNewStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	ctx := context.Background()
	store, err := rwm.NewStore(ctx, dbPath)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer store.Close()

	if store == nil {
		t.Error("expected non-nil store")
	}
}

func TestOpen(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, rwm.StateDirName), 0755); err != nil {
		t.Fatalf("failed to create state dir: %v", err)
	}

	ctx := context.Background()
	engine, store, err := rwm.Open(ctx, root)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	if engine == nil {
		t.Fatal("expected non-nil engine")
	}

	result, err := engine.Commit(ctx, &rwm.CommitInput{
		SessionID: "embed@test",
		Task:      "wire the embedding API",
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if result.SessionID != "embed@test" {
		t.Errorf("SessionID = %q, want %q", result.SessionID, "embed@test")
	}
	if result.TaskID == "" {
		t.Error("expected a task ID")
	}
}

func TestFindStateDir(t *testing.T) {
	tmpDir := t.TempDir()
	stateDir := filepath.Join(tmpDir, rwm.StateDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatalf("failed to create state dir: %v", err)
	}

	t.Setenv("RWM_DIR", stateDir)
	found := rwm.FindStateDir()
	if found != stateDir {
		t.Errorf("FindStateDir = %q, want %q", found, stateDir)
	}
}

func TestFindStateDirMissing(t *testing.T) {
	t.Setenv("RWM_DIR", filepath.Join(t.TempDir(), "does-not-exist"))
	if found := rwm.FindStateDir(); found != "" {
		t.Errorf("FindStateDir = %q, want empty", found)
	}
}

func TestFindDatabasePathEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "custom.db")
	t.Setenv("RWM_DB", dbPath)

	found := rwm.FindDatabasePath()
	if found != dbPath {
		t.Errorf("FindDatabasePath = %q, want %q", found, dbPath)
	}
}

// Test that exported constants have correct values
func TestConstants(t *testing.T) {
	if rwm.StatusTodo != "todo" {
		t.Errorf("StatusTodo = %q, want %q", rwm.StatusTodo, "todo")
	}
	if rwm.StatusDoing != "doing" {
		t.Errorf("StatusDoing = %q, want %q", rwm.StatusDoing, "doing")
	}
	if rwm.StatusBlocked != "blocked" {
		t.Errorf("StatusBlocked = %q, want %q", rwm.StatusBlocked, "blocked")
	}
	if rwm.StatusDone != "done" {
		t.Errorf("StatusDone = %q, want %q", rwm.StatusDone, "done")
	}

	if rwm.EventDecision != "DECISION" {
		t.Errorf("EventDecision = %q, want %q", rwm.EventDecision, "DECISION")
	}
	if rwm.EventTestFail != "TEST_FAIL" {
		t.Errorf("EventTestFail = %q, want %q", rwm.EventTestFail, "TEST_FAIL")
	}

	if rwm.ArtifactDiff != "DIFF" {
		t.Errorf("ArtifactDiff = %q, want %q", rwm.ArtifactDiff, "DIFF")
	}
	if rwm.ScopeRepo != "repo" {
		t.Errorf("ScopeRepo = %q, want %q", rwm.ScopeRepo, "repo")
	}
}
