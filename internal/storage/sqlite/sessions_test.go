package sqlite

import (
	"context"
	"testing"

	"github.com/untoldecay/rwm/internal/types"
)

func TestCanonicalizeSessions(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	mustUpsertTask(t, store, makeTask("T-1", "proj@feature-x", "On alias", types.StatusDoing, testTime))
	mustUpsertTask(t, store, makeTask("T-2", "proj@main", "Already canonical", types.StatusDoing, testTime))
	mustUpsertTask(t, store, makeTask("T-3", "unrelated@main", "Different base", types.StatusDoing, testTime))
	mustInsertEvent(t, store, makeEvent("E-1", types.EventNote, "proj@20250601", "date fallback row", testTime))

	checkpoint := &types.Checkpoint{ID: "C-1", SessionID: "proj@detached-abc12345", Label: "cp", TS: testTime}
	if err := store.InsertCheckpoint(ctx, checkpoint); err != nil {
		t.Fatalf("InsertCheckpoint failed: %v", err)
	}
	metrics := []*types.TokenMetric{
		{SessionID: "proj@old-branch", PointerID: "T-1", TokenCost: 10, Budget: 4500, CreatedAt: testTime},
	}
	if err := store.InsertTokenMetrics(ctx, metrics); err != nil {
		t.Fatalf("InsertTokenMetrics failed: %v", err)
	}

	n, err := store.CanonicalizeSessions(ctx, "proj", "proj@main")
	if err != nil {
		t.Fatalf("CanonicalizeSessions failed: %v", err)
	}
	// T-1, E-1, C-1, and the metric row move; T-2 is already canonical
	// and T-3 has a different base.
	if n != 4 {
		t.Errorf("rewrote %d rows, want 4", n)
	}

	task, err := store.GetTask(ctx, "T-1")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.SessionID != "proj@main" {
		t.Errorf("T-1 session = %s, want proj@main", task.SessionID)
	}

	task, err = store.GetTask(ctx, "T-3")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.SessionID != "unrelated@main" {
		t.Errorf("T-3 session = %s, different base must not move", task.SessionID)
	}

	// Second pass is a no-op.
	n, err = store.CanonicalizeSessions(ctx, "proj", "proj@main")
	if err != nil {
		t.Fatalf("second CanonicalizeSessions failed: %v", err)
	}
	if n != 0 {
		t.Errorf("second pass rewrote %d rows, want 0", n)
	}
}

func TestListSessions(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	sessions, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("got %d sessions on empty store, want 0", len(sessions))
	}

	mustUpsertTask(t, store, makeTask("T-1", "alpha@main", "t", types.StatusTodo, testTime))
	mustInsertEvent(t, store, makeEvent("E-1", types.EventNote, "beta@dev", "e", testTime))
	mustInsertEvent(t, store, makeEvent("E-2", types.EventNote, "alpha@main", "shared session", testTime))

	sessions, err = store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %v, want 2 distinct sessions", sessions)
	}
	if sessions[0] != "alpha@main" || sessions[1] != "beta@dev" {
		t.Errorf("sessions = %v, want sorted distinct IDs", sessions)
	}
}

func TestGetStatistics(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	mustUpsertTask(t, store, makeTask("T-1", "proj@main", "a", types.StatusDoing, testTime))
	mustUpsertTask(t, store, makeTask("T-2", "proj@main", "b", types.StatusDone, testTime))
	mustUpsertTask(t, store, makeTask("T-3", "proj@main", "c", types.StatusBlocked, testTime))

	mustInsertEvent(t, store, makeEvent("D-1", types.EventDecision, "proj@main", "d", testTime))
	mustInsertEvent(t, store, makeEvent("X-1", types.EventTestFail, "proj@main", "f", testTime))
	mustInsertEvent(t, store, makeEvent("B-1", types.EventBlocker, "proj@main", "b", testTime))
	mustInsertEvent(t, store, makeEvent("N-1", types.EventNote, "proj@main", "n", testTime))

	if err := store.UpsertArtifact(ctx, makeArtifact("P-1", types.ArtifactSnippet, "artifact://sha256/aa", "aa", 4, testTime)); err != nil {
		t.Fatalf("UpsertArtifact failed: %v", err)
	}
	if err := store.UpsertArtifact(ctx, makeArtifact("P-2", types.ArtifactLog, "https://example.com/log", "bb", 0, testTime)); err != nil {
		t.Fatalf("UpsertArtifact failed: %v", err)
	}

	stats, err := store.GetStatistics(ctx)
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}

	if stats.TotalTasks != 3 || stats.DoingTasks != 1 || stats.DoneTasks != 1 || stats.BlockedTasks != 1 {
		t.Errorf("task stats = %+v, want 3 total split across statuses", stats)
	}
	if stats.TotalEvents != 4 || stats.DecisionEvents != 1 || stats.FailureEvents != 2 {
		t.Errorf("event stats = %+v, want 4 total, 1 decision, 2 failures", stats)
	}
	if stats.TotalArtifacts != 2 || stats.PointerArtifacts != 1 {
		t.Errorf("artifact stats = %+v, want 2 total with 1 pointer", stats)
	}
	if stats.Sessions != 1 {
		t.Errorf("Sessions = %d, want 1", stats.Sessions)
	}
}
