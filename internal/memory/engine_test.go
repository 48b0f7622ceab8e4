package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/untoldecay/rwm/internal/ids"
	"github.com/untoldecay/rwm/internal/types"
)

func TestCommitFullFrame(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res := mustCommit(t, e, &types.CommitInput{
		SessionID: testSession,
		Task:      "Wire the parser",
		Decisions: []types.DecisionInput{
			{Type: types.EventDecision, Summary: "Hand-rolled recursive descent"},
		},
		Artifacts: []types.ArtifactInput{
			{Kind: types.ArtifactSnippet, Text: strptr("func parse() {}")},
			{Kind: types.ArtifactLog, URI: "https://ci.example.com/run/42"},
		},
		Facts: []types.FactInput{
			{Key: "build", Value: "go build ./...", Scope: types.ScopeRepo},
		},
	})

	if res.SessionID != testSession {
		t.Errorf("SessionID = %q, want %q", res.SessionID, testSession)
	}
	if !res.TS.Equal(testNow) {
		t.Errorf("TS = %v, want engine clock %v", res.TS, testNow)
	}
	if res.TaskID != ids.TaskID("Wire the parser") {
		t.Errorf("TaskID = %q, want derived from title", res.TaskID)
	}
	if len(res.ArtifactIDs) != 2 {
		t.Fatalf("got %d artifact IDs, want 2", len(res.ArtifactIDs))
	}
	if len(res.EventIDs) != 1 || len(res.FactIDs) != 1 {
		t.Errorf("EventIDs = %v, FactIDs = %v, want one of each", res.EventIDs, res.FactIDs)
	}

	task, err := e.store.GetTask(ctx, res.TaskID)
	if err != nil || task == nil {
		t.Fatalf("GetTask = %v, %v", task, err)
	}
	if task.Status != types.StatusDoing {
		t.Errorf("Status = %s, want doing after commit", task.Status)
	}
	if task.Title != "Wire the parser" {
		t.Errorf("Title = %q, want original casing preserved", task.Title)
	}
}

func TestCommitArtifactIDsArePositional(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res := mustCommit(t, e, &types.CommitInput{
		SessionID: testSession,
		Artifacts: []types.ArtifactInput{
			{Kind: types.ArtifactSnippet, Text: strptr("alpha")},
			{Kind: types.ArtifactSnippet, URI: "https://example.com/beta"},
			{Kind: types.ArtifactSnippet, Text: strptr("gamma")},
		},
	})
	if len(res.ArtifactIDs) != 3 {
		t.Fatalf("got %d artifact IDs, want 3", len(res.ArtifactIDs))
	}

	wantHashes := []string{
		ids.SumString("alpha"),
		ids.SumString("https://example.com/beta"),
		ids.SumString("gamma"),
	}
	for i, id := range res.ArtifactIDs {
		art, err := e.store.GetArtifact(ctx, id)
		if err != nil || art == nil {
			t.Fatalf("GetArtifact(%s) = %v, %v", id, art, err)
		}
		if art.SHA256 != wantHashes[i] {
			t.Errorf("ArtifactIDs[%d] resolves to hash %s, want positional match", i, art.SHA256)
		}
	}
}

// The task ID is a slug of the lowercased title truncated to twelve
// characters, and frame events without an explicit task link attach to
// it.
func TestCommitEventLinksToFrameTask(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res := mustCommit(t, e, &types.CommitInput{
		SessionID: testSession,
		Task:      "Implement feature",
		Decisions: []types.DecisionInput{
			{Type: types.EventDecision, Summary: "Chose approach"},
		},
	})
	if res.TaskID != "T-implement-fe" {
		t.Fatalf("TaskID = %q, want T-implement-fe", res.TaskID)
	}

	ev, err := e.store.GetEvent(ctx, res.EventIDs[0])
	if err != nil || ev == nil {
		t.Fatalf("GetEvent = %v, %v", ev, err)
	}
	if ev.TaskID == nil || *ev.TaskID != "T-implement-fe" {
		t.Errorf("event TaskID = %v, want frame task", ev.TaskID)
	}
}

func TestCommitDecisionExplicitTaskWins(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res := mustCommit(t, e, &types.CommitInput{
		SessionID: testSession,
		Task:      "Implement feature",
		Decisions: []types.DecisionInput{
			{Type: types.EventNote, Summary: "Belongs elsewhere", TaskID: "T-other-task-0"},
		},
	})

	ev, err := e.store.GetEvent(ctx, res.EventIDs[0])
	if err != nil || ev == nil {
		t.Fatalf("GetEvent = %v, %v", ev, err)
	}
	if ev.TaskID == nil || *ev.TaskID != "T-other-task-0" {
		t.Errorf("event TaskID = %v, want the decision's own", ev.TaskID)
	}
}

func TestCommitFactDedup(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	frame := func(value string) *types.CommitInput {
		return &types.CommitInput{
			SessionID: testSession,
			Facts:     []types.FactInput{{Key: "build", Value: value, Scope: types.ScopeRepo}},
		}
	}
	mustCommit(t, e, frame("npm run build"))
	mustCommit(t, e, frame("npm run build:prod"))

	facts, err := e.store.ListFacts(ctx)
	if err != nil {
		t.Fatalf("ListFacts failed: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("got %d facts, want 1 row per (key, scope)", len(facts))
	}
	if facts[0].Value != "npm run build:prod" {
		t.Errorf("Value = %q, want the latest commit's", facts[0].Value)
	}
	if facts[0].ID != ids.FactID("build", "repo") {
		t.Errorf("ID = %q, want deterministic over (key, scope)", facts[0].ID)
	}
}

func TestCommitFactScopeDefaultsToRepo(t *testing.T) {
	e := newTestEngine(t)

	res := mustCommit(t, e, &types.CommitInput{
		SessionID: testSession,
		Facts:     []types.FactInput{{Key: "owner", Value: "platform"}},
	})
	if res.FactIDs[0] != ids.FactID("owner", "repo") {
		t.Errorf("FactID = %q, want repo-scoped default", res.FactIDs[0])
	}
}

func TestCommitPointerArtifact(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res := mustCommit(t, e, &types.CommitInput{
		SessionID: testSession,
		Artifacts: []types.ArtifactInput{
			{Kind: types.ArtifactSnippet, URI: "workspace://README.md"},
		},
	})

	art, err := e.store.GetArtifact(ctx, res.ArtifactIDs[0])
	if err != nil || art == nil {
		t.Fatalf("GetArtifact = %v, %v", art, err)
	}
	if art.URI != "workspace://README.md" {
		t.Errorf("URI = %q, want preserved", art.URI)
	}
	if art.Size != 0 {
		t.Errorf("Size = %d, want 0 for a pointer", art.Size)
	}
	if art.SHA256 != ids.SumString("workspace://README.md") {
		t.Errorf("SHA256 = %s, want hash of the URI string", art.SHA256)
	}
	if _, err := os.Stat(filepath.Join(e.pool.Dir(), art.SHA256)); !os.IsNotExist(err) {
		t.Errorf("pool file exists for a pointer artifact (stat err = %v)", err)
	}
	origin, ok := art.Meta["origin"].(map[string]any)
	if !ok || origin["type"] != types.OriginWorkspaceURI {
		t.Errorf("origin = %v, want workspace-uri", art.Meta["origin"])
	}
}

func TestCommitEvidenceDefaulting(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res := mustCommit(t, e, &types.CommitInput{
		SessionID: testSession,
		Decisions: []types.DecisionInput{
			{Type: types.EventDecision, Summary: "Pinned evidence", Evidence: []string{"P-known"}},
			{Type: types.EventDecision, Summary: "Inherits everything"},
		},
		Artifacts: []types.ArtifactInput{
			{Kind: types.ArtifactSnippet, Text: strptr("one")},
			{Kind: types.ArtifactSnippet, Text: strptr("two")},
		},
	})

	pinned, err := e.store.GetEvent(ctx, res.EventIDs[0])
	if err != nil || pinned == nil {
		t.Fatalf("GetEvent = %v, %v", pinned, err)
	}
	if len(pinned.EvidenceIDs) != 1 || pinned.EvidenceIDs[0] != "P-known" {
		t.Errorf("explicit evidence = %v, want kept verbatim", pinned.EvidenceIDs)
	}

	inherited, err := e.store.GetEvent(ctx, res.EventIDs[1])
	if err != nil || inherited == nil {
		t.Fatalf("GetEvent = %v, %v", inherited, err)
	}
	if len(inherited.EvidenceIDs) != 2 {
		t.Fatalf("inherited evidence = %v, want both frame artifacts", inherited.EvidenceIDs)
	}
	for i, id := range res.ArtifactIDs {
		if inherited.EvidenceIDs[i] != id {
			t.Errorf("evidence[%d] = %s, want %s (full list, frame order)", i, inherited.EvidenceIDs[i], id)
		}
	}
}

func TestCommitDuplicateEventRollsBackBatch(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	mustCommit(t, e, &types.CommitInput{
		SessionID: testSession,
		Decisions: []types.DecisionInput{
			{ID: "D-taken1", Type: types.EventNote, Summary: "first frame"},
		},
	})

	_, err := e.Commit(ctx, &types.CommitInput{
		SessionID: testSession,
		Decisions: []types.DecisionInput{
			{ID: "D-fresh1", Type: types.EventNote, Summary: "would be new"},
			{ID: "D-taken1", Type: types.EventNote, Summary: "duplicate"},
		},
	})
	if err == nil {
		t.Fatal("Commit succeeded despite a duplicate event ID")
	}

	fresh, gerr := e.store.GetEvent(ctx, "D-fresh1")
	if gerr != nil {
		t.Fatalf("GetEvent failed: %v", gerr)
	}
	if fresh != nil {
		t.Error("half the event batch survived a failed commit")
	}
}

func TestCommitCarriesTaskFieldsForward(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res := mustCommit(t, e, &types.CommitInput{SessionID: testSession, Task: "Refine the cache"})

	if _, err := e.UpdateTask(ctx, res.TaskID, &TaskUpdate{
		AcceptCriteria: strptr("hit rate above 90%"),
		AcceptSet:      true,
		Status:         statusPtr(types.StatusBlocked),
	}); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	mustCommit(t, e, &types.CommitInput{SessionID: testSession, Task: "Refine the cache"})

	task, err := e.store.GetTask(ctx, res.TaskID)
	if err != nil || task == nil {
		t.Fatalf("GetTask = %v, %v", task, err)
	}
	if task.Status != types.StatusDoing {
		t.Errorf("Status = %s, want doing again after re-commit", task.Status)
	}
	if task.AcceptCriteria == nil || *task.AcceptCriteria != "hit rate above 90%" {
		t.Errorf("AcceptCriteria = %v, want carried forward", task.AcceptCriteria)
	}
}

func TestCommitPrunesOrphanBodies(t *testing.T) {
	e := newTestEngine(t)

	res := mustCommit(t, e, &types.CommitInput{
		SessionID: testSession,
		Artifacts: []types.ArtifactInput{{Kind: types.ArtifactSnippet, Text: strptr("keep me")}},
	})

	stray := ids.SumString("never referenced")
	if err := os.WriteFile(filepath.Join(e.pool.Dir(), stray), []byte("never referenced"), 0o600); err != nil {
		t.Fatalf("write stray: %v", err)
	}

	mustCommit(t, e, &types.CommitInput{SessionID: testSession, Facts: []types.FactInput{{Key: "k", Value: "v"}}})

	if _, err := os.Stat(filepath.Join(e.pool.Dir(), stray)); !os.IsNotExist(err) {
		t.Errorf("stray body survived the post-commit sweep (stat err = %v)", err)
	}
	kept, err := e.store.GetArtifact(context.Background(), res.ArtifactIDs[0])
	if err != nil || kept == nil {
		t.Fatalf("GetArtifact = %v, %v", kept, err)
	}
	if _, err := os.Stat(filepath.Join(e.pool.Dir(), kept.SHA256)); err != nil {
		t.Errorf("referenced body missing after sweep: %v", err)
	}
}

func TestCommitValidationRejectsBadFrame(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Commit(ctx, &types.CommitInput{
		SessionID: testSession,
		Artifacts: []types.ArtifactInput{{Kind: "PAINTING"}},
	})
	if !types.IsKind(err, types.ErrValidation) {
		t.Fatalf("err = %v, want validation kind", err)
	}

	stats, serr := e.store.GetStatistics(ctx)
	if serr != nil {
		t.Fatalf("GetStatistics failed: %v", serr)
	}
	if stats.TotalArtifacts != 0 || stats.TotalEvents != 0 {
		t.Errorf("rejected frame left rows behind: %+v", stats)
	}
}

func TestCommitResolvesSessionAlias(t *testing.T) {
	e := newTestEngine(t)

	res := mustCommit(t, e, &types.CommitInput{
		SessionID: "proj@feature/x",
		Facts:     []types.FactInput{{Key: "k", Value: "v"}},
	})
	if res.SessionID != "proj@feature-x" {
		t.Errorf("SessionID = %q, want sanitized suffix", res.SessionID)
	}
}

func TestCanonicalizeFoldsAliases(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	mustCommit(t, e, &types.CommitInput{
		SessionID: "proj@20250101",
		Task:      "Old dated work",
	})
	mustCommit(t, e, &types.CommitInput{
		SessionID: "proj@main",
		Task:      "Current work",
	})

	canonical, n, err := e.Canonicalize(ctx, "proj")
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	if canonical != "proj@main" {
		t.Errorf("canonical = %q, want proj@main", canonical)
	}
	if n == 0 {
		t.Error("no rows folded, want the dated alias rewritten")
	}

	sessions, err := e.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0] != "proj@main" {
		t.Errorf("sessions = %v, want only the canonical one", sessions)
	}
}

func statusPtr(s types.TaskStatus) *types.TaskStatus {
	return &s
}
