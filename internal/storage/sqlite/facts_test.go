package sqlite

import (
	"context"
	"testing"

	"github.com/untoldecay/rwm/internal/ids"
	"github.com/untoldecay/rwm/internal/types"
)

func TestUpsertFactConvergesOnOneRow(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	id := ids.FactID("deploy.target", string(types.ScopeRepo))
	first := &types.Fact{ID: id, Key: "deploy.target", Value: "staging", Scope: types.ScopeRepo}
	if err := store.UpsertFact(ctx, first); err != nil {
		t.Fatalf("UpsertFact failed: %v", err)
	}

	second := &types.Fact{ID: id, Key: "deploy.target", Value: "production", Scope: types.ScopeRepo}
	if err := store.UpsertFact(ctx, second); err != nil {
		t.Fatalf("second UpsertFact failed: %v", err)
	}

	got, err := store.GetFact(ctx, id)
	if err != nil {
		t.Fatalf("GetFact failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetFact returned nil for existing fact")
	}
	if got.Value != "production" {
		t.Errorf("Value = %q, want updated in place", got.Value)
	}

	var count int
	if err := store.UnderlyingDB().QueryRow(`SELECT COUNT(*) FROM facts`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("fact rows = %d, want exactly 1 per (key, scope)", count)
	}
}

func TestFactScopesAreDistinctRows(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	for _, scope := range []types.FactScope{types.ScopeRepo, types.ScopeTeam} {
		fact := &types.Fact{
			ID:    ids.FactID("owner", string(scope)),
			Key:   "owner",
			Value: "platform",
			Scope: scope,
		}
		if err := store.UpsertFact(ctx, fact); err != nil {
			t.Fatalf("UpsertFact(%s) failed: %v", scope, err)
		}
	}

	facts, err := store.ListFacts(ctx)
	if err != nil {
		t.Fatalf("ListFacts failed: %v", err)
	}
	if len(facts) != 2 {
		t.Errorf("got %d facts, want 2 (same key, different scopes)", len(facts))
	}
}

func TestListFactsOrderedByKey(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	for _, key := range []string{"zeta", "alpha", "mid"} {
		fact := &types.Fact{
			ID:    ids.FactID(key, string(types.ScopeRepo)),
			Key:   key,
			Value: "v",
			Scope: types.ScopeRepo,
		}
		if err := store.UpsertFact(ctx, fact); err != nil {
			t.Fatalf("UpsertFact(%s) failed: %v", key, err)
		}
	}

	facts, err := store.ListFacts(ctx)
	if err != nil {
		t.Fatalf("ListFacts failed: %v", err)
	}
	if len(facts) != 3 {
		t.Fatalf("got %d facts, want 3", len(facts))
	}
	if facts[0].Key != "alpha" || facts[1].Key != "mid" || facts[2].Key != "zeta" {
		t.Errorf("order = [%s %s %s], want key-sorted", facts[0].Key, facts[1].Key, facts[2].Key)
	}
}

func TestGetFactMissing(t *testing.T) {
	store := newTestStore(t, "")

	got, err := store.GetFact(context.Background(), "F-nope")
	if err != nil {
		t.Fatalf("GetFact failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetFact = %+v, want nil for missing fact", got)
	}
}
