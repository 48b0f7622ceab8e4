package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/untoldecay/rwm/internal/storage"
	"github.com/untoldecay/rwm/internal/types"
)

func TestRunInTransactionCommits(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.UpsertTask(ctx, makeTask("T-tx", "proj@main", "In transaction", types.StatusDoing, testTime)); err != nil {
			return err
		}
		for _, id := range []string{"D-1", "D-2"} {
			if err := tx.InsertEvent(ctx, makeEvent(id, types.EventDecision, "proj@main", "batch", testTime)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTransaction failed: %v", err)
	}

	task, err := store.GetTask(ctx, "T-tx")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task == nil {
		t.Fatal("committed task not visible after transaction")
	}
	events, err := store.ListRecentEvents(ctx, "proj@main", 10)
	if err != nil {
		t.Fatalf("ListRecentEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want both batch inserts committed", len(events))
	}
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	// Pre-existing event collides with the second batch insert.
	mustInsertEvent(t, store, makeEvent("D-dup", types.EventDecision, "proj@main", "existing", testTime))

	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.InsertEvent(ctx, makeEvent("D-new", types.EventDecision, "proj@main", "first of batch", testTime)); err != nil {
			return err
		}
		return tx.InsertEvent(ctx, makeEvent("D-dup", types.EventDecision, "proj@main", "collides", testTime))
	})
	if err == nil {
		t.Fatal("expected duplicate insert to fail the transaction")
	}

	// The first insert of the batch must have been rolled back.
	got, err := store.GetEvent(ctx, "D-new")
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if got != nil {
		t.Error("half-committed batch: D-new survived a rolled-back transaction")
	}
}

func TestRunInTransactionPropagatesError(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	sentinel := errors.New("caller error")
	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("error = %v, want caller error passed through", err)
	}
}

func TestRunInTransactionReadYourWrites(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.UpsertTask(ctx, makeTask("T-ryw", "proj@main", "Visible inside", types.StatusDoing, testTime)); err != nil {
			return err
		}
		got, err := tx.GetTask(ctx, "T-ryw")
		if err != nil {
			return err
		}
		if got == nil {
			t.Error("uncommitted write not visible inside its own transaction")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTransaction failed: %v", err)
	}
}

func TestRunInTransactionRollsBackOnPanic(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("panic did not propagate out of RunInTransaction")
			}
		}()
		_ = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			_ = tx.UpsertTask(ctx, makeTask("T-panic", "proj@main", "Doomed", types.StatusDoing, testTime))
			panic("boom")
		})
	}()

	got, err := store.GetTask(ctx, "T-panic")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got != nil {
		t.Error("write survived a panicking transaction")
	}
}
