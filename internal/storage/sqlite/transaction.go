package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/untoldecay/rwm/internal/storage"
	"github.com/untoldecay/rwm/internal/types"
)

// Verify sqliteTx implements storage.Transaction at compile time
var _ storage.Transaction = (*sqliteTx)(nil)

// sqliteTx implements the storage.Transaction interface. It wraps a
// dedicated database connection with an active transaction.
type sqliteTx struct {
	conn *sql.Conn
}

// RunInTransaction executes a function within a database transaction.
//
// The transaction uses BEGIN IMMEDIATE to acquire the write lock
// early, preventing deadlocks when multiple goroutines compete for it.
//
// Transaction lifecycle:
//  1. Acquire dedicated connection from pool
//  2. Begin IMMEDIATE transaction with retry on SQLITE_BUSY
//  3. Execute user function with Transaction interface
//  4. On success: COMMIT
//  5. On error or panic: ROLLBACK
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	// All operations in the transaction must use the same connection.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for transaction: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediateWithRetry(ctx, conn, 5, 10*time.Millisecond); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			// Background context so rollback completes even if ctx is
			// cancelled. A panic in fn also lands here.
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(&sqliteTx{conn: conn}); err != nil {
		return err // Rollback happens in defer
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// beginImmediateWithRetry starts an IMMEDIATE transaction, retrying
// with exponential backoff when another writer holds the lock. Only
// SQLITE_BUSY is retried; other errors surface immediately.
func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn, attempts int, backoff time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		_, err = conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if !isBusyError(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return err
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// UpsertTask upserts a task within the transaction.
func (t *sqliteTx) UpsertTask(ctx context.Context, task *types.Task) error {
	return upsertTask(ctx, t.conn, task)
}

// InsertEvent appends an event within the transaction.
func (t *sqliteTx) InsertEvent(ctx context.Context, event *types.Event) error {
	return insertEvent(ctx, t.conn, event)
}

// UpsertArtifact upserts an artifact within the transaction.
func (t *sqliteTx) UpsertArtifact(ctx context.Context, artifact *types.Artifact) error {
	return upsertArtifact(ctx, t.conn, artifact)
}

// UpsertFact upserts a fact within the transaction.
func (t *sqliteTx) UpsertFact(ctx context.Context, fact *types.Fact) error {
	return upsertFact(ctx, t.conn, fact)
}

// GetTask reads a task within the transaction, seeing uncommitted
// writes made earlier in the same transaction.
func (t *sqliteTx) GetTask(ctx context.Context, id string) (*types.Task, error) {
	return getTask(ctx, t.conn, id)
}
