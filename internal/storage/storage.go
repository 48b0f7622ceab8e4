// Package storage defines the interface for working memory storage backends.
package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/untoldecay/rwm/internal/types"
)

// Transaction provides atomic multi-operation support within a single database transaction.
//
// The Transaction interface exposes the write subset of Store methods that execute
// within a single database transaction. This enables atomic workflows where multiple
// writes must either all succeed or all fail (e.g., inserting the event batch of a
// commit so a duplicate event ID does not leave half the batch behind).
//
// # Transaction Semantics
//
//   - All operations within the transaction share the same database connection
//   - Changes are not visible to other connections until commit
//   - If any operation returns an error, the transaction is rolled back
//   - If the callback function panics, the transaction is rolled back
//   - On successful return from the callback, the transaction is committed
//
// # SQLite Specifics
//
//   - Uses BEGIN IMMEDIATE mode to acquire write lock early
//   - This prevents deadlocks when multiple operations compete for the same lock
//   - IMMEDIATE mode serializes concurrent transactions properly
//
// # Example Usage
//
//	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
//	    for _, ev := range events {
//	        if err := tx.InsertEvent(ctx, ev); err != nil {
//	            return err // Triggers rollback
//	        }
//	    }
//	    return nil // Triggers commit
//	})
type Transaction interface {
	UpsertTask(ctx context.Context, task *types.Task) error
	InsertEvent(ctx context.Context, event *types.Event) error
	UpsertArtifact(ctx context.Context, artifact *types.Artifact) error
	UpsertFact(ctx context.Context, fact *types.Fact) error

	// GetTask exists for read-your-writes within a transaction.
	GetTask(ctx context.Context, id string) (*types.Task, error)
}

// Store is the persistence surface for working memory state.
//
// Get* methods return (nil, nil) when no row matches; callers decide
// whether absence is an error. List* methods return empty slices, never
// nil errors for empty results.
type Store interface {
	// Task operations
	UpsertTask(ctx context.Context, task *types.Task) error
	GetTask(ctx context.Context, id string) (*types.Task, error)
	ListActiveTasks(ctx context.Context, sessionID string, limit int) ([]*types.Task, error)

	// Event operations. InsertEvent fails on a duplicate ID: the event
	// log is append-only and rows are never rewritten.
	InsertEvent(ctx context.Context, event *types.Event) error
	GetEvent(ctx context.Context, id string) (*types.Event, error)
	ListRecentEvents(ctx context.Context, sessionID string, limit int) ([]*types.Event, error)
	ListRecentEventsSince(ctx context.Context, sessionID string, since time.Time, limit int) ([]*types.Event, error)

	// Artifact operations
	UpsertArtifact(ctx context.Context, artifact *types.Artifact) error
	GetArtifact(ctx context.Context, id string) (*types.Artifact, error)
	ListArtifactHashes(ctx context.Context) ([]string, error)

	// Fact operations
	UpsertFact(ctx context.Context, fact *types.Fact) error
	GetFact(ctx context.Context, id string) (*types.Fact, error)
	ListFacts(ctx context.Context) ([]*types.Fact, error)

	// Checkpoint operations
	InsertCheckpoint(ctx context.Context, checkpoint *types.Checkpoint) error
	GetCheckpoint(ctx context.Context, id string) (*types.Checkpoint, error)
	ListCheckpoints(ctx context.Context, sessionID string, limit int) ([]*types.Checkpoint, error)

	// Token accounting for bundle composition
	InsertTokenMetrics(ctx context.Context, entries []*types.TokenMetric) error

	// Search runs three parallel substring matches: events by summary or
	// ID, tasks by title or ID, facts by key or value. Facts are
	// project-wide, so their match ignores the session filter.
	Search(ctx context.Context, sessionID, query string, limit int) (*types.SearchResults, error)

	// ListRecordIDs returns every record ID across all record tables,
	// for fuzzy-match suggestions on failed lookups.
	ListRecordIDs(ctx context.Context) ([]string, error)

	// Session operations. CanonicalizeSessions folds every row whose
	// session_id starts with "<base>@" into the canonical ID, across
	// tasks, events, checkpoints, and token metrics, and reports rows
	// rewritten.
	CanonicalizeSessions(ctx context.Context, base, canonical string) (int64, error)
	ListSessions(ctx context.Context) ([]string, error)

	// GetStatistics returns aggregate counts for status reporting.
	GetStatistics(ctx context.Context) (*types.Statistics, error)

	// RunInTransaction executes fn within a database transaction.
	//
	// The function receives a Transaction interface for performing
	// operations atomically. If fn returns an error, the transaction is
	// rolled back. If fn returns nil, the transaction is committed.
	//
	// Safety notes:
	//   - Do not use the outer Store within fn; use only the Transaction
	//   - Do not retain the Transaction after fn returns
	//   - Uses BEGIN IMMEDIATE for SQLite to acquire write lock early
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// Lifecycle
	Close() error

	// Path returns the filesystem path of the backing database.
	Path() string

	// UnderlyingDB exposes the raw handle for maintenance commands.
	UnderlyingDB() *sql.DB
}
