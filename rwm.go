// Package rwm provides a minimal public API for embedding the working
// memory engine in custom orchestration.
//
// Most integrations should talk to the rwm binary over its line-delimited
// JSON protocol. This package exports only the essential types and
// functions needed for Go-based tooling that wants to drive the engine
// and storage layer programmatically.
package rwm

import (
	"context"
	"path/filepath"

	"github.com/untoldecay/rwm/internal/artifacts"
	"github.com/untoldecay/rwm/internal/memory"
	"github.com/untoldecay/rwm/internal/storage"
	"github.com/untoldecay/rwm/internal/storage/sqlite"
	"github.com/untoldecay/rwm/internal/types"
	"github.com/untoldecay/rwm/internal/workspace"
)

// StateDirName is the per-project state directory created by rwm init.
const StateDirName = workspace.StateDirName

// DatabaseName is the canonical database filename inside the state directory.
const DatabaseName = workspace.DatabaseName

// ArtifactsDirName is the content-addressed artifact pool directory
// inside the state directory.
const ArtifactsDirName = workspace.ArtifactsDirName

// Store is the interface for structured storage operations.
type Store = storage.Store

// Transaction provides atomic multi-operation support within a database
// transaction. Use Store.RunInTransaction() to obtain one.
type Transaction = storage.Transaction

// Engine coordinates commits, bundle composition and lookups for one
// project root.
type Engine = memory.Engine

// EngineOptions configures an Engine.
type EngineOptions = memory.Options

// Bundle is a budgeted resume bundle.
type Bundle = memory.Bundle

// Pointer is a single card inside a resume bundle.
type Pointer = memory.Pointer

// NewStore opens (creating if needed) the SQLite database at dbPath.
func NewStore(ctx context.Context, dbPath string) (Store, error) {
	return sqlite.New(ctx, dbPath)
}

// Open wires a ready engine for the project at root, opening the
// database and artifact pool under root/.rwm. The returned store must
// be closed by the caller once the engine is no longer needed.
func Open(ctx context.Context, root string) (*Engine, Store, error) {
	stateDir := filepath.Join(root, StateDirName)
	store, err := sqlite.New(ctx, filepath.Join(stateDir, DatabaseName))
	if err != nil {
		return nil, nil, err
	}
	pool := artifacts.NewPool(root, filepath.Join(stateDir, ArtifactsDirName))
	engine := memory.NewEngine(store, pool, &memory.Options{Root: root})
	return engine, store, nil
}

// FindStateDir finds the .rwm/ directory for the current working
// directory, walking up through ancestors. The RWM_DIR environment
// variable overrides discovery. Returns empty string if not found.
func FindStateDir() string {
	return workspace.FindStateDir()
}

// FindDatabasePath finds the rwm database in the current directory
// tree. The RWM_DB environment variable overrides discovery. Returns
// empty string if no project state exists.
func FindDatabasePath() string {
	return workspace.FindDatabasePath()
}

// Core types from internal/types
type (
	Task          = types.Task
	TaskStatus    = types.TaskStatus
	Event         = types.Event
	EventKind     = types.EventKind
	Artifact      = types.Artifact
	ArtifactKind  = types.ArtifactKind
	Fact          = types.Fact
	FactScope     = types.FactScope
	Checkpoint    = types.Checkpoint
	TokenMetric   = types.TokenMetric
	Edge          = types.Edge
	EdgeKind      = types.EdgeKind
	CommitInput   = types.CommitInput
	ArtifactInput = types.ArtifactInput
	DecisionInput = types.DecisionInput
	FactInput     = types.FactInput
	SearchResults = types.SearchResults
	Statistics    = types.Statistics
)

// TaskStatus constants
const (
	StatusTodo    = types.StatusTodo
	StatusDoing   = types.StatusDoing
	StatusBlocked = types.StatusBlocked
	StatusDone    = types.StatusDone
	StatusReview  = types.StatusReview
)

// EventKind constants
const (
	EventDecision   = types.EventDecision
	EventAssumption = types.EventAssumption
	EventFix        = types.EventFix
	EventBlocker    = types.EventBlocker
	EventNote       = types.EventNote
	EventTestFail   = types.EventTestFail
	EventTestPass   = types.EventTestPass
)

// ArtifactKind constants
const (
	ArtifactDiff      = types.ArtifactDiff
	ArtifactSnippet   = types.ArtifactSnippet
	ArtifactConfig    = types.ArtifactConfig
	ArtifactFixture   = types.ArtifactFixture
	ArtifactTestTrace = types.ArtifactTestTrace
	ArtifactLog       = types.ArtifactLog
	ArtifactOther     = types.ArtifactOther
)

// FactScope constants
const (
	ScopeRepo    = types.ScopeRepo
	ScopeService = types.ScopeService
	ScopeTeam    = types.ScopeTeam
	ScopeGlobal  = types.ScopeGlobal
)
