package memory

import (
	"context"
	"time"

	"github.com/untoldecay/rwm/internal/artifacts"
	"github.com/untoldecay/rwm/internal/types"
	"github.com/untoldecay/rwm/internal/workspace"
)

// Default list caps for lookups that arrive without a limit.
const (
	defaultSearchLimit = 20
	defaultEventLimit  = 50
)

// FetchResult is one record looked up by ID. Kind names the table the
// ID matched. For artifacts, Resource carries the link a client can
// resolve for the body: the pool scheme for bodied artifacts, the
// stored URI for pointers.
type FetchResult struct {
	Kind     string `json:"kind"`
	Record   any    `json:"record"`
	Resource string `json:"resource,omitempty"`
}

// Record kinds returned by Fetch.
const (
	KindTask       = "task"
	KindEvent      = "event"
	KindArtifact   = "artifact"
	KindFact       = "fact"
	KindCheckpoint = "checkpoint"
)

// Fetch looks an ID up across tasks, events, artifacts, facts, and
// checkpoints, in that order. ID shapes differ per table but callers
// may supply their own, so every table is probed.
func (e *Engine) Fetch(ctx context.Context, id string) (*FetchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if task, err := e.store.GetTask(ctx, id); err != nil {
		return nil, err
	} else if task != nil {
		return &FetchResult{Kind: KindTask, Record: task}, nil
	}
	if ev, err := e.store.GetEvent(ctx, id); err != nil {
		return nil, err
	} else if ev != nil {
		return &FetchResult{Kind: KindEvent, Record: ev}, nil
	}
	if art, err := e.store.GetArtifact(ctx, id); err != nil {
		return nil, err
	} else if art != nil {
		res := &FetchResult{Kind: KindArtifact, Record: art}
		if art.IsPointer() {
			res.Resource = art.URI
		} else {
			res.Resource = artifacts.SchemeArtifact + art.SHA256
		}
		return res, nil
	}
	if fact, err := e.store.GetFact(ctx, id); err != nil {
		return nil, err
	} else if fact != nil {
		return &FetchResult{Kind: KindFact, Record: fact}, nil
	}
	if cp, err := e.store.GetCheckpoint(ctx, id); err != nil {
		return nil, err
	} else if cp != nil {
		return &FetchResult{Kind: KindCheckpoint, Record: cp}, nil
	}
	return nil, types.Errorf(types.ErrNotFound, "no record with id %s", id)
}

// Resolve reads the bytes behind an artifact:// or workspace://
// resource URI.
func (e *Engine) Resolve(uri string) (*artifacts.Resource, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.ResolveResource(uri)
}

// Span reads lines [startLine..endLine] of a workspace-relative file,
// 1-indexed inclusive, clamped to the file's length.
func (e *Engine) Span(path string, startLine, endLine int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return workspace.ReadSpan(e.root, path, startLine, endLine)
}

// Search runs substring matches over events, tasks, and facts. Facts
// are project-wide and ignore the session filter.
func (e *Engine) Search(ctx context.Context, rawSession, query string, limit int) (*types.SearchResults, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return e.store.Search(ctx, e.Session(rawSession), query, limit)
}

// EventsSince lists the session's events newest first. A zero since
// means no lower bound.
func (e *Engine) EventsSince(ctx context.Context, rawSession string, since time.Time, limit int) ([]*types.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if limit <= 0 {
		limit = defaultEventLimit
	}
	sessionID := e.Session(rawSession)
	if since.IsZero() {
		return e.store.ListRecentEvents(ctx, sessionID, limit)
	}
	return e.store.ListRecentEventsSince(ctx, sessionID, since, limit)
}
