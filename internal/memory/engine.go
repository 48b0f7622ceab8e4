// Package memory implements the working memory core: the state-frame
// commit pipeline, the budgeted rehydration bundle composer, record
// updates, and checkpoints. Handlers run one at a time; the engine
// serializes callers so the serve loop and one-shot commands can share
// one instance.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/untoldecay/rwm/internal/artifacts"
	"github.com/untoldecay/rwm/internal/debug"
	"github.com/untoldecay/rwm/internal/ids"
	"github.com/untoldecay/rwm/internal/session"
	"github.com/untoldecay/rwm/internal/storage"
	"github.com/untoldecay/rwm/internal/tokens"
	"github.com/untoldecay/rwm/internal/types"
)

// DefaultBudget is the bundle token budget used when the caller does
// not supply one.
const DefaultBudget = 4500

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Root    string           // workspace root for span reads and session resolution
	Budget  int              // default bundle token budget
	Family  tokens.Family    // token estimator backend
	Weights *Weights         // scoring constants, nil means built-ins
	Clock   func() time.Time // overridable for tests
}

// Engine owns the working memory core for one project. All public
// methods are safe for concurrent use; requests are processed to
// completion one at a time.
type Engine struct {
	mu       sync.Mutex
	store    storage.Store
	pool     *artifacts.Pool
	resolver *session.Resolver
	est      tokens.Estimator
	weights  Weights
	root     string
	budget   int
	clock    func() time.Time
}

// NewEngine wires the core against a store and an artifact pool.
func NewEngine(store storage.Store, pool *artifacts.Pool, opts *Options) *Engine {
	if opts == nil {
		opts = &Options{}
	}
	e := &Engine{
		store:    store,
		pool:     pool,
		resolver: session.NewResolver(),
		est:      tokens.New(opts.Family),
		weights:  DefaultWeights(),
		root:     opts.Root,
		budget:   opts.Budget,
		clock:    opts.Clock,
	}
	if e.root == "" {
		e.root = "."
	}
	if e.budget <= 0 {
		e.budget = DefaultBudget
	}
	if opts.Weights != nil {
		e.weights = *opts.Weights
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	return e
}

// Session resolves a raw session string against the engine's root.
func (e *Engine) Session(raw string) string {
	return e.resolver.Normalize(raw, e.root)
}

// Budget returns the default bundle token budget.
func (e *Engine) Budget() int {
	return e.budget
}

// CommitResult reports what one state frame produced. Artifact IDs are
// positional: the i-th ID corresponds to the i-th artifact input.
type CommitResult struct {
	SessionID   string    `json:"session_id"`
	TS          time.Time `json:"ts"`
	ArtifactIDs []string  `json:"artifactIds"`
	TaskID      string    `json:"task_id,omitempty"`
	EventIDs    []string  `json:"event_ids,omitempty"`
	FactIDs     []string  `json:"fact_ids,omitempty"`
}

// Commit applies one state frame: upsert the named task as doing,
// store the artifacts, append the events, converge the facts, then
// sweep unreferenced pool bodies.
//
// The frame is not atomic across those steps; a failure partway
// leaves the earlier upserts in place, and re-submitting the same
// frame converges because task, artifact, and fact IDs are
// deterministic. The event batch alone is transactional so a
// duplicate event ID cannot leave half the frame's events behind.
func (e *Engine) Commit(ctx context.Context, input *types.CommitInput) (*CommitResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sessionID := e.Session(input.SessionID)
	ts := e.clock().UTC()
	res := &CommitResult{
		SessionID:   sessionID,
		TS:          ts,
		ArtifactIDs: []string{},
	}

	var currentTaskID *string
	if strings.TrimSpace(input.Task) != "" {
		id, err := e.upsertFrameTask(ctx, input.Task, sessionID, ts)
		if err != nil {
			return nil, err
		}
		currentTaskID = &id
		res.TaskID = id
	}

	for i := range input.Artifacts {
		rec, err := e.pool.Prepare(ctx, &input.Artifacts[i], ts)
		if err != nil {
			return nil, fmt.Errorf("artifacts[%d]: %w", i, err)
		}
		if err := e.store.UpsertArtifact(ctx, rec); err != nil {
			return nil, fmt.Errorf("artifacts[%d]: %w", i, err)
		}
		res.ArtifactIDs = append(res.ArtifactIDs, rec.ID)
	}

	// The artifact ID list is complete before any event is built: a
	// decision without explicit evidence inherits every artifact this
	// frame produced, not just the ones upserted before it.
	if len(input.Decisions) > 0 {
		events := make([]*types.Event, 0, len(input.Decisions))
		for i := range input.Decisions {
			d := &input.Decisions[i]
			ev := &types.Event{
				ID:        d.ID,
				Kind:      d.Type,
				SessionID: sessionID,
				Summary:   d.Summary,
				TS:        ts,
			}
			if ev.ID == "" {
				ev.ID = ids.RID("D")
			}
			switch {
			case d.TaskID != "":
				taskID := d.TaskID
				ev.TaskID = &taskID
			case currentTaskID != nil:
				ev.TaskID = currentTaskID
			}
			if len(d.Evidence) > 0 {
				ev.EvidenceIDs = append([]string(nil), d.Evidence...)
			} else {
				ev.EvidenceIDs = append([]string(nil), res.ArtifactIDs...)
			}
			events = append(events, ev)
		}
		err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			for _, ev := range events {
				if err := tx.InsertEvent(ctx, ev); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			res.EventIDs = append(res.EventIDs, ev.ID)
		}
	}

	for i := range input.Facts {
		f := &input.Facts[i]
		scope := f.Scope
		if scope == "" {
			scope = types.ScopeRepo
		}
		fact := &types.Fact{
			ID:    ids.FactID(f.Key, string(scope)),
			Key:   f.Key,
			Value: f.Value,
			Scope: scope,
		}
		if err := e.store.UpsertFact(ctx, fact); err != nil {
			return nil, fmt.Errorf("facts[%d]: %w", i, err)
		}
		res.FactIDs = append(res.FactIDs, fact.ID)
	}

	e.pruneOrphans(ctx)
	return res, nil
}

// upsertFrameTask records the frame's task as in progress. The task ID
// is a slug of the title, so re-committing a known title addresses the
// same row; fields that only update calls set (parent, acceptance
// criteria) are carried forward rather than reset.
func (e *Engine) upsertFrameTask(ctx context.Context, title, sessionID string, ts time.Time) (string, error) {
	id := ids.TaskID(title)
	task := &types.Task{
		ID:        id,
		SessionID: sessionID,
		Title:     title,
		Status:    types.StatusDoing,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	existing, err := e.store.GetTask(ctx, id)
	if err != nil {
		return "", err
	}
	if existing != nil {
		task.ParentID = existing.ParentID
		task.AcceptCriteria = existing.AcceptCriteria
	}
	if err := e.store.UpsertTask(ctx, task); err != nil {
		return "", err
	}
	return id, nil
}

// pruneOrphans sweeps pool bodies no artifact row references. Failures
// are logged and swallowed; the sweep runs again after the next frame.
func (e *Engine) pruneOrphans(ctx context.Context) int {
	known, err := e.store.ListArtifactHashes(ctx)
	if err != nil {
		debug.Logf("prune skipped: %v\n", err)
		return 0
	}
	return e.pool.PruneOrphans(ctx, known)
}

// Prune runs the orphan sweep on demand and reports files removed.
func (e *Engine) Prune(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pruneOrphans(ctx)
}

// Canonicalize folds every stored row whose session shares the raw
// string's base into the canonical alias (suffix defaulting to main,
// no branch lookup). Returns the canonical ID and rows rewritten.
func (e *Engine) Canonicalize(ctx context.Context, raw string) (string, int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	canonical := session.CanonicalAlias(raw, e.root)
	base, _, _ := strings.Cut(canonical, "@")
	n, err := e.store.CanonicalizeSessions(ctx, base, canonical)
	if err != nil {
		return "", 0, err
	}
	return canonical, n, nil
}

// Sessions lists every session ID with stored state.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ListSessions(ctx)
}

// Statistics returns aggregate store counts.
func (e *Engine) Statistics(ctx context.Context) (*types.Statistics, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.GetStatistics(ctx)
}

// ResetSessionCache clears the resolver's branch cache. Tests use this
// after switching branches under a cached root.
func (e *Engine) ResetSessionCache() {
	e.resolver.ResetCache()
}
