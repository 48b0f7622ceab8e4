package memory

import (
	"context"
	"strings"

	"github.com/untoldecay/rwm/internal/types"
)

// Update targets.
const (
	TargetTask     = "task"
	TargetArtifact = "artifact"
	TargetFact     = "fact"
)

// TaskUpdate carries partial task fields. Nil pointers leave the field
// untouched. AcceptCriteria uses an explicit presence flag so that an
// explicit null clears the criteria while omission preserves them.
type TaskUpdate struct {
	Title          *string
	Status         *types.TaskStatus
	ParentID       *string
	AcceptCriteria *string
	AcceptSet      bool
}

func (u *TaskUpdate) empty() bool {
	return u.Title == nil && u.Status == nil && u.ParentID == nil && !u.AcceptSet
}

// UpdateTask mutates one task in place and returns the updated row.
func (e *Engine) UpdateTask(ctx context.Context, id string, upd *TaskUpdate) (*types.Task, error) {
	if upd == nil || upd.empty() {
		return nil, types.NewError(types.ErrInvalidUpdate, "no mutable fields for task")
	}
	if upd.Title != nil {
		if strings.TrimSpace(*upd.Title) == "" {
			return nil, types.NewError(types.ErrValidation, "task title must not be empty")
		}
		if len(*upd.Title) > 500 {
			return nil, types.Errorf(types.ErrValidation, "task title exceeds 500 characters (%d)", len(*upd.Title))
		}
	}
	if upd.Status != nil && !upd.Status.IsValid() {
		return nil, types.Errorf(types.ErrValidation, "invalid task status: %s", *upd.Status)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	task, err := e.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, types.Errorf(types.ErrNotFound, "task %s not found", id)
	}

	if upd.Title != nil {
		task.Title = *upd.Title
	}
	if upd.Status != nil {
		task.Status = *upd.Status
	}
	if upd.ParentID != nil {
		task.ParentID = upd.ParentID
	}
	if upd.AcceptSet {
		task.AcceptCriteria = upd.AcceptCriteria
	}
	task.UpdatedAt = e.clock().UTC()

	if err := e.store.UpsertTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// ArtifactUpdate carries partial artifact fields. A new Text rewrites
// the stored body: the bytes are hashed and written to the pool, the
// row's uri/sha256/size follow, and the previous body becomes eligible
// for the next orphan sweep. The URI is derived state and not directly
// assignable.
type ArtifactUpdate struct {
	Kind *types.ArtifactKind
	Text *string
	Meta map[string]any
}

func (u *ArtifactUpdate) empty() bool {
	return u.Kind == nil && u.Text == nil && u.Meta == nil
}

// UpdateArtifact mutates one artifact in place and returns the updated
// row.
func (e *Engine) UpdateArtifact(ctx context.Context, id string, upd *ArtifactUpdate) (*types.Artifact, error) {
	if upd == nil || upd.empty() {
		return nil, types.NewError(types.ErrInvalidUpdate, "no mutable fields for artifact")
	}
	if upd.Kind != nil && !upd.Kind.IsValid() {
		return nil, types.Errorf(types.ErrValidation, "invalid artifact kind: %s", *upd.Kind)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	art, err := e.store.GetArtifact(ctx, id)
	if err != nil {
		return nil, err
	}
	if art == nil {
		return nil, types.Errorf(types.ErrNotFound, "artifact %s not found", id)
	}

	if upd.Kind != nil {
		art.Kind = *upd.Kind
	}
	if upd.Meta != nil {
		meta := make(map[string]any, len(upd.Meta))
		for k, v := range upd.Meta {
			meta[k] = v
		}
		// The origin stamp survives a meta replacement unless the
		// caller supplies a new one.
		if _, ok := meta["origin"]; !ok {
			if origin, ok := art.Meta["origin"]; ok {
				meta["origin"] = origin
			}
		}
		art.Meta = meta
	}

	if upd.Text != nil {
		meta := art.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		// A rewritten body makes a former pointer bodied.
		delete(meta, "pointer")
		rec, err := e.pool.Prepare(ctx, &types.ArtifactInput{
			ID:   art.ID,
			Kind: art.Kind,
			Text: upd.Text,
			Meta: meta,
		}, e.clock().UTC())
		if err != nil {
			return nil, err
		}
		rec.CreatedAt = art.CreatedAt
		art = rec
	}

	if err := e.store.UpsertArtifact(ctx, art); err != nil {
		return nil, err
	}
	return art, nil
}

// FactUpdate carries partial fact fields. Key and scope are identity
// (the fact ID hashes them), so only the value is mutable.
type FactUpdate struct {
	Value *string
}

// UpdateFact mutates one fact in place and returns the updated row.
func (e *Engine) UpdateFact(ctx context.Context, id string, upd *FactUpdate) (*types.Fact, error) {
	if upd == nil || upd.Value == nil {
		return nil, types.NewError(types.ErrInvalidUpdate, "no mutable fields for fact")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fact, err := e.store.GetFact(ctx, id)
	if err != nil {
		return nil, err
	}
	if fact == nil {
		return nil, types.Errorf(types.ErrNotFound, "fact %s not found", id)
	}

	fact.Value = *upd.Value
	if err := e.store.UpsertFact(ctx, fact); err != nil {
		return nil, err
	}
	return fact, nil
}
