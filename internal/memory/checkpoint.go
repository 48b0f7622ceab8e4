package memory

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/untoldecay/rwm/internal/ids"
	"github.com/untoldecay/rwm/internal/types"
)

// checkpointListCap bounds each list in a checkpoint snapshot.
const checkpointListCap = 5

// CheckpointMeta is the trimmed session snapshot stored as a
// checkpoint's bundle_meta.
type CheckpointMeta struct {
	Objective    string       `json:"objective"`
	ActiveTasks  []TaskBrief  `json:"active_tasks"`
	RecentEvents []EventBrief `json:"recent_events"`
	Facts        []FactBrief  `json:"facts"`
}

// TaskBrief is a task trimmed to its identifying fields.
type TaskBrief struct {
	ID     string           `json:"id"`
	Title  string           `json:"title"`
	Status types.TaskStatus `json:"status"`
}

// EventBrief is an event trimmed to its identifying fields.
type EventBrief struct {
	ID      string          `json:"id"`
	Kind    types.EventKind `json:"kind"`
	Summary string          `json:"summary"`
}

// FactBrief is a fact trimmed to its identifying fields.
type FactBrief struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Checkpoint records a labeled save point carrying a snapshot of the
// session's current state: the objective, up to five active tasks,
// recent events, and facts.
func (e *Engine) Checkpoint(ctx context.Context, rawSession, label string) (*types.Checkpoint, error) {
	if strings.TrimSpace(label) == "" {
		return nil, types.NewError(types.ErrValidation, "checkpoint label is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sessionID := e.Session(rawSession)
	meta, err := e.buildCheckpointMeta(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}

	cp := &types.Checkpoint{
		ID:         ids.RID("C"),
		SessionID:  sessionID,
		Label:      label,
		TS:         e.clock().UTC(),
		BundleMeta: raw,
	}
	if err := e.store.InsertCheckpoint(ctx, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

func (e *Engine) buildCheckpointMeta(ctx context.Context, sessionID string) (*CheckpointMeta, error) {
	tasks, err := e.store.ListActiveTasks(ctx, sessionID, checkpointListCap)
	if err != nil {
		return nil, err
	}
	events, err := e.store.ListRecentEvents(ctx, sessionID, checkpointListCap)
	if err != nil {
		return nil, err
	}
	facts, err := e.store.ListFacts(ctx)
	if err != nil {
		return nil, err
	}
	if len(facts) > checkpointListCap {
		facts = facts[:checkpointListCap]
	}

	meta := &CheckpointMeta{
		Objective:    "No active task",
		ActiveTasks:  make([]TaskBrief, 0, len(tasks)),
		RecentEvents: make([]EventBrief, 0, len(events)),
		Facts:        make([]FactBrief, 0, len(facts)),
	}
	if len(tasks) > 0 {
		meta.Objective = tasks[0].Title
	}
	for _, t := range tasks {
		meta.ActiveTasks = append(meta.ActiveTasks, TaskBrief{ID: t.ID, Title: t.Title, Status: t.Status})
	}
	for _, ev := range events {
		meta.RecentEvents = append(meta.RecentEvents, EventBrief{ID: ev.ID, Kind: ev.Kind, Summary: ev.Summary})
	}
	for _, f := range facts {
		meta.Facts = append(meta.Facts, FactBrief{ID: f.ID, Key: f.Key, Value: f.Value})
	}
	return meta, nil
}

// Checkpoints lists the session's checkpoints, newest first.
func (e *Engine) Checkpoints(ctx context.Context, rawSession string, limit int) ([]*types.Checkpoint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	return e.store.ListCheckpoints(ctx, e.Session(rawSession), limit)
}
