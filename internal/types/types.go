// Package types defines the core data structures for the rwm working
// memory store: tasks, events, artifacts, facts, checkpoints, and the
// inputs accepted by the commit pipeline.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	StatusTodo    TaskStatus = "todo"
	StatusDoing   TaskStatus = "doing"
	StatusBlocked TaskStatus = "blocked"
	StatusDone    TaskStatus = "done"
	StatusReview  TaskStatus = "review"
)

// IsValid checks if the status is a valid task status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusTodo, StatusDoing, StatusBlocked, StatusDone, StatusReview:
		return true
	}
	return false
}

// EventKind classifies an append-only session event.
type EventKind string

const (
	EventDecision   EventKind = "DECISION"
	EventAssumption EventKind = "ASSUMPTION"
	EventFix        EventKind = "FIX"
	EventBlocker    EventKind = "BLOCKER"
	EventNote       EventKind = "NOTE"
	EventTestFail   EventKind = "TEST_FAIL"
	EventTestPass   EventKind = "TEST_PASS"
)

// IsValid checks if the kind is a valid event kind.
func (k EventKind) IsValid() bool {
	switch k {
	case EventDecision, EventAssumption, EventFix, EventBlocker,
		EventNote, EventTestFail, EventTestPass:
		return true
	}
	return false
}

// ArtifactKind classifies the payload of an artifact.
type ArtifactKind string

const (
	ArtifactDiff      ArtifactKind = "DIFF"
	ArtifactSnippet   ArtifactKind = "SNIPPET"
	ArtifactConfig    ArtifactKind = "CONFIG"
	ArtifactFixture   ArtifactKind = "FIXTURE"
	ArtifactTestTrace ArtifactKind = "TEST_TRACE"
	ArtifactLog       ArtifactKind = "LOG"
	ArtifactOther     ArtifactKind = "OTHER"
)

// IsValid checks if the kind is a valid artifact kind.
func (k ArtifactKind) IsValid() bool {
	switch k {
	case ArtifactDiff, ArtifactSnippet, ArtifactConfig, ArtifactFixture,
		ArtifactTestTrace, ArtifactLog, ArtifactOther:
		return true
	}
	return false
}

// FactScope is the visibility scope of a durable fact.
type FactScope string

const (
	ScopeRepo    FactScope = "repo"
	ScopeService FactScope = "service"
	ScopeTeam    FactScope = "team"
	ScopeGlobal  FactScope = "global"
)

// IsValid checks if the scope is a valid fact scope.
func (s FactScope) IsValid() bool {
	switch s {
	case ScopeRepo, ScopeService, ScopeTeam, ScopeGlobal:
		return true
	}
	return false
}

// EdgeKind classifies a relation edge. Edges are reserved for relation
// tracking between records; the schema carries them but no write path
// populates them yet.
type EdgeKind string

const (
	EdgeDependsOn EdgeKind = "depends_on"
	EdgeRelatesTo EdgeKind = "relates_to"
	EdgeTouches   EdgeKind = "touches"
)

// IsValid checks if the kind is a valid edge kind.
func (k EdgeKind) IsValid() bool {
	switch k {
	case EdgeDependsOn, EdgeRelatesTo, EdgeTouches:
		return true
	}
	return false
}

// Origin type stamps recorded into artifact metadata. Every artifact
// row carries exactly one origin stamp describing how its body was
// captured; caller-supplied stamps are never overwritten.
const (
	OriginText         = "text"
	OriginWorkspace    = "workspace"
	OriginWorkspaceURI = "workspace-uri"
	OriginURI          = "uri"
	OriginEmpty        = "empty"
)

// Task is a unit of work scoped to a session. Task IDs are derived
// from the title slug, so repeated commits naming the same title
// address the same row.
type Task struct {
	ID             string     `json:"id"`
	SessionID      string     `json:"session_id"`
	ParentID       *string    `json:"parent_id,omitempty"`
	Title          string     `json:"title"`
	Status         TaskStatus `json:"status"`
	AcceptCriteria *string    `json:"accept_criteria,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Event is an append-only record of something that happened in a
// session: a decision, an assumption, a test failure. Events are
// never updated or deleted once inserted.
type Event struct {
	ID          string    `json:"id"`
	Kind        EventKind `json:"kind"`
	TaskID      *string   `json:"task_id,omitempty"`
	SessionID   string    `json:"session_id"`
	Summary     string    `json:"summary"`
	EvidenceIDs []string  `json:"evidence_ids"`
	TS          time.Time `json:"ts"`
}

// Artifact is a captured piece of project material. Bodied artifacts
// store their bytes in the content-addressed pool under the hex
// SHA-256 of the body; pointer artifacts reference an external URI
// and store nothing (sha256 = hash of the URI string, size = 0).
type Artifact struct {
	ID        string         `json:"id"`
	Kind      ArtifactKind   `json:"kind"`
	URI       string         `json:"uri"`
	SHA256    string         `json:"sha256"`
	Size      int64          `json:"size"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// IsPointer reports whether the artifact references an external URI
// rather than a stored body.
func (a *Artifact) IsPointer() bool {
	return a.URI != "" && !strings.HasPrefix(a.URI, "artifact://")
}

// Fact is a durable project-wide key/value pair. Fact IDs are
// deterministic over (key, scope), so re-committing a fact updates
// the existing row in place.
type Fact struct {
	ID    string    `json:"id"`
	Key   string    `json:"key"`
	Value string    `json:"value"`
	Scope FactScope `json:"scope"`
}

// Checkpoint is a labeled save point with a JSON snapshot of the
// session state at creation time. Append-only.
type Checkpoint struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Label      string          `json:"label"`
	TS         time.Time       `json:"ts"`
	BundleMeta json.RawMessage `json:"bundle_meta,omitempty"`
}

// TokenMetric records the token cost of one bundle pointer, kept for
// budget diagnostics. Append-only.
type TokenMetric struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	PointerID string    `json:"pointer_id"`
	TokenCost int       `json:"token_cost"`
	Budget    int       `json:"budget"`
	CreatedAt time.Time `json:"created_at"`
}

// Edge is a typed relation between two records. Reserved.
type Edge struct {
	SrcID string   `json:"src_id"`
	DstID string   `json:"dst_id"`
	Kind  EdgeKind `json:"kind"`
}

// ArtifactInput describes one artifact in a state frame. Exactly one
// of Text, Path, or URI determines the shape; when none is present an
// empty bodied artifact is recorded. Text is a pointer so an explicit
// empty string still counts as a body.
type ArtifactInput struct {
	ID        string         `json:"id,omitempty"`
	Kind      ArtifactKind   `json:"kind"`
	URI       string         `json:"uri,omitempty"`
	Text      *string        `json:"text,omitempty"`
	Path      string         `json:"path,omitempty"`
	StartLine int            `json:"startLine,omitempty"`
	EndLine   int            `json:"endLine,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Validate checks the artifact input against the commit schema.
func (a *ArtifactInput) Validate() error {
	if a.Kind == "" {
		return NewError(ErrValidation, "artifact kind is required")
	}
	if !a.Kind.IsValid() {
		return Errorf(ErrValidation, "invalid artifact kind: %s", a.Kind)
	}
	if a.StartLine < 0 || a.EndLine < 0 {
		return NewError(ErrValidation, "artifact line numbers must be positive")
	}
	if a.StartLine > 0 && a.EndLine > 0 && a.StartLine > a.EndLine {
		return Errorf(ErrValidation, "artifact startLine %d exceeds endLine %d", a.StartLine, a.EndLine)
	}
	return nil
}

// DecisionInput describes one event in a state frame. When Evidence
// is empty the commit pipeline attaches every artifact ID produced by
// the same frame.
type DecisionInput struct {
	ID       string    `json:"id,omitempty"`
	Type     EventKind `json:"type"`
	TaskID   string    `json:"task_id,omitempty"`
	Summary  string    `json:"summary"`
	Evidence []string  `json:"evidence,omitempty"`
}

// Validate checks the decision input against the commit schema.
func (d *DecisionInput) Validate() error {
	if d.Type == "" {
		return NewError(ErrValidation, "decision type is required")
	}
	if !d.Type.IsValid() {
		return Errorf(ErrValidation, "invalid decision type: %s", d.Type)
	}
	if strings.TrimSpace(d.Summary) == "" {
		return NewError(ErrValidation, "decision summary is required")
	}
	return nil
}

// FactInput describes one durable fact in a state frame. Scope
// defaults to repo.
type FactInput struct {
	Key   string    `json:"key"`
	Value string    `json:"value"`
	Scope FactScope `json:"scope,omitempty"`
}

// Validate checks the fact input against the commit schema.
func (f *FactInput) Validate() error {
	if strings.TrimSpace(f.Key) == "" {
		return NewError(ErrValidation, "fact key is required")
	}
	if f.Scope != "" && !f.Scope.IsValid() {
		return Errorf(ErrValidation, "invalid fact scope: %s", f.Scope)
	}
	return nil
}

// CommitInput is one state frame: the task being worked, the events
// that happened, the artifacts captured, and the facts learned.
type CommitInput struct {
	SessionID string          `json:"session_id"`
	Task      string          `json:"task,omitempty"`
	Decisions []DecisionInput `json:"decisions,omitempty"`
	Artifacts []ArtifactInput `json:"artifacts,omitempty"`
	Facts     []FactInput     `json:"facts,omitempty"`
}

// Validate checks the whole frame. The session may still be an alias
// at this point; resolution happens after validation.
func (c *CommitInput) Validate() error {
	if len(c.Task) > 500 {
		return Errorf(ErrValidation, "task title exceeds 500 characters (%d)", len(c.Task))
	}
	for i := range c.Artifacts {
		if err := c.Artifacts[i].Validate(); err != nil {
			return fmt.Errorf("artifacts[%d]: %w", i, err)
		}
	}
	for i := range c.Decisions {
		if err := c.Decisions[i].Validate(); err != nil {
			return fmt.Errorf("decisions[%d]: %w", i, err)
		}
	}
	for i := range c.Facts {
		if err := c.Facts[i].Validate(); err != nil {
			return fmt.Errorf("facts[%d]: %w", i, err)
		}
	}
	return nil
}

// SearchResults groups the three per-table result sets of a search.
// Facts are project-wide and ignore the session filter.
type SearchResults struct {
	Events []Event `json:"events"`
	Tasks  []Task  `json:"tasks"`
	Facts  []Fact  `json:"facts"`
}

// Statistics holds aggregate store counts for status reporting.
type Statistics struct {
	TotalTasks       int `json:"total_tasks"`
	TodoTasks        int `json:"todo_tasks"`
	DoingTasks       int `json:"doing_tasks"`
	BlockedTasks     int `json:"blocked_tasks"`
	DoneTasks        int `json:"done_tasks"`
	ReviewTasks      int `json:"review_tasks"`
	TotalEvents      int `json:"total_events"`
	DecisionEvents   int `json:"decision_events"`
	FailureEvents    int `json:"failure_events"`
	TotalArtifacts   int `json:"total_artifacts"`
	PointerArtifacts int `json:"pointer_artifacts"`
	TotalFacts       int `json:"total_facts"`
	TotalCheckpoints int `json:"total_checkpoints"`
	Sessions         int `json:"sessions"`
}
