// Package rpc exposes the memory engine as named operations over a
// line-delimited request/response channel. The host process owns the
// framing: it writes one JSON request per line on stdin and reads one
// JSON response per line from stdout.
package rpc

import (
	"encoding/json"
	"strings"

	"github.com/untoldecay/rwm/internal/types"
)

// Operation constants for all rwm requests.
const (
	OpPing     = "ping"
	OpStatus   = "status"
	OpShutdown = "shutdown"

	OpMemoryResume     = "memory_resume"
	OpMemoryCommit     = "memory_commit"
	OpMemoryUpdate     = "memory_update"
	OpMemoryFetch      = "memory_fetch"
	OpMemorySpan       = "memory_span"
	OpMemorySearch     = "memory_search"
	OpMemoryCheckpoint = "memory_checkpoint"
)

// Bounds enforced at the protocol edge.
const (
	maxTokenBudget = 1_000_000
	maxSearchLimit = 200
)

// Request is one operation sent by the host.
type Request struct {
	Operation     string          `json:"operation"`
	Args          json.RawMessage `json:"args"`
	Actor         string          `json:"actor,omitempty"`
	RequestID     string          `json:"request_id,omitempty"`
	ClientVersion string          `json:"client_version,omitempty"` // Client version for compatibility checks
}

// Response is the reply to one request.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Result is the data payload of a successful operation: a text
// rendering for the transcript plus the machine-readable record.
type Result struct {
	Text       string `json:"text"`
	Structured any    `json:"structured,omitempty"`
}

// ResumeArgs represents arguments for the memory_resume operation. An
// empty session derives from the workspace; a zero budget uses the
// engine default.
type ResumeArgs struct {
	SessionID   string `json:"session_id"`
	TokenBudget int    `json:"token_budget,omitempty"`
}

// Validate checks the resume arguments.
func (a *ResumeArgs) Validate() error {
	if a.TokenBudget < 0 || a.TokenBudget > maxTokenBudget {
		return types.Errorf(types.ErrValidation, "token_budget must be in 1..%d", maxTokenBudget)
	}
	return nil
}

// UpdateArgs represents arguments for the memory_update operation. One
// flat struct covers all three targets; handlers read the fields their
// target supports and ignore the rest. AcceptCriteria stays raw so an
// explicit null (clear) is distinguishable from an omitted field
// (preserve).
type UpdateArgs struct {
	Target string `json:"target"`
	ID     string `json:"id"`

	// Task fields
	Title          *string         `json:"title,omitempty"`
	Status         *string         `json:"status,omitempty"`
	ParentID       *string         `json:"parent_id,omitempty"`
	AcceptCriteria json.RawMessage `json:"accept_criteria,omitempty"`

	// Artifact fields
	Kind *string        `json:"kind,omitempty"`
	Text *string        `json:"text,omitempty"`
	Meta map[string]any `json:"meta,omitempty"`

	// Fact fields
	Value *string `json:"value,omitempty"`
}

// Validate checks the update arguments.
func (a *UpdateArgs) Validate() error {
	switch a.Target {
	case "task", "artifact", "fact":
	default:
		return types.Errorf(types.ErrValidation, "target must be task, artifact, or fact, got %q", a.Target)
	}
	if strings.TrimSpace(a.ID) == "" {
		return types.NewError(types.ErrValidation, "id is required")
	}
	return nil
}

// FetchArgs represents arguments for the memory_fetch operation.
type FetchArgs struct {
	ID string `json:"id"`
}

// Validate checks the fetch arguments.
func (a *FetchArgs) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return types.NewError(types.ErrValidation, "id is required")
	}
	return nil
}

// SpanArgs represents arguments for the memory_span operation. Lines
// are 1-indexed inclusive.
type SpanArgs struct {
	Path      string `json:"path"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
}

// Validate checks the span arguments.
func (a *SpanArgs) Validate() error {
	if strings.TrimSpace(a.Path) == "" {
		return types.NewError(types.ErrValidation, "path is required")
	}
	if a.StartLine < 1 || a.EndLine < 1 {
		return types.NewError(types.ErrValidation, "startLine and endLine must be positive")
	}
	if a.EndLine < a.StartLine {
		return types.Errorf(types.ErrValidation, "endLine %d is before startLine %d", a.EndLine, a.StartLine)
	}
	return nil
}

// SearchArgs represents arguments for the memory_search operation. A
// zero limit uses the engine default.
type SearchArgs struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Limit     int    `json:"limit,omitempty"`
}

// Validate checks the search arguments.
func (a *SearchArgs) Validate() error {
	if strings.TrimSpace(a.Query) == "" {
		return types.NewError(types.ErrValidation, "query is required")
	}
	if a.Limit < 0 || a.Limit > maxSearchLimit {
		return types.Errorf(types.ErrValidation, "limit must be in 1..%d", maxSearchLimit)
	}
	return nil
}

// CheckpointArgs represents arguments for the memory_checkpoint
// operation.
type CheckpointArgs struct {
	SessionID string `json:"session_id"`
	Label     string `json:"label"`
}

// PingResult is the structured payload of the ping operation.
type PingResult struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// StatusResult is the structured payload of the status operation.
type StatusResult struct {
	Version       string            `json:"version"`
	Root          string            `json:"root"`
	DatabasePath  string            `json:"database_path"`
	ArtifactsPath string            `json:"artifacts_path"`
	PID           int               `json:"pid"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	LastActivity  string            `json:"last_activity"`
	Sessions      []string          `json:"sessions,omitempty"`
	Store         *types.Statistics `json:"store,omitempty"`
	Requests      []OpMetric        `json:"requests,omitempty"`
}

// CheckpointAck is the structured payload of memory_checkpoint.
type CheckpointAck struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Label     string `json:"label"`
}

// SpanResult is the structured payload of memory_span.
type SpanResult struct {
	Path      string `json:"path"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	Text      string `json:"text"`
}

// okResult wraps a payload into a successful response.
func okResult(text string, structured any) Response {
	data, err := json.Marshal(Result{Text: text, Structured: structured})
	if err != nil {
		return Response{Success: false, Error: "io: failed to encode response: " + err.Error()}
	}
	return Response{Success: true, Data: data}
}

// failure wraps an error into a failed response. Kinded errors render
// with their kind prefix so clients can branch without parsing prose.
func failure(err error) Response {
	return Response{Success: false, Error: err.Error()}
}
