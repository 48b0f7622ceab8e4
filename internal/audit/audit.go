// Package audit appends interaction records to .rwm/interactions.jsonl.
// The log is append-only JSONL so multiple tools can share it through
// git without merge conflicts inside a line.
package audit

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/untoldecay/rwm/internal/workspace"
)

const (
	// FileName is the audit log file name stored under .rwm/.
	FileName = "interactions.jsonl"
	idPrefix = "int-"
)

// Entry is one audit record. Kind is free-form ("llm_call" is the
// only kind written today); Extra carries anything without a field.
type Entry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`

	Actor  string `json:"actor,omitempty"`
	TaskID string `json:"task_id,omitempty"`

	// LLM call details
	Model    string `json:"model,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`
}

// Path returns the audit log location inside the project state dir.
func Path() (string, error) {
	stateDir := workspace.FindStateDir()
	if stateDir == "" {
		return "", fmt.Errorf("no .rwm directory found")
	}
	return filepath.Join(stateDir, FileName), nil
}

// Append writes e to the log as one JSON line, creating the file on
// first use. A zero CreatedAt is stamped with the current UTC time,
// and a missing ID gets a random one. Existing lines are never touched.
func Append(e *Entry) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil entry")
	}
	if e.Kind == "" {
		return "", fmt.Errorf("kind is required")
	}

	p, err := Path()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil {
		return "", fmt.Errorf("failed to create .rwm directory: %w", err)
	}

	if e.ID == "" {
		var b [4]byte
		if _, err := rand.Read(b[:]); err != nil {
			return "", fmt.Errorf("failed to generate id: %w", err)
		}
		e.ID = idPrefix + hex.EncodeToString(b[:])
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	} else {
		e.CreatedAt = e.CreatedAt.UTC()
	}

	// 0644: the log is meant to be committed and read by other tools.
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644) // nolint:gosec
	if err != nil {
		return "", fmt.Errorf("failed to open interactions log: %w", err)
	}
	defer func() { _ = f.Close() }()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return "", fmt.Errorf("failed to write interactions log entry: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush interactions log: %w", err)
	}

	return e.ID, nil
}
