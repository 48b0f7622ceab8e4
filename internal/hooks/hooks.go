// Package hooks provides a hook system for extensibility.
// Hooks are executable scripts in .rwm/hooks/ that run after certain events.
package hooks

import (
	"os"
	"path/filepath"
	"time"
)

// Event types
const (
	EventCommit     = "commit"
	EventCheckpoint = "checkpoint"
)

// Hook file names
const (
	HookPostCommit     = "post-commit"
	HookPostCheckpoint = "post-checkpoint"
)

// Runner handles hook execution
type Runner struct {
	hooksDir string
	timeout  time.Duration
}

// NewRunner creates a new hook runner.
// hooksDir is typically .rwm/hooks/ relative to the project root.
func NewRunner(hooksDir string) *Runner {
	return &Runner{
		hooksDir: hooksDir,
		timeout:  10 * time.Second,
	}
}

// NewRunnerFromRoot creates a hook runner for a project root.
func NewRunnerFromRoot(root string) *Runner {
	return NewRunner(filepath.Join(root, ".rwm", "hooks"))
}

// SetTimeout overrides the default per-hook timeout.
func (r *Runner) SetTimeout(d time.Duration) {
	if d > 0 {
		r.timeout = d
	}
}

// Run executes a hook if it exists.
// Runs asynchronously - returns immediately, hook runs in background.
// The payload is marshaled to JSON and passed on stdin.
func (r *Runner) Run(event, sessionID string, payload any) {
	hookName := eventToHook(event)
	if hookName == "" {
		return
	}

	hookPath := filepath.Join(r.hooksDir, hookName)

	// Check if hook exists and is executable
	info, err := os.Stat(hookPath)
	if err != nil || info.IsDir() {
		return // Hook doesn't exist, skip silently
	}

	// Check if executable (Unix)
	if info.Mode()&0111 == 0 {
		return // Not executable, skip
	}

	// Run asynchronously (ignore error as this is fire-and-forget)
	go func() {
		_ = r.runHook(hookPath, event, sessionID, payload)
	}()
}

// RunSync executes a hook synchronously and returns any error.
// Useful for testing or when you need to wait for the hook.
func (r *Runner) RunSync(event, sessionID string, payload any) error {
	hookName := eventToHook(event)
	if hookName == "" {
		return nil
	}

	hookPath := filepath.Join(r.hooksDir, hookName)

	// Check if hook exists and is executable
	info, err := os.Stat(hookPath)
	if err != nil || info.IsDir() {
		return nil // Hook doesn't exist, skip silently
	}

	if info.Mode()&0111 == 0 {
		return nil // Not executable, skip
	}

	return r.runHook(hookPath, event, sessionID, payload)
}

// HookExists checks if a hook exists for an event
func (r *Runner) HookExists(event string) bool {
	hookName := eventToHook(event)
	if hookName == "" {
		return false
	}

	hookPath := filepath.Join(r.hooksDir, hookName)
	info, err := os.Stat(hookPath)
	if err != nil || info.IsDir() {
		return false
	}

	return info.Mode()&0111 != 0
}

func eventToHook(event string) string {
	switch event {
	case EventCommit:
		return HookPostCommit
	case EventCheckpoint:
		return HookPostCheckpoint
	default:
		return ""
	}
}
