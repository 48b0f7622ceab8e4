package distill

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/untoldecay/rwm/internal/types"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestNewDigestClient_RequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := NewDigestClient("")
	if err == nil {
		t.Fatal("expected error when API key is missing")
	}
	if !errors.Is(err, ErrAPIKeyRequired) {
		t.Fatalf("expected ErrAPIKeyRequired, got %v", err)
	}
}

func TestNewDigestClient_EnvVarUsedWhenNoExplicitKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key-from-env")

	client, err := NewDigestClient("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client == nil {
		t.Fatal("expected non-nil client")
	}
}

func digestTask() *types.Task {
	return &types.Task{
		ID:        "T-fix-resolver",
		SessionID: "proj@main",
		Title:     "Fix the session resolver",
		Status:    types.StatusDone,
	}
}

func digestEvents() []*types.Event {
	taskID := "T-fix-resolver"
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []*types.Event{
		{ID: "D-000001", Kind: types.EventDecision, TaskID: &taskID, SessionID: "proj@main", Summary: "Resolve sessions from the repo directory name", TS: ts},
		{ID: "D-000002", Kind: types.EventFix, TaskID: &taskID, SessionID: "proj@main", Summary: "Detached HEAD now falls back to the short commit hash", TS: ts.Add(time.Hour)},
	}
}

func TestRenderDigestPrompt(t *testing.T) {
	client, err := NewDigestClient("test-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt, err := client.renderDigestPrompt(digestTask(), digestEvents())
	if err != nil {
		t.Fatalf("failed to render prompt: %v", err)
	}

	if !strings.Contains(prompt, "Fix the session resolver") {
		t.Error("prompt should contain task title")
	}
	if !strings.Contains(prompt, "status: done") {
		t.Error("prompt should contain task status")
	}
	if !strings.Contains(prompt, "[DECISION 2025-06-01] Resolve sessions from the repo directory name") {
		t.Error("prompt should contain formatted events")
	}
	if !strings.Contains(prompt, "[FIX 2025-06-01] Detached HEAD now falls back") {
		t.Error("prompt should contain all events")
	}
	if !strings.Contains(prompt, "**Outcome:**") {
		t.Error("prompt should contain format instructions")
	}
}

func TestRenderDigestPrompt_UTF8(t *testing.T) {
	client, err := NewDigestClient("test-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	task := digestTask()
	task.Title = "Handle café paths and 日本語 filenames 🚀"

	prompt, err := client.renderDigestPrompt(task, digestEvents())
	if err != nil {
		t.Fatalf("failed to render prompt: %v", err)
	}

	if !strings.Contains(prompt, "café") {
		t.Error("prompt should preserve accented characters")
	}
	if !strings.Contains(prompt, "日本語") {
		t.Error("prompt should preserve unicode characters")
	}
	if !strings.Contains(prompt, "🚀") {
		t.Error("prompt should preserve emoji")
	}
}

func TestCallWithRetry_ContextCancellation(t *testing.T) {
	client, err := NewDigestClient("test-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	client.initialBackoff = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.callWithRetry(ctx, "test prompt")
	if err == nil {
		t.Fatal("expected error when context is canceled")
	}
	if err != context.Canceled {
		t.Errorf("expected context.Canceled error, got: %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"context deadline exceeded", context.DeadlineExceeded, false},
		{"generic error", errors.New("some error"), false},
		{"timeout error", timeoutErr{}, true},
		{"anthropic 429", &anthropic.Error{StatusCode: 429}, true},
		{"anthropic 500", &anthropic.Error{StatusCode: 500}, true},
		{"anthropic 400", &anthropic.Error{StatusCode: 400}, false},
		{"wrapped timeout", fmt.Errorf("wrap: %w", timeoutErr{}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isRetryable(tt.err)
			if got != tt.expected {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestBytesWriterAppends(t *testing.T) {
	w := &bytesWriter{}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if _, err := w.Write([]byte(" world")); err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if got := string(w.buf); got != "hello world" {
		t.Fatalf("unexpected buffer content: %q", got)
	}
}
