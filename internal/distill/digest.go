// Package distill condenses aged task event streams into compact
// digest events using a Haiku-class model.
package distill

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"text/template"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/untoldecay/rwm/internal/audit"
	"github.com/untoldecay/rwm/internal/types"
)

const (
	defaultModel   = "claude-3-5-haiku-20241022"
	maxRetries     = 3
	initialBackoff = 1 * time.Second
)

// ErrAPIKeyRequired is returned when an API key is needed but not provided.
var ErrAPIKeyRequired = errors.New("API key required")

// DigestClient wraps the Anthropic API for task summarization.
type DigestClient struct {
	client         anthropic.Client
	model          anthropic.Model
	digestTemplate *template.Template
	maxRetries     int
	initialBackoff time.Duration
	auditEnabled   bool
	auditActor     string
}

// NewDigestClient creates a new digest API client. Env var ANTHROPIC_API_KEY takes precedence over explicit apiKey.
func NewDigestClient(apiKey string) (*DigestClient, error) {
	envKey := os.Getenv("ANTHROPIC_API_KEY")
	if envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY environment variable or provide via config", ErrAPIKeyRequired)
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	tmpl, err := template.New("digest").Parse(digestPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse digest template: %w", err)
	}

	return &DigestClient{
		client:         client,
		model:          defaultModel,
		digestTemplate: tmpl,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
	}, nil
}

// SummarizeTask condenses a task's event stream into a short digest
// (Outcome, Key Decisions, Gotchas).
func (c *DigestClient) SummarizeTask(ctx context.Context, task *types.Task, events []*types.Event) (string, error) {
	prompt, err := c.renderDigestPrompt(task, events)
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}

	resp, callErr := c.callWithRetry(ctx, prompt)
	if c.auditEnabled {
		// Best-effort: never fail distillation because audit logging failed.
		e := &audit.Entry{
			Kind:     "llm_call",
			Actor:    c.auditActor,
			TaskID:   task.ID,
			Model:    string(c.model),
			Prompt:   prompt,
			Response: resp,
		}
		if callErr != nil {
			e.Error = callErr.Error()
		}
		_, _ = audit.Append(e)
	}
	return resp, callErr
}

func (c *DigestClient) callWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		message, err := c.client.Messages.New(ctx, params)

		if err == nil {
			if len(message.Content) > 0 {
				content := message.Content[0]
				if content.Type == "text" {
					return content.Text, nil
				}
				return "", fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
			}
			return "", fmt.Errorf("unexpected response format: no content blocks")
		}

		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if !isRetryable(err) {
			return "", fmt.Errorf("non-retryable error: %w", err)
		}
	}

	return "", fmt.Errorf("failed after %d retries: %w", c.maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		statusCode := apiErr.StatusCode
		if statusCode == 429 || statusCode >= 500 {
			return true
		}
		return false
	}

	return false
}

type digestData struct {
	Title  string
	Status string
	Events []digestEvent
}

type digestEvent struct {
	Kind    string
	When    string
	Summary string
}

func (c *DigestClient) renderDigestPrompt(task *types.Task, events []*types.Event) (string, error) {
	var buf []byte
	w := &bytesWriter{buf: buf}

	data := digestData{
		Title:  task.Title,
		Status: string(task.Status),
		Events: make([]digestEvent, 0, len(events)),
	}
	for _, ev := range events {
		data.Events = append(data.Events, digestEvent{
			Kind:    string(ev.Kind),
			When:    ev.TS.UTC().Format("2006-01-02"),
			Summary: ev.Summary,
		})
	}

	if err := c.digestTemplate.Execute(w, data); err != nil {
		return "", err
	}
	return string(w.buf), nil
}

type bytesWriter struct {
	buf []byte
}

func (w *bytesWriter) Write(p []byte) (n int, err error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

const digestPromptTemplate = `You are condensing the working log of a finished coding task for long-term storage. Your goal is to COMPRESS the content - the output MUST be significantly shorter than the input while preserving key technical decisions and outcomes.

**Task:** {{.Title}} (status: {{.Status}})

**Event log:**
{{range .Events}}- [{{.Kind}} {{.When}}] {{.Summary}}
{{end}}
IMPORTANT: Your digest must be shorter than the event log. Be concise and eliminate redundancy.

Provide a digest in this exact format:

**Outcome:** [1-2 concise sentences covering what was done and why]

**Key Decisions:** [Brief bullet points of only the most important technical choices]

**Gotchas:** [One sentence on anything a future session must not re-learn the hard way, or "none"]`
