package distill

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/untoldecay/rwm/internal/ids"
	"github.com/untoldecay/rwm/internal/storage/sqlite"
	"github.com/untoldecay/rwm/internal/types"
)

const (
	defaultConcurrency = 4
	defaultMinAge      = 14 * 24 * time.Hour
)

// Config holds configuration for the distillation process.
type Config struct {
	APIKey       string
	Model        string
	Concurrency  int
	MinAge       time.Duration
	DryRun       bool
	AuditEnabled bool
	Actor        string
}

// Distiller condenses the event streams of aged done tasks into
// single digest events using AI summarization. The digest is stored
// as a NOTE event carrying the summarized event IDs as evidence, so
// the raw stream stays intact and pruning stays a separate decision.
type Distiller struct {
	store      taskStore
	summarizer summarizer
	config     *Config
}

type taskStore interface {
	CheckDistillable(ctx context.Context, taskID string, cutoff time.Time) (bool, string, error)
	GetTask(ctx context.Context, id string) (*types.Task, error)
	ListTaskEvents(ctx context.Context, taskID string) ([]*types.Event, error)
	ListDistillableTasks(ctx context.Context, cutoff time.Time, limit int) ([]*types.Task, error)
	InsertEvent(ctx context.Context, event *types.Event) error
}

type summarizer interface {
	SummarizeTask(ctx context.Context, task *types.Task, events []*types.Event) (string, error)
}

// New creates a new Distiller instance with the given configuration.
func New(store *sqlite.Store, apiKey string, config *Config) (*Distiller, error) {
	if config == nil {
		config = &Config{
			Concurrency: defaultConcurrency,
		}
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaultConcurrency
	}
	if config.MinAge <= 0 {
		config.MinAge = defaultMinAge
	}
	if apiKey != "" {
		config.APIKey = apiKey
	}

	var client summarizer
	var err error
	if !config.DryRun {
		client, err = NewDigestClient(config.APIKey)
		if err != nil {
			if errors.Is(err, ErrAPIKeyRequired) {
				config.DryRun = true
				client = nil
			} else {
				return nil, fmt.Errorf("failed to create digest client: %w", err)
			}
		}
	}
	if dc, ok := client.(*DigestClient); ok && dc != nil {
		dc.auditEnabled = config.AuditEnabled
		dc.auditActor = config.Actor
		if config.Model != "" {
			dc.model = anthropic.Model(config.Model)
		}
	}

	return &Distiller{
		store:      store,
		summarizer: client,
		config:     config,
	}, nil
}

// Cutoff returns the task-age eligibility cutoff derived from MinAge.
func (d *Distiller) Cutoff() time.Time {
	return time.Now().UTC().Add(-d.config.MinAge)
}

// ListCandidates returns the tasks currently eligible for
// distillation, oldest first.
func (d *Distiller) ListCandidates(ctx context.Context, limit int) ([]*types.Task, error) {
	return d.store.ListDistillableTasks(ctx, d.Cutoff(), limit)
}

// Result holds the outcome of distilling one task.
type Result struct {
	TaskID     string
	EventCount int
	DigestID   string
	Err        error
}

// DistillTask distills a single task's event stream into a digest event.
func (d *Distiller) DistillTask(ctx context.Context, taskID string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	eligible, reason, err := d.store.CheckDistillable(ctx, taskID, d.Cutoff())
	if err != nil {
		return fmt.Errorf("failed to verify eligibility: %w", err)
	}
	if !eligible {
		if reason != "" {
			return fmt.Errorf("task %s is not eligible for distillation: %s", taskID, reason)
		}
		return fmt.Errorf("task %s is not eligible for distillation", taskID)
	}

	result := &Result{TaskID: taskID}
	if err := d.distillSingleWithResult(ctx, taskID, result); err != nil {
		return err
	}
	return nil
}

// DistillBatch distills multiple tasks using a bounded worker pool.
func (d *Distiller) DistillBatch(ctx context.Context, taskIDs []string) ([]*Result, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}

	eligibleIDs := make([]string, 0, len(taskIDs))
	results := make([]*Result, 0, len(taskIDs))

	for _, id := range taskIDs {
		eligible, reason, err := d.store.CheckDistillable(ctx, id, d.Cutoff())
		if err != nil {
			results = append(results, &Result{
				TaskID: id,
				Err:    fmt.Errorf("failed to verify eligibility: %w", err),
			})
			continue
		}
		if !eligible {
			results = append(results, &Result{
				TaskID: id,
				Err:    fmt.Errorf("not eligible for distillation: %s", reason),
			})
		} else {
			eligibleIDs = append(eligibleIDs, id)
		}
	}

	if len(eligibleIDs) == 0 {
		return results, nil
	}

	if d.config.DryRun {
		for _, id := range eligibleIDs {
			events, err := d.store.ListTaskEvents(ctx, id)
			if err != nil {
				results = append(results, &Result{
					TaskID: id,
					Err:    fmt.Errorf("failed to list events: %w", err),
				})
				continue
			}
			results = append(results, &Result{
				TaskID:     id,
				EventCount: len(events),
			})
		}
		return results, nil
	}

	workCh := make(chan string, len(eligibleIDs))
	resultCh := make(chan *Result, len(eligibleIDs))

	var wg sync.WaitGroup
	for i := 0; i < d.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for taskID := range workCh {
				result := &Result{TaskID: taskID}

				if err := d.distillSingleWithResult(ctx, taskID, result); err != nil {
					result.Err = err
				}

				resultCh <- result
			}
		}()
	}

	for _, id := range eligibleIDs {
		workCh <- id
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for result := range resultCh {
		results = append(results, result)
	}

	return results, nil
}

func (d *Distiller) distillSingleWithResult(ctx context.Context, taskID string, result *Result) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	task, err := d.store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}
	if task == nil {
		return fmt.Errorf("task %s not found", taskID)
	}

	events, err := d.store.ListTaskEvents(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}
	result.EventCount = len(events)
	if len(events) == 0 {
		return fmt.Errorf("task %s has no events to distill", taskID)
	}

	if d.config.DryRun {
		return fmt.Errorf("dry-run: would distill %s (%d events)", taskID, len(events))
	}

	if d.summarizer == nil {
		return fmt.Errorf("summarizer not configured")
	}
	digest, err := d.summarizer.SummarizeTask(ctx, task, events)
	if err != nil {
		return fmt.Errorf("failed to summarize task: %w", err)
	}
	digest = strings.TrimSpace(digest)
	if digest == "" {
		return fmt.Errorf("summarizer returned an empty digest for %s", taskID)
	}

	evidence := make([]string, 0, len(events))
	for _, ev := range events {
		evidence = append(evidence, ev.ID)
	}

	digestEvent := &types.Event{
		ID:          ids.RID("D"),
		Kind:        types.EventNote,
		TaskID:      &task.ID,
		SessionID:   task.SessionID,
		Summary:     sqlite.DigestPrefix + " " + digest,
		EvidenceIDs: evidence,
		TS:          time.Now().UTC(),
	}
	if err := d.store.InsertEvent(ctx, digestEvent); err != nil {
		return fmt.Errorf("failed to record digest: %w", err)
	}
	result.DigestID = digestEvent.ID

	return nil
}
