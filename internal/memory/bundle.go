package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/untoldecay/rwm/internal/debug"
	"github.com/untoldecay/rwm/internal/types"
)

// Candidate fetch caps and rendering limits for one bundle.
const (
	maxTaskCandidates  = 20
	maxEventCandidates = 100
	mandatoryPerKind   = 3
	nowCardListCap     = 5
)

// Pointer type labels as rendered in bundles.
const (
	PointerTask  = "TASK"
	PointerEvent = "EVENT"
	PointerFact  = "FACT"
)

// Pointer is one picked bundle item: a one-line rendering of a task,
// event, or fact with its estimated token cost.
type Pointer struct {
	Type      string  `json:"type"`
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	TokenCost int     `json:"token_cost"`
	Score     float64 `json:"score"`
}

// Bundle is the rehydration payload: the rendered Now card plus the
// ordered pointers that fit the budget.
type Bundle struct {
	Now           string    `json:"now"`
	Pointers      []Pointer `json:"pointers"`
	TokenEstimate int       `json:"token_estimate"`
	Budget        int       `json:"budget"`
	SessionID     string    `json:"session_id"`
}

type candidate struct {
	ptr       Pointer
	ts        time.Time
	mandatory bool
	picked    bool
}

// Resume composes a rehydration bundle for the session, fit to the
// token budget (the engine default when budget is zero or negative).
// Each picked pointer's cost is recorded as a token metric; metric
// persistence is best-effort and never fails the resume.
func (e *Engine) Resume(ctx context.Context, rawSession string, budget int) (*Bundle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if budget <= 0 {
		budget = e.budget
	}
	sessionID := e.Session(rawSession)
	now := e.clock().UTC()

	bundle, metrics, err := e.compose(ctx, sessionID, budget, now)
	if err != nil {
		return nil, err
	}
	if len(metrics) > 0 {
		if err := e.store.InsertTokenMetrics(ctx, metrics); err != nil {
			debug.Logf("token metrics not recorded: %v\n", err)
		}
	}
	return bundle, nil
}

func (e *Engine) compose(ctx context.Context, sessionID string, budget int, now time.Time) (*Bundle, []*types.TokenMetric, error) {
	tasks, err := e.store.ListActiveTasks(ctx, sessionID, maxTaskCandidates)
	if err != nil {
		return nil, nil, err
	}
	events, err := e.store.ListRecentEvents(ctx, sessionID, maxEventCandidates)
	if err != nil {
		return nil, nil, err
	}
	facts, err := e.store.ListFacts(ctx)
	if err != nil {
		return nil, nil, err
	}

	cands := e.buildCandidates(tasks, events, facts, now)
	picked, used := pickWithinBudget(cands, budget)

	pointers := make([]Pointer, 0, len(picked))
	metrics := make([]*types.TokenMetric, 0, len(picked))
	for _, c := range picked {
		pointers = append(pointers, c.ptr)
		metrics = append(metrics, &types.TokenMetric{
			SessionID: sessionID,
			PointerID: c.ptr.ID,
			TokenCost: c.ptr.TokenCost,
			Budget:    budget,
			CreatedAt: now,
		})
	}

	bundle := &Bundle{
		Now:           renderNowCard(tasks, events, pointers),
		Pointers:      pointers,
		TokenEstimate: used,
		Budget:        budget,
		SessionID:     sessionID,
	}
	return bundle, metrics, nil
}

// buildCandidates renders every fetched record into a scored one-line
// item. Insertion order (tasks, then events, then facts) is the
// tie-break order for the stable density sort.
func (e *Engine) buildCandidates(tasks []*types.Task, events []*types.Event, facts []*types.Fact, now time.Time) []*candidate {
	cands := make([]*candidate, 0, len(tasks)+len(events)+len(facts))

	for _, t := range tasks {
		text := fmt.Sprintf("TASK %s: %s [%s]", t.ID, t.Title, t.Status)
		if t.AcceptCriteria != nil && *t.AcceptCriteria != "" {
			text += "\nACCEPT: " + *t.AcceptCriteria
		}
		cands = append(cands, &candidate{ptr: Pointer{
			Type:      PointerTask,
			ID:        t.ID,
			Text:      text,
			TokenCost: e.est.Estimate(text),
			Score:     e.weights.TaskBase + boost(e.weights.TaskRecencyCap, ageHours(now, t.UpdatedAt)*0.5),
		}})
	}

	decisions, failures := 0, 0
	for _, ev := range events {
		base := e.weights.Note
		switch ev.Kind {
		case types.EventTestFail, types.EventBlocker:
			base = e.weights.Failure
		case types.EventDecision:
			base = e.weights.Decision
		}
		text := fmt.Sprintf("%s %s: %s", ev.Kind, ev.ID, ev.Summary)
		c := &candidate{
			ptr: Pointer{
				Type:      PointerEvent,
				ID:        ev.ID,
				Text:      text,
				TokenCost: e.est.Estimate(text),
				Score:     base + boost(e.weights.EventRecencyCap, ageHours(now, ev.TS)),
			},
			ts: ev.TS,
		}
		// Events arrive newest first, so flagging the first few of
		// each kind keeps the mandatory set ordered by descending ts.
		switch {
		case ev.Kind == types.EventDecision && decisions < mandatoryPerKind:
			c.mandatory = true
			decisions++
		case (ev.Kind == types.EventTestFail || ev.Kind == types.EventBlocker) && failures < mandatoryPerKind:
			c.mandatory = true
			failures++
		}
		cands = append(cands, c)
	}

	for _, f := range facts {
		text := fmt.Sprintf("FACT %s=%s (%s)", f.Key, f.Value, f.Scope)
		cands = append(cands, &candidate{ptr: Pointer{
			Type:      PointerFact,
			ID:        f.ID,
			Text:      text,
			TokenCost: e.est.Estimate(text),
			Score:     e.weights.Fact,
		}})
	}
	return cands
}

// pickWithinBudget runs the greedy knapsack: mandatory items first in
// descending ts order, then everything by utility density. An item
// that does not fit is skipped, not queued.
func pickWithinBudget(cands []*candidate, budget int) ([]*candidate, int) {
	used := 0
	picked := make([]*candidate, 0, len(cands))
	admit := func(c *candidate) {
		if c.picked || used+c.ptr.TokenCost > budget {
			return
		}
		c.picked = true
		used += c.ptr.TokenCost
		picked = append(picked, c)
	}

	for _, c := range cands {
		if c.mandatory {
			admit(c)
		}
	}

	sorted := make([]*candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		return density(sorted[i]) > density(sorted[j])
	})
	for _, c := range sorted {
		admit(c)
	}
	return picked, used
}

func density(c *candidate) float64 {
	return c.ptr.Score / float64(c.ptr.TokenCost+1)
}

// boost is a linear recency bonus: the ceiling minus the decay,
// floored at zero.
func boost(ceiling, decay float64) float64 {
	if decay >= ceiling {
		return 0
	}
	return ceiling - decay
}

// ageHours clamps at zero so a clock skewed into the future reads as
// brand new rather than producing a negative age.
func ageHours(now, t time.Time) float64 {
	age := now.Sub(t).Hours()
	if age < 0 {
		return 0
	}
	return age
}

// renderNowCard renders the bundle header and pointer list:
//
//	NOW:
//	- Objective: Wire the parser
//	- Active: T-wire-the-par
//	- Decisions: D-1a2b3c
//	- Failing tests: —
//
//	POINTERS:
//	• TASK T-wire-the-par
//	• EVENT D-1a2b3c
func renderNowCard(tasks []*types.Task, events []*types.Event, pointers []Pointer) string {
	objective := "No active task"
	if len(tasks) > 0 {
		objective = tasks[0].Title
	}

	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		taskIDs = append(taskIDs, t.ID)
	}
	var decisionIDs, failingIDs []string
	for _, ev := range events {
		switch {
		case ev.Kind == types.EventDecision && len(decisionIDs) < nowCardListCap:
			decisionIDs = append(decisionIDs, ev.ID)
		case ev.Kind == types.EventTestFail && len(failingIDs) < nowCardListCap:
			failingIDs = append(failingIDs, ev.ID)
		}
	}

	var b strings.Builder
	b.WriteString("NOW:\n")
	fmt.Fprintf(&b, "- Objective: %s\n", objective)
	fmt.Fprintf(&b, "- Active: %s\n", joinOrDash(taskIDs))
	fmt.Fprintf(&b, "- Decisions: %s\n", joinOrDash(decisionIDs))
	fmt.Fprintf(&b, "- Failing tests: %s\n", joinOrDash(failingIDs))
	b.WriteString("\nPOINTERS:\n")
	for _, p := range pointers {
		fmt.Fprintf(&b, "• %s %s\n", p.Type, p.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}

// joinOrDash comma-joins IDs, with a dash placeholder when there are
// none.
func joinOrDash(list []string) string {
	if len(list) == 0 {
		return "—"
	}
	return strings.Join(list, ", ")
}
