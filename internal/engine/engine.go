// Package engine executes plans: it walks the dependency graph,
// dispatches ready steps to capable workers under a global concurrency
// limit, and drives every plan to a terminal state through retries,
// timeouts, and cancellation.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/agentide/conductor/internal/graph"
	"github.com/agentide/conductor/internal/registry"
	"github.com/agentide/conductor/pkg/models"
)

// Config holds engine settings.
type Config struct {
	// MaxConcurrentTasks bounds in-flight steps across all plans.
	MaxConcurrentTasks int
	// PollInterval is the idle wait between scheduling passes.
	PollInterval time.Duration
	// RetryBackoff is the base delay before a failed step becomes
	// eligible for re-dispatch. The delay grows linearly per attempt.
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrentTasks <= 0 {
		c.MaxConcurrentTasks = 10
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 25 * time.Millisecond
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	return c
}

// EventType identifies an engine event.
type EventType string

const (
	EventPlanStarted   EventType = "plan_started"
	EventPlanCompleted EventType = "plan_completed"
	EventPlanFailed    EventType = "plan_failed"
	EventPlanCancelled EventType = "plan_cancelled"
	EventStepStarted   EventType = "step_started"
	EventStepCompleted EventType = "step_completed"
	EventStepRetrying  EventType = "step_retrying"
	EventStepFailed    EventType = "step_failed"
	EventStepCancelled EventType = "step_cancelled"
)

// Event is an observability notification from the engine.
type Event struct {
	Type      EventType  `json:"type"`
	PlanID    string     `json:"plan_id"`
	StepID    string     `json:"step_id,omitempty"`
	Message   string     `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Engine schedules and executes plans. It is the sole mutator of step
// and plan status after planning.
type Engine struct {
	cfg      Config
	registry *registry.Registry
	// sem bounds in-flight steps globally, across plans.
	sem  chan struct{}
	emit func(Event)

	mu   sync.RWMutex
	runs map[string]*planRun
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmitter installs an event callback. The callback must not block
// indefinitely; the engine calls it inline.
func WithEmitter(emit func(Event)) Option {
	return func(e *Engine) { e.emit = emit }
}

// New creates an Engine backed by the given registry.
func New(reg *registry.Registry, cfg Config, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:      cfg,
		registry: reg,
		sem:      make(chan struct{}, cfg.MaxConcurrentTasks),
		runs:     make(map[string]*planRun),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// planRun is the engine's private execution state for one plan.
type planRun struct {
	mu    sync.Mutex
	plan  *models.ExecutionPlan
	graph *graph.DependencyGraph
	// results maps step ID to its current result. Results are replaced
	// on transition, never mutated in place.
	results map[string]*models.TaskResult
	// notBefore gates retried steps until their backoff elapses.
	notBefore map[string]time.Time
	// failure is the first fatal error; set at most once.
	failure error
	cancel  context.CancelFunc
	done    chan struct{}
}

// stepOutcome carries one attempt's result back to the scheduling loop.
type stepOutcome struct {
	stepID string
	result *models.TaskResult
	err    error
	took   time.Duration
}

// Start registers the plan and launches its scheduling loop. It
// returns immediately; use Wait or Execute to block for the outcome.
func (e *Engine) Start(ctx context.Context, plan *models.ExecutionPlan) error {
	g := graph.New()
	if err := g.Build(plan.Steps); err != nil {
		return fmt.Errorf("engine rejected plan %s: %w", plan.ID, err)
	}

	pr := &planRun{
		plan:      plan,
		graph:     g,
		results:   make(map[string]*models.TaskResult, len(plan.Steps)),
		notBefore: make(map[string]time.Time),
		done:      make(chan struct{}),
	}
	for _, step := range plan.Steps {
		pr.results[step.ID] = models.NewPendingResult(step.Request.ID, step.Capability)
	}

	runCtx, cancel := context.WithCancel(ctx)
	pr.cancel = cancel

	e.mu.Lock()
	if _, exists := e.runs[plan.ID]; exists {
		e.mu.Unlock()
		cancel()
		return fmt.Errorf("plan %s is already registered", plan.ID)
	}
	e.runs[plan.ID] = pr
	e.mu.Unlock()

	now := time.Now().UTC()
	pr.mu.Lock()
	plan.Status = models.TaskStatusInProgress
	plan.StartedAt = &now
	pr.mu.Unlock()

	e.emitEvent(Event{Type: EventPlanStarted, PlanID: plan.ID, Timestamp: now})
	go e.runLoop(runCtx, pr)
	return nil
}

// Wait blocks until the plan reaches a terminal state and returns its
// per-step results in plan order. The returned error is the plan's
// fatal error, nil when the plan completed.
func (e *Engine) Wait(planID string) ([]*models.TaskResult, error) {
	pr, err := e.run(planID)
	if err != nil {
		return nil, err
	}
	<-pr.done

	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.resultsLocked(), pr.failure
}

// Execute runs the plan to completion: Start followed by Wait.
func (e *Engine) Execute(ctx context.Context, plan *models.ExecutionPlan) ([]*models.TaskResult, error) {
	if err := e.Start(ctx, plan); err != nil {
		return nil, err
	}
	return e.Wait(plan.ID)
}

// Cancel stops new dispatches for the plan immediately, interrupts
// in-flight steps on a best-effort basis, and marks all non-terminal
// steps cancelled. Cancelling a terminal plan is a no-op.
func (e *Engine) Cancel(planID string) error {
	pr, err := e.run(planID)
	if err != nil {
		return err
	}
	pr.cancel()
	return nil
}

// Status returns the plan's status and progress percentage.
func (e *Engine) Status(planID string) (models.TaskStatus, float64, error) {
	pr, err := e.run(planID)
	if err != nil {
		return "", 0, err
	}
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.plan.Status, pr.plan.Progress(), nil
}

// Results returns the current per-step results in plan order.
func (e *Engine) Results(planID string) ([]*models.TaskResult, error) {
	pr, err := e.run(planID)
	if err != nil {
		return nil, err
	}
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.resultsLocked(), nil
}

// Snapshot returns a JSON snapshot of the plan and step state, usable
// for observability and restart.
func (e *Engine) Snapshot(planID string) ([]byte, error) {
	pr, err := e.run(planID)
	if err != nil {
		return nil, err
	}
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return json.MarshalIndent(pr.plan, "", "  ")
}

// ActivePlans returns the number of non-terminal plans.
func (e *Engine) ActivePlans() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	active := 0
	for _, pr := range e.runs {
		pr.mu.Lock()
		if !pr.plan.Status.Terminal() {
			active++
		}
		pr.mu.Unlock()
	}
	return active
}

func (e *Engine) run(planID string) (*planRun, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	pr, ok := e.runs[planID]
	if !ok {
		return nil, fmt.Errorf("unknown plan %s", planID)
	}
	return pr, nil
}

// resultsLocked returns result pointers in plan-step order.
// Caller must hold pr.mu. Results are replace-on-write, so sharing
// pointers is safe.
func (pr *planRun) resultsLocked() []*models.TaskResult {
	out := make([]*models.TaskResult, 0, len(pr.plan.Steps))
	for _, step := range pr.plan.Steps {
		if r, ok := pr.results[step.ID]; ok {
			out = append(out, r)
		}
	}
	return out
}

// runLoop is the scheduling loop. It runs until the plan reaches a
// terminal state: dispatch ready steps, await outcomes, retry or fail,
// cascade cancellations.
func (e *Engine) runLoop(ctx context.Context, pr *planRun) {
	defer close(pr.done)
	defer pr.cancel()

	// One outstanding outcome per step at most, so this never blocks
	// senders even after the loop exits.
	completionCh := make(chan stepOutcome, len(pr.plan.Steps))
	inflight := 0

	for {
		select {
		case <-ctx.Done():
			e.finalizeCancelled(pr)
			return
		default:
		}

		dispatched := e.dispatchReady(ctx, pr, completionCh, &inflight)

		if e.tryFinalize(pr, inflight) {
			return
		}

		if inflight > 0 {
			select {
			case out := <-completionCh:
				inflight--
				e.handleOutcome(pr, out)
			case <-ctx.Done():
				e.finalizeCancelled(pr)
				return
			case <-time.After(e.cfg.PollInterval):
				// Re-check for ready work; a global slot may have
				// been freed by another plan.
			}
			continue
		}

		if dispatched {
			continue
		}

		// Nothing in flight and nothing dispatchable: a retried step
		// is waiting out its backoff or the global limit is saturated
		// by other plans.
		select {
		case <-ctx.Done():
			e.finalizeCancelled(pr)
			return
		case <-time.After(e.cfg.PollInterval):
		}
	}
}

// dispatchReady dispatches as many ready steps as global slots allow.
// Returns true if at least one step was dispatched.
func (e *Engine) dispatchReady(ctx context.Context, pr *planRun, completionCh chan<- stepOutcome, inflight *int) bool {
	now := time.Now()

	pr.mu.Lock()
	if pr.failure != nil || pr.plan.Status.Terminal() {
		// A fatal error stops new dispatches; in-flight steps drain.
		pr.mu.Unlock()
		return false
	}

	completed := pr.graph.CompletedSet()
	var ready []*models.ExecutionStep
	for _, step := range pr.plan.Steps {
		if !step.Ready(completed) {
			continue
		}
		if nb, ok := pr.notBefore[step.ID]; ok && now.Before(nb) {
			continue
		}
		ready = append(ready, step)
	}

	// Priority tie-break: CRITICAL before HIGH before MEDIUM before
	// LOW, equal priority broken by earliest creation timestamp.
	sort.SliceStable(ready, func(i, j int) bool {
		pi, pj := ready[i].Request.Priority, ready[j].Request.Priority
		if pi != pj {
			return pi > pj
		}
		return ready[i].Request.CreatedAt.Before(ready[j].Request.CreatedAt)
	})
	pr.mu.Unlock()

	dispatched := false
	for _, step := range ready {
		// Non-blocking global slot acquire; leftover ready steps wait
		// for the next pass.
		select {
		case e.sem <- struct{}{}:
		default:
			return dispatched
		}

		workers := e.registry.FindForCapability(step.Capability, step.Request)
		if len(workers) == 0 {
			<-e.sem
			e.failDispatch(pr, step)
			return dispatched
		}

		pr.mu.Lock()
		// Rotate among capable workers across attempts.
		worker := workers[step.RetryCount%len(workers)]
		attempt := step.RetryCount + 1
		step.Status = models.TaskStatusInProgress
		if step.StartedAt == nil {
			started := now.UTC()
			step.StartedAt = &started
		}
		pr.mu.Unlock()

		e.emitEvent(Event{Type: EventStepStarted, PlanID: pr.plan.ID, StepID: step.ID, Timestamp: time.Now()})
		*inflight++
		dispatched = true
		go e.executeStep(ctx, pr, step, worker, attempt, completionCh)
	}
	return dispatched
}

// executeStep runs one attempt with the step's own timeout and reports
// the classified outcome. Runs on its own goroutine so one in-flight
// dispatch never blocks other ready steps.
func (e *Engine) executeStep(ctx context.Context, pr *planRun, step *models.ExecutionStep, worker registry.Worker, attempt int, completionCh chan<- stepOutcome) {
	defer func() { <-e.sem }()

	stepCtx, cancel := context.WithTimeout(ctx, step.Request.Timeout)
	defer cancel()

	started := time.Now()
	result, err := worker.Execute(stepCtx, step.Request)
	took := time.Since(started)

	var classified error
	if err != nil {
		switch {
		case ctx.Err() != nil:
			classified = &CancellationError{PlanID: pr.plan.ID}
		case stepCtx.Err() == context.DeadlineExceeded:
			classified = &TimeoutError{StepID: step.ID, Timeout: step.Request.Timeout.String()}
		default:
			classified = &WorkerError{StepID: step.ID, Attempt: attempt, Err: err}
		}
	}

	completionCh <- stepOutcome{stepID: step.ID, result: result, err: classified, took: took}
}

// handleOutcome applies one attempt's outcome to the plan state.
// Late outcomes against a terminal plan are discarded.
func (e *Engine) handleOutcome(pr *planRun, out stepOutcome) {
	pr.mu.Lock()

	if pr.plan.Status.Terminal() {
		pr.mu.Unlock()
		log.Printf("[engine] plan %s: discarding late outcome for step %s", pr.plan.ID, out.stepID)
		return
	}

	step := pr.plan.Step(out.stepID)
	if step == nil || step.Status != models.TaskStatusInProgress {
		pr.mu.Unlock()
		return
	}

	if out.err == nil {
		now := time.Now().UTC()
		res := pr.results[step.ID].Completed(nil, out.took)
		if out.result != nil {
			res.Output = out.result.Output
			res.TokensUsed = out.result.TokensUsed
			res.Cost = out.result.Cost
			if out.result.Confidence > 0 {
				res.Confidence = out.result.Confidence
			}
		}
		pr.results[step.ID] = res
		step.Status = models.TaskStatusCompleted
		step.CompletedAt = &now
		pr.graph.MarkComplete(step.ID)
		pr.mu.Unlock()

		e.emitEvent(Event{Type: EventStepCompleted, PlanID: pr.plan.ID, StepID: step.ID, Timestamp: now})
		return
	}

	if _, isCancel := out.err.(*CancellationError); isCancel {
		e.cancelStepLocked(pr, step)
		pr.mu.Unlock()
		return
	}

	// Worker failures and timeouts share one retry budget.
	if step.RetryCount < step.Request.MaxRetries {
		step.RetryCount++
		step.Status = models.TaskStatusPending
		pr.notBefore[step.ID] = time.Now().Add(time.Duration(step.RetryCount) * e.cfg.RetryBackoff)
		pr.mu.Unlock()

		log.Printf("[engine] plan %s: step %s attempt %d failed, retrying: %v",
			pr.plan.ID, step.ID, step.RetryCount, out.err)
		e.emitEvent(Event{Type: EventStepRetrying, PlanID: pr.plan.ID, StepID: step.ID,
			Message: out.err.Error(), Timestamp: time.Now()})
		return
	}

	e.failStepLocked(pr, step, out.err, out.took)
	pr.mu.Unlock()
}

// failDispatch handles the fatal no-capable-worker case: the step and
// the plan fail with a DispatchError, with zero retries.
func (e *Engine) failDispatch(pr *planRun, step *models.ExecutionStep) {
	err := &DispatchError{StepID: step.ID, Capability: string(step.Capability)}

	pr.mu.Lock()
	e.failStepLocked(pr, step, err, 0)
	// DispatchError is plan-fatal regardless of the step being
	// optional.
	if pr.failure == nil {
		pr.failure = err
	}
	pr.mu.Unlock()
}

// failStepLocked marks a step permanently failed, records its result,
// and cancels every transitive dependent so nothing stays pending
// indefinitely. Caller must hold pr.mu.
func (e *Engine) failStepLocked(pr *planRun, step *models.ExecutionStep, cause error, took time.Duration) {
	now := time.Now().UTC()
	step.Status = models.TaskStatusFailed
	step.CompletedAt = &now
	pr.results[step.ID] = pr.results[step.ID].Failed(cause.Error(), took)

	if !step.Optional && pr.failure == nil {
		pr.failure = cause
	}

	log.Printf("[engine] plan %s: step %s failed permanently: %v", pr.plan.ID, step.ID, cause)
	e.emitEvent(Event{Type: EventStepFailed, PlanID: pr.plan.ID, StepID: step.ID,
		Message: cause.Error(), Timestamp: now})

	for _, depID := range pr.graph.TransitiveDependents(step.ID) {
		if dep := pr.plan.Step(depID); dep != nil && !dep.Status.Terminal() {
			e.cancelStepLocked(pr, dep)
		}
	}
}

// cancelStepLocked marks a single step cancelled. Caller must hold pr.mu.
func (e *Engine) cancelStepLocked(pr *planRun, step *models.ExecutionStep) {
	now := time.Now().UTC()
	step.Status = models.TaskStatusCancelled
	step.CompletedAt = &now
	pr.results[step.ID] = pr.results[step.ID].Cancelled(0)
	e.emitEvent(Event{Type: EventStepCancelled, PlanID: pr.plan.ID, StepID: step.ID, Timestamp: now})
}

// tryFinalize checks whether the plan reached a terminal state and, if
// so, records it. Only called with no pending outcome handling; a plan
// never finalizes while steps are in flight.
func (e *Engine) tryFinalize(pr *planRun, inflight int) bool {
	if inflight > 0 {
		return false
	}

	pr.mu.Lock()

	if pr.plan.Status.Terminal() {
		pr.mu.Unlock()
		return true
	}

	if pr.failure != nil {
		// Remaining unreachable steps become cancelled, never left
		// pending.
		for _, step := range pr.plan.Steps {
			if !step.Status.Terminal() {
				e.cancelStepLocked(pr, step)
			}
		}
		now := time.Now().UTC()
		pr.plan.Status = models.TaskStatusFailed
		pr.plan.CompletedAt = &now
		pr.mu.Unlock()

		e.emitEvent(Event{Type: EventPlanFailed, PlanID: pr.plan.ID, Message: pr.failure.Error(), Timestamp: now})
		return true
	}

	allTerminal := true
	allMandatoryCompleted := true
	for _, step := range pr.plan.Steps {
		if !step.Status.Terminal() {
			allTerminal = false
			break
		}
		if !step.Optional && step.Status != models.TaskStatusCompleted {
			allMandatoryCompleted = false
		}
	}
	if !allTerminal {
		pr.mu.Unlock()
		return false
	}

	now := time.Now().UTC()
	if allMandatoryCompleted {
		pr.plan.Status = models.TaskStatusCompleted
	} else {
		pr.plan.Status = models.TaskStatusFailed
	}
	pr.plan.CompletedAt = &now
	status := pr.plan.Status
	pr.mu.Unlock()

	if status == models.TaskStatusCompleted {
		e.emitEvent(Event{Type: EventPlanCompleted, PlanID: pr.plan.ID, Timestamp: now})
	} else {
		e.emitEvent(Event{Type: EventPlanFailed, PlanID: pr.plan.ID, Timestamp: now})
	}
	return true
}

// finalizeCancelled marks the plan and every non-terminal step
// cancelled. In-flight steps were interrupted through their contexts;
// their late outcomes are discarded. The cancelled status is never
// reverted.
func (e *Engine) finalizeCancelled(pr *planRun) {
	pr.mu.Lock()

	if pr.plan.Status.Terminal() {
		pr.mu.Unlock()
		return
	}

	for _, step := range pr.plan.Steps {
		if !step.Status.Terminal() {
			e.cancelStepLocked(pr, step)
		}
	}

	now := time.Now().UTC()
	pr.plan.Status = models.TaskStatusCancelled
	pr.plan.CompletedAt = &now
	if pr.failure == nil {
		pr.failure = &CancellationError{PlanID: pr.plan.ID}
	}
	pr.mu.Unlock()

	log.Printf("[engine] plan %s cancelled", pr.plan.ID)
	e.emitEvent(Event{Type: EventPlanCancelled, PlanID: pr.plan.ID, Timestamp: now})
}

func (e *Engine) emitEvent(event Event) {
	if e.emit != nil {
		e.emit(event)
	}
}
