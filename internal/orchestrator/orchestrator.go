// Package orchestrator wires the classifier, planner, and engine
// behind one entry point. Every internal fault is converted into a
// well-formed failed response; the façade never raises a fault to its
// caller.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentide/conductor/internal/engine"
	"github.com/agentide/conductor/internal/intent"
	"github.com/agentide/conductor/internal/planner"
	"github.com/agentide/conductor/internal/registry"
	"github.com/agentide/conductor/internal/session"
	"github.com/agentide/conductor/pkg/models"
)

// defaultActivityWindow bounds how far back a session counts as active.
const defaultActivityWindow = 30 * time.Minute

// Orchestrator is the single entry point to the orchestration core.
type Orchestrator struct {
	classifier *intent.Classifier
	planner    *planner.Planner
	engine     *engine.Engine
	registry   *registry.Registry
	store      session.SessionStore
	emitter    *EventEmitter
	logger     *DebugLogger

	version        string
	activityWindow time.Duration
	taskTimeout    time.Duration
	taskRetries    int
	startedAt      time.Time

	totalRequests atomic.Int64
	totalErrors   atomic.Int64

	mu    sync.RWMutex
	plans map[string]string // task ID -> plan ID
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger installs a debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithVersion sets the version reported by SystemStatus.
func WithVersion(v string) Option {
	return func(o *Orchestrator) { o.version = v }
}

// WithActivityWindow sets the window for counting active sessions.
func WithActivityWindow(d time.Duration) Option {
	return func(o *Orchestrator) { o.activityWindow = d }
}

// WithTaskDefaults overrides the per-step timeout and retry budget
// applied to submitted tasks. Zero values keep the model defaults.
func WithTaskDefaults(timeout time.Duration, maxRetries int) Option {
	return func(o *Orchestrator) {
		o.taskTimeout = timeout
		o.taskRetries = maxRetries
	}
}

// WithEventBuffer sets the emitter's channel buffer size.
func WithEventBuffer(size int) Option {
	return func(o *Orchestrator) { o.emitter = NewEventEmitter(size) }
}

// New creates an Orchestrator over the given collaborators. The
// planner and engine are built from the registry; the engine reports
// its events through the orchestrator's emitter.
func New(classifier *intent.Classifier, reg *registry.Registry, store session.SessionStore, engineCfg engine.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		classifier:     classifier,
		planner:        planner.New(reg),
		registry:       reg,
		store:          store,
		emitter:        NewEventEmitter(256),
		logger:         NopLogger(),
		version:        "dev",
		activityWindow: defaultActivityWindow,
		startedAt:      time.Now(),
		plans:          make(map[string]string),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.engine = engine.New(reg, engineCfg, engine.WithEmitter(o.emitter.Emit))
	return o
}

// Submit runs a user instruction end to end: classify, plan, execute,
// aggregate. The response is always well-formed; faults surface as a
// failed status with an error message.
func (o *Orchestrator) Submit(ctx context.Context, req *models.SubmitRequest) *models.SubmitResponse {
	started := time.Now()
	o.totalRequests.Add(1)

	if err := req.Validate(); err != nil {
		return o.fail(req.SessionID, "", started, err)
	}

	execCtx := models.ExecutionContext{
		SessionID:     req.SessionID,
		UserID:        req.UserID,
		ProjectID:     req.ProjectID,
		WorkspacePath: req.WorkspacePath,
	}

	if err := o.touchSession(req); err != nil {
		return o.fail(req.SessionID, "", started, fmt.Errorf("session store: %w", err))
	}

	tag := o.classifier.Classify(ctx, req.Message, execCtx)
	o.logger.Log("submit session=%s intent=%s message=%q", req.SessionID, tag, req.Message)

	task := models.NewTaskRequest(tag, req.Message, execCtx)
	task.Parameters = req.Parameters
	if o.taskTimeout > 0 {
		task.Timeout = o.taskTimeout
	}
	if o.taskRetries > 0 {
		task.MaxRetries = o.taskRetries
	}

	if err := o.store.RecordTask(req.SessionID); err != nil {
		o.logger.Log("record task for session %s: %v", req.SessionID, err)
	}

	plan, err := o.planner.CreatePlan(task)
	if err != nil {
		return o.fail(req.SessionID, task.ID, started, err)
	}

	o.mu.Lock()
	o.plans[task.ID] = plan.ID
	o.mu.Unlock()

	results, execErr := o.engine.Execute(ctx, plan)
	resp := o.aggregate(req.SessionID, task.ID, plan, results, execErr, started)

	if resp.Status == models.TaskStatusCompleted {
		o.appendMessage(req.SessionID, models.Message{
			Type:    models.MessageAgentResponse,
			Content: fmt.Sprintf("task completed in %s", resp.ProcessingTime.Round(time.Millisecond)),
			TaskID:  task.ID,
		})
	} else {
		o.totalErrors.Add(1)
		o.appendMessage(req.SessionID, models.Message{
			Type:    models.MessageError,
			Content: resp.Error,
			TaskID:  task.ID,
		})
	}
	return resp
}

// touchSession creates the session on first contact and records the
// user's message.
func (o *Orchestrator) touchSession(req *models.SubmitRequest) error {
	s, err := o.store.Load(req.SessionID)
	if err != nil {
		return err
	}
	if s == nil {
		s = session.New(req.SessionID, req.UserID, req.ProjectID, req.WorkspacePath)
		if err := o.store.Save(s); err != nil {
			return err
		}
	}
	return o.store.AppendMessage(req.SessionID, models.Message{
		Type:    models.MessageUserInput,
		Content: req.Message,
	})
}

// aggregate folds per-step results into one response: consolidated
// payload, summed tokens and cost, and the lowest step confidence.
func (o *Orchestrator) aggregate(sessionID, taskID string, plan *models.ExecutionPlan, results []*models.TaskResult, execErr error, started time.Time) *models.SubmitResponse {
	resp := &models.SubmitResponse{
		SessionID:      sessionID,
		TaskID:         taskID,
		Status:         plan.Status,
		ProcessingTime: time.Since(started),
		Timestamp:      time.Now().UTC(),
	}

	payload := make(map[string]any)
	confidence := 0.0
	haveConfidence := false
	for i, step := range plan.Steps {
		if i >= len(results) {
			break
		}
		res := results[i]
		resp.TokensUsed += res.TokensUsed
		resp.Cost += res.Cost
		if res.Status != models.TaskStatusCompleted {
			continue
		}
		if len(res.Output) > 0 {
			payload[string(step.Capability)] = res.Output
		}
		if res.Confidence > 0 && (!haveConfidence || res.Confidence < confidence) {
			confidence = res.Confidence
			haveConfidence = true
		}
	}
	resp.Confidence = confidence

	// A single-step plan answers with its output directly.
	if len(plan.Steps) == 1 && len(results) == 1 && results[0].Status == models.TaskStatusCompleted {
		resp.Response = results[0].Output
	} else if len(payload) > 0 {
		resp.Response = payload
	}

	if execErr != nil {
		resp.Error = execErr.Error()
	} else if plan.Status != models.TaskStatusCompleted {
		for _, res := range results {
			if res.Error != "" {
				resp.Error = res.Error
				break
			}
		}
	}
	return resp
}

// fail builds a well-formed failed response for a fault caught at the
// façade boundary.
func (o *Orchestrator) fail(sessionID, taskID string, started time.Time, err error) *models.SubmitResponse {
	o.totalErrors.Add(1)
	o.logger.Log("submit failed session=%s task=%s: %v", sessionID, taskID, err)
	o.appendMessage(sessionID, models.Message{
		Type:    models.MessageError,
		Content: err.Error(),
		TaskID:  taskID,
	})
	return &models.SubmitResponse{
		SessionID:      sessionID,
		TaskID:         taskID,
		Status:         models.TaskStatusFailed,
		Error:          err.Error(),
		ProcessingTime: time.Since(started),
		Timestamp:      time.Now().UTC(),
	}
}

// appendMessage records a message best-effort; a store failure here
// must not disturb the response.
func (o *Orchestrator) appendMessage(sessionID string, msg models.Message) {
	if sessionID == "" {
		return
	}
	if err := o.store.AppendMessage(sessionID, msg); err != nil {
		o.logger.Log("append message to session %s: %v", sessionID, err)
	}
}

// GetStatus reports the observable state of a submitted task.
// Repeated calls on a terminal task return identical responses.
func (o *Orchestrator) GetStatus(taskID string) (*models.StatusResponse, error) {
	planID, err := o.planID(taskID)
	if err != nil {
		return nil, err
	}

	status, progress, err := o.engine.Status(planID)
	if err != nil {
		return nil, err
	}

	resp := &models.StatusResponse{
		TaskID:   taskID,
		Status:   status,
		Progress: progress,
	}

	results, err := o.engine.Results(planID)
	if err != nil {
		return nil, err
	}
	switch status {
	case models.TaskStatusCompleted:
		payload := make(map[string]any)
		for _, res := range results {
			if res.Status == models.TaskStatusCompleted && len(res.Output) > 0 {
				payload[string(res.Capability)] = res.Output
			}
		}
		if len(payload) > 0 {
			resp.Result = payload
		}
	case models.TaskStatusFailed, models.TaskStatusCancelled:
		for _, res := range results {
			if res.Error != "" {
				resp.Error = res.Error
				break
			}
		}
	}
	return resp, nil
}

// Cancel stops the task's plan. Cancelling a terminal task is a no-op.
func (o *Orchestrator) Cancel(taskID string) error {
	planID, err := o.planID(taskID)
	if err != nil {
		return err
	}
	return o.engine.Cancel(planID)
}

func (o *Orchestrator) planID(taskID string) (string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	planID, ok := o.plans[taskID]
	if !ok {
		return "", fmt.Errorf("unknown task %s", taskID)
	}
	return planID, nil
}

// ListCapabilities returns a snapshot of registered capabilities.
func (o *Orchestrator) ListCapabilities() map[models.CapabilityType]models.CapabilityDescriptor {
	return o.registry.Capabilities()
}

// SystemStatus returns a point-in-time snapshot of the orchestrator.
func (o *Orchestrator) SystemStatus() models.SystemStatus {
	active, err := o.store.ActiveSessions(o.activityWindow)
	if err != nil {
		o.logger.Log("count active sessions: %v", err)
	}
	return models.SystemStatus{
		Status:         "ok",
		ActiveSessions: active,
		Capabilities:   o.registry.Capabilities(),
		Uptime:         time.Since(o.startedAt),
		Version:        o.version,
		TotalRequests:  o.totalRequests.Load(),
		TotalErrors:    o.totalErrors.Load(),
	}
}

// Events returns the engine event stream for subscribers.
func (o *Orchestrator) Events() <-chan engine.Event {
	return o.emitter.Events()
}

// DroppedEvents returns the number of events dropped under load.
func (o *Orchestrator) DroppedEvents() uint64 {
	return o.emitter.DroppedCount()
}

// Close flushes and closes the orchestrator's resources. Call after
// all submissions have returned.
func (o *Orchestrator) Close() error {
	o.emitter.Close()
	err := o.store.Close()
	if cerr := o.logger.Close(); err == nil {
		err = cerr
	}
	return err
}
