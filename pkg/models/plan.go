package models

import "time"

// ExecutionStep is one unit of execution within a plan, bound to
// exactly one capability type. Step status is owned by the execution
// engine after planning; nothing else mutates it.
type ExecutionStep struct {
	// ID is the unique identifier for this step.
	ID string `json:"id"`
	// Capability is the worker category this step requires.
	Capability CapabilityType `json:"capability"`
	// Request is the narrowed request this step executes.
	Request *TaskRequest `json:"request"`
	// DependsOn lists step IDs that must complete before this step.
	// Order is preserved from planning.
	DependsOn []string `json:"depends_on,omitempty"`
	// Status is the current state of the step.
	Status TaskStatus `json:"status"`
	// RetryCount is the number of failed attempts so far.
	// Never exceeds Request.MaxRetries.
	RetryCount int `json:"retry_count,omitempty"`
	// Optional marks a step whose permanent failure does not fail the
	// plan. Dependents of a failed optional step are still cancelled.
	Optional bool `json:"optional,omitempty"`
	// EstimatedDuration is the planner's duration estimate.
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty"`
	// StartedAt is when the step was first dispatched.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the step reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Ready reports whether the step can be dispatched: it is pending and
// every dependency ID appears in the completed set.
func (s *ExecutionStep) Ready(completed map[string]bool) bool {
	if s.Status != TaskStatusPending {
		return false
	}
	for _, dep := range s.DependsOn {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// ExecutionPlan is an acyclic dependency graph of steps derived from
// one task request.
type ExecutionPlan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id"`
	// Request is the originating task request.
	Request *TaskRequest `json:"request"`
	// Steps is the ordered list of execution steps.
	Steps []*ExecutionStep `json:"steps"`
	// Status is the current state of the plan.
	Status TaskStatus `json:"status"`
	// EstimatedDuration is the critical-path duration: the sum of step
	// estimates along the longest dependency chain, not the flat sum,
	// since independent steps may run in parallel.
	EstimatedDuration time.Duration `json:"estimated_duration"`
	// CreatedAt is when the plan was built.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when execution began.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the plan reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Step returns the step with the given ID, or nil if not present.
func (p *ExecutionPlan) Step(id string) *ExecutionStep {
	for _, s := range p.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// ReadySteps returns the steps that can be dispatched given the set of
// completed step IDs.
func (p *ExecutionPlan) ReadySteps(completed map[string]bool) []*ExecutionStep {
	var ready []*ExecutionStep
	for _, s := range p.Steps {
		if s.Ready(completed) {
			ready = append(ready, s)
		}
	}
	return ready
}

// Progress returns completion as a percentage in [0, 100]. It is 100
// exactly when every step is completed. An empty plan reports 0.
func (p *ExecutionPlan) Progress() float64 {
	if len(p.Steps) == 0 {
		return 0
	}
	done := 0
	for _, s := range p.Steps {
		if s.Status == TaskStatusCompleted {
			done++
		}
	}
	return float64(done) / float64(len(p.Steps)) * 100
}
