package engine

import "fmt"

// DispatchError reports that no capable worker existed for a step at
// schedule time. It is fatal for the step and its plan; it is never
// retried.
type DispatchError struct {
	// StepID is the step that could not be dispatched.
	StepID string
	// Capability is the worker category nothing could serve.
	Capability string
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("no capable worker for step %s (capability %s)", e.StepID, e.Capability)
}

// WorkerError reports a failure surfaced by a worker during execution.
// Worker errors are retryable up to the step's retry budget.
type WorkerError struct {
	// StepID is the failing step.
	StepID string
	// Attempt is the attempt number that failed, 1-indexed.
	Attempt int
	// Err is the worker's error.
	Err error
}

// Error implements the error interface.
func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker failed on step %s (attempt %d): %v", e.StepID, e.Attempt, e.Err)
}

// Unwrap returns the worker's error.
func (e *WorkerError) Unwrap() error { return e.Err }

// TimeoutError reports that a dispatch exceeded the step's timeout
// bound. Timeouts share the retry budget with worker failures.
type TimeoutError struct {
	// StepID is the step that timed out.
	StepID string
	// Timeout is the bound that was exceeded.
	Timeout string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("step %s exceeded its %s timeout", e.StepID, e.Timeout)
}

// CancellationError reports a caller-initiated cancellation. It is
// terminal and never retried.
type CancellationError struct {
	// PlanID is the cancelled plan.
	PlanID string
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("plan %s was cancelled", e.PlanID)
}
