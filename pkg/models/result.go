package models

import "time"

// TaskResult records the outcome of executing one task. A result is
// created pending at submission and transitioned exactly once to
// completed or failed by the execution engine; the transition helpers
// return new values so callers never mutate a published result.
type TaskResult struct {
	// TaskID identifies the task this result belongs to.
	TaskID string `json:"task_id"`
	// Capability is the worker category that produced the result.
	Capability CapabilityType `json:"capability"`
	// Status is the terminal (or pending) state of the task.
	Status TaskStatus `json:"status"`
	// Output is the opaque result payload, if any.
	Output map[string]any `json:"output,omitempty"`
	// Error is the failure message, if the task failed.
	Error string `json:"error,omitempty"`
	// ExecutionTime is how long execution took. Never negative.
	ExecutionTime time.Duration `json:"execution_time"`
	// TokensUsed counts language-model tokens consumed.
	TokensUsed int64 `json:"tokens_used,omitempty"`
	// Cost is the estimated spend in USD.
	Cost float64 `json:"cost,omitempty"`
	// Confidence is the producer's confidence in [0, 1].
	Confidence float64 `json:"confidence"`
	// Metadata holds non-semantic annotations. It is the only field
	// that may change after the result turns terminal.
	Metadata map[string]any `json:"metadata,omitempty"`
	// CreatedAt is when the result was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the result turned terminal.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewPendingResult creates a pending result for a task at submission.
func NewPendingResult(taskID string, capability CapabilityType) *TaskResult {
	return &TaskResult{
		TaskID:     taskID,
		Capability: capability,
		Status:     TaskStatusPending,
		Confidence: 1.0,
		CreatedAt:  time.Now().UTC(),
	}
}

// Completed returns a copy of the result marked completed with the
// given payload. The receiver is not modified.
func (r TaskResult) Completed(output map[string]any, took time.Duration) *TaskResult {
	now := time.Now().UTC()
	r.Status = TaskStatusCompleted
	r.Output = output
	r.ExecutionTime = clampDuration(took)
	r.CompletedAt = &now
	return &r
}

// Failed returns a copy of the result marked failed with the given
// error message. The receiver is not modified.
func (r TaskResult) Failed(errMsg string, took time.Duration) *TaskResult {
	now := time.Now().UTC()
	r.Status = TaskStatusFailed
	r.Error = errMsg
	r.ExecutionTime = clampDuration(took)
	r.CompletedAt = &now
	return &r
}

// Cancelled returns a copy of the result marked cancelled.
func (r TaskResult) Cancelled(took time.Duration) *TaskResult {
	now := time.Now().UTC()
	r.Status = TaskStatusCancelled
	r.ExecutionTime = clampDuration(took)
	r.CompletedAt = &now
	return &r
}

func clampDuration(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
