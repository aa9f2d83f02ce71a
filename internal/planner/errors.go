package planner

import "fmt"

// PlanningError reports a capability gap, dependency cycle, or bad
// dependency reference discovered while building a plan. Planning
// errors are fatal: the request is rejected and never retried.
type PlanningError struct {
	// RequestID is the originating request.
	RequestID string
	// Message describes what made the plan unbuildable.
	Message string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning failed for request %s: %s", e.RequestID, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *PlanningError) Unwrap() error {
	return e.Err
}
