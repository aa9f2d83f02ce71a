// Package models defines the core data types shared across the
// orchestration system: requests, execution context, plans, steps,
// and results.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task, step, or plan.
type TaskStatus string

const (
	// TaskStatusPending indicates the work has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the work is being executed.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the work finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the work failed permanently.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the work was cancelled before completion.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status will never change again.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IntentType is a classified user intent. The set is closed: the
// classifier always resolves to one of these tags.
type IntentType string

const (
	IntentCodeGeneration IntentType = "code_generation"
	IntentCodeReview     IntentType = "code_review"
	IntentRefactoring    IntentType = "refactoring"
	IntentInfraSetup     IntentType = "infrastructure_setup"
	IntentTesting        IntentType = "testing"
	IntentDeployment     IntentType = "deployment"
	IntentDocumentation  IntentType = "documentation"
	IntentDebugging      IntentType = "debugging"
	IntentSecurityScan   IntentType = "security_scan"
	IntentExplanation    IntentType = "explanation"
	IntentProjectSetup   IntentType = "project_setup"
)

// AllIntents lists every known intent tag.
func AllIntents() []IntentType {
	return []IntentType{
		IntentCodeGeneration, IntentCodeReview, IntentRefactoring,
		IntentInfraSetup, IntentTesting, IntentDeployment,
		IntentDocumentation, IntentDebugging, IntentSecurityScan,
		IntentExplanation, IntentProjectSetup,
	}
}

// Valid returns true if the intent is a known tag.
func (i IntentType) Valid() bool {
	for _, known := range AllIntents() {
		if i == known {
			return true
		}
	}
	return false
}

// CapabilityType is a named category of work a worker can perform.
type CapabilityType string

const (
	CapabilityCode           CapabilityType = "code"
	CapabilityInfrastructure CapabilityType = "infrastructure"
	CapabilityTesting        CapabilityType = "testing"
	CapabilityDevOps         CapabilityType = "devops"
	CapabilityDocumentation  CapabilityType = "documentation"
	CapabilitySecurity       CapabilityType = "security"
	CapabilityPlanning       CapabilityType = "planning"
	CapabilityReview         CapabilityType = "review"
)

// AllCapabilities lists every known capability category.
func AllCapabilities() []CapabilityType {
	return []CapabilityType{
		CapabilityCode, CapabilityInfrastructure, CapabilityTesting,
		CapabilityDevOps, CapabilityDocumentation, CapabilitySecurity,
		CapabilityPlanning, CapabilityReview,
	}
}

// Valid returns true if the capability is a known category.
func (c CapabilityType) Valid() bool {
	for _, known := range AllCapabilities() {
		if c == known {
			return true
		}
	}
	return false
}

// Priority orders tasks for dispatch when workers are scarce.
// Higher values dispatch first.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityMedium   Priority = 5
	PriorityHigh     Priority = 8
	PriorityCritical Priority = 10
)

// Valid returns true if the priority is a known level.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// String returns the priority's display name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Timeout bounds for task requests.
const (
	MinTaskTimeout = 1 * time.Second
	MaxTaskTimeout = 3600 * time.Second
	// DefaultTaskTimeout applies when no timeout is specified.
	DefaultTaskTimeout = 300 * time.Second
	// DefaultMaxRetries is the default retry budget per step.
	DefaultMaxRetries = 3
)

// ExecutionContext carries the session and project information a worker
// needs to execute a request.
type ExecutionContext struct {
	// SessionID identifies the conversation this request belongs to.
	SessionID string `json:"session_id"`
	// UserID identifies the requesting user.
	UserID string `json:"user_id"`
	// ProjectID identifies the project being worked on.
	ProjectID string `json:"project_id"`
	// WorkspacePath is the filesystem root workers operate in.
	WorkspacePath string `json:"workspace_path"`
	// Environment names the deployment environment (development, staging, ...).
	Environment string `json:"environment,omitempty"`
	// Language is the primary programming language, if known.
	Language string `json:"language,omitempty"`
	// Framework is the primary framework, if known.
	Framework string `json:"framework,omitempty"`
	// Metadata holds arbitrary caller-supplied values.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate checks the context for required fields.
func (c *ExecutionContext) Validate() error {
	if strings.TrimSpace(c.WorkspacePath) == "" {
		return &ValidationError{Field: "workspace_path", Reason: "workspace path cannot be empty"}
	}
	return nil
}

// TaskRequest is a request to execute a unit of work.
type TaskRequest struct {
	// ID is the unique identifier for this request.
	ID string `json:"id"`
	// Intent is the classified intent tag.
	Intent IntentType `json:"intent"`
	// Description is the free-text description of the work.
	Description string `json:"description"`
	// Context carries session and project information.
	Context ExecutionContext `json:"context"`
	// Parameters holds caller-supplied execution parameters.
	Parameters map[string]any `json:"parameters,omitempty"`
	// Priority orders this request against others competing for workers.
	Priority Priority `json:"priority"`
	// Timeout bounds a single execution attempt.
	Timeout time.Duration `json:"timeout"`
	// MaxRetries is the retry budget for transient failures.
	MaxRetries int `json:"max_retries"`
	// ParentTaskID links a narrowed sub-request back to its originator.
	ParentTaskID string `json:"parent_task_id,omitempty"`
	// CreatedAt is when the request was created.
	CreatedAt time.Time `json:"created_at"`
}

// NewTaskRequest creates a request with generated ID, defaults applied,
// and the description trimmed.
func NewTaskRequest(intent IntentType, description string, ctx ExecutionContext) *TaskRequest {
	return &TaskRequest{
		ID:          uuid.New().String(),
		Intent:      intent,
		Description: strings.TrimSpace(description),
		Context:     ctx,
		Priority:    PriorityMedium,
		Timeout:     DefaultTaskTimeout,
		MaxRetries:  DefaultMaxRetries,
		CreatedAt:   time.Now().UTC(),
	}
}

// Validate checks the request against the data-model invariants.
func (r *TaskRequest) Validate() error {
	if strings.TrimSpace(r.Description) == "" {
		return &ValidationError{Field: "description", Reason: "task description cannot be empty"}
	}
	if !r.Intent.Valid() {
		return &ValidationError{Field: "intent", Reason: fmt.Sprintf("unknown intent %q", r.Intent)}
	}
	if !r.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %d", r.Priority)}
	}
	if r.Timeout < MinTaskTimeout || r.Timeout > MaxTaskTimeout {
		return &ValidationError{
			Field:  "timeout",
			Reason: fmt.Sprintf("timeout %s outside allowed range [%s, %s]", r.Timeout, MinTaskTimeout, MaxTaskTimeout),
		}
	}
	if r.MaxRetries < 0 {
		return &ValidationError{Field: "max_retries", Reason: "retry budget cannot be negative"}
	}
	return r.Context.Validate()
}

// Narrowed returns a copy of the request re-targeted at a sub-unit of
// work. The copy gets a fresh ID, the given description, and records
// the original request as its parent. Session context is shared.
func (r *TaskRequest) Narrowed(intent IntentType, description string) *TaskRequest {
	sub := NewTaskRequest(intent, description, r.Context)
	sub.Parameters = r.Parameters
	sub.Priority = r.Priority
	sub.Timeout = r.Timeout
	sub.MaxRetries = r.MaxRetries
	sub.ParentTaskID = r.ID
	return sub
}

// ValidationError reports a malformed request or context. It is fatal:
// the request is rejected before planning and never retried.
type ValidationError struct {
	// Field is the offending field name.
	Field string
	// Reason describes why the value was rejected.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}
