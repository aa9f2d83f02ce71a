package models

import (
	"strings"
	"time"
)

// MessageType tags a message in a session's conversation history.
type MessageType string

const (
	MessageUserInput          MessageType = "user_input"
	MessageAgentResponse      MessageType = "agent_response"
	MessageSystemNotification MessageType = "system_notification"
	MessageError              MessageType = "error"
	MessageStatusUpdate       MessageType = "status_update"
)

// Message is one entry in a session's conversation history.
type Message struct {
	// Type tags the origin of the message.
	Type MessageType `json:"type"`
	// Content is the message body.
	Content string `json:"content"`
	// TaskID links the message to a task, if applicable.
	TaskID string `json:"task_id,omitempty"`
	// Timestamp is when the message was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// SubmitRequest is a user instruction submitted to the orchestrator.
type SubmitRequest struct {
	// Message is the free-text instruction. Required.
	Message string `json:"message"`
	// SessionID identifies the conversation. Required.
	SessionID string `json:"session_id"`
	// UserID identifies the requesting user.
	UserID string `json:"user_id,omitempty"`
	// ProjectID identifies the project being worked on.
	ProjectID string `json:"project_id,omitempty"`
	// WorkspacePath is the filesystem root workers operate in.
	WorkspacePath string `json:"workspace_path,omitempty"`
	// Parameters holds caller-supplied execution parameters.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Validate checks the submission for required fields and applies
// defaults for the optional ones.
func (r *SubmitRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return &ValidationError{Field: "message", Reason: "message cannot be empty"}
	}
	if strings.TrimSpace(r.SessionID) == "" {
		return &ValidationError{Field: "session_id", Reason: "session id cannot be empty"}
	}
	if r.UserID == "" {
		r.UserID = "default_user"
	}
	if r.ProjectID == "" {
		r.ProjectID = "default_project"
	}
	if r.WorkspacePath == "" {
		r.WorkspacePath = "/tmp/workspace"
	}
	return nil
}

// SubmitResponse is the orchestrator's aggregated answer to a
// submission. It is always well-formed: internal faults surface as a
// failed status with an error message, never as a raised fault.
type SubmitResponse struct {
	// SessionID echoes the conversation ID.
	SessionID string `json:"session_id"`
	// TaskID identifies the task for later status queries.
	TaskID string `json:"task_id,omitempty"`
	// Status is the terminal status of the request.
	Status TaskStatus `json:"status"`
	// Response is the consolidated result payload.
	Response map[string]any `json:"response,omitempty"`
	// Error is the consolidated error message, if the request failed.
	Error string `json:"error,omitempty"`
	// ProcessingTime is the wall-clock time spent on the request.
	ProcessingTime time.Duration `json:"processing_time"`
	// TokensUsed aggregates tokens across all steps.
	TokensUsed int64 `json:"tokens_used,omitempty"`
	// Cost aggregates estimated spend across all steps.
	Cost float64 `json:"cost,omitempty"`
	// Confidence is the lowest per-step confidence, in [0, 1].
	Confidence float64 `json:"confidence"`
	// Timestamp is when the response was produced.
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse reports the observable state of a submitted task.
// Repeated queries on a terminal task return identical responses.
type StatusResponse struct {
	// TaskID identifies the task.
	TaskID string `json:"task_id"`
	// Status is the current plan status.
	Status TaskStatus `json:"status"`
	// Progress is completion as a percentage in [0, 100].
	Progress float64 `json:"progress"`
	// Result is the consolidated payload, present once completed.
	Result map[string]any `json:"result,omitempty"`
	// Error is the consolidated error, present once failed.
	Error string `json:"error,omitempty"`
}

// CapabilityDescriptor describes a registered capability for
// introspection.
type CapabilityDescriptor struct {
	// Name is the human-readable capability name.
	Name string `json:"name"`
	// RequiredInputs lists the inputs a request must carry.
	RequiredInputs []string `json:"required_inputs,omitempty"`
	// Outputs lists the keys the capability produces.
	Outputs []string `json:"outputs,omitempty"`
	// EstimatedDuration is a typical execution time.
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty"`
	// Workers is the number of registered workers for the capability.
	Workers int `json:"workers"`
}

// SystemStatus is a point-in-time snapshot of the orchestrator.
type SystemStatus struct {
	// Status is "ok" while the orchestrator is serving.
	Status string `json:"status"`
	// ActiveSessions counts sessions with recent activity.
	ActiveSessions int `json:"active_sessions"`
	// Capabilities describes registered worker categories.
	Capabilities map[CapabilityType]CapabilityDescriptor `json:"capabilities"`
	// Uptime is how long the orchestrator has been running.
	Uptime time.Duration `json:"uptime"`
	// Version is the build version.
	Version string `json:"version"`
	// TotalRequests counts submissions since startup.
	TotalRequests int64 `json:"total_requests"`
	// TotalErrors counts failed submissions since startup.
	TotalErrors int64 `json:"total_errors"`
}
