package models

import (
	"strings"
	"testing"
	"time"
)

func testContext() ExecutionContext {
	return ExecutionContext{
		SessionID:     "sess-1",
		UserID:        "user-1",
		ProjectID:     "proj-1",
		WorkspacePath: "/tmp/workspace",
	}
}

func TestTaskStatusValid(t *testing.T) {
	valid := []TaskStatus{
		TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCancelled,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if TaskStatus("blocked").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		terminal bool
	}{
		{TaskStatusPending, false},
		{TaskStatusInProgress, false},
		{TaskStatusCompleted, true},
		{TaskStatusFailed, true},
		{TaskStatusCancelled, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s: Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestNewTaskRequestDefaults(t *testing.T) {
	req := NewTaskRequest(IntentCodeGeneration, "  write a parser  ", testContext())

	if req.ID == "" {
		t.Error("expected generated ID")
	}
	if req.Description != "write a parser" {
		t.Errorf("expected trimmed description, got %q", req.Description)
	}
	if req.Priority != PriorityMedium {
		t.Errorf("expected default priority medium, got %v", req.Priority)
	}
	if req.Timeout != DefaultTaskTimeout {
		t.Errorf("expected default timeout %s, got %s", DefaultTaskTimeout, req.Timeout)
	}
	if req.MaxRetries != DefaultMaxRetries {
		t.Errorf("expected default retry budget %d, got %d", DefaultMaxRetries, req.MaxRetries)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request, got %v", err)
	}
}

func TestTaskRequestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TaskRequest)
		field  string
	}{
		{"empty description", func(r *TaskRequest) { r.Description = "   " }, "description"},
		{"unknown intent", func(r *TaskRequest) { r.Intent = "poetry" }, "intent"},
		{"unknown priority", func(r *TaskRequest) { r.Priority = 42 }, "priority"},
		{"timeout too small", func(r *TaskRequest) { r.Timeout = 500 * time.Millisecond }, "timeout"},
		{"timeout too large", func(r *TaskRequest) { r.Timeout = 2 * time.Hour }, "timeout"},
		{"negative retries", func(r *TaskRequest) { r.MaxRetries = -1 }, "max_retries"},
		{"empty workspace", func(r *TaskRequest) { r.Context.WorkspacePath = "" }, "workspace_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewTaskRequest(IntentTesting, "run the tests", testContext())
			tt.mutate(req)

			err := req.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *ValidationError
			if !asValidationError(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if verr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}
}

func asValidationError(err error, target **ValidationError) bool {
	v, ok := err.(*ValidationError)
	if ok {
		*target = v
	}
	return ok
}

func TestTaskRequestNarrowed(t *testing.T) {
	parent := NewTaskRequest(IntentProjectSetup, "set up the project", testContext())
	parent.Priority = PriorityHigh
	parent.Timeout = 10 * time.Minute

	sub := parent.Narrowed(IntentInfraSetup, "provision infrastructure")

	if sub.ID == parent.ID {
		t.Error("expected narrowed request to get a fresh ID")
	}
	if sub.ParentTaskID != parent.ID {
		t.Errorf("expected parent link %q, got %q", parent.ID, sub.ParentTaskID)
	}
	if sub.Intent != IntentInfraSetup {
		t.Errorf("expected narrowed intent, got %v", sub.Intent)
	}
	if sub.Priority != PriorityHigh || sub.Timeout != 10*time.Minute {
		t.Error("expected narrowed request to inherit priority and timeout")
	}
	if sub.Context.SessionID != parent.Context.SessionID {
		t.Error("expected narrowed request to share session context")
	}
}

func TestSubmitRequestValidate(t *testing.T) {
	req := &SubmitRequest{Message: "build me a CLI", SessionID: "sess-1"}
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.UserID == "" || req.ProjectID == "" || req.WorkspacePath == "" {
		t.Error("expected defaults to be applied")
	}

	bad := &SubmitRequest{Message: "  ", SessionID: "sess-1"}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for empty message")
	}
	noSession := &SubmitRequest{Message: "hello"}
	if err := noSession.Validate(); err == nil {
		t.Error("expected error for missing session id")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Field: "timeout", Reason: "out of range"}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("expected field name in message, got %q", err.Error())
	}
}
