// Package session persists conversation and session state. The
// orchestration core reads and writes it through a narrow store
// interface; nothing else owns session state.
package session

import (
	"time"

	"github.com/agentide/conductor/pkg/models"
)

// Session is the durable state of one conversation.
type Session struct {
	ID            string           `json:"id"`
	UserID        string           `json:"user_id"`
	ProjectID     string           `json:"project_id"`
	WorkspacePath string           `json:"workspace_path"`
	CreatedAt     time.Time        `json:"created_at"`
	LastActivity  time.Time        `json:"last_activity"`
	// MessageCount tracks appended messages without loading history.
	MessageCount int `json:"message_count"`
	// TaskCount tracks tasks submitted under this session.
	TaskCount int              `json:"task_count"`
	Messages  []models.Message `json:"messages,omitempty"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

// New creates a session with timestamps initialized to now.
func New(id, userID, projectID, workspacePath string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:            id,
		UserID:        userID,
		ProjectID:     projectID,
		WorkspacePath: workspacePath,
		CreatedAt:     now,
		LastActivity:  now,
	}
}

// Active reports whether the session saw activity inside the window.
func (s *Session) Active(window time.Duration) bool {
	return time.Since(s.LastActivity) <= window
}
