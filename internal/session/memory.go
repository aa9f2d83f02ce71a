package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/agentide/conductor/pkg/models"
)

// Memory is an in-memory session store for tests and embedders that
// do not need durability. One lock serializes all writes, which
// trivially satisfies the per-session single-writer requirement.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*Session)}
}

// Migrate is a no-op for the in-memory store.
func (m *Memory) Migrate() error { return nil }

// Close discards all sessions.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*Session)
	return nil
}

// Load returns a copy of the session, or (nil, nil) when unknown.
func (m *Memory) Load(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *s
	copied.Messages = append([]models.Message(nil), s.Messages...)
	if s.Metadata != nil {
		copied.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			copied.Metadata[k] = v
		}
	}
	return &copied, nil
}

// Save upserts the session. The stored copy keeps its accumulated
// message history; Save never truncates it.
func (m *Memory) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *s
	if existing, ok := m.sessions[s.ID]; ok {
		copied.Messages = existing.Messages
		copied.MessageCount = existing.MessageCount
		copied.TaskCount = existing.TaskCount
	} else {
		copied.Messages = append([]models.Message(nil), s.Messages...)
	}
	m.sessions[s.ID] = &copied
	return nil
}

// AppendMessage records one message and bumps activity counters.
func (m *Memory) AppendMessage(sessionID string, msg models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("append message: unknown session %s", sessionID)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	s.Messages = append(s.Messages, msg)
	s.MessageCount++
	s.LastActivity = msg.Timestamp
	return nil
}

// RecordTask bumps the session's task counter and activity time.
func (m *Memory) RecordTask(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("record task: unknown session %s", sessionID)
	}
	s.TaskCount++
	s.LastActivity = time.Now().UTC()
	return nil
}

// ActiveSessions counts sessions with activity inside the window.
func (m *Memory) ActiveSessions(window time.Duration) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, s := range m.sessions {
		if s.Active(window) {
			count++
		}
	}
	return count, nil
}
