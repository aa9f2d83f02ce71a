package session

import (
	"io"
	"time"

	"github.com/agentide/conductor/pkg/models"
)

// Store is the narrow persistence contract the orchestration core
// depends on. Writes to the same session ID are serialized by the
// implementation so concurrent appends never lose counter updates.
type Store interface {
	// Load retrieves a session with its message history. It returns
	// (nil, nil) when the session does not exist.
	Load(sessionID string) (*Session, error)
	// Save upserts the session's metadata. Message history is written
	// through AppendMessage, not Save.
	Save(s *Session) error
	// AppendMessage records one message and bumps the session's
	// activity counters.
	AppendMessage(sessionID string, msg models.Message) error
	// RecordTask bumps the session's task counter and activity time.
	RecordTask(sessionID string) error
	// ActiveSessions counts sessions with activity inside the window.
	ActiveSessions(window time.Duration) (int, error)
}

// Migrator applies pending schema migrations.
type Migrator interface {
	Migrate() error
}

// SessionStore is the full lifecycle contract: initialized at startup,
// flushed and closed at shutdown.
type SessionStore interface {
	io.Closer
	Migrator
	Store
}

// Compile-time verification that both backends implement the contract.
var (
	_ SessionStore = (*DB)(nil)
	_ SessionStore = (*Memory)(nil)
)
