package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentide/conductor/pkg/models"
)

// DB is the SQLite-backed session store.
type DB struct {
	conn *sql.DB
	path string

	// locks serializes writers per session ID. Readers go straight to
	// SQLite; WAL mode keeps them concurrent with writes.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// DefaultDBPath returns the session database path under XDG data home.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "conductor", "sessions.db")
}

// Open opens the session database at the given path, creating parent
// directories as needed. WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{
		conn:  conn,
		path:  path,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// sessionLock returns the write lock for a session ID, creating it on
// first use.
func (db *DB) sessionLock(sessionID string) *sync.Mutex {
	db.mu.Lock()
	defer db.mu.Unlock()
	lock, ok := db.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		db.locks[sessionID] = lock
	}
	return lock
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Sessions},
		{2, migrationV2Messages},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Sessions = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	workspace_path TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	last_activity DATETIME NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0,
	task_count INTEGER NOT NULL DEFAULT 0,
	metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_sessions_last_activity ON sessions(last_activity);
`

const migrationV2Messages = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	content TEXT NOT NULL,
	task_id TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages(session_id);
`

// Load retrieves a session and its message history, oldest message
// first. Returns (nil, nil) for an unknown session ID.
func (db *DB) Load(sessionID string) (*Session, error) {
	row := db.conn.QueryRow(`
		SELECT id, user_id, project_id, workspace_path, created_at, last_activity, message_count, task_count, metadata
		FROM sessions WHERE id = ?
	`, sessionID)

	var s Session
	var createdAt, lastActivity string
	var metadata sql.NullString
	err := row.Scan(&s.ID, &s.UserID, &s.ProjectID, &s.WorkspacePath,
		&createdAt, &lastActivity, &s.MessageCount, &s.TaskCount, &metadata)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	s.CreatedAt, _ = parseTime(createdAt)
	s.LastActivity, _ = parseTime(lastActivity)
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &s.Metadata); err != nil {
			return nil, fmt.Errorf("decode session metadata: %w", err)
		}
	}

	messages, err := db.loadMessages(sessionID)
	if err != nil {
		return nil, err
	}
	s.Messages = messages
	return &s, nil
}

func (db *DB) loadMessages(sessionID string) ([]models.Message, error) {
	rows, err := db.conn.Query(`
		SELECT type, content, task_id, created_at
		FROM messages WHERE session_id = ? ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var taskID sql.NullString
		var createdAt string
		if err := rows.Scan(&m.Type, &m.Content, &taskID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if taskID.Valid {
			m.TaskID = taskID.String
		}
		m.Timestamp, _ = parseTime(createdAt)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Save upserts the session's metadata row. Message history is written
// through AppendMessage only.
func (db *DB) Save(s *Session) error {
	lock := db.sessionLock(s.ID)
	lock.Lock()
	defer lock.Unlock()

	var metadata any
	if len(s.Metadata) > 0 {
		raw, err := json.Marshal(s.Metadata)
		if err != nil {
			return fmt.Errorf("encode session metadata: %w", err)
		}
		metadata = string(raw)
	}

	_, err := db.conn.Exec(`
		INSERT INTO sessions (id, user_id, project_id, workspace_path, created_at, last_activity, message_count, task_count, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			project_id = excluded.project_id,
			workspace_path = excluded.workspace_path,
			last_activity = excluded.last_activity,
			metadata = excluded.metadata
	`, s.ID, s.UserID, s.ProjectID, s.WorkspacePath,
		formatTime(s.CreatedAt), formatTime(s.LastActivity),
		s.MessageCount, s.TaskCount, metadata)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// AppendMessage records one message and bumps the session's activity
// counters in a single transaction.
func (db *DB) AppendMessage(sessionID string, msg models.Message) error {
	lock := db.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	var taskID any
	if msg.TaskID != "" {
		taskID = msg.TaskID
	}
	if _, err := tx.Exec(`
		INSERT INTO messages (session_id, type, content, task_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, sessionID, string(msg.Type), msg.Content, taskID, formatTime(msg.Timestamp)); err != nil {
		tx.Rollback()
		return fmt.Errorf("append message: %w", err)
	}

	res, err := tx.Exec(`
		UPDATE sessions SET message_count = message_count + 1, last_activity = ?
		WHERE id = ?
	`, formatTime(msg.Timestamp), sessionID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("bump message count: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		tx.Rollback()
		return fmt.Errorf("append message: unknown session %s", sessionID)
	}

	return tx.Commit()
}

// RecordTask bumps the session's task counter and activity time.
func (db *DB) RecordTask(sessionID string) error {
	lock := db.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	res, err := db.conn.Exec(`
		UPDATE sessions SET task_count = task_count + 1, last_activity = ?
		WHERE id = ?
	`, formatTime(time.Now()), sessionID)
	if err != nil {
		return fmt.Errorf("record task: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("record task: unknown session %s", sessionID)
	}
	return nil
}

// ActiveSessions counts sessions with activity inside the window.
func (db *DB) ActiveSessions(window time.Duration) (int, error) {
	cutoff := formatTime(time.Now().Add(-window))

	var count int
	row := db.conn.QueryRow("SELECT COUNT(*) FROM sessions WHERE last_activity >= ?", cutoff)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return count, nil
}

// PurgeOldSessions deletes sessions idle longer than the given
// duration, with their message history. Returns the number deleted.
func (db *DB) PurgeOldSessions(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := db.conn.Exec("DELETE FROM sessions WHERE last_activity < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old sessions: %w", err)
	}
	return result.RowsAffected()
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
