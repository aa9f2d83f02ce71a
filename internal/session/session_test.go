package session

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/agentide/conductor/pkg/models"
)

// runWithStores runs the test against both backends.
func runWithStores(t *testing.T, fn func(t *testing.T, store SessionStore)) {
	t.Run("sqlite", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			t.Fatalf("Migrate failed: %v", err)
		}
		fn(t, db)
	})
	t.Run("memory", func(t *testing.T) {
		store := NewMemory()
		defer store.Close()
		if err := store.Migrate(); err != nil {
			t.Fatalf("Migrate failed: %v", err)
		}
		fn(t, store)
	})
}

func TestLoadUnknownSession(t *testing.T) {
	runWithStores(t, func(t *testing.T, store SessionStore) {
		s, err := store.Load("missing")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if s != nil {
			t.Errorf("unknown session should load as nil, got %+v", s)
		}
	})
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	runWithStores(t, func(t *testing.T, store SessionStore) {
		s := New("sess-1", "user-1", "proj-1", "/tmp/workspace")
		s.Metadata = map[string]any{"language": "go"}
		if err := store.Save(s); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		loaded, err := store.Load("sess-1")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded == nil {
			t.Fatal("saved session did not load")
		}
		if loaded.UserID != "user-1" || loaded.ProjectID != "proj-1" || loaded.WorkspacePath != "/tmp/workspace" {
			t.Errorf("loaded session fields mismatch: %+v", loaded)
		}
		if loaded.Metadata["language"] != "go" {
			t.Errorf("metadata not preserved: %v", loaded.Metadata)
		}
	})
}

func TestSaveIsUpsert(t *testing.T) {
	runWithStores(t, func(t *testing.T, store SessionStore) {
		s := New("sess-1", "user-1", "proj-1", "/tmp/a")
		if err := store.Save(s); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		s.WorkspacePath = "/tmp/b"
		if err := store.Save(s); err != nil {
			t.Fatalf("second Save failed: %v", err)
		}

		loaded, err := store.Load("sess-1")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.WorkspacePath != "/tmp/b" {
			t.Errorf("workspace path = %s, want /tmp/b", loaded.WorkspacePath)
		}
	})
}

func TestAppendMessagePreservesOrder(t *testing.T) {
	runWithStores(t, func(t *testing.T, store SessionStore) {
		if err := store.Save(New("sess-1", "u", "p", "/tmp/ws")); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		inputs := []models.Message{
			{Type: models.MessageUserInput, Content: "build me a parser"},
			{Type: models.MessageStatusUpdate, Content: "planning", TaskID: "task-1"},
			{Type: models.MessageAgentResponse, Content: "done", TaskID: "task-1"},
		}
		for _, msg := range inputs {
			if err := store.AppendMessage("sess-1", msg); err != nil {
				t.Fatalf("AppendMessage failed: %v", err)
			}
		}

		loaded, err := store.Load("sess-1")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.MessageCount != 3 {
			t.Errorf("message count = %d, want 3", loaded.MessageCount)
		}
		if len(loaded.Messages) != 3 {
			t.Fatalf("loaded %d messages, want 3", len(loaded.Messages))
		}
		for i, msg := range loaded.Messages {
			if msg.Content != inputs[i].Content || msg.Type != inputs[i].Type {
				t.Errorf("message %d = %+v, want %+v", i, msg, inputs[i])
			}
		}
		if loaded.Messages[1].TaskID != "task-1" {
			t.Errorf("task link lost: %+v", loaded.Messages[1])
		}
	})
}

func TestAppendMessageUnknownSession(t *testing.T) {
	runWithStores(t, func(t *testing.T, store SessionStore) {
		err := store.AppendMessage("missing", models.Message{Type: models.MessageUserInput, Content: "hi"})
		if err == nil {
			t.Error("appending to an unknown session should error")
		}
	})
}

func TestConcurrentAppendsDoNotLoseUpdates(t *testing.T) {
	runWithStores(t, func(t *testing.T, store SessionStore) {
		if err := store.Save(New("sess-1", "u", "p", "/tmp/ws")); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		const writers = 8
		const perWriter = 5
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perWriter; j++ {
					msg := models.Message{Type: models.MessageStatusUpdate, Content: "tick"}
					if err := store.AppendMessage("sess-1", msg); err != nil {
						t.Errorf("AppendMessage failed: %v", err)
					}
				}
			}()
		}
		wg.Wait()

		loaded, err := store.Load("sess-1")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.MessageCount != writers*perWriter {
			t.Errorf("message count = %d, want %d", loaded.MessageCount, writers*perWriter)
		}
		if len(loaded.Messages) != writers*perWriter {
			t.Errorf("loaded %d messages, want %d", len(loaded.Messages), writers*perWriter)
		}
	})
}

func TestRecordTask(t *testing.T) {
	runWithStores(t, func(t *testing.T, store SessionStore) {
		if err := store.Save(New("sess-1", "u", "p", "/tmp/ws")); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		for i := 0; i < 3; i++ {
			if err := store.RecordTask("sess-1"); err != nil {
				t.Fatalf("RecordTask failed: %v", err)
			}
		}
		if err := store.RecordTask("missing"); err == nil {
			t.Error("recording a task on an unknown session should error")
		}

		loaded, err := store.Load("sess-1")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.TaskCount != 3 {
			t.Errorf("task count = %d, want 3", loaded.TaskCount)
		}
	})
}

func TestActiveSessions(t *testing.T) {
	runWithStores(t, func(t *testing.T, store SessionStore) {
		fresh := New("fresh", "u", "p", "/tmp/ws")
		if err := store.Save(fresh); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		stale := New("stale", "u", "p", "/tmp/ws")
		stale.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
		stale.LastActivity = stale.CreatedAt
		if err := store.Save(stale); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		count, err := store.ActiveSessions(time.Hour)
		if err != nil {
			t.Fatalf("ActiveSessions failed: %v", err)
		}
		if count != 1 {
			t.Errorf("active sessions = %d, want 1", count)
		}
	})
}

func TestPurgeOldSessions(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	old := New("old", "u", "p", "/tmp/ws")
	old.LastActivity = time.Now().UTC().Add(-48 * time.Hour)
	if err := db.Save(old); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := db.Save(New("recent", "u", "p", "/tmp/ws")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	purged, err := db.PurgeOldSessions(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldSessions failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged %d sessions, want 1", purged)
	}
	if s, _ := db.Load("old"); s != nil {
		t.Error("purged session still loads")
	}
	if s, _ := db.Load("recent"); s == nil {
		t.Error("recent session was purged")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	for i := 0; i < 2; i++ {
		if err := db.Migrate(); err != nil {
			t.Fatalf("Migrate run %d failed: %v", i, err)
		}
	}
	if err := db.Save(New("sess-1", "u", "p", "/tmp/ws")); err != nil {
		t.Fatalf("Save after repeated migration failed: %v", err)
	}
}
