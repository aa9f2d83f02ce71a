package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentide/conductor/internal/config"
	"github.com/agentide/conductor/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Show session store state",
	Long: `Display the state of the conductor session store.

Without arguments, shows the store location and how many sessions have
recent activity. With a session ID, shows that session's conversation
history counters.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := openSessionStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		return displaySessionDetail(store, args[0])
	}

	dbPath := cfg.Session.DBPath
	if dbPath == "" {
		dbPath = session.DefaultDBPath()
	}

	active, err := store.ActiveSessions(cfg.Session.ActivityWindow)
	if err != nil {
		return fmt.Errorf("count active sessions: %w", err)
	}

	fmt.Printf("Session store: %s\n", dbPath)
	fmt.Printf("  Active sessions (last %s): %d\n", cfg.Session.ActivityWindow, active)
	fmt.Printf("  Config: %s\n", config.GetUserConfigPath())
	if active == 0 {
		fmt.Println("\nNo recent activity. Run 'conductor run <instruction>' to start.")
	}
	return nil
}

func displaySessionDetail(store session.Store, id string) error {
	s, err := store.Load(id)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if s == nil {
		fmt.Printf("Session %s not found.\n", id)
		return nil
	}

	fmt.Printf("Session: %s\n", s.ID)
	if s.UserID != "" {
		fmt.Printf("  User: %s\n", s.UserID)
	}
	if s.ProjectID != "" {
		fmt.Printf("  Project: %s\n", s.ProjectID)
	}
	if s.WorkspacePath != "" {
		fmt.Printf("  Workspace: %s\n", s.WorkspacePath)
	}
	fmt.Printf("  Created: %s ago\n", formatDuration(time.Since(s.CreatedAt)))
	fmt.Printf("  Last activity: %s ago\n", formatDuration(time.Since(s.LastActivity)))
	fmt.Printf("  Messages: %d  Tasks: %d\n", s.MessageCount, s.TaskCount)

	if len(s.Messages) > 0 {
		fmt.Println("\nRecent messages:")
		start := len(s.Messages) - 5
		if start < 0 {
			start = 0
		}
		for _, m := range s.Messages[start:] {
			fmt.Printf("  [%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.Type, truncate(m.Content, 80))
		}
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
