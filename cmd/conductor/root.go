package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Task orchestration for development workflows",
	Long: `Conductor turns free-text development instructions into execution
plans and runs them across capability-scoped workers.

A submitted instruction is classified into an intent, expanded into a
dependency-ordered plan, and executed with bounded concurrency. Steps
retry on transient failures, time out individually, and report live
progress.

Core capabilities:
- Classifies instructions into development intents
- Plans multi-step work as a dependency graph
- Executes steps concurrently with retries and timeouts
- Persists conversation history per session`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(capabilitiesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
