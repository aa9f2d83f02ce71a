package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentide/conductor/internal/config"
	"github.com/agentide/conductor/internal/orchestrator"
	"github.com/agentide/conductor/internal/tui"
	"github.com/agentide/conductor/pkg/models"
)

// timeRounding trims durations for display.
const timeRounding = 10 * time.Millisecond

var (
	runSessionID string
	runUserID    string
	runProjectID string
	runWorkspace string
	runParams    []string
	runHeadless  bool
)

var runCmd = &cobra.Command{
	Use:   "run <instruction>",
	Short: "Run a development instruction",
	Long: `Run a free-text development instruction through the orchestrator.

The instruction is classified into an intent, expanded into an
execution plan, and run across the configured workers. Multi-step
plans execute concurrently where dependencies allow.

By default a live progress monitor is shown; use --headless to print
plain event lines instead.

Examples:
  conductor run "implement a rate limiter for the api"
  conductor run --session my-feature "add tests for the parser"
  conductor run --param language=go "refactor the config loader"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVar(&runSessionID, "session", "", "Session ID for conversation continuity (generated if empty)")
	runCmd.Flags().StringVar(&runUserID, "user", "", "User ID recorded on the session")
	runCmd.Flags().StringVar(&runProjectID, "project", "", "Project ID recorded on the session")
	runCmd.Flags().StringVar(&runWorkspace, "workspace", "", "Workspace path workers operate in (default: current directory)")
	runCmd.Flags().StringArrayVar(&runParams, "param", nil, "Execution parameter as key=value (repeatable)")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Run without the progress monitor")
}

func runTask(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	workspace := runWorkspace
	if workspace == "" {
		workspace, _ = os.Getwd()
	}

	o, err := buildOrchestrator(cfg, workspace)
	if err != nil {
		return err
	}
	defer o.Close()

	params, err := parseParams(runParams)
	if err != nil {
		return err
	}

	sessionID := runSessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	userID := runUserID
	if userID == "" {
		userID = os.Getenv("USER")
	}

	req := &models.SubmitRequest{
		Message:       strings.Join(args, " "),
		SessionID:     sessionID,
		UserID:        userID,
		ProjectID:     runProjectID,
		WorkspacePath: workspace,
		Parameters:    params,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var resp *models.SubmitResponse
	if runHeadless {
		go printEvents(o)
		resp = o.Submit(ctx, req)
	} else {
		done := make(chan struct{})
		go func() {
			defer close(done)
			resp = o.Submit(ctx, req)
		}()
		if err := tui.Run(o.Events()); err != nil {
			// Monitor failure should not lose the result.
			fmt.Fprintf(os.Stderr, "progress monitor: %v\n", err)
		}
		<-done
	}

	printResponse(resp)
	if resp.Status != models.TaskStatusCompleted {
		os.Exit(1)
	}
	return nil
}

// parseParams converts key=value flags to an execution parameter map.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}

// printEvents mirrors engine events as plain lines for headless runs.
func printEvents(o *orchestrator.Orchestrator) {
	for ev := range o.Events() {
		if ev.StepID != "" {
			fmt.Printf("%s  %s step=%s %s\n", ev.Timestamp.Format("15:04:05"), ev.Type, ev.StepID, ev.Message)
		} else {
			fmt.Printf("%s  %s plan=%s %s\n", ev.Timestamp.Format("15:04:05"), ev.Type, ev.PlanID, ev.Message)
		}
	}
}

func printResponse(resp *models.SubmitResponse) {
	fmt.Println()
	switch resp.Status {
	case models.TaskStatusCompleted:
		fmt.Printf("%s Task %s completed in %s\n", color.GreenString("✓"), resp.TaskID, resp.ProcessingTime.Round(timeRounding))
	case models.TaskStatusCancelled:
		fmt.Printf("%s Task %s cancelled after %s\n", color.YellowString("−"), resp.TaskID, resp.ProcessingTime.Round(timeRounding))
	default:
		fmt.Printf("%s Task %s failed after %s\n", color.RedString("✗"), resp.TaskID, resp.ProcessingTime.Round(timeRounding))
	}

	if resp.Error != "" {
		fmt.Printf("  Error: %s\n", color.RedString(resp.Error))
	}
	if len(resp.Response) > 0 {
		payload, err := json.MarshalIndent(resp.Response, "  ", "  ")
		if err == nil {
			fmt.Printf("  Result:\n  %s\n", payload)
		}
	}
	if resp.TokensUsed > 0 {
		fmt.Printf("  Tokens: %d  Cost: $%.4f  Confidence: %.2f\n", resp.TokensUsed, resp.Cost, resp.Confidence)
	}
	fmt.Printf("  Session: %s\n", resp.SessionID)
}
