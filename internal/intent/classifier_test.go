package intent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentide/conductor/internal/llm"
	"github.com/agentide/conductor/pkg/models"
)

func TestLexicalClassification(t *testing.T) {
	c := New()
	ctx := context.Background()
	execCtx := models.ExecutionContext{SessionID: "s", WorkspacePath: "/tmp/ws"}

	tests := []struct {
		text string
		want models.IntentType
	}{
		{"please implement a parser for me", models.IntentCodeGeneration},
		{"write tests for the auth module", models.IntentTesting},
		{"create dockerfile for the service", models.IntentInfraSetup},
		{"can you refactor this mess", models.IntentRefactoring},
		{"run a security scan on the deps", models.IntentSecurityScan},
		{"explain what this regex does", models.IntentExplanation},
		{"scaffold a new project with auth", models.IntentProjectSetup},
		{"fix the bug in the handler", models.IntentDebugging},
	}

	for _, tt := range tests {
		if got := c.Classify(ctx, tt.text, execCtx); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestFallbackWhenInconclusive(t *testing.T) {
	c := New(WithFallback(models.IntentExplanation))
	got := c.Classify(context.Background(), "zzzz qqqq", models.ExecutionContext{})
	if got != models.IntentExplanation {
		t.Errorf("expected configured fallback, got %s", got)
	}
}

func TestGatewayRefinesInconclusiveInput(t *testing.T) {
	gw := llm.NewMockGateway()
	gw.Fallback = "documentation"

	c := New(WithGateway(gw))
	got := c.Classify(context.Background(), "the thing about the stuff", models.ExecutionContext{})
	if got != models.IntentDocumentation {
		t.Errorf("expected gateway tag documentation, got %s", got)
	}
	if len(gw.Calls) != 1 {
		t.Errorf("expected 1 gateway call, got %d", len(gw.Calls))
	}
}

func TestGatewayNotConsultedOnLexicalHit(t *testing.T) {
	gw := llm.NewMockGateway()
	c := New(WithGateway(gw))

	got := c.Classify(context.Background(), "write tests for everything", models.ExecutionContext{})
	if got != models.IntentTesting {
		t.Errorf("expected lexical result testing, got %s", got)
	}
	if len(gw.Calls) != 0 {
		t.Errorf("expected no gateway calls on lexical hit, got %d", len(gw.Calls))
	}
}

func TestGatewayFailureFallsBackSilently(t *testing.T) {
	gw := llm.NewMockGateway()
	gw.Fail = errors.New("gateway down")

	c := New(WithGateway(gw), WithFallback(models.IntentCodeGeneration))
	got := c.Classify(context.Background(), "mystery input", models.ExecutionContext{})
	if got != models.IntentCodeGeneration {
		t.Errorf("expected silent fallback to code_generation, got %s", got)
	}
}

func TestGatewayInvalidTagFallsBack(t *testing.T) {
	gw := llm.NewMockGateway()
	gw.Fallback = "interpretive_dance"

	c := New(WithGateway(gw))
	got := c.Classify(context.Background(), "mystery input", models.ExecutionContext{})
	if got != models.IntentCodeGeneration {
		t.Errorf("expected fallback for invalid model tag, got %s", got)
	}
}

func TestLoadRulesOverridesAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `
fallback: explanation
keywords:
  testing: ["verify", "assert"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}

	c := New(WithRules(rules))
	if got := c.Classify(context.Background(), "verify the totals", models.ExecutionContext{}); got != models.IntentTesting {
		t.Errorf("expected overridden keyword to classify as testing, got %s", got)
	}
	if got := c.Classify(context.Background(), "zzzz", models.ExecutionContext{}); got != models.IntentExplanation {
		t.Errorf("expected fallback from rules file, got %s", got)
	}

	// Defaults for untouched tags survive.
	if got := c.Classify(context.Background(), "refactor the helpers", models.ExecutionContext{}); got != models.IntentRefactoring {
		t.Errorf("expected default refactoring keywords to survive, got %s", got)
	}
}

func TestLoadRulesRejectsUnknownTag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte("keywords:\n  poetry: [\"ode\"]\n"), 0644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	if _, err := LoadRules(path); err == nil {
		t.Error("expected error for unknown intent tag")
	}
}
