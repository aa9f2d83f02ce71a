package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	if cfg.Provider != "anthropic" {
		t.Errorf("expected anthropic provider default, got %q", cfg.Provider)
	}
	if cfg.Model == "" {
		t.Error("expected a default model")
	}
	if cfg.MaxTokens <= 0 || cfg.Timeout <= 0 {
		t.Error("expected positive defaults for max tokens and timeout")
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New(Config{Provider: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewMockProvider(t *testing.T) {
	gw, err := New(Config{Provider: "mock"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := gw.(*MockGateway); !ok {
		t.Errorf("expected *MockGateway, got %T", gw)
	}
}

func TestMockGatewayResponses(t *testing.T) {
	gw := NewMockGateway()
	gw.Responses["fibonacci"] = "def fib(n): ..."
	gw.Fallback = "no idea"

	got, err := gw.Complete(context.Background(), "", "write a Fibonacci function")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "def fib(n): ..." {
		t.Errorf("expected canned response, got %q", got.Text)
	}

	got, err = gw.Complete(context.Background(), "", "something else entirely")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "no idea" {
		t.Errorf("expected fallback response, got %q", got.Text)
	}

	if len(gw.Calls) != 2 {
		t.Errorf("expected 2 recorded calls, got %d", len(gw.Calls))
	}
	if gw.Usage().TotalTokens == 0 {
		t.Error("expected mock usage to accumulate")
	}
}

func TestMockGatewayFailure(t *testing.T) {
	gw := NewMockGateway()
	gw.Fail = errors.New("provider melted")

	_, err := gw.Complete(context.Background(), "", "hello")
	if err == nil {
		t.Fatal("expected error")
	}

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *GatewayError, got %T", err)
	}
	if gwErr.Provider != "mock" {
		t.Errorf("expected provider mock, got %q", gwErr.Provider)
	}
	if !strings.Contains(gwErr.Error(), "provider melted") {
		t.Errorf("expected underlying message, got %q", gwErr.Error())
	}
}

func TestGatewayErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &GatewayError{Provider: "anthropic", Model: "m", Message: "boom", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("expected Unwrap to expose the inner error")
	}
}

func TestTokenTrackerCost(t *testing.T) {
	tr := NewTokenTracker("claude-sonnet-4-20250514")
	tr.Add(1_000_000, 1_000_000)

	usage := tr.Usage()
	if usage.TotalTokens != 2_000_000 {
		t.Errorf("expected 2M total tokens, got %d", usage.TotalTokens)
	}

	// 1M input at $3 + 1M output at $15.
	if cost := tr.Cost(); cost != 18.00 {
		t.Errorf("expected cost 18.00, got %v", cost)
	}

	unknown := NewTokenTracker("mystery-model")
	unknown.Add(500, 500)
	if cost := unknown.Cost(); cost != 0 {
		t.Errorf("expected zero cost for unknown model, got %v", cost)
	}
}
