package llm

import (
	"context"
	"strings"
	"sync"
)

// MockGateway returns canned completions without network calls. It is
// used for offline development (provider "mock") and in tests.
type MockGateway struct {
	mu sync.Mutex
	// Responses maps a lowercase prompt substring to a canned reply.
	// The first match wins; Fallback is used when nothing matches.
	Responses map[string]string
	// Fallback is returned when no substring matches.
	Fallback string
	// Fail, when set, makes every call return this error.
	Fail error
	// Calls records the prompts received, for assertions.
	Calls []string

	tracker *TokenTracker
}

// NewMockGateway creates a MockGateway with an empty response table.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Responses: make(map[string]string),
		Fallback:  "ok",
		tracker:   NewTokenTracker("mock"),
	}
}

// Complete returns the canned response for the prompt.
func (m *MockGateway) Complete(ctx context.Context, system, prompt string) (*Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, prompt)

	if m.Fail != nil {
		return nil, &GatewayError{
			Provider: "mock",
			Model:    "mock",
			Message:  m.Fail.Error(),
			Err:      m.Fail,
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &GatewayError{Provider: "mock", Model: "mock", Message: err.Error(), Err: err}
	}

	text := m.Fallback
	lower := strings.ToLower(prompt)
	for needle, reply := range m.Responses {
		if strings.Contains(lower, strings.ToLower(needle)) {
			text = reply
			break
		}
	}

	in := int64(len(prompt) / 4)
	out := int64(len(text) / 4)
	m.tracker.Add(in, out)

	return &Completion{Text: text, InputTokens: in, OutputTokens: out}, nil
}

// Usage returns the accumulated mock usage.
func (m *MockGateway) Usage() Usage {
	return m.tracker.Usage()
}
