package llm

import "sync"

// ModelPricing contains pricing per 1M tokens for a model.
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultModelPricing contains pricing for known Claude models.
var DefaultModelPricing = map[string]ModelPricing{
	"claude-opus-4-5-20251101":   {InputPerMillion: 15.00, OutputPerMillion: 75.00},
	"claude-sonnet-4-20250514":   {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-3-5-sonnet-20241022": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-3-5-haiku-20241022":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
}

// Usage is an aggregated token count.
type Usage struct {
	// InputTokens is the total input tokens used.
	InputTokens int64
	// OutputTokens is the total output tokens used.
	OutputTokens int64
	// TotalTokens is InputTokens + OutputTokens.
	TotalTokens int64
}

// TokenTracker accumulates API-reported token usage across calls and
// estimates cost from the model's pricing table.
type TokenTracker struct {
	mu    sync.RWMutex
	usage Usage
	model string
}

// NewTokenTracker creates a tracker for the given model.
func NewTokenTracker(model string) *TokenTracker {
	return &TokenTracker{model: model}
}

// Add records token usage from one API response.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage.InputTokens += input
	t.usage.OutputTokens += output
	t.usage.TotalTokens = t.usage.InputTokens + t.usage.OutputTokens
}

// Usage returns the accumulated usage.
func (t *TokenTracker) Usage() Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.usage
}

// Cost estimates the spend in USD from the accumulated usage.
// Unknown models cost zero.
func (t *TokenTracker) Cost() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return CostFor(t.model, t.usage.InputTokens, t.usage.OutputTokens)
}

// CostFor estimates the USD cost of a single call for a model.
// Unknown models cost zero.
func CostFor(model string, input, output int64) float64 {
	pricing, ok := DefaultModelPricing[model]
	if !ok {
		return 0
	}
	return float64(input)/1e6*pricing.InputPerMillion +
		float64(output)/1e6*pricing.OutputPerMillion
}
