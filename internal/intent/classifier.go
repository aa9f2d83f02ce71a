// Package intent classifies raw user input into one of the fixed
// intent tags. Classification is a chain of heuristics: a fast lexical
// keyword match first, then an optional language-model refinement whose
// failure silently falls back to the lexical result.
package intent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/agentide/conductor/internal/llm"
	"github.com/agentide/conductor/pkg/models"
)

// Classifier maps (text, context) to an intent tag. It always
// terminates with a concrete tag from the closed set.
type Classifier struct {
	rules    *Rules
	gateway  llm.Gateway
	fallback models.IntentType
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithGateway enables the optional language-model refinement step.
func WithGateway(gw llm.Gateway) Option {
	return func(c *Classifier) { c.gateway = gw }
}

// WithRules replaces the built-in keyword rules.
func WithRules(r *Rules) Option {
	return func(c *Classifier) {
		if r != nil {
			c.rules = r
		}
	}
}

// WithFallback sets the tag returned when no signal is conclusive.
func WithFallback(tag models.IntentType) Option {
	return func(c *Classifier) {
		if tag.Valid() {
			c.fallback = tag
		}
	}
}

// New creates a Classifier with built-in rules and the default
// fallback of code generation.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		rules:    DefaultRules(),
		fallback: models.IntentCodeGeneration,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rules.Fallback.Valid() {
		c.fallback = c.rules.Fallback
	}
	return c
}

// Classify resolves the intent tag for the given input.
func (c *Classifier) Classify(ctx context.Context, text string, _ models.ExecutionContext) models.IntentType {
	lexical, conclusive := c.rules.Match(text)
	if !conclusive {
		lexical = c.fallback
	}

	// Lexical hit is authoritative; the model is only consulted when
	// keywords gave no signal.
	if conclusive || c.gateway == nil {
		return lexical
	}

	refined, err := c.consultGateway(ctx, text)
	if err != nil {
		log.Printf("[intent] gateway classification failed, using lexical result %s: %v", lexical, err)
		return lexical
	}
	return refined
}

// consultGateway asks the language model for a tag and validates the
// answer against the closed intent set.
func (c *Classifier) consultGateway(ctx context.Context, text string) (models.IntentType, error) {
	var tags []string
	for _, tag := range models.AllIntents() {
		tags = append(tags, string(tag))
	}

	system := "You classify software-development requests. " +
		"Reply with exactly one tag from this list and nothing else: " + strings.Join(tags, ", ")

	completion, err := c.gateway.Complete(ctx, system, text)
	if err != nil {
		return "", err
	}

	tag := models.IntentType(strings.TrimSpace(strings.ToLower(completion.Text)))
	if !tag.Valid() {
		return "", fmt.Errorf("model returned unknown tag %q", completion.Text)
	}
	return tag, nil
}
