// Package llm provides the language-model gateway used by the intent
// classifier and by language-model-backed workers.
package llm

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// Completion is the text result of one gateway call, with the token
// usage the provider reported.
type Completion struct {
	// Text is the model's response.
	Text string
	// InputTokens is the prompt token count.
	InputTokens int64
	// OutputTokens is the response token count.
	OutputTokens int64
}

// Gateway is the narrow contract the orchestration core consumes.
// Implementations must honor the context and surface failures as
// *GatewayError.
type Gateway interface {
	// Complete sends a prompt (with optional system message) and
	// returns the model's text response.
	Complete(ctx context.Context, system, prompt string) (*Completion, error)
	// Usage returns the accumulated token usage.
	Usage() Usage
}

// Config holds gateway settings.
type Config struct {
	// Provider selects the backend: "anthropic", "bedrock", or "mock".
	Provider string
	// Model is the model identifier.
	Model string
	// APIKey is the provider API key. Falls back to ANTHROPIC_API_KEY.
	APIKey string
	// MaxTokens caps the response length.
	MaxTokens int64
	// Timeout bounds a single call attempt.
	Timeout time.Duration
	// MaxRetries is the number of additional attempts after a failure.
	MaxRetries int
	// AWSRegion is the Bedrock region, for the bedrock provider.
	AWSRegion string
	// AWSProfile is the optional AWS shared-config profile.
	AWSProfile string
}

func (c Config) withDefaults() Config {
	if c.Provider == "" {
		c.Provider = "anthropic"
	}
	if c.Model == "" {
		c.Model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

// New creates a gateway for the configured provider.
func New(cfg Config) (Gateway, error) {
	cfg = cfg.withDefaults()

	switch cfg.Provider {
	case "mock":
		return NewMockGateway(), nil
	case "anthropic", "bedrock":
		return newAnthropicGateway(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// anthropicGateway talks to the Anthropic API, directly or through AWS
// Bedrock.
type anthropicGateway struct {
	inner   anthropic.Client
	cfg     Config
	tracker *TokenTracker
}

func newAnthropicGateway(cfg Config) (*anthropicGateway, error) {
	var opts []option.RequestOption

	if cfg.Provider == "bedrock" {
		ctx := context.Background()

		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	return &anthropicGateway{
		inner:   anthropic.NewClient(opts...),
		cfg:     cfg,
		tracker: NewTokenTracker(cfg.Model),
	}, nil
}

// Complete sends the prompt, retrying transient failures up to the
// configured budget. Each attempt gets its own timeout.
func (g *anthropicGateway) Complete(ctx context.Context, system, prompt string) (*Completion, error) {
	var lastErr error

	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			log.Printf("[llm] attempt %d/%d after %s backoff", attempt+1, g.cfg.MaxRetries+1, backoff)
			select {
			case <-ctx.Done():
				return nil, g.wrap(ctx.Err())
			case <-time.After(backoff):
			}
		}

		completion, err := g.call(ctx, system, prompt)
		if err == nil {
			return completion, nil
		}
		lastErr = err

		// Caller cancellation is not retryable.
		if ctx.Err() != nil {
			break
		}
	}

	return nil, g.wrap(lastErr)
}

func (g *anthropicGateway) call(ctx context.Context, system, prompt string) (*Completion, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.cfg.Model),
		MaxTokens: g.cfg.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := g.inner.Messages.New(callCtx, params)
	if err != nil {
		return nil, err
	}

	g.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	return &Completion{
		Text:         text.String(),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// Usage returns the accumulated token usage.
func (g *anthropicGateway) Usage() Usage {
	return g.tracker.Usage()
}

func (g *anthropicGateway) wrap(err error) *GatewayError {
	usage := g.tracker.Usage()
	return &GatewayError{
		Provider:   g.cfg.Provider,
		Model:      g.cfg.Model,
		TokensUsed: usage.TotalTokens,
		Message:    fmt.Sprintf("completion failed: %v", err),
		Err:        err,
	}
}
