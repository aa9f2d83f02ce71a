package llm

import "fmt"

// GatewayError reports a failed language-model call. It carries the
// provider, model, and tokens consumed so far so callers can account
// for partial spend.
type GatewayError struct {
	// Provider is the backend that failed ("anthropic", "bedrock", ...).
	Provider string
	// Model is the model identifier used for the call.
	Model string
	// TokensUsed is the total tokens consumed before the failure.
	TokensUsed int64
	// Message describes the failure.
	Message string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	return fmt.Sprintf("llm gateway (%s/%s): %s", e.Provider, e.Model, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *GatewayError) Unwrap() error {
	return e.Err
}
