// Package worker provides ready-made implementations of the registry
// worker contract: a language-model-backed worker for any capability
// and a function adapter for tests and embedders.
package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentide/conductor/internal/llm"
	"github.com/agentide/conductor/internal/registry"
	"github.com/agentide/conductor/pkg/models"
)

// defaultConfidence is reported for gateway-backed results; the
// gateway does not score its own answers.
const defaultConfidence = 0.85

// systemPrompts holds the per-capability system prompt for the
// language-model worker.
var systemPrompts = map[models.CapabilityType]string{
	models.CapabilityCode:           "You are a senior software engineer. Produce working, idiomatic code for the task. Respond with the code and a short explanation.",
	models.CapabilityInfrastructure: "You are an infrastructure engineer. Produce configuration and setup steps for the task.",
	models.CapabilityTesting:        "You are a test engineer. Produce thorough tests for the described code or behavior.",
	models.CapabilityDevOps:         "You are a DevOps engineer. Produce deployment and operations steps for the task.",
	models.CapabilityDocumentation:  "You are a technical writer. Produce clear documentation for the task.",
	models.CapabilitySecurity:       "You are a security engineer. Analyze the task for vulnerabilities and produce findings with remediations.",
	models.CapabilityPlanning:       "You are a project planner. Break the task into concrete ordered steps.",
	models.CapabilityReview:         "You are a code reviewer. Review the described change and produce actionable feedback.",
}

// LLMWorker executes tasks of one capability type by delegating to the
// language-model gateway.
type LLMWorker struct {
	capability models.CapabilityType
	gateway    llm.Gateway
	model      string
	estimated  time.Duration
}

// NewLLMWorker creates a gateway-backed worker for a capability. The
// model name is used for cost estimation.
func NewLLMWorker(capability models.CapabilityType, gateway llm.Gateway, model string) *LLMWorker {
	return &LLMWorker{
		capability: capability,
		gateway:    gateway,
		model:      model,
		estimated:  2 * time.Minute,
	}
}

// Type returns the capability this worker serves.
func (w *LLMWorker) Type() models.CapabilityType {
	return w.capability
}

// CanHandle reports whether the worker can execute the request.
func (w *LLMWorker) CanHandle(req *models.TaskRequest) bool {
	return strings.TrimSpace(req.Description) != ""
}

// Execute sends the request to the gateway and converts the completion
// into a task result with token and cost accounting.
func (w *LLMWorker) Execute(ctx context.Context, req *models.TaskRequest) (*models.TaskResult, error) {
	started := time.Now()

	completion, err := w.gateway.Complete(ctx, w.systemPrompt(req), w.userPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("gateway call for task %s: %w", req.ID, err)
	}

	result := models.NewPendingResult(req.ID, w.capability).Completed(map[string]any{
		"response": completion.Text,
	}, time.Since(started))
	result.TokensUsed = completion.InputTokens + completion.OutputTokens
	result.Cost = llm.CostFor(w.model, completion.InputTokens, completion.OutputTokens)
	result.Confidence = defaultConfidence
	return result, nil
}

// Describe returns the worker's capability descriptor.
func (w *LLMWorker) Describe() models.CapabilityDescriptor {
	return models.CapabilityDescriptor{
		Name:              string(w.capability),
		RequiredInputs:    []string{"description"},
		Outputs:           []string{"response"},
		EstimatedDuration: w.estimated,
	}
}

func (w *LLMWorker) systemPrompt(req *models.TaskRequest) string {
	prompt, ok := systemPrompts[w.capability]
	if !ok {
		prompt = "You are a software engineering assistant. Complete the task."
	}

	var b strings.Builder
	b.WriteString(prompt)
	if req.Context.Language != "" {
		fmt.Fprintf(&b, " The project language is %s.", req.Context.Language)
	}
	if req.Context.Framework != "" {
		fmt.Fprintf(&b, " The project framework is %s.", req.Context.Framework)
	}
	return b.String()
}

func (w *LLMWorker) userPrompt(req *models.TaskRequest) string {
	var b strings.Builder
	b.WriteString(req.Description)
	if len(req.Parameters) > 0 {
		b.WriteString("\n\nParameters:")
		for key, value := range req.Parameters {
			fmt.Fprintf(&b, "\n- %s: %v", key, value)
		}
	}
	return b.String()
}

// FuncWorker adapts a plain function to the worker contract. Zero
// fields get sensible defaults: CanHandle accepts everything and the
// name falls back to the capability.
type FuncWorker struct {
	// Capability is the worker category. Required.
	Capability models.CapabilityType
	// Name overrides the descriptor name.
	Name string
	// Handler executes the request. Required.
	Handler func(ctx context.Context, req *models.TaskRequest) (*models.TaskResult, error)
	// Predicate, when set, gates CanHandle.
	Predicate func(req *models.TaskRequest) bool
	// EstimatedDuration is reported in the descriptor.
	EstimatedDuration time.Duration
}

// Type returns the capability this worker serves.
func (w *FuncWorker) Type() models.CapabilityType {
	return w.Capability
}

// CanHandle applies the predicate, accepting everything by default.
func (w *FuncWorker) CanHandle(req *models.TaskRequest) bool {
	if w.Predicate == nil {
		return true
	}
	return w.Predicate(req)
}

// Execute invokes the wrapped handler.
func (w *FuncWorker) Execute(ctx context.Context, req *models.TaskRequest) (*models.TaskResult, error) {
	return w.Handler(ctx, req)
}

// Describe returns the worker's capability descriptor.
func (w *FuncWorker) Describe() models.CapabilityDescriptor {
	name := w.Name
	if name == "" {
		name = string(w.Capability)
	}
	return models.CapabilityDescriptor{
		Name:              name,
		EstimatedDuration: w.EstimatedDuration,
	}
}

var (
	_ registry.Worker = (*LLMWorker)(nil)
	_ registry.Worker = (*FuncWorker)(nil)
)
