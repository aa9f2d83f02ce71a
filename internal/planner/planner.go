// Package planner turns a classified request into an acyclic execution
// plan, using the capability registry to validate feasibility.
package planner

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/agentide/conductor/internal/graph"
	"github.com/agentide/conductor/internal/registry"
	"github.com/agentide/conductor/pkg/models"
)

// capabilityForIntent maps each intent tag to the single capability
// that serves it in the default (non-composite) case.
var capabilityForIntent = map[models.IntentType]models.CapabilityType{
	models.IntentCodeGeneration: models.CapabilityCode,
	models.IntentCodeReview:     models.CapabilityReview,
	models.IntentRefactoring:    models.CapabilityCode,
	models.IntentInfraSetup:     models.CapabilityInfrastructure,
	models.IntentTesting:        models.CapabilityTesting,
	models.IntentDeployment:     models.CapabilityDevOps,
	models.IntentDocumentation:  models.CapabilityDocumentation,
	models.IntentDebugging:      models.CapabilityCode,
	models.IntentSecurityScan:   models.CapabilitySecurity,
	models.IntentExplanation:    models.CapabilityDocumentation,
	models.IntentProjectSetup:   models.CapabilityPlanning,
}

// defaultEstimates gives a per-capability duration estimate used when
// the registry's descriptor does not declare one.
var defaultEstimates = map[models.CapabilityType]time.Duration{
	models.CapabilityCode:           3 * time.Minute,
	models.CapabilityInfrastructure: 5 * time.Minute,
	models.CapabilityTesting:        2 * time.Minute,
	models.CapabilityDevOps:         4 * time.Minute,
	models.CapabilityDocumentation:  1 * time.Minute,
	models.CapabilitySecurity:       2 * time.Minute,
	models.CapabilityPlanning:       1 * time.Minute,
	models.CapabilityReview:         2 * time.Minute,
}

// templateStep is one entry of a composite decomposition template.
type templateStep struct {
	key         string
	capability  models.CapabilityType
	intent      models.IntentType
	description string
	dependsOn   []string
	optional    bool
}

// compositeTemplates decomposes intents that need more than one step.
// Dependencies are expressed against template keys and resolved to
// step IDs when the plan is built.
var compositeTemplates = map[models.IntentType][]templateStep{
	models.IntentProjectSetup: {
		{key: "infra", capability: models.CapabilityInfrastructure, intent: models.IntentInfraSetup,
			description: "Provision project infrastructure for: %s"},
		{key: "code", capability: models.CapabilityCode, intent: models.IntentCodeGeneration,
			description: "Generate initial project code for: %s", dependsOn: []string{"infra"}},
		{key: "tests", capability: models.CapabilityTesting, intent: models.IntentTesting,
			description: "Create the test suite for: %s", dependsOn: []string{"code"}},
		{key: "docs", capability: models.CapabilityDocumentation, intent: models.IntentDocumentation,
			description: "Write project documentation for: %s", dependsOn: []string{"code"}, optional: true},
	},
	models.IntentDeployment: {
		{key: "tests", capability: models.CapabilityTesting, intent: models.IntentTesting,
			description: "Run the test suite before deploying: %s"},
		{key: "security", capability: models.CapabilitySecurity, intent: models.IntentSecurityScan,
			description: "Scan for vulnerabilities before deploying: %s"},
		{key: "deploy", capability: models.CapabilityDevOps, intent: models.IntentDeployment,
			description: "Deploy: %s", dependsOn: []string{"tests", "security"}},
	},
}

// Planner builds execution plans.
type Planner struct {
	registry *registry.Registry
}

// New creates a Planner backed by the given registry.
func New(reg *registry.Registry) *Planner {
	return &Planner{registry: reg}
}

// CreatePlan converts a validated request into an execution plan.
// The returned plan's steps form a validated DAG; its aggregate
// estimated duration is the critical-path sum.
// Returns *PlanningError when a required capability has no registered
// workers or the dependency graph is unbuildable.
func (p *Planner) CreatePlan(req *models.TaskRequest) (*models.ExecutionPlan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	steps, err := p.buildSteps(req)
	if err != nil {
		return nil, err
	}

	// Capability gap check: every step needs at least one registered
	// worker for its capability type.
	for _, step := range steps {
		if !p.registry.HasCapability(step.Capability) {
			return nil, &PlanningError{
				RequestID: req.ID,
				Message:   fmt.Sprintf("no workers registered for capability %s", step.Capability),
			}
		}
	}

	// The graph validates acyclicity and dependency references before
	// the plan ever reaches the engine; the scheduler never has to
	// defend against a stalling graph.
	g := graph.New()
	if err := g.Build(steps); err != nil {
		return nil, &PlanningError{
			RequestID: req.ID,
			Message:   err.Error(),
			Err:       err,
		}
	}

	plan := &models.ExecutionPlan{
		ID:                uuid.New().String(),
		Request:           req,
		Steps:             steps,
		Status:            models.TaskStatusPending,
		EstimatedDuration: time.Duration(g.CriticalPath()),
		CreatedAt:         time.Now().UTC(),
	}

	log.Printf("[planner] built plan %s: %d steps, estimated %s", plan.ID, len(steps), plan.EstimatedDuration)
	return plan, nil
}

// buildSteps expands the request into steps: one wrapping step for
// simple intents, a template expansion for composite ones.
func (p *Planner) buildSteps(req *models.TaskRequest) ([]*models.ExecutionStep, error) {
	if template, ok := compositeTemplates[req.Intent]; ok {
		return p.expandTemplate(req, template), nil
	}

	capability, ok := capabilityForIntent[req.Intent]
	if !ok {
		return nil, &PlanningError{
			RequestID: req.ID,
			Message:   fmt.Sprintf("no capability mapping for intent %s", req.Intent),
		}
	}

	// Degenerate case: a single step wrapping the original request,
	// no dependencies.
	return []*models.ExecutionStep{{
		ID:                uuid.New().String(),
		Capability:        capability,
		Request:           req,
		Status:            models.TaskStatusPending,
		EstimatedDuration: p.estimate(capability),
	}}, nil
}

// expandTemplate materializes a composite template into steps with
// narrowed requests sharing the originator's session context.
func (p *Planner) expandTemplate(req *models.TaskRequest, template []templateStep) []*models.ExecutionStep {
	idByKey := make(map[string]string, len(template))
	for _, ts := range template {
		idByKey[ts.key] = uuid.New().String()
	}

	steps := make([]*models.ExecutionStep, 0, len(template))
	for _, ts := range template {
		deps := make([]string, 0, len(ts.dependsOn))
		for _, key := range ts.dependsOn {
			deps = append(deps, idByKey[key])
		}

		steps = append(steps, &models.ExecutionStep{
			ID:                idByKey[ts.key],
			Capability:        ts.capability,
			Request:           req.Narrowed(ts.intent, fmt.Sprintf(ts.description, req.Description)),
			DependsOn:         deps,
			Status:            models.TaskStatusPending,
			Optional:          ts.optional,
			EstimatedDuration: p.estimate(ts.capability),
		})
	}
	return steps
}

// ValidateDAG checks an externally assembled step list for cycles and
// dangling dependency references, returning a *PlanningError naming
// the offending edge. Plans coming out of CreatePlan are already
// validated; this is for callers that assemble steps themselves.
func ValidateDAG(requestID string, steps []*models.ExecutionStep) error {
	g := graph.New()
	if err := g.Build(steps); err != nil {
		return &PlanningError{RequestID: requestID, Message: err.Error(), Err: err}
	}
	return nil
}

// estimate returns the duration estimate for a capability, preferring
// the registered descriptor over the built-in table.
func (p *Planner) estimate(capability models.CapabilityType) time.Duration {
	if desc, ok := p.registry.Capabilities()[capability]; ok && desc.EstimatedDuration > 0 {
		return desc.EstimatedDuration
	}
	return defaultEstimates[capability]
}
