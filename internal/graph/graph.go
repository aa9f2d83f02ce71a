// Package graph provides the dependency DAG used for step scheduling.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/agentide/conductor/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found among the
// plan's steps.
var ErrCycleDetected = errors.New("circular dependency detected")

// UnknownDependencyError reports a step that references a dependency ID
// not present in the plan.
type UnknownDependencyError struct {
	// StepID is the step carrying the bad reference.
	StepID string
	// DependencyID is the nonexistent step being referenced.
	DependencyID string
}

// Error implements the error interface.
func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("step %s depends on unknown step %s", e.StepID, e.DependencyID)
}

// DependencyGraph is a directed acyclic graph of execution steps.
// Steps are nodes, and edges represent "blocked by" relationships.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps step ID to the step itself.
	nodes map[string]*models.ExecutionStep
	// edges maps step ID to IDs of steps it depends on (is blocked by).
	edges map[string][]string
	// completed tracks which steps have been marked complete.
	completed map[string]bool
}

// New creates an empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:     make(map[string]*models.ExecutionStep),
		edges:     make(map[string][]string),
		completed: make(map[string]bool),
	}
}

// Build constructs the graph from a slice of steps.
// Returns *UnknownDependencyError if a step references a nonexistent
// dependency, or ErrCycleDetected if the dependency relation is cyclic.
func (g *DependencyGraph) Build(steps []*models.ExecutionStep) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// First pass: register all steps as nodes.
	for _, step := range steps {
		g.nodes[step.ID] = step
		g.edges[step.ID] = nil
	}

	// Second pass: build edges from DependsOn fields.
	for _, step := range steps {
		for _, depID := range step.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return &UnknownDependencyError{StepID: step.ID, DependencyID: depID}
			}
			g.edges[step.ID] = append(g.edges[step.ID], depID)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
// Uses depth-first search with coloring to detect back edges.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked is the internal implementation that assumes the lock is held.
func (g *DependencyGraph) hasCycleLocked() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				// Back edge: cycle.
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		colors[id] = 2
		return false
	}

	for id := range g.nodes {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// TopologicalSort returns step IDs in an order where all dependencies
// come before the steps that depend on them.
// Returns ErrCycleDetected if the graph contains a cycle.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool, len(g.nodes))
	var result []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, depID := range g.edges[id] {
			visit(depID)
		}
		result = append(result, id)
	}

	for id := range g.nodes {
		visit(id)
	}
	return result, nil
}

// GetReady returns the IDs of pending steps whose dependencies are all
// in the completed set. These steps can be dispatched in parallel.
func (g *DependencyGraph) GetReady() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for id, step := range g.nodes {
		if g.completed[id] || step.Status != models.TaskStatusPending {
			continue
		}

		satisfied := true
		for _, depID := range g.edges[id] {
			if !g.completed[depID] {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, id)
		}
	}
	return ready
}

// MarkComplete marks a step as completed in the graph.
// This affects subsequent calls to GetReady.
func (g *DependencyGraph) MarkComplete(stepID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed[stepID] = true
}

// GetStep returns the step for a given ID, or nil if not found.
func (g *DependencyGraph) GetStep(stepID string) *models.ExecutionStep {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[stepID]
}

// Size returns the number of steps in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// GetDependencies returns the IDs of steps that the given step depends on.
func (g *DependencyGraph) GetDependencies(stepID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[stepID]
}

// GetDependents returns the IDs of steps that depend on the given step.
func (g *DependencyGraph) GetDependents(stepID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for id, deps := range g.edges {
		for _, depID := range deps {
			if depID == stepID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

// TransitiveDependents returns every step that directly or indirectly
// depends on the given step. Used to cancel steps that became
// unreachable after a permanent failure.
func (g *DependencyGraph) TransitiveDependents(stepID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool)
	var collect func(id string)
	collect = func(id string) {
		for nodeID, deps := range g.edges {
			for _, depID := range deps {
				if depID == id && !seen[nodeID] {
					seen[nodeID] = true
					collect(nodeID)
				}
			}
		}
	}
	collect(stepID)

	result := make([]string, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	return result
}

// GetCompletedIDs returns the IDs of all steps marked as completed.
func (g *DependencyGraph) GetCompletedIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ids []string
	for id, done := range g.completed {
		if done {
			ids = append(ids, id)
		}
	}
	return ids
}

// CompletedSet returns a copy of the completed-ID set.
func (g *DependencyGraph) CompletedSet() map[string]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	set := make(map[string]bool, len(g.completed))
	for id, done := range g.completed {
		if done {
			set[id] = true
		}
	}
	return set
}

// CriticalPath returns the duration of the longest dependency chain,
// summing each step's estimated duration. Independent chains run in
// parallel, so this is the plan's aggregate estimate.
func (g *DependencyGraph) CriticalPath() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	memo := make(map[string]int64, len(g.nodes))
	var chain func(id string) int64
	chain = func(id string) int64 {
		if v, ok := memo[id]; ok {
			return v
		}
		var deepest int64
		for _, depID := range g.edges[id] {
			if d := chain(depID); d > deepest {
				deepest = d
			}
		}
		total := deepest
		if step := g.nodes[id]; step != nil {
			total += int64(step.EstimatedDuration)
		}
		memo[id] = total
		return total
	}

	var longest int64
	for id := range g.nodes {
		if d := chain(id); d > longest {
			longest = d
		}
	}
	return longest
}
