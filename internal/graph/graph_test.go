package graph

import (
	"errors"
	"testing"
	"time"

	"github.com/agentide/conductor/pkg/models"
)

func step(id string, deps ...string) *models.ExecutionStep {
	return &models.ExecutionStep{
		ID:         id,
		Capability: models.CapabilityCode,
		Status:     models.TaskStatusPending,
		DependsOn:  deps,
	}
}

func TestBuildSimpleChain(t *testing.T) {
	g := New()
	err := g.Build([]*models.ExecutionStep{
		step("a"),
		step("b", "a"),
		step("c", "b"),
	})
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	if g.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.Size())
	}
	if g.HasCycle() {
		t.Error("chain should not contain a cycle")
	}
}

func TestBuildUnknownDependency(t *testing.T) {
	g := New()
	err := g.Build([]*models.ExecutionStep{
		step("a"),
		step("b", "ghost"),
	})
	if err == nil {
		t.Fatal("expected error for unknown dependency")
	}

	var unknownErr *UnknownDependencyError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected *UnknownDependencyError, got %T", err)
	}
	if unknownErr.StepID != "b" || unknownErr.DependencyID != "ghost" {
		t.Errorf("error should name the offending edge, got %+v", unknownErr)
	}
}

func TestBuildDetectsCycle(t *testing.T) {
	tests := []struct {
		name  string
		steps []*models.ExecutionStep
	}{
		{
			name:  "self cycle",
			steps: []*models.ExecutionStep{step("a", "a")},
		},
		{
			name: "two step cycle",
			steps: []*models.ExecutionStep{
				step("a", "b"),
				step("b", "a"),
			},
		},
		{
			name: "long cycle",
			steps: []*models.ExecutionStep{
				step("a", "d"),
				step("b", "a"),
				step("c", "b"),
				step("d", "c"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			err := g.Build(tt.steps)
			if !errors.Is(err, ErrCycleDetected) {
				t.Errorf("expected ErrCycleDetected, got %v", err)
			}
		})
	}
}

func TestTopologicalSortOrder(t *testing.T) {
	g := New()
	if err := g.Build([]*models.ExecutionStep{
		step("a"),
		step("b", "a"),
		step("c", "a"),
		step("d", "b", "c"),
	}); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("sort failed: %v", err)
	}

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		for _, dep := range g.GetDependencies(id) {
			if pos[dep] >= pos[id] {
				t.Errorf("dependency %s should sort before %s", dep, id)
			}
		}
	}
}

func TestGetReadyAndMarkComplete(t *testing.T) {
	g := New()
	if err := g.Build([]*models.ExecutionStep{
		step("a"),
		step("b", "a"),
		step("c", "a"),
		step("d", "b", "c"),
	}); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	ready := g.GetReady()
	if len(ready) != 1 || ready[0] != "a" {
		t.Fatalf("expected only a ready, got %v", ready)
	}

	g.MarkComplete("a")
	ready = g.GetReady()
	if len(ready) != 2 {
		t.Fatalf("expected b and c ready after a, got %v", ready)
	}

	g.MarkComplete("b")
	g.MarkComplete("c")
	ready = g.GetReady()
	if len(ready) != 1 || ready[0] != "d" {
		t.Fatalf("expected only d ready, got %v", ready)
	}

	g.MarkComplete("d")
	if got := g.GetReady(); len(got) != 0 {
		t.Errorf("expected nothing ready, got %v", got)
	}
	if len(g.GetCompletedIDs()) != 4 {
		t.Errorf("expected 4 completed steps, got %v", g.GetCompletedIDs())
	}
}

func TestGetReadySkipsNonPending(t *testing.T) {
	inProgress := step("a")
	inProgress.Status = models.TaskStatusInProgress

	g := New()
	if err := g.Build([]*models.ExecutionStep{inProgress, step("b")}); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	ready := g.GetReady()
	if len(ready) != 1 || ready[0] != "b" {
		t.Errorf("expected only pending step ready, got %v", ready)
	}
}

func TestTransitiveDependents(t *testing.T) {
	g := New()
	if err := g.Build([]*models.ExecutionStep{
		step("a"),
		step("b", "a"),
		step("c", "b"),
		step("d"),
	}); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	deps := g.TransitiveDependents("a")
	if len(deps) != 2 {
		t.Fatalf("expected b and c as transitive dependents, got %v", deps)
	}
	set := map[string]bool{}
	for _, id := range deps {
		set[id] = true
	}
	if !set["b"] || !set["c"] || set["d"] {
		t.Errorf("unexpected dependent set %v", deps)
	}
}

func TestCriticalPath(t *testing.T) {
	a := step("a")
	a.EstimatedDuration = 2 * time.Minute
	b := step("b", "a")
	b.EstimatedDuration = 3 * time.Minute
	// c runs in parallel with the a->b chain and is shorter.
	c := step("c")
	c.EstimatedDuration = 4 * time.Minute

	g := New()
	if err := g.Build([]*models.ExecutionStep{a, b, c}); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	want := int64(5 * time.Minute)
	if got := g.CriticalPath(); got != want {
		t.Errorf("critical path = %s, want %s", time.Duration(got), time.Duration(want))
	}
}
