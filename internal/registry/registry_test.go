package registry

import (
	"context"
	"testing"

	"github.com/agentide/conductor/pkg/models"
)

// stubWorker is a minimal Worker for registry tests.
type stubWorker struct {
	name       string
	capability models.CapabilityType
	handles    func(*models.TaskRequest) bool
}

func (w *stubWorker) Type() models.CapabilityType { return w.capability }

func (w *stubWorker) CanHandle(req *models.TaskRequest) bool {
	if w.handles == nil {
		return true
	}
	return w.handles(req)
}

func (w *stubWorker) Execute(ctx context.Context, req *models.TaskRequest) (*models.TaskResult, error) {
	return models.NewPendingResult(req.ID, w.capability).Completed(nil, 0), nil
}

func (w *stubWorker) Describe() models.CapabilityDescriptor {
	return models.CapabilityDescriptor{Name: w.name}
}

func testRequest() *models.TaskRequest {
	return models.NewTaskRequest(models.IntentCodeGeneration, "generate code", models.ExecutionContext{
		SessionID:     "sess",
		WorkspacePath: "/tmp/ws",
	})
}

func TestRegisterKeepsEarlierWorkers(t *testing.T) {
	r := New()
	first := &stubWorker{name: "first", capability: models.CapabilityCode}
	second := &stubWorker{name: "second", capability: models.CapabilityCode}

	r.Register(first)
	r.Register(second)

	if r.Count() != 2 {
		t.Fatalf("expected 2 workers, got %d", r.Count())
	}

	capable := r.FindCapable(testRequest())
	if len(capable) != 2 {
		t.Fatalf("expected both workers capable, got %d", len(capable))
	}
	// Registration order is the load-balancing order.
	if capable[0] != Worker(first) || capable[1] != Worker(second) {
		t.Error("expected workers in registration order")
	}
}

func TestFindCapableFiltersByPredicate(t *testing.T) {
	r := New()
	r.Register(&stubWorker{
		name:       "picky",
		capability: models.CapabilityCode,
		handles:    func(req *models.TaskRequest) bool { return req.Intent == models.IntentTesting },
	})
	r.Register(&stubWorker{name: "eager", capability: models.CapabilityCode})

	capable := r.FindCapable(testRequest())
	if len(capable) != 1 {
		t.Fatalf("expected 1 capable worker, got %d", len(capable))
	}
	if capable[0].Describe().Name != "eager" {
		t.Errorf("expected eager worker, got %s", capable[0].Describe().Name)
	}
}

func TestFindCapableEmptyIsNotError(t *testing.T) {
	r := New()
	if capable := r.FindCapable(testRequest()); len(capable) != 0 {
		t.Errorf("expected empty result from empty registry, got %d", len(capable))
	}
}

func TestFindForCapability(t *testing.T) {
	r := New()
	r.Register(&stubWorker{name: "coder", capability: models.CapabilityCode})
	r.Register(&stubWorker{name: "tester", capability: models.CapabilityTesting})

	capable := r.FindForCapability(models.CapabilityTesting, testRequest())
	if len(capable) != 1 || capable[0].Describe().Name != "tester" {
		t.Errorf("expected only the testing worker, got %d", len(capable))
	}

	if r.HasCapability(models.CapabilitySecurity) {
		t.Error("expected no security capability")
	}
	if !r.HasCapability(models.CapabilityCode) {
		t.Error("expected code capability present")
	}
}

func TestCapabilitiesSnapshot(t *testing.T) {
	r := New()
	r.Register(&stubWorker{name: "coder-a", capability: models.CapabilityCode})
	r.Register(&stubWorker{name: "coder-b", capability: models.CapabilityCode})
	r.Register(&stubWorker{name: "docs", capability: models.CapabilityDocumentation})

	caps := r.Capabilities()
	if len(caps) != 2 {
		t.Fatalf("expected 2 capability types, got %d", len(caps))
	}

	code := caps[models.CapabilityCode]
	if code.Name != "coder-a" {
		t.Errorf("expected first-registered descriptor, got %q", code.Name)
	}
	if code.Workers != 2 {
		t.Errorf("expected 2 code workers, got %d", code.Workers)
	}
}

func TestConcurrentReadsDuringRegistration(t *testing.T) {
	r := New()
	r.Register(&stubWorker{name: "seed", capability: models.CapabilityCode})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			r.Register(&stubWorker{name: "extra", capability: models.CapabilityTesting})
		}
	}()

	req := testRequest()
	for i := 0; i < 100; i++ {
		r.FindCapable(req)
		r.Capabilities()
	}
	<-done

	if r.Count() != 101 {
		t.Errorf("expected 101 workers, got %d", r.Count())
	}
}
