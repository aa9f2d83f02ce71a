// Package registry holds registered workers keyed by capability type
// and answers which workers can run a given request.
package registry

import (
	"context"
	"log"
	"sync"

	"github.com/agentide/conductor/pkg/models"
)

// Worker is the contract an external collaborator implements to execute
// tasks for one capability type. Execute may block on external calls
// and must honor the context for timeout and cancellation.
type Worker interface {
	// Type returns the capability category this worker serves.
	Type() models.CapabilityType
	// CanHandle reports whether the worker can execute the request.
	CanHandle(req *models.TaskRequest) bool
	// Execute runs the request and returns its result. A returned error
	// is treated as a retryable worker failure by the engine.
	Execute(ctx context.Context, req *models.TaskRequest) (*models.TaskResult, error)
	// Describe returns the worker's capability descriptor for
	// introspection.
	Describe() models.CapabilityDescriptor
}

// Registry is a thread-safe collection of workers. Registration is
// append-only: multiple workers of the same type coexist as
// load-balancing candidates, and later registrations never replace
// earlier ones. Reads vastly outnumber registrations, so lookups take
// a shared lock.
type Registry struct {
	mu sync.RWMutex
	// workers preserves global registration order.
	workers []Worker
	// byType indexes workers per capability, in registration order.
	byType map[models.CapabilityType][]Worker
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byType: make(map[models.CapabilityType][]Worker),
	}
}

// Register adds a worker under its declared capability type.
func (r *Registry) Register(w Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.workers = append(r.workers, w)
	r.byType[w.Type()] = append(r.byType[w.Type()], w)
	log.Printf("[registry] registered worker for capability %s (%d total)", w.Type(), len(r.workers))
}

// FindCapable returns, in registration order, every worker whose
// CanHandle predicate holds for the request. An empty slice (not an
// error) means no worker matched.
func (r *Registry) FindCapable(req *models.TaskRequest) []Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var capable []Worker
	for _, w := range r.workers {
		if w.CanHandle(req) {
			capable = append(capable, w)
		}
	}
	return capable
}

// FindForCapability returns, in registration order, the workers of the
// given capability type that can handle the request.
func (r *Registry) FindForCapability(capability models.CapabilityType, req *models.TaskRequest) []Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var capable []Worker
	for _, w := range r.byType[capability] {
		if w.CanHandle(req) {
			capable = append(capable, w)
		}
	}
	return capable
}

// HasCapability reports whether at least one worker is registered for
// the capability type. The planner uses this for feasibility checks.
func (r *Registry) HasCapability(capability models.CapabilityType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType[capability]) > 0
}

// Capabilities returns a snapshot of descriptors for every registered
// capability type. The descriptor of the first-registered worker per
// type wins; Workers reflects the total count for the type.
func (r *Registry) Capabilities() map[models.CapabilityType]models.CapabilityDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[models.CapabilityType]models.CapabilityDescriptor, len(r.byType))
	for capability, workers := range r.byType {
		if len(workers) == 0 {
			continue
		}
		desc := workers[0].Describe()
		desc.Workers = len(workers)
		snapshot[capability] = desc
	}
	return snapshot
}

// Count returns the number of registered workers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}
