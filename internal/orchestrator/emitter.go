package orchestrator

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/agentide/conductor/internal/engine"
)

// EventEmitter fans engine events out to subscribers over a buffered
// channel. Emission never blocks the engine for more than the drain
// grace period; overflow events are dropped and counted.
type EventEmitter struct {
	events       chan engine.Event
	droppedCount atomic.Uint64
}

// NewEventEmitter creates an EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan engine.Event, bufferSize),
	}
}

// Emit sends an event to the channel. If the channel is full it waits
// briefly for the receiver to drain, then drops the event.
func (e *EventEmitter) Emit(event engine.Event) {
	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
		return
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			log.Printf("[orchestrator] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of dropped events.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns the read-only event channel for subscribers such as
// the TUI.
func (e *EventEmitter) Events() <-chan engine.Event {
	return e.events
}

// Close closes the event channel. Call only after the engine has
// stopped emitting.
func (e *EventEmitter) Close() {
	close(e.events)
}
