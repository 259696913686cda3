package testutil

import (
	"sync"

	"github.com/stashpipe/stashpipe/core"
)

// EventRecorder collects processor events for assertions. Safe for use with
// concurrent workers.
type EventRecorder struct {
	mu     sync.Mutex
	events []core.Event
}

// NewEventRecorder returns an empty recorder.
func NewEventRecorder() *EventRecorder { return &EventRecorder{} }

// Observe is the core.Observer to pass into the processor.
func (r *EventRecorder) Observe(ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a snapshot of everything recorded so far.
func (r *EventRecorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the recorded event kinds in order.
func (r *EventRecorder) Kinds() []core.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

// Count returns how many events of the given kind were recorded.
func (r *EventRecorder) Count(kind core.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
