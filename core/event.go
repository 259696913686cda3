package core

import "time"

// EventKind categorizes progress events emitted by the processor.
type EventKind string

const (
	// EventSubmitted fires when an entry's first step is enqueued.
	EventSubmitted EventKind = "submitted"
	// EventStepStarted fires after a message is leased and resolved.
	EventStepStarted EventKind = "step_started"
	// EventStepCompleted fires after a successful agent run is persisted.
	EventStepCompleted EventKind = "step_completed"
	// EventStepRetried fires when a failed step is left leased so that lease
	// expiry redelivers it for another attempt.
	EventStepRetried EventKind = "step_retried"
	// EventEntryCompleted fires when a chain finishes successfully.
	EventEntryCompleted EventKind = "entry_completed"
	// EventEntryFailed fires when a run terminates in failure.
	EventEntryFailed EventKind = "entry_failed"
	// EventMessageDropped fires when a message is discarded without retry
	// (missing entry, unknown agent, terminal failure).
	EventMessageDropped EventKind = "message_dropped"
)

// Event is one observable state transition in an entry's run. Events are a
// side channel for dashboards and tests; polling the entry record remains the
// end-user progress surface.
type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	EntryID   string    `json:"entryId"`
	Agent     AgentName `json:"agent,omitempty"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent builds an event stamped with a fresh ID and UTC timestamp.
func NewEvent(kind EventKind, entryID string, agent AgentName) Event {
	return Event{
		ID:        NewID(),
		Kind:      kind,
		EntryID:   entryID,
		Agent:     agent,
		Timestamp: time.Now().UTC(),
	}
}

// Observer receives processor events. Implementations must be fast and must
// not block; the processor invokes them inline on the hot path.
type Observer func(Event)
