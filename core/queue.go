package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ItemStatus is the logical lifecycle carried inside the queue payload for
// observability. The queue's own delivery state (visible / leased / archived /
// dropped) is the actual durability mechanism and is authoritative over this
// field.
type ItemStatus string

const (
	// ItemPending means the message is waiting to be popped.
	ItemPending ItemStatus = "pending"
	// ItemProcessing means a processor holds a lease on the message.
	ItemProcessing ItemStatus = "processing"
	// ItemCompleted means the step finished and the message was archived.
	ItemCompleted ItemStatus = "completed"
	// ItemFailed means the step failed terminally and the message was dropped.
	ItemFailed ItemStatus = "failed"
)

// Message is the JSON payload describing one pipeline step: "run agent X on
// entry Y". Its shape must stay stable so at-least-once redelivery can
// reconstruct state after a lease expiry.
type Message struct {
	EntryID     string     `json:"entryId"`
	AgentName   AgentName  `json:"agentName"`
	Status      ItemStatus `json:"status"`
	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"createdAt"`
	Error       string     `json:"error,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// NewMessage builds a pending message for the given entry and agent.
func NewMessage(entryID string, agent AgentName) Message {
	return Message{
		EntryID:   entryID,
		AgentName: agent,
		Status:    ItemPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Encode serializes the message payload.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode queue message: %w", err)
	}
	return data, nil
}

// DecodeMessage parses a serialized payload back into a Message.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode queue message: %w", err)
	}
	return m, nil
}

// QueueItem is the queue's envelope around a message: queue-local identity,
// delivery attempt count and the current lease deadline. LeasedUntil is zero
// for visible messages.
type QueueItem struct {
	ID          string    `json:"id"`
	Message     Message   `json:"message"`
	Attempts    int       `json:"attempts"`
	LeasedUntil time.Time `json:"leasedUntil,omitempty"`
}

// Queue provides at-least-once delivery of step messages for one named queue.
//
// PopNext leases the oldest visible message for the visibility duration,
// hiding it from other poppers; it returns (nil, nil) when the queue is empty.
// The lease is the system's sole mutual-exclusion primitive: a leased message
// that is neither archived nor dropped becomes poppable again once the lease
// expires, which is also the only crash-retry path. Implementations must be
// safe for concurrent poppers.
type Queue interface {
	Enqueue(ctx context.Context, msg Message) (string, error)
	PopNext(ctx context.Context, visibility time.Duration) (*QueueItem, error)
	Archive(ctx context.Context, id string) error
	Drop(ctx context.Context, id, reason string) error
	PeekAll(ctx context.Context) ([]QueueItem, error)
	History(ctx context.Context) ([]QueueItem, error)
}
