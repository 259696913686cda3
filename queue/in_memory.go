// Package queue provides implementations of core.Queue: a process-local
// in-memory queue for tests and single-process deployments, and a MySQL
// backed durable queue for deployments that must survive restarts. Both
// implement at-least-once delivery with visibility-timeout leases.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/stashpipe/stashpipe/core"
)

// InMemory is a volatile core.Queue implementation storing messages in a
// process local slice. It is safe for concurrent poppers; the mutex provides
// the at-most-one-active-lease guarantee the processor depends on. Best
// suited for tests and ephemeral demo setups.
type InMemory struct {
	mu      sync.Mutex
	items   []*memItem
	history []core.QueueItem
	// historyLimit bounds the archived-item list; oldest entries are evicted.
	historyLimit int
}

type memItem struct {
	id          string
	msg         core.Message
	attempts    int
	leasedUntil time.Time
	enqueued    time.Time
}

// NewInMemory constructs an empty in-memory queue.
func NewInMemory() *InMemory {
	return &InMemory{historyLimit: 256}
}

// Enqueue appends a message and returns its queue-local id.
func (q *InMemory) Enqueue(_ context.Context, msg core.Message) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	it := &memItem{
		id:       core.NewID(),
		msg:      msg,
		enqueued: time.Now().UTC(),
	}
	it.msg.Status = core.ItemPending
	q.items = append(q.items, it)
	return it.id, nil
}

// PopNext leases the oldest visible message for the visibility duration.
// Returns (nil, nil) when no message is visible. Each successful pop
// increments the delivery attempt counter, so an expired lease surfaces the
// message again with attempts+1.
func (q *InMemory) PopNext(_ context.Context, visibility time.Duration) (*core.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now().UTC()
	for _, it := range q.items {
		if it.leasedUntil.After(now) {
			continue
		}
		it.leasedUntil = now.Add(visibility)
		it.attempts++
		it.msg.Status = core.ItemProcessing
		it.msg.Attempts = it.attempts
		return q.toQueueItem(it), nil
	}
	return nil, nil
}

// Archive removes the message on the success path, retaining it in the
// bounded history list for dashboards.
func (q *InMemory) Archive(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, idx := q.find(id)
	if it == nil {
		return core.ErrNotFound
	}
	now := time.Now().UTC()
	it.msg.Status = core.ItemCompleted
	it.msg.CompletedAt = &now
	q.retain(it)
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	return nil
}

// Drop removes the message on the unrecoverable-failure path. The reason is
// recorded on the historical copy.
func (q *InMemory) Drop(_ context.Context, id, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, idx := q.find(id)
	if it == nil {
		return core.ErrNotFound
	}
	now := time.Now().UTC()
	it.msg.Status = core.ItemFailed
	it.msg.Error = reason
	it.msg.CompletedAt = &now
	q.retain(it)
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	return nil
}

// PeekAll returns a non-destructive snapshot of active (pending or leased)
// messages. Not used on the processor hot path.
func (q *InMemory) PeekAll(_ context.Context) ([]core.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]core.QueueItem, 0, len(q.items))
	for _, it := range q.items {
		out = append(out, *q.toQueueItem(it))
	}
	return out, nil
}

// History returns archived and dropped items, oldest first.
func (q *InMemory) History(_ context.Context) ([]core.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]core.QueueItem, len(q.history))
	copy(out, q.history)
	return out, nil
}

func (q *InMemory) find(id string) (*memItem, int) {
	for i, it := range q.items {
		if it.id == id {
			return it, i
		}
	}
	return nil, -1
}

func (q *InMemory) retain(it *memItem) {
	q.history = append(q.history, *q.toQueueItem(it))
	if len(q.history) > q.historyLimit {
		q.history = q.history[len(q.history)-q.historyLimit:]
	}
}

func (q *InMemory) toQueueItem(it *memItem) *core.QueueItem {
	return &core.QueueItem{
		ID:          it.id,
		Message:     it.msg,
		Attempts:    it.attempts,
		LeasedUntil: it.leasedUntil,
	}
}
