// Package store provides core.EntryStore implementations: a process-local
// in-memory store for tests and a MySQL backed store for durable deployments.
// Both enforce the optimistic version check on updates and the per-run
// progress monotonicity rule.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/stashpipe/stashpipe/core"
)

// InMemory is a volatile core.EntryStore storing entries in a process local
// map. It is safe for concurrent access; each returned entry is cloned to
// prevent external mutation of internal state.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]*core.Entry
}

// NewInMemory constructs an empty in-memory entry store.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]*core.Entry)}
}

// Get returns a clone of the stored entry or core.ErrNotFound.
func (s *InMemory) Get(_ context.Context, id string) (*core.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return e.Clone(), nil
}

// Create stores a clone of the entry. An existing id is overwritten; entry
// creation races are the trigger surface's concern, not the store's.
func (s *InMemory) Create(_ context.Context, entry *core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = entry.Clone()
	return nil
}

// Update applies the patch if version matches the stored entry, bumping the
// version and returning the new state. A stale version yields
// core.ErrStaleEntry so the caller can re-read and retry the merge.
func (s *InMemory) Update(_ context.Context, id string, patch core.EntryPatch, version int64) (*core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	if e.Version != version {
		return nil, core.ErrStaleEntry
	}
	applyPatch(e, patch)
	e.Version++
	e.Updated = time.Now().UTC()
	return e.Clone(), nil
}

// Delete removes the entry.
func (s *InMemory) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

// applyPatch mutates e in place. Progress never regresses within a run: a
// lower target is clamped to the stored value unless the patch also resets
// state to started, which marks the beginning of a new run (reprocess).
func applyPatch(e *core.Entry, patch core.EntryPatch) {
	if patch.URL != nil {
		e.URL = *patch.URL
	}
	if patch.State != nil {
		e.State = *patch.State
	}
	if patch.Progress != nil {
		next := *patch.Progress
		resetting := patch.State != nil && *patch.State == core.StateStarted
		if next < e.Progress && !resetting {
			next = e.Progress
		}
		if next > 100 {
			next = 100
		}
		e.Progress = next
	}
	if len(patch.Metadata) > 0 {
		e.Metadata = e.Metadata.Merge(patch.Metadata)
	}
}
