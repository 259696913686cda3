// Package archive stores raw fetched payloads (page HTML) outside the entry
// metadata document, keyed by entry id and artifact name. The in-memory
// implementation serves tests and single-process prototypes; MinIO backs
// durable deployments.
package archive

import (
	"context"
	"fmt"
	"sync"

	"github.com/stashpipe/stashpipe/core"
)

// InMemory is a trivial in-process core.ContentArchive keeping all payloads
// in a nested map guarded by an RWMutex. Data is copied on save and retrieval
// to avoid accidental external mutation of internal buffers. It enforces no
// retention limits or quotas.
type InMemory struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte // entryID -> name -> payload
}

// NewInMemory returns an empty in-memory archive.
func NewInMemory() *InMemory {
	return &InMemory{data: make(map[string]map[string][]byte)}
}

// Save stores (or overwrites) the payload and returns an opaque reference.
func (a *InMemory) Save(_ context.Context, entryID, name string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.data[entryID]; !exists {
		a.data[entryID] = make(map[string][]byte)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	a.data[entryID][name] = cp
	return fmt.Sprintf("mem://%s/%s", entryID, name), nil
}

// Get returns a copy of the stored payload or core.ErrNotFound.
func (a *InMemory) Get(_ context.Context, entryID, name string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.data[entryID]
	if !ok {
		return nil, core.ErrNotFound
	}
	data, ok := m[name]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}
