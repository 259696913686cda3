package core

import "context"

// EntryPatch describes a partial entry update. Nil pointer fields are left
// untouched; Metadata, when present, is merged additively into the stored
// document (never replacing it wholesale).
type EntryPatch struct {
	URL      *string
	State    *ProcessingState
	Progress *int
	Metadata Metadata
}

// EntryStore persists entries. The store owns durability; the processor owns
// transition logic. Updates are optimistic: callers pass the Version they
// read and the store rejects stale writes with ErrStaleEntry, closing the
// lost-update gap on the read-merge-write metadata cycle.
type EntryStore interface {
	Get(ctx context.Context, id string) (*Entry, error)
	Create(ctx context.Context, entry *Entry) error
	Update(ctx context.Context, id string, patch EntryPatch, version int64) (*Entry, error)
	Delete(ctx context.Context, id string) error
}

// UpdateProcessingState is the common store mutation used by the processor:
// set lifecycle state and progress, merge a metadata patch, all under the
// optimistic version check. Progress never regresses within a run; callers
// pass the target and stores clamp to the stored minimum.
func UpdateProcessingState(
	ctx context.Context,
	store EntryStore,
	entry *Entry,
	state ProcessingState,
	progress int,
	patch Metadata,
) (*Entry, error) {
	return store.Update(ctx, entry.ID, EntryPatch{
		State:    &state,
		Progress: &progress,
		Metadata: patch,
	}, entry.Version)
}

// ContentArchive retains raw fetched payloads (HTML bytes) outside the entry
// document, keyed by entry and artifact name. Implementations: in-process map
// for tests, MinIO bucket for durable deployments.
type ContentArchive interface {
	Save(ctx context.Context, entryID, name string, data []byte) (string, error)
	Get(ctx context.Context, entryID, name string) ([]byte, error)
}
