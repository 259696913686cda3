package testutil

import (
	"time"

	"github.com/stashpipe/stashpipe/core"
)

// EntryBuilder provides a fluent helper for constructing entries in tests.
// Example:
//
//	e := NewEntryBuilder(core.EntryTypeArticle).URL("https://example.com").Meta(core.MetaContent, "body").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EntryBuilder struct {
	id       string
	typ      core.EntryType
	url      string
	userID   string
	state    core.ProcessingState
	progress int
	version  int64
	meta     core.Metadata
}

// NewEntryBuilder creates a builder for an entry of the given type with
// default state started, progress 0 and version 1.
func NewEntryBuilder(typ core.EntryType) *EntryBuilder {
	return &EntryBuilder{
		typ:     typ,
		state:   core.StateStarted,
		version: 1,
		meta:    core.Metadata{},
	}
}

// ID overrides the auto-generated entry ID (chainable).
func (b *EntryBuilder) ID(id string) *EntryBuilder { b.id = id; return b }

// URL sets the source URL (chainable).
func (b *EntryBuilder) URL(u string) *EntryBuilder { b.url = u; return b }

// User sets the owning user ID (chainable).
func (b *EntryBuilder) User(id string) *EntryBuilder { b.userID = id; return b }

// State sets the processing state (chainable).
func (b *EntryBuilder) State(s core.ProcessingState) *EntryBuilder { b.state = s; return b }

// Progress sets the progress percentage (chainable).
func (b *EntryBuilder) Progress(p int) *EntryBuilder { b.progress = p; return b }

// Version sets the optimistic-concurrency version (chainable).
func (b *EntryBuilder) Version(v int64) *EntryBuilder { b.version = v; return b }

// Meta sets a single metadata key (chainable).
func (b *EntryBuilder) Meta(key string, val any) *EntryBuilder {
	b.meta[key] = val
	return b
}

// Build returns the assembled *core.Entry.
func (b *EntryBuilder) Build() *core.Entry {
	id := b.id
	if id == "" {
		id = core.NewID()
	}
	now := time.Now().UTC()
	return &core.Entry{
		ID:       id,
		Type:     b.typ,
		URL:      b.url,
		UserID:   b.userID,
		State:    b.state,
		Progress: b.progress,
		Metadata: b.meta.Clone(),
		Version:  b.version,
		Created:  now,
		Updated:  now,
	}
}
