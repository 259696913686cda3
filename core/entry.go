package core

import (
	"time"

	"github.com/google/uuid"
)

// EntryType is the closed set of ingestable item variants. The type is fixed
// at creation and selects which agent chain the processor walks.
type EntryType string

const (
	// EntryTypeArticle is a web article identified by URL.
	EntryTypeArticle EntryType = "article"
	// EntryTypeCompany is a company identified by its website URL.
	EntryTypeCompany EntryType = "company"
	// EntryTypeNote is free-form user text with no source URL.
	EntryTypeNote EntryType = "note"
)

// Valid reports whether t is one of the known entry types.
func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeArticle, EntryTypeCompany, EntryTypeNote:
		return true
	}
	return false
}

// ProcessingState is the coarse lifecycle of an entry's enrichment run.
type ProcessingState string

const (
	// StateIdle means no run has been started.
	StateIdle ProcessingState = "idle"
	// StateStarted means a run was submitted but no agent has executed yet.
	StateStarted ProcessingState = "started"
	// StateProcessing means at least one agent has executed and more are queued.
	StateProcessing ProcessingState = "processing"
	// StateCompleted is the successful terminal state.
	StateCompleted ProcessingState = "completed"
	// StateFailed is the unsuccessful terminal state. The entry's metadata
	// carries processingFailed=true plus the failure reason.
	StateFailed ProcessingState = "failed"
)

// Terminal reports whether the state ends a run.
func (s ProcessingState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Well-known metadata keys written by the built-in agents.
const (
	MetaContent          = "content"
	MetaTitle            = "title"
	MetaAuthor           = "author"
	MetaPublishedDate    = "publishedDate"
	MetaDescription      = "description"
	MetaSummary          = "summary"
	MetaKeyPoints        = "keyPoints"
	MetaCompanyProfile   = "companyProfile"
	MetaEmbedding        = "embedding"
	MetaProcessingFailed = "processingFailed"
	MetaError            = "error"
	MetaArchiveRef       = "archiveRef"
)

// Metadata is the open, additive key/value document accumulated across agent
// steps. Merging never deletes prior fields.
type Metadata map[string]any

// Clone returns a shallow copy safe for independent mutation of top-level keys.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge returns a new document containing m overlaid with delta. Keys absent
// from delta are preserved; nil-valued delta keys are skipped so a sloppy
// producer cannot blank out earlier enrichment.
func (m Metadata) Merge(delta Metadata) Metadata {
	out := m.Clone()
	for k, v := range delta {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// Has reports whether key is present with a non-empty value.
func (m Metadata) Has(key string) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return s != ""
	}
	return true
}

// String returns the value for key if it is a string, else "".
func (m Metadata) String(key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// Entry is the unit of work: one user-submitted item undergoing enrichment.
// Processing fields are mutated exclusively by agents via the processor; the
// Version counter guards the read-merge-write cycle against lost updates.
type Entry struct {
	ID       string          `json:"id"`
	Type     EntryType       `json:"type"`
	URL      string          `json:"url,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	State    ProcessingState `json:"processingState"`
	Progress int             `json:"processingProgress"`
	Metadata Metadata        `json:"metadata"`
	Version  int64           `json:"version"`
	Created  time.Time       `json:"created"`
	Updated  time.Time       `json:"updated"`
}

// NewEntry creates an entry ready for submission: started, zero progress.
func NewEntry(entryType EntryType, url, userID string) *Entry {
	now := time.Now().UTC()
	return &Entry{
		ID:       NewID(),
		Type:     entryType,
		URL:      url,
		UserID:   userID,
		State:    StateStarted,
		Progress: 0,
		Metadata: Metadata{},
		Version:  1,
		Created:  now,
		Updated:  now,
	}
}

// EffectiveState normalizes the stored state: an entry at 100% progress is
// reported completed regardless of what the state field says.
func (e *Entry) EffectiveState() ProcessingState {
	if e.Progress >= 100 && !e.State.Terminal() {
		return StateCompleted
	}
	return e.State
}

// Clone returns a deep-enough copy (metadata cloned) safe for divergence.
func (e *Entry) Clone() *Entry {
	cp := *e
	cp.Metadata = e.Metadata.Clone()
	return &cp
}

// NewID generates an opaque unique identifier for entries, queue messages
// and progress events.
func NewID() string { return uuid.NewString() }
