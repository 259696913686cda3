package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEntry_Defaults(t *testing.T) {
	e := NewEntry(EntryTypeArticle, "https://example.com", "user-1")

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, EntryTypeArticle, e.Type)
	assert.Equal(t, StateStarted, e.State)
	assert.Equal(t, 0, e.Progress)
	assert.Equal(t, int64(1), e.Version)
	assert.NotNil(t, e.Metadata)
	assert.False(t, e.Created.IsZero())
}

func TestEntry_EffectiveState_NormalizesFullProgress(t *testing.T) {
	e := NewEntry(EntryTypeNote, "", "user-1")
	e.State = StateProcessing
	e.Progress = 100

	assert.Equal(t, StateCompleted, e.EffectiveState())

	e.Progress = 99
	assert.Equal(t, StateProcessing, e.EffectiveState())

	// Explicit failure is never masked by progress.
	e.State = StateFailed
	e.Progress = 100
	assert.Equal(t, StateFailed, e.EffectiveState())
}

func TestEntry_Clone_IsolatesMetadata(t *testing.T) {
	e := NewEntry(EntryTypeArticle, "https://example.com", "user-1")
	e.Metadata[MetaTitle] = "original"

	clone := e.Clone()
	clone.Metadata[MetaTitle] = "mutated"

	assert.Equal(t, "original", e.Metadata.String(MetaTitle))
}

func TestProcessingState_Terminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateStarted.Terminal())
	assert.False(t, StateProcessing.Terminal())
	assert.False(t, StateIdle.Terminal())
}

func TestMetadata_Merge_SkipsNilAndOverwrites(t *testing.T) {
	base := Metadata{MetaTitle: "old", MetaContent: "body"}
	merged := base.Merge(Metadata{
		MetaTitle:   "new",
		MetaSummary: "sum",
		MetaAuthor:  nil,
	})

	assert.Equal(t, "new", merged.String(MetaTitle))
	assert.Equal(t, "body", merged.String(MetaContent))
	assert.Equal(t, "sum", merged.String(MetaSummary))
	assert.False(t, merged.Has(MetaAuthor))
	// base is untouched
	assert.Equal(t, "old", base.String(MetaTitle))
}

func TestResult_Chaining(t *testing.T) {
	r := Succeed(50, Metadata{MetaContent: "body"}).Then(AgentSummary)

	assert.True(t, r.Success)
	assert.Equal(t, 50, r.Progress)
	assert.Equal(t, AgentSummary, r.NextAgent)

	f := Failf("boom: %d", 42)
	assert.False(t, f.Success)
	assert.Equal(t, "boom: 42", f.Error)
}
