package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashpipe/stashpipe/core"
)

// Interface compliance (compile-time assertion)
var _ core.EntryStore = (*InMemory)(nil)

func TestInMemory_Get_ReturnsClone(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	entry := core.NewEntry(core.EntryTypeArticle, "https://example.com", "user-1")
	require.NoError(t, s.Create(ctx, entry))

	got, err := s.Get(ctx, entry.ID)
	require.NoError(t, err)

	got.Metadata[core.MetaTitle] = "mutated"
	again, err := s.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.False(t, again.Metadata.Has(core.MetaTitle))
}

func TestInMemory_Get_Missing(t *testing.T) {
	s := NewInMemory()

	_, err := s.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestInMemory_Update_VersionConflict(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	entry := core.NewEntry(core.EntryTypeNote, "", "user-1")
	require.NoError(t, s.Create(ctx, entry))

	state := core.StateProcessing
	updated, err := s.Update(ctx, entry.ID, core.EntryPatch{State: &state}, entry.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	// Replaying the same version is rejected.
	_, err = s.Update(ctx, entry.ID, core.EntryPatch{State: &state}, entry.Version)
	assert.ErrorIs(t, err, core.ErrStaleEntry)
}

func TestInMemory_Update_MergesMetadata(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	entry := core.NewEntry(core.EntryTypeArticle, "https://example.com", "user-1")
	require.NoError(t, s.Create(ctx, entry))

	first, err := s.Update(ctx, entry.ID, core.EntryPatch{
		Metadata: core.Metadata{core.MetaContent: "body"},
	}, 1)
	require.NoError(t, err)

	second, err := s.Update(ctx, entry.ID, core.EntryPatch{
		Metadata: core.Metadata{core.MetaSummary: "sum"},
	}, first.Version)
	require.NoError(t, err)

	// Earlier enrichment survives later patches.
	assert.Equal(t, "body", second.Metadata.String(core.MetaContent))
	assert.Equal(t, "sum", second.Metadata.String(core.MetaSummary))
}

func TestInMemory_Update_ProgressNeverRegresses(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	entry := core.NewEntry(core.EntryTypeArticle, "https://example.com", "user-1")
	require.NoError(t, s.Create(ctx, entry))

	p50 := 50
	e, err := s.Update(ctx, entry.ID, core.EntryPatch{Progress: &p50}, 1)
	require.NoError(t, err)
	assert.Equal(t, 50, e.Progress)

	// A redelivered earlier step cannot move progress backwards.
	p10 := 10
	e, err = s.Update(ctx, entry.ID, core.EntryPatch{Progress: &p10}, e.Version)
	require.NoError(t, err)
	assert.Equal(t, 50, e.Progress)

	// Values above 100 are capped.
	p150 := 150
	e, err = s.Update(ctx, entry.ID, core.EntryPatch{Progress: &p150}, e.Version)
	require.NoError(t, err)
	assert.Equal(t, 100, e.Progress)
}

func TestInMemory_Update_ReprocessResetsProgress(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	entry := core.NewEntry(core.EntryTypeCompany, "https://example.com", "user-1")
	require.NoError(t, s.Create(ctx, entry))

	p90 := 90
	done := core.StateCompleted
	e, err := s.Update(ctx, entry.ID, core.EntryPatch{State: &done, Progress: &p90}, 1)
	require.NoError(t, err)

	// A new run resets progress when state moves back to started.
	zero := 0
	started := core.StateStarted
	e, err = s.Update(ctx, entry.ID, core.EntryPatch{State: &started, Progress: &zero}, e.Version)
	require.NoError(t, err)
	assert.Equal(t, 0, e.Progress)
	assert.Equal(t, core.StateStarted, e.State)
}

func TestInMemory_Delete(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	entry := core.NewEntry(core.EntryTypeNote, "", "user-1")
	require.NoError(t, s.Create(ctx, entry))

	require.NoError(t, s.Delete(ctx, entry.ID))
	_, err := s.Get(ctx, entry.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, entry.ID), core.ErrNotFound)
}
