package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashpipe/stashpipe/capability"
	"github.com/stashpipe/stashpipe/core"
	"github.com/stashpipe/stashpipe/internal/testutil"
)

func TestEmbed_Success(t *testing.T) {
	mock := capability.NewMockClient()
	a := NewEmbed(Deps{Embedder: mock})
	entry := testutil.NewEntryBuilder(core.EntryTypeArticle).
		Meta(core.MetaTitle, "Title").
		Meta(core.MetaSummary, "Summary").
		Build()

	result := a.Process(context.Background(), core.Request{Entry: entry})

	require.True(t, result.Success)
	vector, ok := result.Data[core.MetaEmbedding].([]float64)
	require.True(t, ok)
	assert.NotEmpty(t, vector)
}

func TestEmbed_SkipsWhenEmbeddingPresent(t *testing.T) {
	mock := capability.NewMockClient()
	a := NewEmbed(Deps{Embedder: mock})
	entry := testutil.NewEntryBuilder(core.EntryTypeNote).
		Meta(core.MetaEmbedding, []float64{0.1}).
		Build()

	result := a.Process(context.Background(), core.Request{Entry: entry})

	require.True(t, result.Success)
	assert.Zero(t, mock.CallCount("Embed"))
}

func TestEmbed_NoText(t *testing.T) {
	a := NewEmbed(Deps{Embedder: capability.NewMockClient()})
	entry := testutil.NewEntryBuilder(core.EntryTypeNote).Build()

	result := a.Process(context.Background(), core.Request{Entry: entry})

	assert.False(t, result.Success)
}
