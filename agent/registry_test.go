package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashpipe/stashpipe/capability"
	"github.com/stashpipe/stashpipe/core"
	"github.com/stashpipe/stashpipe/internal/testutil"
)

func TestRegistry_ResolveCachesInstances(t *testing.T) {
	r := NewRegistry(Deps{Summarizer: capability.NewMockClient()})

	first, err := r.Resolve(core.AgentRouter)
	require.NoError(t, err)
	second, err := r.Resolve(core.AgentRouter)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestRegistry_UnknownAgent(t *testing.T) {
	r := NewRegistry(Deps{})

	_, err := r.Resolve(core.AgentName("mystery-agent"))

	assert.ErrorIs(t, err, core.ErrUnknownAgent)
	assert.False(t, r.Known(core.AgentName("mystery-agent")))
	assert.True(t, r.Known(core.AgentSummary))
}

func TestRegistry_EmbedRequiresEmbedder(t *testing.T) {
	without := NewRegistry(Deps{})
	assert.False(t, without.Known(core.AgentEmbed))

	with := NewRegistry(Deps{Embedder: capability.NewMockClient()})
	assert.True(t, with.Known(core.AgentEmbed))
}

func TestRepairPrecondition_SummaryWithoutContent(t *testing.T) {
	entry := testutil.NewEntryBuilder(core.EntryTypeArticle).URL("https://example.com").Build()

	assert.Equal(t, core.AgentContentFetch, RepairPrecondition(core.AgentSummary, entry))

	entry.Metadata[core.MetaContent] = "body"
	assert.Equal(t, core.AgentSummary, RepairPrecondition(core.AgentSummary, entry))

	// Other agents pass through untouched.
	assert.Equal(t, core.AgentRouter, RepairPrecondition(core.AgentRouter, entry))
}
