package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashpipe/stashpipe/capability"
	"github.com/stashpipe/stashpipe/core"
	"github.com/stashpipe/stashpipe/internal/testutil"
	"github.com/stashpipe/stashpipe/logging"
)

func TestRouter_Article_RoutesToContentFetch(t *testing.T) {
	router := NewRouter(Deps{Summarizer: capability.NewMockClient()})
	entry := testutil.NewEntryBuilder(core.EntryTypeArticle).URL("https://example.com").Build()

	result := router.Process(context.Background(), core.Request{Entry: entry})

	require.True(t, result.Success)
	assert.Equal(t, core.AgentContentFetch, result.NextAgent)
	assert.Equal(t, 10, result.Progress)
}

func TestRouter_Article_WithContentSkipsFetch(t *testing.T) {
	router := NewRouter(Deps{})
	entry := testutil.NewEntryBuilder(core.EntryTypeArticle).
		URL("https://example.com").
		Meta(core.MetaContent, "already fetched").
		Build()

	result := router.Process(context.Background(), core.Request{Entry: entry})

	require.True(t, result.Success)
	assert.Equal(t, core.AgentSummary, result.NextAgent)
}

func TestRouter_Company_RoutesToResearch(t *testing.T) {
	router := NewRouter(Deps{})
	entry := testutil.NewEntryBuilder(core.EntryTypeCompany).URL("https://example.com").Build()

	result := router.Process(context.Background(), core.Request{Entry: entry})

	require.True(t, result.Success)
	assert.Equal(t, core.AgentCompanyResearch, result.NextAgent)
}

func TestRouter_Note_TerminalWithGeneratedTitle(t *testing.T) {
	mock := capability.NewMockClient()
	router := NewRouter(Deps{Summarizer: mock})
	entry := testutil.NewEntryBuilder(core.EntryTypeNote).
		Meta(core.MetaContent, "remember to review the queue lease semantics").
		Build()

	result := router.Process(context.Background(), core.Request{Entry: entry})

	require.True(t, result.Success)
	assert.Empty(t, result.NextAgent)
	assert.Equal(t, "remember to review the queue lease", result.Data.String(core.MetaTitle))
}

func TestRouter_Note_ExistingTitlePreserved(t *testing.T) {
	mock := capability.NewMockClient()
	router := NewRouter(Deps{Summarizer: mock})
	entry := testutil.NewEntryBuilder(core.EntryTypeNote).
		Meta(core.MetaTitle, "my title").
		Meta(core.MetaContent, "body").
		Build()

	result := router.Process(context.Background(), core.Request{Entry: entry})

	require.True(t, result.Success)
	assert.Nil(t, result.Data)
	assert.Zero(t, mock.CallCount("Title"))
}

func TestRouter_Note_TitleFailureIsNotFatal(t *testing.T) {
	mock := capability.NewMockClient()
	mock.FailSummarize = errors.New("model unavailable")
	router := NewRouter(Deps{Summarizer: mock, Logger: logging.NoOpLogger{}})
	entry := testutil.NewEntryBuilder(core.EntryTypeNote).
		Meta(core.MetaContent, "body").
		Build()

	result := router.Process(context.Background(), core.Request{Entry: entry})

	assert.True(t, result.Success)
	assert.Empty(t, result.NextAgent)
}

func TestRouter_Note_EmbedTail(t *testing.T) {
	mock := capability.NewMockClient()
	router := NewRouter(Deps{Summarizer: mock, Embedder: mock, EmbedTail: true})
	entry := testutil.NewEntryBuilder(core.EntryTypeNote).
		Meta(core.MetaContent, "body").
		Build()

	result := router.Process(context.Background(), core.Request{Entry: entry})

	require.True(t, result.Success)
	assert.Equal(t, core.AgentEmbed, result.NextAgent)
}

func TestRouter_UnknownType(t *testing.T) {
	router := NewRouter(Deps{})
	entry := testutil.NewEntryBuilder(core.EntryType("podcast")).Build()

	result := router.Process(context.Background(), core.Request{Entry: entry})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "podcast")
}
