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
)

func TestCompanyResearch_Success(t *testing.T) {
	mock := capability.NewMockClient()
	a := NewCompanyResearch(Deps{Researcher: mock})
	entry := testutil.NewEntryBuilder(core.EntryTypeCompany).URL("https://www.acme.dev").Build()

	result := a.Process(context.Background(), core.Request{Entry: entry})

	require.True(t, result.Success)
	assert.Empty(t, result.NextAgent)
	assert.Equal(t, 90, result.Progress)

	profile, ok := result.Data[core.MetaCompanyProfile].(map[string]any)
	require.True(t, ok, "profile should be a plain document")
	assert.Equal(t, "acme.dev", profile["name"])
	assert.NotEmpty(t, result.Data.String(core.MetaTitle))
	assert.NotEmpty(t, result.Data.String(core.MetaDescription))
}

func TestCompanyResearch_SkipsWhenProfilePresent(t *testing.T) {
	mock := capability.NewMockClient()
	a := NewCompanyResearch(Deps{Researcher: mock})
	entry := testutil.NewEntryBuilder(core.EntryTypeCompany).
		URL("https://acme.dev").
		Meta(core.MetaCompanyProfile, map[string]any{"name": "acme"}).
		Build()

	result := a.Process(context.Background(), core.Request{Entry: entry})

	require.True(t, result.Success)
	assert.Nil(t, result.Data)
	assert.Zero(t, mock.CallCount("Research"))
}

func TestCompanyResearch_NoNameOrURL(t *testing.T) {
	a := NewCompanyResearch(Deps{Researcher: capability.NewMockClient()})
	entry := testutil.NewEntryBuilder(core.EntryTypeCompany).Build()

	result := a.Process(context.Background(), core.Request{Entry: entry})

	assert.False(t, result.Success)
}

func TestCompanyResearch_ResearchError(t *testing.T) {
	mock := capability.NewMockClient()
	mock.FailResearch = errors.New("api down")
	a := NewCompanyResearch(Deps{Researcher: mock})
	entry := testutil.NewEntryBuilder(core.EntryTypeCompany).URL("https://acme.dev").Build()

	result := a.Process(context.Background(), core.Request{Entry: entry})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "api down")
}
