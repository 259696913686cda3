package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashpipe/stashpipe/core"
)

// Interface compliance (compile-time assertion)
var _ core.ContentArchive = (*InMemory)(nil)

func TestInMemory_SaveAndGet(t *testing.T) {
	a := NewInMemory()
	ctx := context.Background()

	ref, err := a.Save(ctx, "entry-1", "page.html", []byte("<html>data</html>"))
	require.NoError(t, err)
	assert.Equal(t, "mem://entry-1/page.html", ref)

	data, err := a.Get(ctx, "entry-1", "page.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>data</html>", string(data))
}

func TestInMemory_Get_Missing(t *testing.T) {
	a := NewInMemory()

	_, err := a.Get(context.Background(), "entry-1", "page.html")

	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestInMemory_SaveCopiesPayload(t *testing.T) {
	a := NewInMemory()
	ctx := context.Background()

	payload := []byte("original")
	_, err := a.Save(ctx, "entry-1", "page.html", payload)
	require.NoError(t, err)
	payload[0] = 'X'

	data, err := a.Get(ctx, "entry-1", "page.html")
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}
