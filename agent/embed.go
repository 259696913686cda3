package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/stashpipe/stashpipe/capability"
	"github.com/stashpipe/stashpipe/core"
)

// Embed stores a vector embedding of the enriched entry, making it
// chat-searchable downstream. Optional terminal step, registered only when
// an embedder is configured.
type Embed struct {
	embedder capability.Embedder
}

// NewEmbed constructs the embed agent.
func NewEmbed(d Deps) *Embed {
	return &Embed{embedder: d.Embedder}
}

// Name implements core.Agent.
func (a *Embed) Name() core.AgentName { return core.AgentEmbed }

// Process implements core.Agent.
func (a *Embed) Process(ctx context.Context, req core.Request) core.Result {
	entry := req.Entry

	if entry.Metadata.Has(core.MetaEmbedding) {
		return core.Succeed(progressEmbedded, nil)
	}
	if a.embedder == nil {
		return core.Failf("no embedder configured")
	}

	text := embeddingText(entry)
	if text == "" {
		return core.Failf("entry %s has no text to embed", entry.ID)
	}

	vector, err := a.embedder.Embed(ctx, text)
	if err != nil {
		return core.Fail(fmt.Errorf("embedding failed: %w", err))
	}

	return core.Succeed(progressEmbedded, core.Metadata{core.MetaEmbedding: vector})
}

// embeddingText prefers the distilled summary over raw content; titles and
// descriptions pad short notes.
func embeddingText(entry *core.Entry) string {
	var parts []string
	for _, key := range []string{core.MetaTitle, core.MetaSummary, core.MetaDescription} {
		if v := entry.Metadata.String(key); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) < 2 {
		if v := entry.Metadata.String(core.MetaContent); v != "" {
			if len(v) > 4000 {
				v = v[:4000]
			}
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "\n")
}
