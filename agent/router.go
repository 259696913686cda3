package agent

import (
	"context"
	"fmt"

	"github.com/stashpipe/stashpipe/core"
	"github.com/stashpipe/stashpipe/logging"
)

// Progress targets after each step. Finalization always lands on 100; these
// only need to be non-decreasing along every chain.
const (
	progressRouted     = 10
	progressFetched    = 50
	progressSummarized = 90
	progressResearched = 90
	progressEmbedded   = 95
)

// Router is the chain head for every entry. It inspects the entry type and
// hands off to the head of that type's chain; for notes it generates a title
// and terminates, since notes need no further enrichment.
type Router struct {
	summarizer interface {
		Title(ctx context.Context, text string) (string, error)
	}
	embedTail bool
	logger    logging.Logger
}

// NewRouter constructs the router agent.
func NewRouter(d Deps) *Router {
	return &Router{summarizer: d.Summarizer, embedTail: d.EmbedTail && d.Embedder != nil, logger: d.Logger}
}

// Name implements core.Agent.
func (a *Router) Name() core.AgentName { return core.AgentRouter }

// Process implements core.Agent.
func (a *Router) Process(ctx context.Context, req core.Request) core.Result {
	entry := req.Entry
	switch entry.Type {
	case core.EntryTypeArticle:
		// Redelivery or reprocess may find content already fetched; skip
		// straight to summarization then.
		if entry.Metadata.Has(core.MetaContent) {
			return core.Succeed(progressRouted, nil).Then(core.AgentSummary)
		}
		return core.Succeed(progressRouted, nil).Then(core.AgentContentFetch)

	case core.EntryTypeCompany:
		return core.Succeed(progressRouted, nil).Then(core.AgentCompanyResearch)

	case core.EntryTypeNote:
		return a.processNote(ctx, entry)

	default:
		return core.Fail(fmt.Errorf("%w: %q", core.ErrUnknownEntryType, entry.Type))
	}
}

func (a *Router) processNote(ctx context.Context, entry *core.Entry) core.Result {
	result := core.Succeed(progressRouted, nil)
	if a.embedTail {
		result = result.Then(core.AgentEmbed)
	}
	if entry.Metadata.Has(core.MetaTitle) || a.summarizer == nil {
		return result
	}
	text := entry.Metadata.String(core.MetaContent)
	if text == "" {
		return result
	}
	title, err := a.summarizer.Title(ctx, text)
	if err != nil {
		a.logger.Warn("note title generation failed", "entry_id", entry.ID, "error", err)
		return result
	}
	result.Data = core.Metadata{core.MetaTitle: title}
	return result
}
