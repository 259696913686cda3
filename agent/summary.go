package agent

import (
	"context"
	"fmt"

	"github.com/stashpipe/stashpipe/capability"
	"github.com/stashpipe/stashpipe/core"
)

// Summary produces the structured summary of fetched content. Terminal step
// of the article chain unless the embed tail is enabled. Re-run safe: an
// entry that already carries a summary and key points skips the model call.
type Summary struct {
	summarizer capability.Summarizer
	embedTail  bool
}

// NewSummary constructs the summary agent.
func NewSummary(d Deps) *Summary {
	return &Summary{summarizer: d.Summarizer, embedTail: d.EmbedTail && d.Embedder != nil}
}

// Name implements core.Agent.
func (a *Summary) Name() core.AgentName { return core.AgentSummary }

// Process implements core.Agent.
func (a *Summary) Process(ctx context.Context, req core.Request) core.Result {
	entry := req.Entry

	if entry.Metadata.Has(core.MetaSummary) && entry.Metadata.Has(core.MetaKeyPoints) {
		return a.terminal(core.Succeed(progressSummarized, nil))
	}

	content := entry.Metadata.String(core.MetaContent)
	if content == "" {
		// The processor reroutes this case to content fetch before execution;
		// reaching it means the repair was bypassed, so fail explicitly
		// rather than calling the model with nothing.
		return core.Failf("entry %s has no content to summarize", entry.ID)
	}
	if a.summarizer == nil {
		return core.Failf("no summarizer configured")
	}

	summary, err := a.summarizer.Summarize(ctx, content)
	if err != nil {
		return core.Fail(fmt.Errorf("summarization failed: %w", err))
	}

	data := core.Metadata{
		core.MetaTitle:     summary.Title,
		core.MetaSummary:   summary.Summary,
		core.MetaKeyPoints: summary.KeyPoints,
	}
	if summary.Author != "" {
		data[core.MetaAuthor] = summary.Author
	}
	if summary.PublishedDate != "" {
		data[core.MetaPublishedDate] = summary.PublishedDate
	}

	return a.terminal(core.Succeed(progressSummarized, data))
}

func (a *Summary) terminal(r core.Result) core.Result {
	if a.embedTail {
		return r.Then(core.AgentEmbed)
	}
	return r
}
