package agent

import (
	"context"
	"fmt"

	"github.com/stashpipe/stashpipe/capability"
	"github.com/stashpipe/stashpipe/core"
	"github.com/stashpipe/stashpipe/logging"
)

// ContentFetch extracts readable content from the entry URL via the external
// extraction capability. Safe to re-run: when content is already present it
// skips the fetch entirely and just advances the chain, so a redelivered
// message cannot corrupt earlier enrichment.
type ContentFetch struct {
	extractor capability.Extractor
	archive   core.ContentArchive
	logger    logging.Logger
}

// NewContentFetch constructs the content-fetch agent.
func NewContentFetch(d Deps) *ContentFetch {
	return &ContentFetch{extractor: d.Extractor, archive: d.Archive, logger: d.Logger}
}

// Name implements core.Agent.
func (a *ContentFetch) Name() core.AgentName { return core.AgentContentFetch }

// Process implements core.Agent.
func (a *ContentFetch) Process(ctx context.Context, req core.Request) core.Result {
	entry := req.Entry

	if entry.Metadata.Has(core.MetaContent) {
		return core.Succeed(progressFetched, nil).Then(core.AgentSummary)
	}

	if entry.URL == "" {
		return core.Failf("entry %s has no url to fetch", entry.ID)
	}
	if a.extractor == nil {
		return core.Failf("no content extractor configured")
	}

	extraction, err := a.extractor.Fetch(ctx, entry.URL)
	if err != nil {
		// Fail without partial metadata: nothing is merged and progress
		// stays where it was before this step.
		return core.Fail(fmt.Errorf("content extraction failed: %w", err))
	}

	data := core.Metadata{core.MetaContent: extraction.Content}
	if extraction.Title != "" {
		data[core.MetaTitle] = extraction.Title
	}
	if extraction.Author != "" {
		data[core.MetaAuthor] = extraction.Author
	}
	if extraction.PublishedDate != "" {
		data[core.MetaPublishedDate] = extraction.PublishedDate
	}
	if extraction.Description != "" {
		data[core.MetaDescription] = extraction.Description
	}

	if a.archive != nil && len(extraction.Raw) > 0 {
		ref, err := a.archive.Save(ctx, entry.ID, "page.html", extraction.Raw)
		if err != nil {
			// Archival is best-effort; enrichment proceeds without it.
			a.logger.Warn("raw content archival failed", "entry_id", entry.ID, "error", err)
		} else {
			data[core.MetaArchiveRef] = ref
		}
	}

	return core.Succeed(progressFetched, data).Then(core.AgentSummary)
}
