package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stashpipe/stashpipe/capability"
	"github.com/stashpipe/stashpipe/core"
)

// CompanyResearch builds a wide structured profile for a company entry via
// the external research capability. Terminal step of the company chain
// unless the embed tail is enabled.
type CompanyResearch struct {
	researcher capability.Researcher
	embedTail  bool
}

// NewCompanyResearch constructs the research agent.
func NewCompanyResearch(d Deps) *CompanyResearch {
	return &CompanyResearch{researcher: d.Researcher, embedTail: d.EmbedTail && d.Embedder != nil}
}

// Name implements core.Agent.
func (a *CompanyResearch) Name() core.AgentName { return core.AgentCompanyResearch }

// Process implements core.Agent.
func (a *CompanyResearch) Process(ctx context.Context, req core.Request) core.Result {
	entry := req.Entry

	if entry.Metadata.Has(core.MetaCompanyProfile) {
		return a.terminal(core.Succeed(progressResearched, nil))
	}

	name := entry.Metadata.String(core.MetaTitle)
	if name == "" && entry.URL == "" {
		return core.Failf("entry %s has neither a company name nor a url", entry.ID)
	}
	if a.researcher == nil {
		return core.Failf("no researcher configured")
	}

	profile, err := a.researcher.Research(ctx, name, entry.URL)
	if err != nil {
		return core.Fail(fmt.Errorf("company research failed: %w", err))
	}

	doc, err := profileDocument(profile)
	if err != nil {
		return core.Fail(err)
	}
	data := core.Metadata{
		core.MetaCompanyProfile: doc,
		core.MetaTitle:          profile.Name,
		core.MetaDescription:    profile.Description,
	}

	return a.terminal(core.Succeed(progressResearched, data))
}

func (a *CompanyResearch) terminal(r core.Result) core.Result {
	if a.embedTail {
		return r.Then(core.AgentEmbed)
	}
	return r
}

// profileDocument converts the typed profile into a plain document so the
// metadata stays JSON-shaped regardless of the store backend.
func profileDocument(p *capability.CompanyProfile) (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode company profile: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode company profile: %w", err)
	}
	return doc, nil
}
