// Package agent contains the enrichment steps (router, content fetch,
// summary, company research, embedding) and the registry resolving symbolic
// step names to cached agent instances. The name set is closed: constructors
// are fixed when the registry is built, never registered at runtime.
package agent

import (
	"sync"

	"github.com/stashpipe/stashpipe/capability"
	"github.com/stashpipe/stashpipe/core"
	"github.com/stashpipe/stashpipe/logging"
)

// Deps bundles the collaborators injected into agents. Extractor, Summarizer
// and Researcher back the article and company chains; Embedder and Archive
// are optional and enable the embed tail and raw-content archival when set.
type Deps struct {
	Extractor  capability.Extractor
	Summarizer capability.Summarizer
	Researcher capability.Researcher
	Embedder   capability.Embedder
	Archive    core.ContentArchive
	Logger     logging.Logger

	// EmbedTail appends the embed step after each chain's last enrichment
	// step. Requires Embedder.
	EmbedTail bool
}

type constructor func(d Deps) core.Agent

// Registry maps agent names to lazily instantiated, cached agents. Agents
// hold no per-entry state, so one instance serves all calls.
type Registry struct {
	mu    sync.Mutex
	deps  Deps
	ctors map[core.AgentName]constructor
	cache map[core.AgentName]core.Agent
}

// NewRegistry builds the closed constructor map. The embed agent is part of
// the map only when an embedder is configured.
func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = logging.NoOpLogger{}
	}
	ctors := map[core.AgentName]constructor{
		core.AgentRouter:          func(d Deps) core.Agent { return NewRouter(d) },
		core.AgentContentFetch:    func(d Deps) core.Agent { return NewContentFetch(d) },
		core.AgentSummary:         func(d Deps) core.Agent { return NewSummary(d) },
		core.AgentCompanyResearch: func(d Deps) core.Agent { return NewCompanyResearch(d) },
	}
	if deps.Embedder != nil {
		ctors[core.AgentEmbed] = func(d Deps) core.Agent { return NewEmbed(d) }
	}
	return &Registry{
		deps:  deps,
		ctors: ctors,
		cache: make(map[core.AgentName]core.Agent),
	}
}

// Resolve returns the cached agent for name, instantiating it on first use.
// Unregistered names yield core.ErrUnknownAgent.
func (r *Registry) Resolve(name core.AgentName) (core.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.cache[name]; ok {
		return a, nil
	}
	ctor, ok := r.ctors[name]
	if !ok {
		return nil, core.ErrUnknownAgent
	}
	a := ctor(r.deps)
	r.cache[name] = a
	return a, nil
}

// Known reports whether name is part of the registered set.
func (r *Registry) Known(name core.AgentName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ctors[name]
	return ok
}

// RepairPrecondition substitutes the prerequisite agent when the requested
// one cannot run against the entry's current state. Today that is a single
// rule: summarizing an entry with no fetched content reroutes to content
// fetch. This is a defensive repair for out-of-order or redelivered
// messages, not a failure.
func RepairPrecondition(name core.AgentName, entry *core.Entry) core.AgentName {
	if name == core.AgentSummary && !entry.Metadata.Has(core.MetaContent) {
		return core.AgentContentFetch
	}
	return name
}
