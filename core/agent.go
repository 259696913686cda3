package core

import (
	"context"
	"fmt"
)

// AgentName is the symbolic identifier of one enrichment step. The set is
// closed: names map to constructors in the registry at startup, never at
// runtime.
type AgentName string

const (
	// AgentRouter inspects the entry type and selects the head of its chain.
	AgentRouter AgentName = "entry-agent"
	// AgentContentFetch extracts readable content from the entry URL.
	AgentContentFetch AgentName = "content-fetch-agent"
	// AgentSummary produces a structured summary of fetched content.
	AgentSummary AgentName = "summary-agent"
	// AgentCompanyResearch builds a structured company profile.
	AgentCompanyResearch AgentName = "company-research-agent"
	// AgentEmbed stores a vector embedding of the enriched entry. Optional
	// chain tail, only wired when an embedder is configured.
	AgentEmbed AgentName = "embed-agent"
)

// Request carries the per-call state handed to an agent. Agents hold no
// per-entry state between calls; everything call-scoped lives here.
type Request struct {
	Entry   *Entry
	UserID  string
	Attempt int
}

// Result is the contract returned by every agent invocation. On success Data
// is merged into the entry metadata and Progress (if positive) becomes the
// entry's new progress floor; NextAgent, when set, continues the chain,
// otherwise the entry is finalized as completed.
type Result struct {
	Success   bool
	Data      Metadata
	Error     string
	NextAgent AgentName
	Progress  int
}

// Succeed builds a successful result carrying merged data and a progress target.
func Succeed(progress int, data Metadata) Result {
	return Result{Success: true, Data: data, Progress: progress}
}

// Then sets the next agent in the chain.
func (r Result) Then(next AgentName) Result {
	r.NextAgent = next
	return r
}

// Fail builds a failure result from an error.
func Fail(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

// Failf builds a failure result from a message.
func Failf(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Agent is a single enrichment step. Implementations are cached and reused
// across calls, must be safe to re-run against an entry whose metadata
// already reflects a prior (possibly duplicate) run, and should check for
// existing expected fields before repeating expensive external calls.
type Agent interface {
	Name() AgentName
	Process(ctx context.Context, req Request) Result
}
