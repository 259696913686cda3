package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashpipe/stashpipe/agent"
	"github.com/stashpipe/stashpipe/capability"
	"github.com/stashpipe/stashpipe/core"
	"github.com/stashpipe/stashpipe/internal/testutil"
	"github.com/stashpipe/stashpipe/queue"
	"github.com/stashpipe/stashpipe/store"
)

type fixture struct {
	queue     *queue.InMemory
	store     *store.InMemory
	mock      *capability.MockClient
	recorder  *testutil.EventRecorder
	processor *Processor
}

func newFixture(t *testing.T, optFns ...func(o *Options)) *fixture {
	t.Helper()
	f := &fixture{
		queue:    queue.NewInMemory(),
		store:    store.NewInMemory(),
		mock:     capability.NewMockClient(),
		recorder: testutil.NewEventRecorder(),
	}
	registry := agent.NewRegistry(agent.Deps{
		Extractor:  f.mock,
		Summarizer: f.mock,
		Researcher: f.mock,
	})
	all := append([]func(o *Options){func(o *Options) {
		o.Observer = f.recorder.Observe
		o.VisibilityTimeout = 50 * time.Millisecond
	}}, optFns...)
	f.processor = New(f.queue, f.store, registry, all...)
	return f
}

func (f *fixture) saveAndRun(t *testing.T, entryType core.EntryType, url string) *core.Entry {
	t.Helper()
	ctx := context.Background()
	entry := core.NewEntry(entryType, url, "user-1")
	require.NoError(t, f.store.Create(ctx, entry))
	_, err := f.processor.Submit(ctx, entry.ID)
	require.NoError(t, err)
	require.NoError(t, f.processor.RunLoop(ctx))
	final, err := f.store.Get(ctx, entry.ID)
	require.NoError(t, err)
	return final
}

func TestProcessor_ArticleChain_EndToEnd(t *testing.T) {
	f := newFixture(t)

	final := f.saveAndRun(t, core.EntryTypeArticle, "https://example.com/post")

	assert.Equal(t, core.StateCompleted, final.State)
	assert.Equal(t, 100, final.Progress)
	assert.True(t, final.Metadata.Has(core.MetaContent))
	assert.True(t, final.Metadata.Has(core.MetaSummary))
	assert.True(t, final.Metadata.Has(core.MetaKeyPoints))
	assert.False(t, final.Metadata.Has(core.MetaProcessingFailed))

	// Each step ran exactly once.
	assert.Equal(t, 1, f.mock.CallCount("Fetch"))
	assert.Equal(t, 1, f.mock.CallCount("Summarize"))

	// Chain order: router, content fetch, summary.
	agents := make([]core.AgentName, 0, 3)
	for _, ev := range f.recorder.Events() {
		if ev.Kind == core.EventStepCompleted {
			agents = append(agents, ev.Agent)
		}
	}
	assert.Equal(t, []core.AgentName{core.AgentRouter, core.AgentContentFetch, core.AgentSummary}, agents)
	assert.Equal(t, 1, f.recorder.Count(core.EventEntryCompleted))

	// Queue fully drained into history.
	active, err := f.queue.PeekAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
	history, err := f.queue.History(context.Background())
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestProcessor_ProgressNeverDecreases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry := core.NewEntry(core.EntryTypeArticle, "https://example.com", "user-1")
	require.NoError(t, f.store.Create(ctx, entry))
	_, err := f.processor.Submit(ctx, entry.ID)
	require.NoError(t, err)

	// Track progress after every step by draining one message at a time.
	last := 0
	for {
		item, err := f.queue.PopNext(ctx, time.Minute)
		require.NoError(t, err)
		if item == nil {
			break
		}
		f.processor.handle(ctx, item)
		e, err := f.store.Get(ctx, entry.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, e.Progress, last)
		last = e.Progress
	}
	assert.Equal(t, 100, last)
}

func TestProcessor_CompanyChain_EndToEnd(t *testing.T) {
	f := newFixture(t)

	final := f.saveAndRun(t, core.EntryTypeCompany, "https://acme.dev")

	assert.Equal(t, core.StateCompleted, final.State)
	assert.Equal(t, 100, final.Progress)
	assert.True(t, final.Metadata.Has(core.MetaCompanyProfile))
}

func TestProcessor_NoteChain_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry := core.NewEntry(core.EntryTypeNote, "", "user-1")
	entry.Metadata[core.MetaContent] = "buy more coffee beans before monday standup"
	require.NoError(t, f.store.Create(ctx, entry))
	_, err := f.processor.Submit(ctx, entry.ID)
	require.NoError(t, err)
	require.NoError(t, f.processor.RunLoop(ctx))

	final, err := f.store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateCompleted, final.State)
	assert.Equal(t, 100, final.Progress)
	assert.True(t, final.Metadata.Has(core.MetaTitle))
}

func TestProcessor_TerminalFailure_MarksEntryFailed(t *testing.T) {
	f := newFixture(t)
	f.mock.FailSummarize = errors.New("model unavailable")

	final := f.saveAndRun(t, core.EntryTypeArticle, "https://example.com")

	assert.Equal(t, core.StateFailed, final.State)
	assert.Equal(t, true, final.Metadata[core.MetaProcessingFailed])
	assert.Contains(t, final.Metadata.String(core.MetaError), "model unavailable")
	// Earlier enrichment survives the failed step.
	assert.True(t, final.Metadata.Has(core.MetaContent))

	assert.Equal(t, 1, f.recorder.Count(core.EventEntryFailed))
	assert.Equal(t, 1, f.recorder.Count(core.EventMessageDropped))
}

func TestProcessor_BoundedRetry_SucceedsOnSecondAttempt(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.MaxAttempts = 2
		o.VisibilityTimeout = 20 * time.Millisecond
	})
	flaky := &flakySummarizer{inner: f.mock, failures: 1}
	registry := agent.NewRegistry(agent.Deps{
		Extractor:  f.mock,
		Summarizer: flaky,
		Researcher: f.mock,
	})
	f.processor = New(f.queue, f.store, registry, func(o *Options) {
		o.Observer = f.recorder.Observe
		o.MaxAttempts = 2
		o.VisibilityTimeout = 20 * time.Millisecond
	})

	ctx := context.Background()
	entry := core.NewEntry(core.EntryTypeArticle, "https://example.com", "user-1")
	require.NoError(t, f.store.Create(ctx, entry))
	_, err := f.processor.Submit(ctx, entry.ID)
	require.NoError(t, err)

	// First drain: router and fetch succeed, summary fails and stays leased.
	require.NoError(t, f.processor.RunLoop(ctx))
	assert.Equal(t, 1, f.recorder.Count(core.EventStepRetried))

	mid, err := f.store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.False(t, mid.State.Terminal())

	// After the lease expires the message redelivers and succeeds.
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, f.processor.RunLoop(ctx))

	final, err := f.store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateCompleted, final.State)
	assert.Equal(t, 2, flaky.calls)
}

func TestProcessor_MissingEntry_DropsMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.queue.Enqueue(ctx, core.NewMessage("ghost", core.AgentRouter))
	require.NoError(t, err)

	require.NoError(t, f.processor.RunLoop(ctx))

	assert.Equal(t, 1, f.recorder.Count(core.EventMessageDropped))
	history, err := f.queue.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, core.ItemFailed, history[0].Message.Status)
}

func TestProcessor_UnknownAgent_DropsAndFailsEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry := core.NewEntry(core.EntryTypeArticle, "https://example.com", "user-1")
	require.NoError(t, f.store.Create(ctx, entry))

	_, err := f.queue.Enqueue(ctx, core.NewMessage(entry.ID, core.AgentName("mystery-agent")))
	require.NoError(t, err)

	require.NoError(t, f.processor.RunLoop(ctx))

	final, err := f.store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateFailed, final.State)
	assert.Equal(t, 1, f.recorder.Count(core.EventMessageDropped))
}

func TestProcessor_PreconditionRepair_SummaryWithoutContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry := core.NewEntry(core.EntryTypeArticle, "https://example.com", "user-1")
	require.NoError(t, f.store.Create(ctx, entry))

	// Summary requested out of order; the repair reroutes to content fetch
	// and the chain continues to completion from there.
	_, err := f.queue.Enqueue(ctx, core.NewMessage(entry.ID, core.AgentSummary))
	require.NoError(t, err)
	require.NoError(t, f.processor.RunLoop(ctx))

	final, err := f.store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateCompleted, final.State)
	assert.Equal(t, 1, f.mock.CallCount("Fetch"))
	assert.Equal(t, 1, f.mock.CallCount("Summarize"))
}

func TestProcessor_PanickingAgent_BecomesFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry := core.NewEntry(core.EntryTypeArticle, "https://example.com", "user-1")
	require.NoError(t, f.store.Create(ctx, entry))

	result := f.processor.execute(ctx, panicAgent{}, entry, 1)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "panicked")
}

func TestProcessor_Submit_ResubmitResetsTerminalEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	final := f.saveAndRun(t, core.EntryTypeArticle, "https://example.com")
	require.Equal(t, core.StateCompleted, final.State)

	_, err := f.processor.Submit(ctx, final.ID)
	require.NoError(t, err)

	reset, err := f.store.Get(ctx, final.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateStarted, reset.State)
	assert.Equal(t, 0, reset.Progress)

	// The rerun skips the fetch (content cached in metadata) and completes.
	require.NoError(t, f.processor.RunLoop(ctx))
	again, err := f.store.Get(ctx, final.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateCompleted, again.State)
	assert.Equal(t, 1, f.mock.CallCount("Fetch"))
}

func TestProcessor_ListQueueItemsForEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.saveAndRun(t, core.EntryTypeArticle, "https://example.com/a")
	second := f.saveAndRun(t, core.EntryTypeCompany, "https://example.com/b")

	items, err := f.processor.ListQueueItemsForEntry(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	items, err = f.processor.ListQueueItemsForEntry(ctx, second.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestProcessor_RunLoop_ContextCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.processor.RunLoop(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

// flakySummarizer fails the first N Summarize calls, then delegates.
type flakySummarizer struct {
	mu       sync.Mutex
	inner    capability.Summarizer
	failures int
	calls    int
}

func (s *flakySummarizer) Summarize(ctx context.Context, content string) (*capability.Summary, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()
	if fail {
		return nil, errors.New("transient failure")
	}
	return s.inner.Summarize(ctx, content)
}

func (s *flakySummarizer) Title(ctx context.Context, text string) (string, error) {
	return s.inner.Title(ctx, text)
}

type panicAgent struct{}

func (panicAgent) Name() core.AgentName { return core.AgentName("panic-agent") }

func (panicAgent) Process(context.Context, core.Request) core.Result {
	panic("boom")
}
