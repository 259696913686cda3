// Package processor implements the queue-to-completion control loop: it
// leases the next queue message, resolves it to an entry and an agent,
// executes the agent, persists the outcome and either enqueues the next step
// or finalizes the entry. All orchestration decisions (precondition repair,
// retry policy, terminal states) live here; agents only enrich.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stashpipe/stashpipe/agent"
	"github.com/stashpipe/stashpipe/core"
	"github.com/stashpipe/stashpipe/logging"
)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// VisibilityTimeout is the lease duration for popped messages. An
	// unacknowledged message reappears after this long; it doubles as the
	// retry backoff for failed steps that have attempts left.
	VisibilityTimeout time.Duration
	// MaxAttempts bounds delivery attempts per message before a failing
	// step terminates the entry's run. 1 reproduces single-shot failure.
	MaxAttempts int
	// ErrorBackoff is the pause after an internal loop error before retrying.
	ErrorBackoff time.Duration
	// Workers is the number of concurrent drain loops started by RunLoop.
	// Safe above 1: the queue lease keeps two workers off the same message,
	// and steps for one entry are never queued concurrently.
	Workers int
	// StaleRetries bounds re-read-and-retry cycles on version conflicts.
	StaleRetries int
	// Observer, when set, receives progress events inline. Must not block.
	Observer core.Observer
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Processor drives entries through their agent chains via the queue.
// Public methods are safe for concurrent use.
type Processor struct {
	queue    core.Queue
	store    core.EntryStore
	registry *agent.Registry

	visibility   time.Duration
	maxAttempts  int
	errorBackoff time.Duration
	workers      int
	staleRetries int
	observer     core.Observer
	logger       logging.Logger
}

// New constructs a Processor with optional overrides.
func New(q core.Queue, store core.EntryStore, registry *agent.Registry, optFns ...func(o *Options)) *Processor {
	opts := Options{
		VisibilityTimeout: 2 * time.Minute,
		MaxAttempts:       1,
		ErrorBackoff:      time.Second,
		Workers:           1,
		StaleRetries:      3,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Processor{
		queue:        q,
		store:        store,
		registry:     registry,
		visibility:   opts.VisibilityTimeout,
		maxAttempts:  opts.MaxAttempts,
		errorBackoff: opts.ErrorBackoff,
		workers:      opts.Workers,
		staleRetries: opts.StaleRetries,
		observer:     opts.Observer,
		logger:       opts.Logger,
	}
}

// Submit enqueues the router step for the entry and returns the message id.
// Submitting a terminal entry starts a fresh run: state resets to started,
// progress to zero, and stale failure markers are cleared. The caller is
// expected to follow up with RunLoop (or have one running).
func (p *Processor) Submit(ctx context.Context, entryID string) (string, error) {
	entry, err := p.store.Get(ctx, entryID)
	if err != nil {
		return "", fmt.Errorf("submit entry %s: %w", entryID, err)
	}

	if entry.State.Terminal() || entry.State == core.StateIdle {
		started := core.StateStarted
		zero := 0
		patch := core.EntryPatch{State: &started, Progress: &zero}
		if entry.Metadata.Has(core.MetaProcessingFailed) {
			patch.Metadata = core.Metadata{core.MetaProcessingFailed: false, core.MetaError: ""}
		}
		if _, err := p.store.Update(ctx, entryID, patch, entry.Version); err != nil {
			return "", fmt.Errorf("reset entry %s for new run: %w", entryID, err)
		}
	}

	msgID, err := p.queue.Enqueue(ctx, core.NewMessage(entryID, core.AgentRouter))
	if err != nil {
		return "", fmt.Errorf("submit entry %s: %w", entryID, err)
	}
	p.emit(core.NewEvent(core.EventSubmitted, entryID, core.AgentRouter))
	return msgID, nil
}

// RunLoop processes queue messages until the queue reports empty or the
// context is cancelled. Safe to call repeatedly and concurrently from
// multiple triggers; the queue's lease discipline keeps workers off each
// other's messages. Its contract is "drain what you can; never throw": all
// per-message failures are converted into drops, retries or entry-level
// terminal states, and only context cancellation ends the loop early.
func (p *Processor) RunLoop(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error { return p.drain(ctx) })
	}
	return g.Wait()
}

func (p *Processor) drain(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		item, err := p.queue.PopNext(ctx, p.visibility)
		if err != nil {
			p.logger.Error("queue pop failed, backing off", "error", err)
			if !p.sleep(ctx, p.errorBackoff) {
				return ctx.Err()
			}
			continue
		}
		if item == nil {
			return nil
		}

		p.handle(ctx, item)
	}
}

// handle runs the per-message state machine. It never returns an error:
// every outcome is a drop, a redelivery or a persisted entry transition.
func (p *Processor) handle(ctx context.Context, item *core.QueueItem) {
	entryID := item.Message.EntryID
	log := p.logger

	entry, err := p.store.Get(ctx, entryID)
	if errors.Is(err, core.ErrNotFound) {
		log.Warn("dropping message for missing entry", "entry_id", entryID, "message_id", item.ID)
		p.drop(ctx, item, "entry not found")
		return
	}
	if err != nil {
		// Transient store failure: leave the lease in place so the message
		// redelivers after the visibility timeout.
		log.Error("entry lookup failed, leaving message for redelivery", "entry_id", entryID, "error", err)
		return
	}

	name := item.Message.AgentName
	if !p.registry.Known(name) {
		// Configuration error; retrying cannot succeed.
		log.Error("dropping message for unknown agent", "agent", name, "entry_id", entryID)
		p.drop(ctx, item, fmt.Sprintf("unknown agent %q", name))
		p.finalizeFailure(ctx, entry, fmt.Sprintf("unknown agent %q", name))
		return
	}

	if repaired := agent.RepairPrecondition(name, entry); repaired != name {
		log.Info("precondition repair substituted agent", "requested", name, "substituted", repaired, "entry_id", entryID)
		name = repaired
	}

	ag, err := p.registry.Resolve(name)
	if err != nil {
		log.Error("dropping message, agent resolution failed", "agent", name, "error", err)
		p.drop(ctx, item, err.Error())
		p.finalizeFailure(ctx, entry, err.Error())
		return
	}

	ev := core.NewEvent(core.EventStepStarted, entryID, name)
	ev.Progress = entry.Progress
	p.emit(ev)

	result := p.execute(ctx, ag, entry, item.Attempts)

	if !result.Success {
		p.handleFailure(ctx, item, entry, name, result.Error)
		return
	}
	p.handleSuccess(ctx, item, entry, name, result)
}

// execute invokes the agent with panic recovery; a panicking agent is
// indistinguishable from one that returned a failure result.
func (p *Processor) execute(ctx context.Context, ag core.Agent, entry *core.Entry, attempt int) (result core.Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("agent panicked", "agent", ag.Name(), "entry_id", entry.ID, "panic", r)
			result = core.Failf("agent %s panicked: %v", ag.Name(), r)
		}
	}()
	return ag.Process(ctx, core.Request{
		Entry:   entry.Clone(),
		UserID:  entry.UserID,
		Attempt: attempt,
	})
}

func (p *Processor) handleSuccess(ctx context.Context, item *core.QueueItem, entry *core.Entry, name core.AgentName, result core.Result) {
	next := result.NextAgent
	state := core.StateProcessing
	progress := result.Progress
	if next == "" {
		state = core.StateCompleted
		progress = 100
	}
	if progress < entry.Progress {
		progress = entry.Progress
	}

	updated, err := p.persist(ctx, entry, state, progress, result.Data)
	if err != nil {
		// Persisting failed: do not ack, the lease expiry will redeliver and
		// the agent's idempotency makes the re-run safe.
		p.logger.Error("persisting step outcome failed, leaving message for redelivery",
			"agent", name, "entry_id", entry.ID, "error", err)
		return
	}

	if err := p.queue.Archive(ctx, item.ID); err != nil {
		p.logger.Error("archiving message failed, step may re-run", "message_id", item.ID, "error", err)
	}

	stepEv := core.NewEvent(core.EventStepCompleted, entry.ID, name)
	stepEv.Progress = updated.Progress
	p.emit(stepEv)

	if next == "" {
		doneEv := core.NewEvent(core.EventEntryCompleted, entry.ID, name)
		doneEv.Progress = 100
		p.emit(doneEv)
		return
	}

	if _, err := p.queue.Enqueue(ctx, core.NewMessage(entry.ID, next)); err != nil {
		// The current step is already acknowledged; losing the follow-up
		// strands the entry in processing, so shout about it.
		p.logger.Error("ENQUEUE OF NEXT STEP FAILED, entry stranded in processing",
			"entry_id", entry.ID, "next_agent", next, "error", err)
	}
}

func (p *Processor) handleFailure(ctx context.Context, item *core.QueueItem, entry *core.Entry, name core.AgentName, reason string) {
	if item.Attempts < p.maxAttempts {
		// Leave the message leased; the visibility timeout doubles as the
		// retry backoff and redelivery carries attempts+1.
		p.logger.Warn("step failed, will retry after lease expiry",
			"agent", name, "entry_id", entry.ID, "attempt", item.Attempts, "max_attempts", p.maxAttempts, "error", reason)
		ev := core.NewEvent(core.EventStepRetried, entry.ID, name)
		ev.Error = reason
		p.emit(ev)
		return
	}

	p.logger.Error("step failed terminally", "agent", name, "entry_id", entry.ID, "attempts", item.Attempts, "error", reason)
	p.drop(ctx, item, reason)
	p.finalizeFailure(ctx, entry, reason)

	ev := core.NewEvent(core.EventEntryFailed, entry.ID, name)
	ev.Error = reason
	p.emit(ev)
}

// persist applies the step outcome under the optimistic version check,
// re-reading and retrying on conflict.
func (p *Processor) persist(ctx context.Context, entry *core.Entry, state core.ProcessingState, progress int, data core.Metadata) (*core.Entry, error) {
	current := entry
	for attempt := 0; ; attempt++ {
		updated, err := core.UpdateProcessingState(ctx, p.store, current, state, progress, data)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, core.ErrStaleEntry) || attempt >= p.staleRetries {
			return nil, err
		}
		current, err = p.store.Get(ctx, entry.ID)
		if err != nil {
			return nil, err
		}
	}
}

func (p *Processor) finalizeFailure(ctx context.Context, entry *core.Entry, reason string) {
	_, err := p.persist(ctx, entry, core.StateFailed, entry.Progress, core.Metadata{
		core.MetaProcessingFailed: true,
		core.MetaError:            reason,
	})
	if err != nil {
		p.logger.Error("recording terminal failure failed", "entry_id", entry.ID, "error", err)
	}
}

func (p *Processor) drop(ctx context.Context, item *core.QueueItem, reason string) {
	if err := p.queue.Drop(ctx, item.ID, reason); err != nil {
		p.logger.Error("dropping message failed", "message_id", item.ID, "error", err)
		return
	}
	ev := core.NewEvent(core.EventMessageDropped, item.Message.EntryID, item.Message.AgentName)
	ev.Error = reason
	p.emit(ev)
}

// ListQueueItems returns active plus historical queue items for dashboards.
func (p *Processor) ListQueueItems(ctx context.Context) ([]core.QueueItem, error) {
	active, err := p.queue.PeekAll(ctx)
	if err != nil {
		return nil, err
	}
	history, err := p.queue.History(ctx)
	if err != nil {
		return nil, err
	}
	return append(active, history...), nil
}

// ListQueueItemsForEntry filters the queue listing down to one entry.
func (p *Processor) ListQueueItemsForEntry(ctx context.Context, entryID string) ([]core.QueueItem, error) {
	all, err := p.ListQueueItems(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.QueueItem, 0, len(all))
	for _, item := range all {
		if item.Message.EntryID == entryID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (p *Processor) emit(ev core.Event) {
	if p.observer != nil {
		p.observer(ev)
	}
}

func (p *Processor) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
