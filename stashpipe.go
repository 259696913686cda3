// Package stashpipe provides a high-level façade over the processing pipeline
// (queue, entry store, agent registry & processor) for enriching saved links
// and notes with fetched content, summaries and company research. Most
// applications interact with this package by:
//  1. Creating a Pipeline via New() (optionally overriding default in-memory services)
//  2. Saving entries with SaveEntry (or submitting existing ones via Submit)
//  3. Draining the queue with RunLoop, then polling entries for state/progress
//
// The façade delegates orchestration to processor.Processor while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply the SQL
// queue and store, real capability clients and a structured logger.
package stashpipe

import (
	"context"
	"fmt"
	"time"

	"github.com/stashpipe/stashpipe/agent"
	"github.com/stashpipe/stashpipe/archive"
	"github.com/stashpipe/stashpipe/capability"
	"github.com/stashpipe/stashpipe/core"
	"github.com/stashpipe/stashpipe/logging"
	"github.com/stashpipe/stashpipe/processor"
	"github.com/stashpipe/stashpipe/queue"
	"github.com/stashpipe/stashpipe/store"
)

// Options configures the Pipeline instance.
type Options struct {
	// Queue carries step messages between agents. Defaults to the in-memory
	// queue; production deployments supply queue.NewSQL.
	Queue core.Queue
	// EntryStore persists entries. Defaults to the in-memory store.
	EntryStore core.EntryStore
	// Archive retains raw fetched payloads. Defaults to the in-memory archive.
	Archive core.ContentArchive

	// Capability clients. Each defaults to the deterministic mock client so a
	// zero-config Pipeline runs end to end without network access.
	Extractor  capability.Extractor
	Summarizer capability.Summarizer
	Researcher capability.Researcher
	// Embedder is optional; when set, article and note chains gain an
	// embedding tail step.
	Embedder capability.Embedder

	// VisibilityTimeout is the queue lease duration per step.
	VisibilityTimeout time.Duration
	// MaxAttempts bounds delivery attempts per step message.
	MaxAttempts int
	// Workers is the drain concurrency of RunLoop.
	Workers int

	// Observer, when set, receives processor events inline.
	Observer core.Observer
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Pipeline is the high-level façade aggregating the queue, store, registry
// and processor.
type Pipeline struct {
	opts      Options
	store     core.EntryStore
	processor *processor.Processor
}

// New creates a Pipeline with optional overrides. Any unset service is
// initialized with an in-memory or mock implementation.
func New(optFns ...func(o *Options)) *Pipeline {
	mock := capability.NewMockClient()
	opts := Options{
		Queue:             queue.NewInMemory(),
		EntryStore:        store.NewInMemory(),
		Archive:           archive.NewInMemory(),
		Extractor:         mock,
		Summarizer:        mock,
		Researcher:        mock,
		VisibilityTimeout: 2 * time.Minute,
		MaxAttempts:       1,
		Workers:           1,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	registry := agent.NewRegistry(agent.Deps{
		Extractor:  opts.Extractor,
		Summarizer: opts.Summarizer,
		Researcher: opts.Researcher,
		Embedder:   opts.Embedder,
		Archive:    opts.Archive,
		Logger:     opts.Logger,
		EmbedTail:  opts.Embedder != nil,
	})

	p := processor.New(opts.Queue, opts.EntryStore, registry, func(o *processor.Options) {
		o.VisibilityTimeout = opts.VisibilityTimeout
		o.MaxAttempts = opts.MaxAttempts
		o.Workers = opts.Workers
		o.Observer = opts.Observer
		o.Logger = opts.Logger
	})

	return &Pipeline{opts: opts, store: opts.EntryStore, processor: p}
}

// SaveEntry creates a new entry and enqueues its first processing step.
// Option functions adjust the entry before it is stored, e.g. to seed note
// content. Returns the stored entry; its state and progress advance as
// RunLoop drains the queue.
func (p *Pipeline) SaveEntry(ctx context.Context, entryType core.EntryType, url, userID string, optFns ...func(e *core.Entry)) (*core.Entry, error) {
	entry := core.NewEntry(entryType, url, userID)
	for _, fn := range optFns {
		fn(entry)
	}
	if err := p.store.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("save entry: %w", err)
	}
	if _, err := p.processor.Submit(ctx, entry.ID); err != nil {
		return nil, err
	}
	return entry, nil
}

// SubmitEntry enqueues processing for an existing entry. Submitting a
// completed or failed entry starts a fresh run from the router.
func (p *Pipeline) SubmitEntry(ctx context.Context, entryID string) (string, error) {
	return p.processor.Submit(ctx, entryID)
}

// RunLoop drains the queue until it reports empty or ctx is cancelled.
func (p *Pipeline) RunLoop(ctx context.Context) error {
	return p.processor.RunLoop(ctx)
}

// Entry returns the current stored entry.
func (p *Pipeline) Entry(ctx context.Context, entryID string) (*core.Entry, error) {
	return p.store.Get(ctx, entryID)
}

// ListQueueItems returns active plus historical queue items.
func (p *Pipeline) ListQueueItems(ctx context.Context) ([]core.QueueItem, error) {
	return p.processor.ListQueueItems(ctx)
}

// ListQueueItemsForEntry filters the queue listing down to one entry.
func (p *Pipeline) ListQueueItemsForEntry(ctx context.Context, entryID string) ([]core.QueueItem, error) {
	return p.processor.ListQueueItemsForEntry(ctx, entryID)
}
