package core

import "errors"

var (
	// ErrNotFound is returned when an entry (or archived payload) does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStaleEntry is returned by stores when an update carries a version
	// older than the stored one. Callers re-read and retry the merge.
	ErrStaleEntry = errors.New("stale entry version")
	// ErrUnknownAgent is returned by the registry for unregistered names.
	// Retrying cannot succeed; the processor drops the message.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrUnknownEntryType is returned by the router for types outside the
	// closed set.
	ErrUnknownEntryType = errors.New("unknown entry type")
	// ErrQueueUnavailable wraps transport failures of the queue backend.
	ErrQueueUnavailable = errors.New("queue unavailable")
)
