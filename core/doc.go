// Package core defines the shared domain model of stashpipe: entries, queue
// messages, agent contracts and the collaborator interfaces (queue, entry
// store, content archive) that the processor orchestrates. It contains no
// I/O of its own; concrete implementations live in the queue, store, archive
// and capability packages.
package core
