// Package store defines the persistence interfaces for the task
// lifecycle orchestrator. The durable task row is the single source of
// truth for a task; every mutation goes through an atomic partial
// update so concurrent observers of the same task cannot interleave
// into an inconsistent record.
package store
