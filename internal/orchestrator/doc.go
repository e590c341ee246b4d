// Package orchestrator owns the task lifecycle: submission with
// bounded retry, per-task status polling, completion archival and the
// durable state transitions that make the workflow idempotent and
// resumable. It exposes the only surface allowed to mutate task
// records; display code consumes the event stream and the read
// operations.
package orchestrator
