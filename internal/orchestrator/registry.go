package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// registry tracks the cancellation handle of every active workflow,
// guaranteeing at most one active workflow per task id.
type registry struct {
	mu     sync.Mutex
	active map[uuid.UUID]context.CancelFunc
	logger *slog.Logger
}

func newRegistry(logger *slog.Logger) *registry {
	return &registry{
		active: make(map[uuid.UUID]context.CancelFunc),
		logger: logger.With("component", "task_registry"),
	}
}

// start derives a cancellable context from parent and registers its
// cancel handle under taskID. If a workflow is already active for the
// task it logs a warning and reports ok=false; the caller must not
// start a duplicate.
func (r *registry) start(parent context.Context, taskID uuid.UUID) (context.Context, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[taskID]; exists {
		r.logger.Warn("workflow already active for task, not starting another",
			"task_id", taskID)
		return nil, false
	}

	ctx, cancel := context.WithCancel(parent)
	r.active[taskID] = cancel
	return ctx, true
}

// stop cancels the active workflow for taskID, if any, and removes the
// registry entry. Reports whether a workflow was active.
func (r *registry) stop(taskID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancel, exists := r.active[taskID]
	if !exists {
		return false
	}

	cancel()
	delete(r.active, taskID)
	return true
}

// remove drops the registry entry after a workflow finished on its
// own, releasing its context.
func (r *registry) remove(taskID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel, exists := r.active[taskID]; exists {
		cancel()
		delete(r.active, taskID)
	}
}

// isActive reports whether a workflow is currently registered for taskID.
func (r *registry) isActive(taskID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.active[taskID]
	return exists
}

// stopAll cancels every active workflow. Used during shutdown.
func (r *registry) stopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for taskID, cancel := range r.active {
		cancel()
		delete(r.active, taskID)
	}
}

// archivalGuard serializes archival per task: the background poller and
// any number of concurrent rechecks may all observe the same completed
// remote report, but only the caller holding the guard runs the
// download-and-store pipeline.
type archivalGuard struct {
	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

func newArchivalGuard() *archivalGuard {
	return &archivalGuard{active: make(map[uuid.UUID]struct{})}
}

// begin claims the archival slot for taskID. Reports false when another
// archival for the task is already in flight.
func (g *archivalGuard) begin(taskID uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.active[taskID]; exists {
		return false
	}
	g.active[taskID] = struct{}{}
	return true
}

// end releases the archival slot for taskID.
func (g *archivalGuard) end(taskID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.active, taskID)
}
