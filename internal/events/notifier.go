package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Notifier is an in-memory implementation of Publisher and Subscriber.
// Handlers for one task are invoked synchronously under the notifier's
// lock, which is what guarantees per-task delivery order matches store
// commit order: the orchestrator publishes each event immediately after
// its store update, from the single goroutine that owns that task.
type Notifier struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID]map[int]func(TaskEvent)
	nextID      int
	logger      *slog.Logger
}

// NewNotifier creates a new Notifier.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		subscribers: make(map[uuid.UUID]map[int]func(TaskEvent)),
		logger:      logger.With("component", "task_notifier"),
	}
}

// Subscribe registers fn for events of the given task and returns an
// idempotent unsubscribe function.
func (n *Notifier) Subscribe(taskID uuid.UUID, fn func(TaskEvent)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subscribers[taskID] == nil {
		n.subscribers[taskID] = make(map[int]func(TaskEvent))
	}

	id := n.nextID
	n.nextID++
	n.subscribers[taskID][id] = fn

	n.logger.Debug("registered subscriber",
		"task_id", taskID,
		"subscriber_count", len(n.subscribers[taskID]))

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subscribers[taskID], id)
			if len(n.subscribers[taskID]) == 0 {
				delete(n.subscribers, taskID)
			}
		})
	}
}

// Publish delivers the event to all current subscribers of its task.
// A missing subscriber set is not an error: persistence has already
// happened and nobody was listening.
func (n *Notifier) Publish(ctx context.Context, event TaskEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()

	handlers := n.subscribers[event.TaskID]
	if len(handlers) == 0 {
		return
	}

	n.logger.Debug("publishing task event",
		"task_id", event.TaskID,
		"status", event.Status,
		"progress", event.Progress,
		"subscriber_count", len(handlers))

	for _, fn := range handlers {
		fn(event)
	}
}
