package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/husaynirfan1/lukisan-api/internal/domain"
)

// TaskEvent describes one committed state change of a task.
type TaskEvent struct {
	// TaskID identifies the task the event belongs to.
	TaskID uuid.UUID `json:"task_id"`

	// OwnerID identifies the principal that owns the task.
	OwnerID uuid.UUID `json:"owner_id"`

	// Status is the task status after the change.
	Status domain.TaskStatus `json:"status"`

	// Progress is the task progress after the change, 0-100.
	Progress int `json:"progress"`

	// ResultURL is the permanent artifact locator, set only when the
	// task is completed.
	ResultURL string `json:"result_url,omitempty"`

	// ErrorMessage is the failure detail, set only when the task failed.
	ErrorMessage string `json:"error_message,omitempty"`

	// At is the time the underlying store update was committed.
	At time.Time `json:"at"`
}

// EventFromTask builds a TaskEvent snapshot from a task record.
func EventFromTask(task *domain.Task) TaskEvent {
	return TaskEvent{
		TaskID:       task.ID,
		OwnerID:      task.OwnerID,
		Status:       task.Status,
		Progress:     task.Progress,
		ResultURL:    task.ResultURL,
		ErrorMessage: task.ErrorMessage,
		At:           task.UpdatedAt,
	}
}

// Publisher is the producer side of the notifier. The orchestrator
// publishes one event per committed store update.
type Publisher interface {
	// Publish delivers the event to all current subscribers of its task.
	Publish(ctx context.Context, event TaskEvent)
}

// Subscriber is the consumer side of the notifier.
type Subscriber interface {
	// Subscribe registers fn for events of the given task and returns
	// an unsubscribe function. The unsubscribe function is idempotent.
	Subscribe(taskID uuid.UUID, fn func(TaskEvent)) (unsubscribe func())
}
