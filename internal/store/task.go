package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/husaynirfan1/lukisan-api/internal/domain"
)

// TaskPatch is a partial update for a task row. Only non-nil fields are
// written; absent fields preserve whatever the row already holds, so a
// status report that omits a field can never erase previously persisted
// data (a stored result URL or error message in particular).
type TaskPatch struct {
	RemoteTaskID *string
	Status       *domain.TaskStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	AttemptCount *int
}

// IsEmpty reports whether the patch carries no fields.
func (p TaskPatch) IsEmpty() bool {
	return p.RemoteTaskID == nil &&
		p.Status == nil &&
		p.Progress == nil &&
		p.ResultURL == nil &&
		p.ErrorMessage == nil &&
		p.AttemptCount == nil
}

// TaskStore defines the interface for persisting generation tasks.
type TaskStore interface {
	// CreateTask inserts a new task row.
	CreateTask(ctx context.Context, task *domain.Task) error

	// GetTask retrieves a task by its ID.
	// Returns ErrTaskNotFound if no row exists.
	GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)

	// UpdateTask applies the patch to the task row atomically and
	// returns the updated task. updated_at advances on every call.
	// Returns ErrTaskNotFound if no row exists and ErrEmptyPatch if the
	// patch carries no fields.
	UpdateTask(ctx context.Context, taskID uuid.UUID, patch TaskPatch) (*domain.Task, error)

	// ListTasksByOwner retrieves all tasks belonging to the owner,
	// newest first.
	ListTasksByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Task, error)

	// ListUnfinishedTasks retrieves all tasks in a non-terminal status,
	// oldest first. Used to resume interrupted workflows on startup.
	ListUnfinishedTasks(ctx context.Context) ([]*domain.Task, error)
}

// Convenience helpers for building patches without local variables at
// every call site.

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }

// StatusPtr returns a pointer to s.
func StatusPtr(s domain.TaskStatus) *domain.TaskStatus { return &s }
