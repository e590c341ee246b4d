package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a generation task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending     TaskStatus = "pending"
	TaskStatusProcessing  TaskStatus = "processing"
	TaskStatusDownloading TaskStatus = "downloading"
	TaskStatusStoring     TaskStatus = "storing"
	TaskStatusCompleted   TaskStatus = "completed"
	TaskStatusFailed      TaskStatus = "failed"
)

// TaskKind describes the generation mode of a task
type TaskKind string

// Possible task kind values
const (
	TaskKindTextToVideo  TaskKind = "text_to_video"
	TaskKindImageToVideo TaskKind = "image_to_video"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID      = errors.New("task ID cannot be empty")
	ErrEmptyTaskOwnerID = errors.New("task owner ID cannot be empty")
	ErrEmptyTaskPrompt  = errors.New("task prompt cannot be empty")
	ErrInvalidTaskKind  = errors.New("invalid task kind")
	ErrInvalidStatus    = errors.New("invalid task status")
	ErrInvalidProgress  = errors.New("task progress must be between 0 and 100")
)

// Task represents one generation request's full lifecycle record.
// It is created by the orchestrator's submit operation and mutated
// exclusively through the task store's partial updates; the store row
// is the single source of truth.
type Task struct {
	ID           uuid.UUID  `json:"id"`
	RemoteTaskID string     `json:"remote_task_id"`
	OwnerID      uuid.UUID  `json:"owner_id"`
	Kind         TaskKind   `json:"kind"`
	Prompt       string     `json:"prompt"`
	ImageURL     string     `json:"image_url,omitempty"`
	AspectRatio  string     `json:"aspect_ratio,omitempty"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
	Status       TaskStatus `json:"status"`
	Progress     int        `json:"progress"`
	ResultURL    string     `json:"result_url,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	AttemptCount int        `json:"attempt_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewTask creates a new Task with the given owner, kind and prompt.
// It generates a new UUID for the task ID, sets the status to pending,
// and sets the creation/update timestamps.
// Returns an error if validation fails.
func NewTask(ownerID uuid.UUID, kind TaskKind, prompt string) (*Task, error) {
	task := &Task{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		Kind:         kind,
		Prompt:       prompt,
		Status:       TaskStatusPending,
		Progress:     0,
		AttemptCount: 1,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.OwnerID == uuid.Nil {
		return ErrEmptyTaskOwnerID
	}

	if t.Prompt == "" {
		return ErrEmptyTaskPrompt
	}

	if !isValidTaskKind(t.Kind) {
		return ErrInvalidTaskKind
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidStatus
	}

	if t.Progress < 0 || t.Progress > 100 {
		return ErrInvalidProgress
	}

	return nil
}

// IsTerminal reports whether the task has reached a terminal status.
// Terminal tasks are never mutated again except by an explicit retry.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// statusRank orders statuses along the lifecycle graph. Used to enforce
// that a task's status never regresses within one lifecycle.
var statusRank = map[TaskStatus]int{
	TaskStatusPending:     0,
	TaskStatusProcessing:  1,
	TaskStatusDownloading: 2,
	TaskStatusStoring:     3,
	TaskStatusCompleted:   4,
	TaskStatusFailed:      4,
}

// StatusAdvances reports whether moving from to next is a forward move
// on the lifecycle graph. Failed is reachable from any non-terminal
// status; equal rank is not an advance.
func StatusAdvances(from, next TaskStatus) bool {
	if from == TaskStatusCompleted || from == TaskStatusFailed {
		return false
	}
	if next == TaskStatusFailed {
		return true
	}
	return statusRank[next] > statusRank[from]
}

func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusDownloading,
		TaskStatusStoring, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

func isValidTaskKind(kind TaskKind) bool {
	switch kind {
	case TaskKindTextToVideo, TaskKindImageToVideo:
		return true
	default:
		return false
	}
}
