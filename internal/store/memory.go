package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/husaynirfan1/lukisan-api/internal/domain"
)

// MemoryTaskStore is an in-memory TaskStore with the same patch
// semantics as the Postgres implementation. It backs unit tests and
// local development without a database.
type MemoryTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task

	// UpdateHook, if set, runs inside the lock before each update is
	// applied. Tests use it to inject failures or observe ordering.
	UpdateHook func(taskID uuid.UUID, patch TaskPatch) error
}

// NewMemoryTaskStore creates an empty MemoryTaskStore.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks: make(map[uuid.UUID]*domain.Task),
	}
}

// CreateTask inserts a new task row.
func (s *MemoryTaskStore) CreateTask(_ context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

// GetTask retrieves a task by its ID.
func (s *MemoryTaskStore) GetTask(_ context.Context, taskID uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}

	copied := *task
	return &copied, nil
}

// UpdateTask applies the patch atomically: only non-nil fields
// overwrite, absent fields are preserved.
func (s *MemoryTaskStore) UpdateTask(
	_ context.Context,
	taskID uuid.UUID,
	patch TaskPatch,
) (*domain.Task, error) {
	if patch.IsEmpty() {
		return nil, ErrEmptyPatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}

	if s.UpdateHook != nil {
		if err := s.UpdateHook(taskID, patch); err != nil {
			return nil, err
		}
	}

	if patch.RemoteTaskID != nil {
		task.RemoteTaskID = *patch.RemoteTaskID
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Progress != nil {
		task.Progress = *patch.Progress
	}
	if patch.ResultURL != nil {
		task.ResultURL = *patch.ResultURL
	}
	if patch.ErrorMessage != nil {
		task.ErrorMessage = *patch.ErrorMessage
	}
	if patch.AttemptCount != nil {
		task.AttemptCount = *patch.AttemptCount
	}
	task.UpdatedAt = time.Now().UTC()

	copied := *task
	return &copied, nil
}

// ListTasksByOwner retrieves all tasks belonging to the owner, newest first.
func (s *MemoryTaskStore) ListTasksByOwner(
	_ context.Context,
	ownerID uuid.UUID,
) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []*domain.Task
	for _, task := range s.tasks {
		if task.OwnerID == ownerID {
			copied := *task
			tasks = append(tasks, &copied)
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// ListUnfinishedTasks retrieves all tasks in a non-terminal status,
// oldest first.
func (s *MemoryTaskStore) ListUnfinishedTasks(_ context.Context) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []*domain.Task
	for _, task := range s.tasks {
		if !task.IsTerminal() {
			copied := *task
			tasks = append(tasks, &copied)
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}
