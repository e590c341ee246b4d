package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/husaynirfan1/lukisan-api/internal/domain"
)

func newStoredTask(t *testing.T, s *MemoryTaskStore) *domain.Task {
	t.Helper()

	task, err := domain.NewTask(uuid.New(), domain.TaskKindTextToVideo, "a fox in the snow")
	require.NoError(t, err)
	require.NoError(t, s.CreateTask(context.Background(), task))
	return task
}

func TestMemoryTaskStore_CreateAndGet(t *testing.T) {
	t.Parallel()

	s := NewMemoryTaskStore()
	task := newStoredTask(t, s)

	got, err := s.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, domain.TaskStatusPending, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestMemoryTaskStore_GetUnknownTask(t *testing.T) {
	t.Parallel()

	s := NewMemoryTaskStore()

	_, err := s.GetTask(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestMemoryTaskStore_UpdatePreservesAbsentFields(t *testing.T) {
	t.Parallel()

	s := NewMemoryTaskStore()
	task := newStoredTask(t, s)

	_, err := s.UpdateTask(context.Background(), task.ID, TaskPatch{
		RemoteTaskID: StringPtr("remote-1"),
		Status:       StatusPtr(domain.TaskStatusProcessing),
		Progress:     IntPtr(40),
	})
	require.NoError(t, err)

	// A later patch touching only progress must not disturb the rest.
	updated, err := s.UpdateTask(context.Background(), task.ID, TaskPatch{
		Progress: IntPtr(60),
	})
	require.NoError(t, err)

	assert.Equal(t, "remote-1", updated.RemoteTaskID)
	assert.Equal(t, domain.TaskStatusProcessing, updated.Status)
	assert.Equal(t, 60, updated.Progress)
	assert.Equal(t, task.Prompt, updated.Prompt)
}

func TestMemoryTaskStore_UpdateCanClearFields(t *testing.T) {
	t.Parallel()

	s := NewMemoryTaskStore()
	task := newStoredTask(t, s)

	_, err := s.UpdateTask(context.Background(), task.ID, TaskPatch{
		Status:       StatusPtr(domain.TaskStatusFailed),
		ErrorMessage: StringPtr("provider exploded"),
	})
	require.NoError(t, err)

	updated, err := s.UpdateTask(context.Background(), task.ID, TaskPatch{
		Status:       StatusPtr(domain.TaskStatusPending),
		ErrorMessage: StringPtr(""),
	})
	require.NoError(t, err)

	assert.Empty(t, updated.ErrorMessage,
		"an explicit empty string clears the field, unlike an absent one")
}

func TestMemoryTaskStore_UpdateRejectsEmptyPatch(t *testing.T) {
	t.Parallel()

	s := NewMemoryTaskStore()
	task := newStoredTask(t, s)

	_, err := s.UpdateTask(context.Background(), task.ID, TaskPatch{})
	assert.ErrorIs(t, err, ErrEmptyPatch)
}

func TestMemoryTaskStore_UpdateUnknownTask(t *testing.T) {
	t.Parallel()

	s := NewMemoryTaskStore()

	_, err := s.UpdateTask(context.Background(), uuid.New(), TaskPatch{
		Progress: IntPtr(10),
	})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestMemoryTaskStore_UpdateAdvancesUpdatedAt(t *testing.T) {
	t.Parallel()

	s := NewMemoryTaskStore()
	task := newStoredTask(t, s)

	created, err := s.GetTask(context.Background(), task.ID)
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)

	updated, err := s.UpdateTask(context.Background(), task.ID, TaskPatch{
		Progress: IntPtr(10),
	})
	require.NoError(t, err)

	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestMemoryTaskStore_ReturnedTasksAreCopies(t *testing.T) {
	t.Parallel()

	s := NewMemoryTaskStore()
	task := newStoredTask(t, s)

	got, err := s.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	got.Status = domain.TaskStatusFailed

	again, err := s.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, again.Status,
		"mutating a returned task must not affect the stored one")
}

func TestMemoryTaskStore_ListTasksByOwner(t *testing.T) {
	t.Parallel()

	s := NewMemoryTaskStore()
	owner := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		task, err := domain.NewTask(owner, domain.TaskKindTextToVideo, "prompt")
		require.NoError(t, err)
		require.NoError(t, s.CreateTask(context.Background(), task))
		ids = append(ids, task.ID)
		time.Sleep(2 * time.Millisecond)
	}

	// A task from someone else must not appear.
	other := newStoredTask(t, s)

	tasks, err := s.ListTasksByOwner(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	assert.Equal(t, ids[2], tasks[0].ID, "newest first")
	assert.Equal(t, ids[0], tasks[2].ID)
	for _, task := range tasks {
		assert.NotEqual(t, other.ID, task.ID)
	}
}

func TestMemoryTaskStore_ListUnfinishedTasks(t *testing.T) {
	t.Parallel()

	s := NewMemoryTaskStore()

	pending := newStoredTask(t, s)
	time.Sleep(2 * time.Millisecond)
	processing := newStoredTask(t, s)
	_, err := s.UpdateTask(context.Background(), processing.ID, TaskPatch{
		Status: StatusPtr(domain.TaskStatusProcessing),
	})
	require.NoError(t, err)

	completed := newStoredTask(t, s)
	_, err = s.UpdateTask(context.Background(), completed.ID, TaskPatch{
		Status:    StatusPtr(domain.TaskStatusCompleted),
		ResultURL: StringPtr("https://cdn/x.mp4"),
	})
	require.NoError(t, err)

	failed := newStoredTask(t, s)
	_, err = s.UpdateTask(context.Background(), failed.ID, TaskPatch{
		Status:       StatusPtr(domain.TaskStatusFailed),
		ErrorMessage: StringPtr("boom"),
	})
	require.NoError(t, err)

	unfinished, err := s.ListUnfinishedTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, unfinished, 2)

	assert.Equal(t, pending.ID, unfinished[0].ID, "oldest first")
	assert.Equal(t, processing.ID, unfinished[1].ID)
}

func TestTaskPatch_IsEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, TaskPatch{}.IsEmpty())
	assert.False(t, TaskPatch{Progress: IntPtr(0)}.IsEmpty())
	assert.False(t, TaskPatch{ErrorMessage: StringPtr("")}.IsEmpty(),
		"a present empty string is a deliberate clear, not an empty patch")
}
