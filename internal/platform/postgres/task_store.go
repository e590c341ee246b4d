package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/husaynirfan1/lukisan-api/internal/domain"
	"github.com/husaynirfan1/lukisan-api/internal/platform/logger"
	"github.com/husaynirfan1/lukisan-api/internal/store"
)

// taskColumns is the column list shared by every SELECT in this store.
const taskColumns = `id, remote_task_id, owner_id, kind, prompt, image_url,
	aspect_ratio, negative_prompt, status, progress, result_url,
	error_message, attempt_count, created_at, updated_at`

// TaskStore implements the store.TaskStore interface using PostgreSQL.
type TaskStore struct {
	db store.DBTX
}

// NewTaskStore creates a new TaskStore.
func NewTaskStore(db store.DBTX) *TaskStore {
	return &TaskStore{
		db: db,
	}
}

// CreateTask inserts a new task row.
func (s *TaskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	query := `
		INSERT INTO generation_tasks (id, remote_task_id, owner_id, kind, prompt,
			image_url, aspect_ratio, negative_prompt, status, progress,
			result_url, error_message, attempt_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		nullIfEmpty(task.RemoteTaskID),
		task.OwnerID,
		task.Kind,
		task.Prompt,
		nullIfEmpty(task.ImageURL),
		nullIfEmpty(task.AspectRatio),
		nullIfEmpty(task.NegativePrompt),
		task.Status,
		task.Progress,
		nullIfEmpty(task.ResultURL),
		nullIfEmpty(task.ErrorMessage),
		task.AttemptCount,
		now,
		now,
	)

	if err != nil {
		log.Error("failed to create task",
			"task_id", task.ID,
			"owner_id", task.OwnerID,
			"error", err)
		return fmt.Errorf("failed to create task: %w", err)
	}

	task.CreatedAt = now
	task.UpdatedAt = now
	return nil
}

// GetTask retrieves a task by its ID.
func (s *TaskStore) GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM generation_tasks WHERE id = $1`

	row := s.db.QueryRowContext(ctx, query, taskID)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// UpdateTask applies the patch atomically and returns the updated row.
// The UPDATE names only the patched columns, so absent fields are
// preserved by construction rather than by per-call conditionals.
func (s *TaskStore) UpdateTask(
	ctx context.Context,
	taskID uuid.UUID,
	patch store.TaskPatch,
) (*domain.Task, error) {
	log := logger.FromContext(ctx)

	if patch.IsEmpty() {
		return nil, store.ErrEmptyPatch
	}

	assignments, args := buildPatchAssignments(patch)

	// updated_at always advances; the id is the last placeholder.
	args = append(args, time.Now().UTC())
	assignments = append(assignments, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, taskID)

	query := fmt.Sprintf(
		`UPDATE generation_tasks SET %s WHERE id = $%d RETURNING `+taskColumns,
		strings.Join(assignments, ", "),
		len(args),
	)

	row := s.db.QueryRowContext(ctx, query, args...)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to update task",
			"task_id", taskID,
			"error", err)
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return task, nil
}

// ListTasksByOwner retrieves all tasks belonging to the owner, newest first.
func (s *TaskStore) ListTasksByOwner(
	ctx context.Context,
	ownerID uuid.UUID,
) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM generation_tasks
		WHERE owner_id = $1
		ORDER BY created_at DESC`

	return s.queryTasks(ctx, query, ownerID)
}

// ListUnfinishedTasks retrieves all tasks in a non-terminal status,
// oldest first.
func (s *TaskStore) ListUnfinishedTasks(ctx context.Context) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM generation_tasks
		WHERE status NOT IN ($1, $2)
		ORDER BY created_at ASC`

	return s.queryTasks(ctx, query, domain.TaskStatusCompleted, domain.TaskStatusFailed)
}

func (s *TaskStore) queryTasks(
	ctx context.Context,
	query string,
	args ...any,
) ([]*domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// buildPatchAssignments converts a patch into SET clauses and their
// arguments, numbering placeholders from $1.
func buildPatchAssignments(patch store.TaskPatch) ([]string, []any) {
	var assignments []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.RemoteTaskID != nil {
		add("remote_task_id", *patch.RemoteTaskID)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.Progress != nil {
		add("progress", *patch.Progress)
	}
	if patch.ResultURL != nil {
		add("result_url", nullIfEmpty(*patch.ResultURL))
	}
	if patch.ErrorMessage != nil {
		add("error_message", nullIfEmpty(*patch.ErrorMessage))
	}
	if patch.AttemptCount != nil {
		add("attempt_count", *patch.AttemptCount)
	}

	return assignments, args
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var remoteTaskID, imageURL, aspectRatio, negativePrompt sql.NullString
	var resultURL, errorMessage sql.NullString

	err := row.Scan(
		&task.ID,
		&remoteTaskID,
		&task.OwnerID,
		&task.Kind,
		&task.Prompt,
		&imageURL,
		&aspectRatio,
		&negativePrompt,
		&task.Status,
		&task.Progress,
		&resultURL,
		&errorMessage,
		&task.AttemptCount,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.RemoteTaskID = remoteTaskID.String
	task.ImageURL = imageURL.String
	task.AspectRatio = aspectRatio.String
	task.NegativePrompt = negativePrompt.String
	task.ResultURL = resultURL.String
	task.ErrorMessage = errorMessage.String

	return &task, nil
}

// nullIfEmpty maps the empty string to NULL so the result_url and
// error_message invariants can lean on NULL rather than "".
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
