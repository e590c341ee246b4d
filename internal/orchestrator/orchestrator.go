package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/husaynirfan1/lukisan-api/internal/config"
	"github.com/husaynirfan1/lukisan-api/internal/domain"
	"github.com/husaynirfan1/lukisan-api/internal/events"
	"github.com/husaynirfan1/lukisan-api/internal/generation"
	"github.com/husaynirfan1/lukisan-api/internal/store"
)

// Common errors.
var (
	ErrNilTaskStore = errors.New("task store cannot be nil")
	ErrNilClient    = errors.New("generation client cannot be nil")
	ErrNilArchiver  = errors.New("archiver cannot be nil")
	ErrNilNotifier  = errors.New("notifier cannot be nil")
	ErrNilLogger    = errors.New("logger cannot be nil")
)

// Notifier combines the producer and consumer sides of the event
// fan-out the orchestrator needs.
type Notifier interface {
	events.Publisher
	Subscribe(taskID uuid.UUID, fn func(events.TaskEvent)) (unsubscribe func())
}

// SubmitInput carries a caller's generation request.
type SubmitInput struct {
	OwnerID        uuid.UUID
	Kind           domain.TaskKind
	Prompt         string
	ImageURL       string
	AspectRatio    string
	NegativePrompt string
}

// Orchestrator is the task lifecycle coordinator. It is an explicitly
// constructed instance owning its registry and clients; there are no
// process-wide singletons.
type Orchestrator struct {
	tasks     store.TaskStore
	client    generation.Client
	archiver  ArtifactArchiver
	notifier  Notifier
	registry  *registry
	archiving *archivalGuard
	cfg       config.WorkflowConfig
	logger    *slog.Logger

	// baseCtx parents every workflow context so shutdown can cancel
	// all of them at once.
	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a new Orchestrator.
func New(
	tasks store.TaskStore,
	client generation.Client,
	archiver ArtifactArchiver,
	notifier Notifier,
	cfg config.WorkflowConfig,
	logger *slog.Logger,
) (*Orchestrator, error) {
	if tasks == nil {
		return nil, ErrNilTaskStore
	}
	if client == nil {
		return nil, ErrNilClient
	}
	if archiver == nil {
		return nil, ErrNilArchiver
	}
	if notifier == nil {
		return nil, ErrNilNotifier
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		tasks:      tasks,
		client:     client,
		archiver:   archiver,
		notifier:   notifier,
		registry:   newRegistry(logger),
		archiving:  newArchivalGuard(),
		cfg:        cfg,
		logger:     logger.With("component", "orchestrator"),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}, nil
}

// Submit validates the request, creates the durable pending record and
// starts the submit-and-poll workflow. It returns as soon as the
// record exists; progress is observed through GetTask and Subscribe.
func (o *Orchestrator) Submit(ctx context.Context, input SubmitInput) (*domain.Task, error) {
	if input.Kind == domain.TaskKindImageToVideo && input.ImageURL == "" {
		return nil, fmt.Errorf("%w: image-driven generation requires an image URL",
			domain.ErrValidation)
	}

	task, err := domain.NewTask(input.OwnerID, input.Kind, input.Prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	task.ImageURL = input.ImageURL
	task.AspectRatio = input.AspectRatio
	task.NegativePrompt = input.NegativePrompt

	if err := o.tasks.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task record: %w", err)
	}

	o.logger.Info("task submitted",
		"task_id", task.ID,
		"owner_id", task.OwnerID,
		"kind", task.Kind)

	o.launchWorkflow(task)
	return task, nil
}

// Cancel stops the active workflow for the task, if any. The task is
// left at whatever status it last reached; it is not force-failed.
func (o *Orchestrator) Cancel(ctx context.Context, taskID uuid.UUID) error {
	if _, err := o.tasks.GetTask(ctx, taskID); err != nil {
		return err
	}

	if stopped := o.registry.stop(taskID); stopped {
		o.logger.Info("task workflow cancelled", "task_id", taskID)
	} else {
		o.logger.Debug("cancel requested for task with no active workflow",
			"task_id", taskID)
	}
	return nil
}

// Retry restarts the whole workflow for a failed task: progress and
// error detail are reset, the attempt count advances and a fresh
// remote submission is made. It never resumes a half-finished poller.
func (o *Orchestrator) Retry(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	task, err := o.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.Status != domain.TaskStatusFailed {
		return nil, fmt.Errorf("%w: only failed tasks can be retried (status is %s)",
			domain.ErrValidation, task.Status)
	}

	if o.registry.isActive(taskID) {
		return nil, fmt.Errorf("%w: task workflow is still active", domain.ErrValidation)
	}

	updated, err := o.tasks.UpdateTask(ctx, taskID, store.TaskPatch{
		RemoteTaskID: store.StringPtr(""),
		Status:       store.StatusPtr(domain.TaskStatusPending),
		Progress:     store.IntPtr(0),
		ResultURL:    store.StringPtr(""),
		ErrorMessage: store.StringPtr(""),
		AttemptCount: store.IntPtr(task.AttemptCount + 1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reset task for retry: %w", err)
	}

	o.notifier.Publish(ctx, events.EventFromTask(updated))

	o.logger.Info("task retry requested",
		"task_id", taskID,
		"attempt_count", updated.AttemptCount)

	o.launchWorkflow(updated)
	return updated, nil
}

// Recheck performs one immediate fetch-normalize-apply cycle in the
// caller's context. It shares the poller's apply path, so racing it
// against the background poller cannot produce duplicate writes or
// notification storms. Terminal tasks are returned unchanged.
func (o *Orchestrator) Recheck(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	task, err := o.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.IsTerminal() {
		return task, nil
	}

	if task.RemoteTaskID == "" {
		return nil, fmt.Errorf("%w: task has not been submitted to the provider yet",
			domain.ErrValidation)
	}

	updated, _, err := o.newPoller().checkOnce(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("recheck failed: %w", err)
	}
	return updated, nil
}

// GetTask retrieves a task by id.
func (o *Orchestrator) GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	return o.tasks.GetTask(ctx, taskID)
}

// ListTasks retrieves all tasks belonging to the owner, newest first.
func (o *Orchestrator) ListTasks(ctx context.Context, ownerID uuid.UUID) ([]*domain.Task, error) {
	return o.tasks.ListTasksByOwner(ctx, ownerID)
}

// Subscribe registers fn for state-change events of the given task and
// returns an unsubscribe function.
func (o *Orchestrator) Subscribe(taskID uuid.UUID, fn func(events.TaskEvent)) func() {
	return o.notifier.Subscribe(taskID, fn)
}

// Resume restarts workflows for every unfinished task found in the
// store. Tasks already submitted to the provider go straight back to
// polling; pending tasks without a remote id are resubmitted.
func (o *Orchestrator) Resume(ctx context.Context) error {
	unfinished, err := o.tasks.ListUnfinishedTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list unfinished tasks: %w", err)
	}

	if len(unfinished) == 0 {
		return nil
	}

	o.logger.Info("resuming unfinished tasks", "count", len(unfinished))

	for _, task := range unfinished {
		o.launchWorkflow(task)
	}
	return nil
}

// Shutdown cancels every active workflow and waits for them to stop.
// Tasks are left at their last reached status and resume on next boot.
func (o *Orchestrator) Shutdown() {
	o.cancelBase()
	o.registry.stopAll()
	o.wg.Wait()
}

// launchWorkflow starts the submit-and-poll workflow for the task in
// its own goroutine, bounded by the wall-clock budget. The registry
// guarantees at most one workflow per task; a duplicate launch is a
// warned no-op.
func (o *Orchestrator) launchWorkflow(task *domain.Task) {
	wfCtx, ok := o.registry.start(o.baseCtx, task.ID)
	if !ok {
		return
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.registry.remove(task.ID)

		ctx, cancel := context.WithTimeout(wfCtx, o.cfg.WallClockBudget)
		defer cancel()

		final, err := o.runWorkflow(ctx, task)
		switch {
		case err == nil:
			o.logger.Info("workflow finished",
				"task_id", task.ID,
				"status", final.Status)

		// The returned error may bury the context error inside a store
		// or archive failure, so the workflow context is consulted too.
		case errors.Is(err, context.Canceled), ctx.Err() == context.Canceled:
			// Cancellation leaves the task at its last reached status.
			o.logger.Info("workflow cancelled", "task_id", task.ID)

		case errors.Is(err, context.DeadlineExceeded), ctx.Err() == context.DeadlineExceeded:
			o.failTask(task.ID, fmt.Errorf("%w: no result after %s",
				domain.ErrTimeout, o.cfg.WallClockBudget))

		default:
			o.failTask(task.ID, err)
		}
	}()
}

// runWorkflow submits the task to the provider (if it has no remote id
// yet) and then polls it to a terminal outcome.
func (o *Orchestrator) runWorkflow(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task.RemoteTaskID == "" {
		if err := o.submitRemote(ctx, task); err != nil {
			return nil, err
		}
	}

	return o.newPoller().run(ctx, task.ID)
}

// submitRemote creates the remote job, retrying transient failures
// with a fixed delay up to the configured cap. Terminal failures are
// returned immediately, classified into the domain taxonomy.
func (o *Orchestrator) submitRemote(ctx context.Context, task *domain.Task) error {
	log := o.logger.With("task_id", task.ID)

	req := generation.SubmitRequest{
		Kind:           task.Kind,
		Prompt:         task.Prompt,
		ImageURL:       task.ImageURL,
		AspectRatio:    task.AspectRatio,
		NegativePrompt: task.NegativePrompt,
	}

	var lastErr error
	maxAttempts := o.cfg.MaxRetries + 1

	// The durable attempt count must reflect failed submissions too,
	// not just the one that eventually succeeds.
	persistAttempts := func(attempt int) {
		if attempt <= 1 {
			return
		}
		if _, err := o.tasks.UpdateTask(ctx, task.ID, store.TaskPatch{
			AttemptCount: store.IntPtr(task.AttemptCount + attempt - 1),
		}); err != nil {
			log.Warn("failed to record attempt count", "error", err)
		}
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		remoteID, err := o.client.Submit(ctx, req)
		if err == nil {
			patch := store.TaskPatch{RemoteTaskID: store.StringPtr(remoteID)}
			if attempt > 1 {
				patch.AttemptCount = store.IntPtr(task.AttemptCount + attempt - 1)
			}
			if _, err := o.tasks.UpdateTask(ctx, task.ID, patch); err != nil {
				return fmt.Errorf("failed to record remote task id: %w", err)
			}

			log.Info("remote task created",
				"remote_task_id", remoteID,
				"attempt", attempt)
			return nil
		}

		if classified := classifySubmitError(err); classified != nil {
			log.Warn("submission failed terminally",
				"attempt", attempt,
				"error", err)
			persistAttempts(attempt)
			return classified
		}

		lastErr = err
		log.Warn("submission failed, will retry",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"retry_delay", o.cfg.RetryDelay,
			"error", err)

		if attempt == maxAttempts {
			break
		}

		select {
		case <-time.After(o.cfg.RetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	persistAttempts(maxAttempts)
	return fmt.Errorf("%w: submission failed after %d attempts: %v",
		domain.ErrTransport, maxAttempts, lastErr)
}

// failTask records the classified terminal failure exactly once and
// publishes the resulting event. It runs on a fresh context because
// the workflow context is typically already dead at this point.
func (o *Orchestrator) failTask(taskID uuid.UUID, reason error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	updated, err := o.tasks.UpdateTask(ctx, taskID, store.TaskPatch{
		Status:       store.StatusPtr(domain.TaskStatusFailed),
		ErrorMessage: store.StringPtr(reason.Error()),
	})
	if err != nil {
		o.logger.Error("failed to record task failure",
			"task_id", taskID,
			"reason", reason,
			"error", err)
		return
	}

	o.notifier.Publish(ctx, events.EventFromTask(updated))

	o.logger.Info("task failed",
		"task_id", taskID,
		"reason", reason)
}

func (o *Orchestrator) newPoller() *poller {
	return &poller{
		tasks:       o.tasks,
		client:      o.client,
		archiver:    o.archiver,
		archiving:   o.archiving,
		publisher:   o.notifier,
		interval:    o.cfg.PollInterval,
		maxFailures: o.cfg.MaxPollFailures,
		logger:      o.logger,
	}
}

// classifySubmitError maps a client submission error onto the terminal
// side of the failure taxonomy, or returns nil for transient errors
// that should be retried.
func classifySubmitError(err error) error {
	switch {
	case errors.Is(err, generation.ErrProviderUnavailable):
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	case errors.Is(err, generation.ErrInvalidRequest):
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	case errors.Is(err, generation.ErrResourceExhausted):
		return fmt.Errorf("%w: %v", domain.ErrResourceExhausted, err)
	case errors.Is(err, generation.ErrNotFound):
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		// Network failures, timeouts and 5xx responses are transient.
		return nil
	}
}
