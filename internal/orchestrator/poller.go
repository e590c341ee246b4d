package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/husaynirfan1/lukisan-api/internal/domain"
	"github.com/husaynirfan1/lukisan-api/internal/events"
	"github.com/husaynirfan1/lukisan-api/internal/generation"
	"github.com/husaynirfan1/lukisan-api/internal/store"
)

// ArtifactArchiver migrates a completed artifact into permanent
// storage and marks the task completed with the permanent locator.
type ArtifactArchiver interface {
	Archive(ctx context.Context, task *domain.Task, ephemeralURL string) (*domain.Task, error)
}

// poller runs the per-task status loop: an immediate first check to
// skip the cold wait, then a fixed interval. Each check fetches raw
// remote status, normalizes it and applies a minimal patch to the
// store, so "no data this tick" never erases previously persisted data.
type poller struct {
	tasks       store.TaskStore
	client      generation.Client
	archiver    ArtifactArchiver
	archiving   *archivalGuard
	publisher   events.Publisher
	interval    time.Duration
	maxFailures int
	logger      *slog.Logger
}

// run polls until the task reaches a terminal status or ctx is
// cancelled. It returns the final task on a recorded terminal outcome,
// ctx.Err() on cancellation, and a classified error when the workflow
// must be failed by the caller (transport-failure cap, vanished remote
// task, archival failure).
func (p *poller) run(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	log := p.logger.With("task_id", taskID)

	consecutiveFailures := 0

	check := func() (*domain.Task, bool, error) {
		task, done, err := p.checkOnce(ctx, taskID)
		switch {
		case err == nil:
			consecutiveFailures = 0
			return task, done, nil

		case errors.Is(err, generation.ErrNotFound):
			return nil, false, fmt.Errorf("%w: remote task vanished: %v", domain.ErrNotFound, err)

		case errors.Is(err, generation.ErrProviderUnavailable):
			return nil, false, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)

		case errors.Is(err, generation.ErrProvider):
			// Transport-class failure: tolerated up to the cap rather
			// than polling a broken provider indefinitely.
			consecutiveFailures++
			log.Warn("status check failed",
				"consecutive_failures", consecutiveFailures,
				"max_failures", p.maxFailures,
				"error", err)

			if consecutiveFailures >= p.maxFailures {
				return nil, false, fmt.Errorf(
					"%w: %d consecutive status checks failed: %v",
					domain.ErrTransport, consecutiveFailures, err)
			}
			return nil, false, nil

		default:
			// Store failures, archival failures, context errors: the
			// workflow decides, not the poll loop.
			return nil, false, err
		}
	}

	// Immediate first check; the first remote state is often already
	// several seconds old by the time the workflow gets here.
	if task, done, err := check(); err != nil {
		return nil, err
	} else if done {
		return task, nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("polling stopped", "reason", ctx.Err())
			return nil, ctx.Err()

		case <-ticker.C:
			task, done, err := check()
			if err != nil {
				return nil, err
			}
			if done {
				return task, nil
			}
		}
	}
}

// checkOnce performs one fetch-normalize-apply cycle. done reports a
// recorded terminal outcome. A provider-reported failure is written
// here and is done without error; fetch and archival errors are
// returned for the caller to count or classify.
func (p *poller) checkOnce(ctx context.Context, taskID uuid.UUID) (*domain.Task, bool, error) {
	cur, err := p.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, false, err
	}

	if cur.IsTerminal() {
		return cur, true, nil
	}

	raw, err := p.client.FetchStatus(ctx, cur.RemoteTaskID)
	if err != nil {
		return nil, false, err
	}

	// A cancellation observed after the in-flight call completed must
	// not produce any further state transition.
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}

	norm := generation.Normalize(raw)

	switch norm.Status {
	case generation.StatusCompleted:
		// Exactly one archival per lifecycle: a recheck racing the
		// background poller (or another recheck) yields the current
		// record instead of starting a second pipeline.
		if !p.archiving.begin(cur.ID) {
			return cur, false, nil
		}
		defer p.archiving.end(cur.ID)

		// Re-read under the guard: the previous holder may have
		// finished the archival already.
		cur, err = p.tasks.GetTask(ctx, taskID)
		if err != nil {
			return nil, false, err
		}
		if cur.IsTerminal() {
			return cur, true, nil
		}

		updated, err := p.archiver.Archive(ctx, cur, norm.ResultURL)
		if err != nil {
			return nil, false, err
		}
		return updated, true, nil

	case generation.StatusFailed:
		updated, changed, err := p.apply(ctx, cur, store.TaskPatch{
			Status:       store.StatusPtr(domain.TaskStatusFailed),
			ErrorMessage: store.StringPtr(norm.ErrorText),
		})
		if err != nil {
			return nil, false, err
		}
		if changed {
			p.logger.Info("remote generation failed",
				"task_id", taskID,
				"reason", norm.ErrorText)
		}
		return updated, true, nil

	default:
		updated, _, err := p.apply(ctx, cur, progressPatch(cur, norm))
		if err != nil {
			return nil, false, err
		}
		return updated, false, nil
	}
}

// apply writes the patch (if it carries anything) and publishes the
// resulting event. Empty patches are skipped entirely, which is what
// makes re-applying an identical status report idempotent: no write,
// no duplicate notification.
func (p *poller) apply(
	ctx context.Context,
	cur *domain.Task,
	patch store.TaskPatch,
) (*domain.Task, bool, error) {
	if patch.IsEmpty() {
		return cur, false, nil
	}

	updated, err := p.tasks.UpdateTask(ctx, cur.ID, patch)
	if err != nil {
		return nil, false, err
	}

	p.publisher.Publish(ctx, events.EventFromTask(updated))
	return updated, true, nil
}

// progressPatch computes the minimal patch for a non-terminal
// normalized report, enforcing monotonic status and progress. The
// pending_url sub-state is persisted as processing with progress 95;
// consumers never see a seventh status.
func progressPatch(cur *domain.Task, norm generation.Normalized) store.TaskPatch {
	var patch store.TaskPatch

	next := cur.Status
	switch norm.Status {
	case generation.StatusProcessing, generation.StatusPendingURL:
		next = domain.TaskStatusProcessing
	case generation.StatusPending:
		next = domain.TaskStatusPending
	}

	if next != cur.Status && domain.StatusAdvances(cur.Status, next) {
		patch.Status = store.StatusPtr(next)
	}

	if norm.Progress > cur.Progress {
		patch.Progress = store.IntPtr(norm.Progress)
	}

	return patch
}
