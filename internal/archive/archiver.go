// Package archive migrates completed artifacts from the provider's
// ephemeral result URLs to permanent object storage. Provider URLs
// expire, so the download must happen promptly after completion is
// detected and the stored record must only ever point at the permanent
// copy.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"

	"github.com/husaynirfan1/lukisan-api/internal/domain"
	"github.com/husaynirfan1/lukisan-api/internal/events"
	"github.com/husaynirfan1/lukisan-api/internal/store"
)

// maxArtifactBytes caps a single downloaded artifact. Anything larger
// than this is a provider bug, not a legitimate generation result.
const maxArtifactBytes = 512 << 20

// Common errors.
var (
	ErrNilTaskStore   = errors.New("task store cannot be nil")
	ErrNilObjectStore = errors.New("object store cannot be nil")
	ErrNilPublisher   = errors.New("event publisher cannot be nil")
	ErrNilLogger      = errors.New("logger cannot be nil")
)

// Archiver downloads a completed artifact from the provider's
// temporary URL and re-uploads it to permanent object storage,
// advancing the task through downloading, storing and completed. Every
// failure carries an "archive:" prefix so callers can tell "generation
// succeeded but archival failed" apart from a remote generation
// failure.
type Archiver struct {
	tasks      store.TaskStore
	objects    ObjectStore
	publisher  events.Publisher
	httpClient *http.Client
	logger     *slog.Logger
}

// NewArchiver creates a new Archiver. If httpClient is nil the default
// client is used.
func NewArchiver(
	tasks store.TaskStore,
	objects ObjectStore,
	publisher events.Publisher,
	httpClient *http.Client,
	logger *slog.Logger,
) (*Archiver, error) {
	if tasks == nil {
		return nil, ErrNilTaskStore
	}
	if objects == nil {
		return nil, ErrNilObjectStore
	}
	if publisher == nil {
		return nil, ErrNilPublisher
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Archiver{
		tasks:      tasks,
		objects:    objects,
		publisher:  publisher,
		httpClient: httpClient,
		logger:     logger.With("component", "archiver"),
	}, nil
}

// Archive moves the artifact at ephemeralURL into permanent storage
// and marks the task completed with the permanent locator. It is
// triggered exactly once per lifecycle, on a confirmed remote
// completion with a present result URL.
func (a *Archiver) Archive(
	ctx context.Context,
	task *domain.Task,
	ephemeralURL string,
) (*domain.Task, error) {
	log := a.logger.With("task_id", task.ID)

	if ephemeralURL == "" {
		return nil, fmt.Errorf("archive: %w: empty result URL", domain.ErrValidation)
	}

	// A task resumed mid-archival may already be at downloading or
	// storing; never move it backwards.
	if domain.StatusAdvances(task.Status, domain.TaskStatusDownloading) {
		if _, err := a.transition(ctx, task, domain.TaskStatusDownloading, 96); err != nil {
			return nil, fmt.Errorf("archive: failed to mark task downloading: %w", err)
		}
	}

	log.Info("downloading artifact", "url", ephemeralURL)
	payload, contentType, err := a.download(ctx, ephemeralURL)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}

	if domain.StatusAdvances(task.Status, domain.TaskStatusStoring) {
		if _, err := a.transition(ctx, task, domain.TaskStatusStoring, 98); err != nil {
			return nil, fmt.Errorf("archive: failed to mark task storing: %w", err)
		}
	}

	key := objectKey(task, ephemeralURL, contentType)

	log.Info("uploading artifact",
		"key", key,
		"size_bytes", len(payload),
		"content_type", contentType)

	stored, err := a.objects.Upload(ctx, key, bytes.NewReader(payload), int64(len(payload)), contentType)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("archive: %w", ctx.Err())
		}
		return nil, fmt.Errorf("archive: upload failed: %w: %v", domain.ErrTransport, err)
	}

	if stored != int64(len(payload)) {
		return nil, fmt.Errorf(
			"archive: %w: stored %d bytes, downloaded %d",
			domain.ErrIntegrity, stored, len(payload))
	}

	permanentURL := a.objects.PublicURL(key)

	updated, err := a.tasks.UpdateTask(ctx, task.ID, store.TaskPatch{
		Status:       store.StatusPtr(domain.TaskStatusCompleted),
		Progress:     store.IntPtr(100),
		ResultURL:    store.StringPtr(permanentURL),
		ErrorMessage: store.StringPtr(""),
	})
	if err != nil {
		return nil, fmt.Errorf("archive: failed to mark task completed: %w", err)
	}

	a.publisher.Publish(ctx, events.EventFromTask(updated))

	log.Info("artifact archived",
		"permanent_url", permanentURL,
		"size_bytes", stored)

	return updated, nil
}

// transition applies an intermediate status+progress patch and
// publishes the resulting event.
func (a *Archiver) transition(
	ctx context.Context,
	task *domain.Task,
	status domain.TaskStatus,
	progress int,
) (*domain.Task, error) {
	updated, err := a.tasks.UpdateTask(ctx, task.ID, store.TaskPatch{
		Status:   store.StatusPtr(status),
		Progress: store.IntPtr(progress),
	})
	if err != nil {
		return nil, err
	}

	a.publisher.Publish(ctx, events.EventFromTask(updated))
	return updated, nil
}

// download fetches the artifact into memory, verifying any declared
// Content-Length against the bytes actually received.
func (a *Archiver) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid artifact URL: %v", domain.ErrValidation, err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		// A dead context is cancellation, not a provider fault; keep it
		// unwrapped so callers can match it.
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", fmt.Errorf("artifact download failed: %w: %v", domain.ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf(
			"artifact download failed: %w: unexpected status %d",
			domain.ErrTransport, resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", fmt.Errorf("artifact download failed: %w: %v", domain.ErrTransport, err)
	}

	if len(payload) == 0 {
		return nil, "", fmt.Errorf("%w: empty artifact payload", domain.ErrIntegrity)
	}

	if int64(len(payload)) > maxArtifactBytes {
		return nil, "", fmt.Errorf("%w: artifact exceeds %d bytes", domain.ErrIntegrity, int64(maxArtifactBytes))
	}

	if resp.ContentLength > 0 && resp.ContentLength != int64(len(payload)) {
		return nil, "", fmt.Errorf(
			"%w: declared %d bytes, received %d",
			domain.ErrIntegrity, resp.ContentLength, len(payload))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return payload, contentType, nil
}

// objectKey builds the deterministic, collision-resistant storage key
// for a task's artifact: {owner}/{task}{ext}. Owner plus task id makes
// re-archival an upsert of the same object.
func objectKey(task *domain.Task, ephemeralURL, contentType string) string {
	ext := ""
	if u, err := url.Parse(ephemeralURL); err == nil {
		ext = path.Ext(u.Path)
	}
	if ext == "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	if ext == "" {
		ext = ".bin"
	}

	return fmt.Sprintf("%s/%s%s", task.OwnerID, task.ID, ext)
}
