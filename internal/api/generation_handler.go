// Package api contains the HTTP handlers for the consumer-facing
// surface of the orchestrator. Handlers never mutate task records
// directly; everything goes through the generation service.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/husaynirfan1/lukisan-api/internal/api/shared"
	"github.com/husaynirfan1/lukisan-api/internal/domain"
	"github.com/husaynirfan1/lukisan-api/internal/events"
	"github.com/husaynirfan1/lukisan-api/internal/orchestrator"
)

// GenerationService defines the orchestrator operations the HTTP layer
// consumes.
type GenerationService interface {
	Submit(ctx context.Context, input orchestrator.SubmitInput) (*domain.Task, error)
	Cancel(ctx context.Context, taskID uuid.UUID) error
	Retry(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)
	Recheck(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)
	GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)
	ListTasks(ctx context.Context, ownerID uuid.UUID) ([]*domain.Task, error)
	Subscribe(taskID uuid.UUID, fn func(events.TaskEvent)) func()
}

// SubmitGenerationRequest represents the request body for creating a
// new generation task.
type SubmitGenerationRequest struct {
	Kind           string `json:"kind"            validate:"required,oneof=text_to_video image_to_video"`
	Prompt         string `json:"prompt"          validate:"required,min=1,max=2000"`
	ImageURL       string `json:"image_url"       validate:"omitempty,url"`
	AspectRatio    string `json:"aspect_ratio"    validate:"omitempty,oneof=16:9 9:16 1:1"`
	NegativePrompt string `json:"negative_prompt" validate:"omitempty,max=2000"`
}

// TaskResponse represents the response data for a generation task.
// Status carries the four consumer-visible values; stage additionally
// exposes the internal sub-state as progress detail.
type TaskResponse struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Kind         string    `json:"kind"`
	Prompt       string    `json:"prompt"`
	Status       string    `json:"status"`
	Stage        string    `json:"stage"`
	Progress     int       `json:"progress"`
	ResultURL    string    `json:"result_url,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	AttemptCount int       `json:"attempt_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GenerationHandler handles generation-task HTTP requests.
type GenerationHandler struct {
	service   GenerationService
	validator *validator.Validate
	logger    *slog.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(service GenerationService, logger *slog.Logger) *GenerationHandler {
	return &GenerationHandler{
		service:   service,
		validator: validator.New(),
		logger:    logger.With("component", "generation_handler"),
	}
}

// SubmitGeneration handles POST /api/generations requests.
func (h *GenerationHandler) SubmitGeneration(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Owner identity not found")
		return
	}

	var req SubmitGenerationRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	task, err := h.service.Submit(r.Context(), orchestrator.SubmitInput{
		OwnerID:        ownerID,
		Kind:           domain.TaskKind(req.Kind),
		Prompt:         req.Prompt,
		ImageURL:       req.ImageURL,
		AspectRatio:    req.AspectRatio,
		NegativePrompt: req.NegativePrompt,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to submit generation task")
		return
	}

	// 202: the record exists but generation happens asynchronously.
	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(task))
}

// ListGenerations handles GET /api/generations requests.
func (h *GenerationHandler) ListGenerations(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Owner identity not found")
		return
	}

	tasks, err := h.service.ListTasks(r.Context(), ownerID)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to list generation tasks")
		return
	}

	responses := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, taskToResponse(task))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// GetGeneration handles GET /api/generations/{id} requests.
func (h *GenerationHandler) GetGeneration(w http.ResponseWriter, r *http.Request) {
	task, ok := h.ownedTask(w, r)
	if !ok {
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// CancelGeneration handles POST /api/generations/{id}/cancel requests.
func (h *GenerationHandler) CancelGeneration(w http.ResponseWriter, r *http.Request) {
	task, ok := h.ownedTask(w, r)
	if !ok {
		return
	}

	if err := h.service.Cancel(r.Context(), task.ID); err != nil {
		h.respondServiceError(w, r, err, "Failed to cancel generation task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RetryGeneration handles POST /api/generations/{id}/retry requests.
func (h *GenerationHandler) RetryGeneration(w http.ResponseWriter, r *http.Request) {
	task, ok := h.ownedTask(w, r)
	if !ok {
		return
	}

	updated, err := h.service.Retry(r.Context(), task.ID)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to retry generation task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(updated))
}

// RecheckGeneration handles POST /api/generations/{id}/recheck requests.
func (h *GenerationHandler) RecheckGeneration(w http.ResponseWriter, r *http.Request) {
	task, ok := h.ownedTask(w, r)
	if !ok {
		return
	}

	updated, err := h.service.Recheck(r.Context(), task.ID)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to recheck generation task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(updated))
}

// StreamGenerationEvents handles GET /api/generations/{id}/events as a
// server-sent event stream. The client receives the current task
// snapshot immediately, then one event per committed state change,
// and the stream ends once the task reaches a terminal status.
func (h *GenerationHandler) StreamGenerationEvents(w http.ResponseWriter, r *http.Request) {
	task, ok := h.ownedTask(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		shared.RespondWithError(w, r, http.StatusInternalServerError,
			"Streaming not supported")
		return
	}

	eventCh := make(chan events.TaskEvent, 16)
	unsubscribe := h.service.Subscribe(task.ID, func(e events.TaskEvent) {
		select {
		case eventCh <- e:
		default:
			// Slow consumer: drop rather than block the orchestrator.
		}
	})
	defer unsubscribe()

	// Re-read the task now that the subscription exists: an update
	// committed after the ownership load is either in this snapshot or
	// arrives on the channel, so nothing falls through the gap.
	snapshot, err := h.service.GetTask(r.Context(), task.ID)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to load generation task")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent := func(e events.TaskEvent) bool {
		shared.WriteSSEEvent(w, "task_update", e)
		flusher.Flush()
		return e.Status == domain.TaskStatusCompleted || e.Status == domain.TaskStatusFailed
	}

	if terminal := writeEvent(events.EventFromTask(snapshot)); terminal {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-eventCh:
			if terminal := writeEvent(e); terminal {
				return
			}
		}
	}
}

// ownedTask loads the task from the path id and verifies it belongs to
// the requesting owner. Foreign tasks read as not found so ids do not
// leak across owners.
func (h *GenerationHandler) ownedTask(w http.ResponseWriter, r *http.Request) (*domain.Task, bool) {
	ownerID, ok := ownerFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Owner identity not found")
		return nil, false
	}

	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return nil, false
	}

	task, err := h.service.GetTask(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || isStoreNotFound(err) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		} else {
			h.respondServiceError(w, r, err, "Failed to load generation task")
		}
		return nil, false
	}

	if task.OwnerID != ownerID {
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		return nil, false
	}

	return task, true
}

// respondServiceError maps service errors onto HTTP status codes.
func (h *GenerationHandler) respondServiceError(
	w http.ResponseWriter,
	r *http.Request,
	err error,
	fallback string,
) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound), isStoreNotFound(err):
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
	default:
		h.logger.Error("service call failed",
			"error", err,
			"path", r.URL.Path)
		shared.RespondWithError(w, r, http.StatusInternalServerError, fallback)
	}
}

func ownerFromContext(r *http.Request) (uuid.UUID, bool) {
	ownerID, ok := r.Context().Value(shared.OwnerIDContextKey).(uuid.UUID)
	return ownerID, ok && ownerID != uuid.Nil
}

// publicStatus folds the internal archival sub-states into processing:
// consumers only ever act on pending/processing/completed/failed.
func publicStatus(status domain.TaskStatus) string {
	switch status {
	case domain.TaskStatusDownloading, domain.TaskStatusStoring:
		return string(domain.TaskStatusProcessing)
	default:
		return string(status)
	}
}

// taskToResponse converts a domain.Task to a TaskResponse.
func taskToResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:           task.ID.String(),
		OwnerID:      task.OwnerID.String(),
		Kind:         string(task.Kind),
		Prompt:       task.Prompt,
		Status:       publicStatus(task.Status),
		Stage:        string(task.Status),
		Progress:     task.Progress,
		ResultURL:    task.ResultURL,
		ErrorMessage: task.ErrorMessage,
		AttemptCount: task.AttemptCount,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
	}
}
