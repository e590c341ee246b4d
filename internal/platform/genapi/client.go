// Package genapi implements the generation.Client contract against the
// hosted generation API: a create-task endpoint plus a status endpoint
// polled by the orchestrator. It is a pure transport shim; retries,
// polling and status interpretation live elsewhere.
package genapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/husaynirfan1/lukisan-api/internal/config"
	"github.com/husaynirfan1/lukisan-api/internal/domain"
	"github.com/husaynirfan1/lukisan-api/internal/generation"
)

// placeholderKeys are values people leave in config templates. Treated
// the same as a missing credential so the failure is immediate and
// user-actionable instead of a confusing 401 at submit time.
var placeholderKeys = map[string]bool{
	"":                true,
	"changeme":        true,
	"your-api-key":    true,
	"your_api_key":    true,
	"REPLACE_ME":      true,
	"xxxxxxxxxxxxxxx": true,
}

// Common errors.
var ErrNilLogger = errors.New("logger cannot be nil")

// Client talks HTTP to the generation provider.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// createTaskRequest is the provider's create-task payload.
type createTaskRequest struct {
	Model          string `json:"model"`
	Mode           string `json:"mode"`
	Prompt         string `json:"prompt"`
	Image          string `json:"image,omitempty"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

// createTaskResponse is the provider's create-task reply. Some
// deployments wrap the id in a data envelope.
type createTaskResponse struct {
	TaskID string `json:"task_id"`
	ID     string `json:"id"`
	Data   *struct {
		TaskID string `json:"task_id"`
		ID     string `json:"id"`
	} `json:"data,omitempty"`
}

// NewClient creates a new Client from the provider configuration.
// A missing or placeholder API key is rejected here so misconfiguration
// fails at startup rather than on the first submission.
func NewClient(cfg config.ProviderConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}

	if placeholderKeys[strings.TrimSpace(cfg.APIKey)] {
		return nil, fmt.Errorf("%w: missing or placeholder provider API key",
			generation.ErrProviderUnavailable)
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: provider base URL cannot be empty",
			generation.ErrProviderUnavailable)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger.With("component", "genapi_client"),
	}, nil
}

// Submit creates a remote generation job and returns the provider's
// task identifier.
func (c *Client) Submit(ctx context.Context, req generation.SubmitRequest) (string, error) {
	payload := createTaskRequest{
		Model:          c.model,
		Mode:           modeFor(req.Kind),
		Prompt:         req.Prompt,
		Image:          req.ImageURL,
		AspectRatio:    req.AspectRatio,
		NegativePrompt: req.NegativePrompt,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode request: %v", generation.ErrInvalidRequest, err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/v1/tasks", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", generation.ErrInvalidRequest, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: submit request failed: %v", generation.ErrProvider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.checkStatus(resp); err != nil {
		return "", err
	}

	var decoded createTaskResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: failed to decode submit response: %v", generation.ErrProvider, err)
	}

	remoteID := decoded.TaskID
	if remoteID == "" {
		remoteID = decoded.ID
	}
	if remoteID == "" && decoded.Data != nil {
		remoteID = decoded.Data.TaskID
		if remoteID == "" {
			remoteID = decoded.Data.ID
		}
	}
	if remoteID == "" {
		return "", fmt.Errorf("%w: submit response carried no task id", generation.ErrProvider)
	}

	c.logger.Debug("remote task created", "remote_task_id", remoteID)
	return remoteID, nil
}

// FetchStatus retrieves the provider's current view of the job. The
// raw report is returned undigested; normalization is the caller's
// concern.
func (c *Client) FetchStatus(ctx context.Context, remoteTaskID string) (generation.RawStatus, error) {
	if remoteTaskID == "" {
		return generation.RawStatus{}, fmt.Errorf(
			"%w: empty remote task id", generation.ErrInvalidRequest)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.baseURL+"/v1/tasks/"+remoteTaskID, nil)
	if err != nil {
		return generation.RawStatus{}, fmt.Errorf("%w: %v", generation.ErrInvalidRequest, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return generation.RawStatus{}, fmt.Errorf(
			"%w: status request failed: %v", generation.ErrProvider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.checkStatus(resp); err != nil {
		return generation.RawStatus{}, err
	}

	var raw generation.RawStatus
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&raw); err != nil {
		return generation.RawStatus{}, fmt.Errorf(
			"%w: failed to decode status response: %v", generation.ErrProvider, err)
	}

	return raw, nil
}

// checkStatus maps non-2xx responses onto the generation error set.
func (c *Client) checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail := readErrorDetail(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: provider rejected credential (%d): %s",
			generation.ErrProviderUnavailable, resp.StatusCode, detail)
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: (%d): %s",
			generation.ErrResourceExhausted, resp.StatusCode, detail)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: (%d): %s",
			generation.ErrNotFound, resp.StatusCode, detail)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: provider rejected payload (%d): %s",
			generation.ErrInvalidRequest, resp.StatusCode, detail)
	default:
		return fmt.Errorf("%w: unexpected status %d: %s",
			generation.ErrProvider, resp.StatusCode, detail)
	}
}

// readErrorDetail extracts a short failure description from an error
// response body, tolerating both JSON and plain text.
func readErrorDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "no detail"
	}

	var decoded struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &decoded); err == nil {
		if decoded.Error != "" {
			return decoded.Error
		}
		if decoded.Message != "" {
			return decoded.Message
		}
	}

	return strings.TrimSpace(string(raw))
}

// modeFor maps a task kind to the provider's mode parameter.
func modeFor(kind domain.TaskKind) string {
	switch kind {
	case domain.TaskKindImageToVideo:
		return "img2video"
	default:
		return "txt2video"
	}
}
