package generation

import (
	"context"

	"github.com/husaynirfan1/lukisan-api/internal/domain"
)

// SubmitRequest carries everything the provider needs to create a
// generation job.
type SubmitRequest struct {
	Kind           domain.TaskKind
	Prompt         string
	ImageURL       string
	AspectRatio    string
	NegativePrompt string
}

// RawStatus is the provider's status report, before normalization.
// Providers disagree on where the artifact URL lives (flat field vs
// nested output/data envelopes), so all the observed shapes are decoded
// here and flattened by the normalizer.
type RawStatus struct {
	Status   string `json:"status"`
	Progress *int   `json:"progress,omitempty"`

	OutputURL    string `json:"output_url,omitempty"`
	VideoURL     string `json:"video_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Error        string `json:"error,omitempty"`

	Output *RawOutput `json:"output,omitempty"`
	Data   *RawOutput `json:"data,omitempty"`
}

// RawOutput is a nested result envelope some providers wrap the
// artifact locator in.
type RawOutput struct {
	URL      string `json:"url,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Client is the transport shim to the remote generation service.
// It is pure request/response mapping: no retries, no polling, no
// state. Both calls honor context cancellation and deadlines.
type Client interface {
	// Submit creates a remote generation job and returns the identifier
	// the provider assigned to it.
	Submit(ctx context.Context, req SubmitRequest) (string, error)

	// FetchStatus retrieves the provider's current view of the job.
	FetchStatus(ctx context.Context, remoteTaskID string) (RawStatus, error)
}
