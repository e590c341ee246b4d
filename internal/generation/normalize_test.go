package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(i int) *int { return &i }

func TestNormalize_ProviderVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  RawStatus
		want Normalized
	}{
		{
			name: "success with flat output url",
			raw:  RawStatus{Status: "success", OutputURL: "https://tmp/x.mp4"},
			want: Normalized{Status: StatusCompleted, Progress: 100, ResultURL: "https://tmp/x.mp4"},
		},
		{
			name: "succeeded with video url",
			raw:  RawStatus{Status: "succeeded", VideoURL: "https://tmp/y.mp4"},
			want: Normalized{Status: StatusCompleted, Progress: 100, ResultURL: "https://tmp/y.mp4"},
		},
		{
			name: "numeric success code with nested output envelope",
			raw:  RawStatus{Status: "99", Output: &RawOutput{URL: "https://tmp/z.mp4"}},
			want: Normalized{Status: StatusCompleted, Progress: 100, ResultURL: "https://tmp/z.mp4"},
		},
		{
			name: "completed with nested data envelope",
			raw:  RawStatus{Status: "completed", Data: &RawOutput{VideoURL: "https://tmp/w.mp4"}},
			want: Normalized{Status: StatusCompleted, Progress: 100, ResultURL: "https://tmp/w.mp4"},
		},
		{
			name: "success without url is not trusted as completion",
			raw:  RawStatus{Status: "completed"},
			want: Normalized{Status: StatusPendingURL, Progress: 95},
		},
		{
			name: "success with whitespace-only url is not trusted",
			raw:  RawStatus{Status: "success", OutputURL: "   "},
			want: Normalized{Status: StatusPendingURL, Progress: 95},
		},
		{
			name: "failure with provider detail",
			raw:  RawStatus{Status: "failed", Error: "content policy violation"},
			want: Normalized{Status: StatusFailed, ErrorText: "content policy violation"},
		},
		{
			name: "failure detail inside data envelope",
			raw:  RawStatus{Status: "error", Data: &RawOutput{Error: "GPU pool exhausted"}},
			want: Normalized{Status: StatusFailed, ErrorText: "GPU pool exhausted"},
		},
		{
			name: "failure without detail gets a generic reason",
			raw:  RawStatus{Status: "cancelled"},
			want: Normalized{Status: StatusFailed, ErrorText: "generation failed without provider detail"},
		},
		{
			name: "queued token",
			raw:  RawStatus{Status: "queued"},
			want: Normalized{Status: StatusPending},
		},
		{
			name: "waiting token with progress",
			raw:  RawStatus{Status: "waiting", Progress: intPtr(5)},
			want: Normalized{Status: StatusPending, Progress: 5},
		},
		{
			name: "running with progress",
			raw:  RawStatus{Status: "running", Progress: intPtr(40)},
			want: Normalized{Status: StatusProcessing, Progress: 40},
		},
		{
			name: "unknown token defaults to processing",
			raw:  RawStatus{Status: "rendering_frames_pass_2"},
			want: Normalized{Status: StatusProcessing},
		},
		{
			name: "absent status defaults to processing",
			raw:  RawStatus{},
			want: Normalized{Status: StatusProcessing},
		},
		{
			name: "token matching is case insensitive",
			raw:  RawStatus{Status: "SUCCESS", OutputURL: "https://tmp/a.mp4"},
			want: Normalized{Status: StatusCompleted, Progress: 100, ResultURL: "https://tmp/a.mp4"},
		},
		{
			name: "progress above 100 is clamped",
			raw:  RawStatus{Status: "running", Progress: intPtr(250)},
			want: Normalized{Status: StatusProcessing, Progress: 100},
		},
		{
			name: "negative progress is clamped",
			raw:  RawStatus{Status: "running", Progress: intPtr(-3)},
			want: Normalized{Status: StatusProcessing, Progress: 0},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalize_IsDeterministic(t *testing.T) {
	t.Parallel()

	raw := RawStatus{Status: "running", Progress: intPtr(40)}
	first := Normalize(raw)
	second := Normalize(raw)

	assert.Equal(t, first, second, "normalizing the same report twice must give the same result")
}

func TestNormalize_FlatURLWinsOverEnvelope(t *testing.T) {
	t.Parallel()

	raw := RawStatus{
		Status:    "success",
		OutputURL: "https://tmp/flat.mp4",
		Output:    &RawOutput{URL: "https://tmp/nested.mp4"},
	}

	got := Normalize(raw)
	assert.Equal(t, "https://tmp/flat.mp4", got.ResultURL)
}
