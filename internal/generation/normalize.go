package generation

import "strings"

// NormalizedStatus is the closed status set the rest of the system
// works with. PendingURL is transitional: the provider claims success
// but has not yet populated the artifact URL, so completion must not be
// trusted yet.
type NormalizedStatus string

// Normalized status values.
const (
	StatusPending    NormalizedStatus = "pending"
	StatusProcessing NormalizedStatus = "processing"
	StatusPendingURL NormalizedStatus = "pending_url"
	StatusCompleted  NormalizedStatus = "completed"
	StatusFailed     NormalizedStatus = "failed"
)

// Normalized is the result of mapping one RawStatus report.
type Normalized struct {
	Status    NormalizedStatus
	Progress  int
	ResultURL string
	ErrorText string
}

// Provider status vocabularies observed in the wild. Matching is
// case-insensitive; anything unlisted is treated as still processing.
var (
	successTokens = map[string]bool{
		"success":   true,
		"succeed":   true,
		"succeeded": true,
		"completed": true,
		"complete":  true,
		"finished":  true,
		"done":      true,
		"99":        true,
		"100":       true,
	}

	failureTokens = map[string]bool{
		"failed":    true,
		"fail":      true,
		"failure":   true,
		"error":     true,
		"cancelled": true,
		"canceled":  true,
		"rejected":  true,
		"timeout":   true,
	}

	queuedTokens = map[string]bool{
		"pending":   true,
		"queued":    true,
		"queueing":  true,
		"submitted": true,
		"waiting":   true,
		"created":   true,
		"0":         true,
	}
)

// Normalize maps one raw provider status report to the internal status
// set. It is a pure function and never fails: unknown or absent status
// tokens default to processing so a confused provider can never surface
// an "unknown" state to callers.
//
// A success token is only trusted as completion when the report also
// carries an artifact URL; otherwise the result is PendingURL (progress
// forced to 95) and the caller keeps polling.
func Normalize(raw RawStatus) Normalized {
	token := strings.ToLower(strings.TrimSpace(raw.Status))
	url := resultURL(raw)

	switch {
	case successTokens[token] && url != "":
		return Normalized{
			Status:    StatusCompleted,
			Progress:  100,
			ResultURL: url,
		}

	case successTokens[token]:
		return Normalized{
			Status:   StatusPendingURL,
			Progress: 95,
		}

	case failureTokens[token]:
		return Normalized{
			Status:    StatusFailed,
			ErrorText: errorText(raw),
		}

	case queuedTokens[token]:
		return Normalized{
			Status:   StatusPending,
			Progress: clampProgress(raw.Progress),
		}

	default:
		return Normalized{
			Status:   StatusProcessing,
			Progress: clampProgress(raw.Progress),
		}
	}
}

// resultURL flattens the possible artifact locator shapes: flat fields
// first, then the nested output and data envelopes.
func resultURL(raw RawStatus) string {
	candidates := []string{raw.OutputURL, raw.VideoURL}
	if raw.Output != nil {
		candidates = append(candidates, raw.Output.URL, raw.Output.VideoURL)
	}
	if raw.Data != nil {
		candidates = append(candidates, raw.Data.URL, raw.Data.VideoURL)
	}

	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return strings.TrimSpace(c)
		}
	}
	return ""
}

// errorText extracts the provider's failure detail, falling back to a
// generic message so failed tasks always carry a reason.
func errorText(raw RawStatus) string {
	candidates := []string{raw.Error}
	if raw.Output != nil {
		candidates = append(candidates, raw.Output.Error)
	}
	if raw.Data != nil {
		candidates = append(candidates, raw.Data.Error)
	}

	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return strings.TrimSpace(c)
		}
	}
	return "generation failed without provider detail"
}

func clampProgress(p *int) int {
	if p == nil {
		return 0
	}
	if *p < 0 {
		return 0
	}
	if *p > 100 {
		return 100
	}
	return *p
}
