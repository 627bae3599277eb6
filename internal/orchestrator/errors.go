package orchestrator

import (
	"fmt"
	"time"
)

// RateLimitedError is returned before any upstream call when the device
// has exhausted its daily quota. ResetAt lets the caller tell the user
// when reviews resume.
type RateLimitedError struct {
	Used    int       `json:"used"`
	Limit   int       `json:"limit"`
	ResetAt time.Time `json:"resetAt"`
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("daily review limit reached (%d/%d), resets at %s",
		e.Used, e.Limit, e.ResetAt.Format(time.RFC3339))
}

// UpstreamError is returned when the completion upstream failed in a way
// retrying cannot fix within this review.
type UpstreamError struct {
	Message string `json:"message"`
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream completion error: %s", e.Message)
}
