// Package orchestrator is the composition root for a review: it picks
// the direct path (caller brings its own credential, no quota) or the
// proxied path (anonymous device on the shared credential, quota
// enforced) and normalizes both into one result shape.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/reviewloop/internal/prompts"
	"github.com/reviewloop/internal/ratelimit"
	"github.com/reviewloop/internal/reviewer"
	"github.com/reviewloop/pkg/models"
)

// Request carries one review invocation. Supplying Caller selects the
// direct path; otherwise DeviceID must identify the anonymous caller for
// quota bucketing.
type Request struct {
	Code        string
	Model       string
	Instruction string

	// Caller is the caller-owned completion credential for the direct
	// path. Nil means the proxied path on the shared credential.
	Caller reviewer.CompletionCaller

	// DeviceID is the opaque per-installation identifier, proxied path
	// only.
	DeviceID string
}

// Orchestrator wires the reviewer, the shared-credential completion
// caller, and the rate limiter.
type Orchestrator struct {
	reviewer *reviewer.Reviewer
	shared   reviewer.CompletionCaller
	limiter  *ratelimit.Limiter
}

// New creates an orchestrator. shared may be nil when only the direct
// path is used.
func New(r *reviewer.Reviewer, shared reviewer.CompletionCaller, limiter *ratelimit.Limiter) *Orchestrator {
	return &Orchestrator{reviewer: r, shared: shared, limiter: limiter}
}

// Review runs one review. Both paths yield the identical ReviewOutcome
// shape; the error is non-nil only for the typed RateLimitedError and
// UpstreamError surfaces.
func (o *Orchestrator) Review(ctx context.Context, req Request) (models.ReviewOutcome, error) {
	instruction := req.Instruction
	if instruction == "" {
		instruction = prompts.DefaultReviewInstruction()
	}

	if req.Caller != nil {
		log.Debug().Str("model", req.Model).Msg("Running review on caller credential")
		return o.reviewer.Run(ctx, req.Caller, req.Model, instruction, req.Code), nil
	}

	if req.DeviceID == "" {
		return models.ReviewOutcome{}, fmt.Errorf("device id is required for proxied reviews")
	}
	if o.shared == nil {
		return models.ReviewOutcome{}, &UpstreamError{Message: "shared completion credential not configured"}
	}

	status := o.limiter.Check(req.DeviceID)
	if status.Remaining == 0 {
		log.Info().
			Str("device_id", req.DeviceID).
			Int("used", status.Used).
			Msg("Daily review limit reached")
		return models.ReviewOutcome{}, &RateLimitedError{
			Used:    status.Used,
			Limit:   status.Limit,
			ResetAt: status.ResetAt,
		}
	}

	outcome := o.reviewer.Run(ctx, o.shared, req.Model, instruction, req.Code)

	if outcome.Success {
		// Quota burns only on success; a failed or exhausted review
		// costs the device nothing.
		o.limiter.Increment(req.DeviceID)
		return outcome, nil
	}

	if msg, saturated := saturationFailure(outcome); saturated {
		return outcome, &UpstreamError{Message: msg}
	}

	return outcome, nil
}

// saturationFailure reports whether the review stopped because the
// upstream was saturated, in which case the transport layer should
// signal a server-side error rather than a schema exhaustion.
func saturationFailure(outcome models.ReviewOutcome) (string, bool) {
	if len(outcome.Attempts) == 0 {
		return "", false
	}

	last := outcome.Attempts[len(outcome.Attempts)-1]
	if last.Valid || len(last.Violations) != 1 || last.Tokens.TotalTokens != 0 {
		return "", false
	}

	msg := last.Violations[0]
	if reviewer.IsSaturationError(errors.New(msg)) {
		return msg, true
	}
	return "", false
}
