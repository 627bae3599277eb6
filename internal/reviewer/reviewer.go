// Package reviewer runs the self-correction loop: call the completion
// collaborator, validate the response shape, and on violation feed a
// correction instruction back for another attempt.
package reviewer

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/reviewloop/internal/llm"
	"github.com/reviewloop/internal/prompts"
	"github.com/reviewloop/internal/schema"
	"github.com/reviewloop/pkg/models"
)

// DefaultMaxAttempts bounds the retry loop when the caller does not
// configure its own limit.
const DefaultMaxAttempts = 3

// CompletionCaller is the collaborator that performs one completion
// round-trip. Implementations must request a fixed seed so repeated
// reviews of unchanged code are reproducible.
type CompletionCaller interface {
	Complete(ctx context.Context, model, instruction, code string) (*models.Completion, error)
}

// Reviewer orchestrates up to MaxAttempts completion calls for one
// review, accumulating per-attempt telemetry and a running token total.
type Reviewer struct {
	MaxAttempts int
}

// New creates a reviewer with the given attempt budget.
func New(maxAttempts int) *Reviewer {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Reviewer{MaxAttempts: maxAttempts}
}

// Run executes the retry loop. It never returns an error: upstream
// failures and exhausted attempts surface as Success=false with the full
// attempt history, so nothing is swallowed silently. Each correction
// instruction is rebuilt from the original instruction plus only the
// latest attempt's violations, never corrections-of-corrections, to
// prevent instruction drift across retries.
func (r *Reviewer) Run(ctx context.Context, caller CompletionCaller, model, initialInstruction, code string) models.ReviewOutcome {
	currentInstruction := initialInstruction
	totalTokens := 0
	attempts := make([]models.AttemptRecord, 0, r.MaxAttempts)

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		completion, err := caller.Complete(ctx, model, currentInstruction, code)
		if err != nil {
			attempts = append(attempts, models.AttemptRecord{
				Attempt:    attempt,
				Valid:      false,
				Violations: []string{err.Error()},
			})

			if IsSaturationError(err) {
				// Retrying a saturated upstream would fail identically
				// and waste the attempt budget.
				log.Warn().Err(err).Int("attempt", attempt).Msg("Upstream saturated, stopping retry loop")
				break
			}

			log.Warn().Err(err).Int("attempt", attempt).Msg("Completion call failed, retrying")
			continue
		}

		totalTokens += completion.Usage.TotalTokens

		body := llm.Sanitize(completion.Text)
		result := schema.Validate(body)

		attempts = append(attempts, models.AttemptRecord{
			Attempt:    attempt,
			Valid:      result.Valid,
			Violations: result.Violations,
			Tokens:     completion.Usage,
		})

		if result.Valid {
			content, err := schema.Decode(body)
			if err != nil {
				// A valid pass that fails to decode means the validator
				// and the typed model disagree; surface it as a violation
				// and retry rather than panic.
				attempts[len(attempts)-1].Valid = false
				attempts[len(attempts)-1].Violations = []string{err.Error()}
				log.Error().Err(err).Int("attempt", attempt).Msg("Validated response failed to decode")
				continue
			}

			log.Info().
				Int("attempt", attempt).
				Int("issues", len(content.Issues)).
				Int("total_tokens", totalTokens).
				Msg("Review succeeded")

			return models.ReviewOutcome{
				Content:     content,
				Attempts:    attempts,
				Success:     true,
				TotalTokens: totalTokens,
			}
		}

		log.Warn().
			Int("attempt", attempt).
			Int("violations", len(result.Violations)).
			Msg("Response failed schema validation")

		if attempt < r.MaxAttempts {
			currentInstruction = prompts.BuildCorrection(initialInstruction, result.Violations)
		}
	}

	log.Warn().
		Int("attempts", len(attempts)).
		Int("total_tokens", totalTokens).
		Msg("Review exhausted all attempts without a valid response")

	return models.ReviewOutcome{
		Attempts:    attempts,
		Success:     false,
		TotalTokens: totalTokens,
	}
}
