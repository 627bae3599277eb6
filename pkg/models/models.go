package models

import (
	"time"
)

// Severity levels a finding may carry. These are the only values the
// schema validator accepts from the model.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Finding is a single reported issue in the reviewed code. Line numbers
// are 1-based and relative to the submitted code block; callers that
// submit a sub-range of a document remap them via the remap package.
type Finding struct {
	Line       int    `json:"line"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ReviewResponse is the only accepted shape of a model response body.
type ReviewResponse struct {
	Issues []Finding `json:"issues"`
}

// TokenUsage mirrors the usage block of a completion response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is what the completion collaborator returns on success.
type Completion struct {
	Text  string     `json:"text"`
	Usage TokenUsage `json:"usage"`
}

// AttemptRecord captures one round-trip to the completion collaborator
// within a single review's retry loop.
type AttemptRecord struct {
	Attempt    int        `json:"attempt"`
	Valid      bool       `json:"valid"`
	Violations []string   `json:"violations"`
	Tokens     TokenUsage `json:"tokens"`
}

// ReviewOutcome is the result of one review invocation. Content is nil
// unless Success is true. The attempt history is append-only and retained
// in full so failed reviews stay diagnosable without a log trawl.
type ReviewOutcome struct {
	Content     *ReviewResponse `json:"content,omitempty"`
	Attempts    []AttemptRecord `json:"attempts"`
	Success     bool            `json:"success"`
	TotalTokens int             `json:"totalTokens"`
}

// QuotaStatus reports a device's standing against the daily review limit.
type QuotaStatus struct {
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}
