// Package schema decides whether a model response has the structure the
// review pipeline requires and enumerates every violation it finds. It is
// deliberately shape-only: semantic quality of the findings is the
// model's problem, not ours.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/reviewloop/pkg/models"
)

// Result is the outcome of validating one candidate response body.
type Result struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
}

// Validate checks a raw response body against the expected
// {"issues": [...]} shape. Violations are ordered: document-level checks
// first, then per-issue checks in element order. Document-level failures
// short-circuit so the per-issue checks never dereference a shape that
// is not there; per-issue checks never short-circuit across elements.
func Validate(raw string) Result {
	var violations []string

	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		violations = append(violations, fmt.Sprintf("response is not valid JSON: %v", err))
		return Result{Valid: false, Violations: violations}
	}

	obj, ok := doc.(map[string]interface{})
	if !ok {
		violations = append(violations, "response must be a JSON object")
		return Result{Valid: false, Violations: violations}
	}

	rawIssues, ok := obj["issues"]
	if !ok {
		violations = append(violations, `missing required key "issues"`)
		return Result{Valid: false, Violations: violations}
	}

	issues, ok := rawIssues.([]interface{})
	if !ok {
		violations = append(violations, `"issues" must be an array`)
		return Result{Valid: false, Violations: violations}
	}

	for i, elem := range issues {
		violations = append(violations, validateIssue(i+1, elem)...)
	}

	return Result{Valid: len(violations) == 0, Violations: violations}
}

// validateIssue runs every field check for one element of the issues
// array. idx is the 1-based position used in violation wording.
func validateIssue(idx int, elem interface{}) []string {
	var violations []string

	issue, ok := elem.(map[string]interface{})
	if !ok {
		return []string{fmt.Sprintf("Issue #%d: must be an object", idx)}
	}

	line, ok := issue["line"]
	if !ok {
		violations = append(violations, fmt.Sprintf(`Issue #%d: missing required field "line"`, idx))
	} else if n, isNum := line.(float64); !isNum || n != math.Trunc(n) || n < 1 {
		violations = append(violations, fmt.Sprintf(`Issue #%d: "line" must be an integer >= 1`, idx))
	}

	severity, ok := issue["severity"]
	if !ok {
		violations = append(violations, fmt.Sprintf(`Issue #%d: missing required field "severity"`, idx))
	} else if s, isStr := severity.(string); !isStr || !validSeverity(s) {
		violations = append(violations, fmt.Sprintf(
			`Issue #%d: "severity" must be one of %q, %q, %q`,
			idx, models.SeverityError, models.SeverityWarning, models.SeverityInfo))
	}

	message, ok := issue["message"]
	if !ok {
		violations = append(violations, fmt.Sprintf(`Issue #%d: missing required field "message"`, idx))
	} else if m, isStr := message.(string); !isStr || strings.TrimSpace(m) == "" {
		violations = append(violations, fmt.Sprintf(`Issue #%d: "message" must be a non-empty string`, idx))
	}

	if suggestion, ok := issue["suggestion"]; ok {
		if _, isStr := suggestion.(string); !isStr {
			violations = append(violations, fmt.Sprintf(`Issue #%d: "suggestion" must be a string`, idx))
		}
	}

	return violations
}

func validSeverity(s string) bool {
	switch s {
	case models.SeverityError, models.SeverityWarning, models.SeverityInfo:
		return true
	}
	return false
}

// Decode parses a response body that has already passed Validate into
// the typed review response.
func Decode(raw string) (*models.ReviewResponse, error) {
	var resp models.ReviewResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode review response: %w", err)
	}
	if resp.Issues == nil {
		resp.Issues = []models.Finding{}
	}
	return &resp, nil
}
