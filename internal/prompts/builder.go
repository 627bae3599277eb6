// Package prompts assembles the instructions sent to the completion
// collaborator: the default review task description and the follow-up
// correction instruction built from schema violations.
package prompts

import (
	"fmt"
	"strings"
)

// DefaultReviewInstruction generates the review task prompt used when the
// caller does not supply its own instruction template.
func DefaultReviewInstruction() string {
	var prompt strings.Builder

	prompt.WriteString("You are an expert code reviewer. Analyze the submitted code and report every issue you find.\n\n")
	prompt.WriteString("For each issue provide:\n")
	prompt.WriteString("- The 1-based line number within the submitted code\n")
	prompt.WriteString("- Severity: one of \"error\", \"warning\", \"info\"\n")
	prompt.WriteString("- A clear description of the problem\n")
	prompt.WriteString("- Optionally, a concrete fix suggestion\n\n")

	prompt.WriteString("Focus on correctness, security, maintainability, and performance.\n\n")

	prompt.WriteString("Respond with JSON only, using exactly this structure:\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"issues\": [\n")
	prompt.WriteString("    {\n")
	prompt.WriteString("      \"line\": 42,\n")
	prompt.WriteString("      \"severity\": \"warning\",\n")
	prompt.WriteString("      \"message\": \"Description of the issue\",\n")
	prompt.WriteString("      \"suggestion\": \"Optional concrete fix\"\n")
	prompt.WriteString("    }\n")
	prompt.WriteString("  ]\n")
	prompt.WriteString("}\n\n")
	prompt.WriteString("If the code has no issues, respond with {\"issues\": []}.\n")
	prompt.WriteString("Do not wrap the JSON in markdown fences or add any prose.\n")

	return prompt.String()
}

// BuildCorrection appends a correction section to the original
// instruction listing every violation from the latest attempt. The
// fix-only-what-is-named constraint keeps retries converging instead of
// regenerating a different but equally invalid response. Deterministic
// for identical inputs.
func BuildCorrection(originalInstruction string, violations []string) string {
	var prompt strings.Builder

	prompt.WriteString(originalInstruction)
	prompt.WriteString("\n\n--- RESPONSE CORRECTION REQUIRED ---\n")
	prompt.WriteString("Your previous response violated the required JSON schema:\n")

	for i, violation := range violations {
		prompt.WriteString(fmt.Sprintf("%d. %s\n", i+1, violation))
	}

	prompt.WriteString("\nRegenerate the response fixing ONLY the violations listed above.\n")
	prompt.WriteString("Preserve all valid content from your previous response.\n")
	prompt.WriteString("Do not introduce new findings.\n")

	return prompt.String()
}
