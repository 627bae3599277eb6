package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultReviewInstructionDemandsSchema(t *testing.T) {
	instruction := DefaultReviewInstruction()

	assert.Contains(t, instruction, `"issues"`)
	assert.Contains(t, instruction, `"line"`)
	assert.Contains(t, instruction, `"severity"`)
	assert.Contains(t, instruction, `"message"`)
	assert.Contains(t, instruction, "JSON only")
}

func TestBuildCorrectionListsViolationsNumbered(t *testing.T) {
	original := "Review the code."
	violations := []string{
		`missing required key "issues"`,
		`Issue #2: "line" must be an integer >= 1`,
	}

	correction := BuildCorrection(original, violations)

	require.True(t, strings.HasPrefix(correction, original))
	assert.Contains(t, correction, "1. missing required key")
	assert.Contains(t, correction, `2. Issue #2: "line" must be an integer >= 1`)
	assert.Contains(t, correction, "ONLY the violations listed above")
	assert.Contains(t, correction, "Do not introduce new findings")
}

func TestBuildCorrectionIsDeterministic(t *testing.T) {
	violations := []string{"a", "b"}

	first := BuildCorrection("instr", violations)
	second := BuildCorrection("instr", violations)

	assert.Equal(t, first, second)
}
