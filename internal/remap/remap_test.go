package remap

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/reviewloop/pkg/models"
)

func TestToAbsoluteLine(t *testing.T) {
	assert.Equal(t, 10, ToAbsoluteLine(1, 9))
	assert.Equal(t, 3, ToAbsoluteLine(3, 0))
	assert.Equal(t, 100, ToAbsoluteLine(50, 50))
}

func TestIsWithinDocument(t *testing.T) {
	assert.True(t, IsWithinDocument(1, 10))
	assert.True(t, IsWithinDocument(10, 10))
	assert.False(t, IsWithinDocument(0, 10))
	assert.False(t, IsWithinDocument(11, 10))
	assert.False(t, IsWithinDocument(1, 0))
}

func TestFilterFindingsRemapsAndDropsOutOfBounds(t *testing.T) {
	findings := []models.Finding{
		{Line: 1, Severity: models.SeverityWarning, Message: "first"},
		{Line: 3, Severity: models.SeverityInfo, Message: "hallucinated beyond document"},
		{Line: 2, Severity: models.SeverityError, Message: "second"},
	}

	// Submission starts at document line 9 (offset 8) of a 10-line file:
	// reported line 3 maps to 11 and must be dropped silently.
	got := FilterFindings(findings, 8, 10)

	want := []models.Finding{
		{Line: 9, Severity: models.SeverityWarning, Message: "first"},
		{Line: 10, Severity: models.SeverityError, Message: "second"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FilterFindings mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterFindingsEmptyInput(t *testing.T) {
	got := FilterFindings(nil, 5, 100)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
