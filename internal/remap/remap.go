// Package remap translates model-reported line numbers, which are
// relative to the submitted code block, into absolute positions in the
// full document.
package remap

import "github.com/reviewloop/pkg/models"

// ToAbsoluteLine converts a 1-based line number reported against a
// partial submission into a 1-based line number in the full document.
// offset is the zero-based line where the submission begins.
func ToAbsoluteLine(reportedLine, offset int) int {
	return offset + reportedLine
}

// IsWithinDocument reports whether an absolute 1-based line falls inside
// a document of totalLines lines.
func IsWithinDocument(absoluteLine, totalLines int) bool {
	return absoluteLine >= 1 && absoluteLine <= totalLines
}

// FilterFindings remaps each finding to absolute coordinates and drops
// any that land outside the document. Models hallucinate line numbers
// beyond the submitted range often enough that dropping silently is the
// safer policy.
func FilterFindings(findings []models.Finding, offset, totalLines int) []models.Finding {
	remapped := make([]models.Finding, 0, len(findings))

	for _, finding := range findings {
		absolute := ToAbsoluteLine(finding.Line, offset)
		if !IsWithinDocument(absolute, totalLines) {
			continue
		}
		finding.Line = absolute
		remapped = append(remapped, finding)
	}

	return remapped
}
