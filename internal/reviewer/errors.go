package reviewer

import "strings"

// saturationMarkers are substrings that identify an upstream
// rate-limit/saturation condition in provider error text.
var saturationMarkers = []string{
	"429",
	"too many requests",
	"rate limit",
	"quota",
	"resource exhausted",
	"insufficient_quota",
	"overloaded",
}

// IsSaturationError determines if an upstream failure is a saturation
// condition that an immediate retry cannot fix.
func IsSaturationError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, marker := range saturationMarkers {
		if strings.Contains(errStr, marker) {
			return true
		}
	}

	return false
}
