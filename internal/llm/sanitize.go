package llm

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"
)

// Sanitize prepares raw model output for schema validation. Models
// routinely wrap JSON in markdown fences or emit almost-JSON (trailing
// commas, single quotes, truncated arrays); this strips the wrapping and
// runs the jsonrepair library over anything that still fails to parse.
// Text that cannot be salvaged is returned unchanged so the validator
// reports the parse failure as a violation.
func Sanitize(response string) string {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return response
	}

	var probe interface{}
	if json.Unmarshal([]byte(jsonStr), &probe) == nil {
		return jsonStr
	}

	repaired, err := jsonrepair.JSONRepair(jsonStr)
	if err != nil {
		log.Debug().Err(err).Msg("JSON repair failed, passing response through")
		return jsonStr
	}

	log.Debug().
		Int("original_bytes", len(jsonStr)).
		Int("repaired_bytes", len(repaired)).
		Msg("Repaired malformed completion JSON")

	return repaired
}

// extractJSON pulls the JSON object out of a response, tolerating
// markdown code fences and surrounding prose. Returns "" when the
// response contains no object at all.
func extractJSON(response string) string {
	trimmed := strings.TrimSpace(response)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}

	return response[start : end+1]
}
