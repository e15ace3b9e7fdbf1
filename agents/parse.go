package agents

import (
	"encoding/json"
	"strings"
)

// extractJSONObject finds the first balanced top-level JSON object in
// content and decodes it into a map. LLM responses routinely wrap the
// requested JSON in prose or a fenced code block; this scans for the
// outermost {...} span rather than requiring the whole response to be
// valid JSON. Returns ok=false if no balanced object is found or it fails
// to decode, letting the caller fall back to a raw_analysis result.
func extractJSONObject(content string) (map[string]any, bool) {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return nil, false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, braces don't count
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				var out map[string]any
				if err := json.Unmarshal([]byte(content[start:i+1]), &out); err != nil {
					return nil, false
				}
				return out, true
			}
		}
	}
	return nil, false
}
