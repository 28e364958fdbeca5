package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls the first JSON object out of free-form model output.
// The scan spans from the first '{' to the last '}' so prose before and
// after the object is ignored. Returns nil when no parseable object exists.
func ExtractJSON(text string) map[string]any {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil
	}
	return out
}
