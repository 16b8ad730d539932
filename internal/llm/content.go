package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// extractJSONObject pulls a JSON object out of raw model text. Models wrap
// output in ```json fences or add a sentence before the object; both are
// tolerated. Returns *ErrInvalidResponse when no object can be found.
func extractJSONObject(text string) (json.RawMessage, error) {
	s := stripCodeFences(strings.TrimSpace(text))
	if s == "" {
		return nil, &ErrInvalidResponse{Err: fmt.Errorf("empty content")}
	}

	if isJSONObject(s) {
		return json.RawMessage(s), nil
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		candidate := s[start : end+1]
		if isJSONObject(candidate) {
			return json.RawMessage(candidate), nil
		}
	}

	return nil, &ErrInvalidResponse{
		Content: json.RawMessage(s),
		Err:     fmt.Errorf("content is not a JSON object"),
	}
}

func isJSONObject(s string) bool {
	return gjson.Valid(s) && gjson.Parse(s).IsObject()
}

func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the language tag line ("json", "JSON", ...).
		if !strings.ContainsAny(s[:nl], "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
