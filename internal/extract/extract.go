// Package extract pulls structured data out of free-text oracle responses.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	leadingFence  = regexp.MustCompile("(?i)^```(?:json)?\\n?")
	trailingFence = regexp.MustCompile("\\n```$")
)

// ExtractJSON strips an optional markdown fence and decodes the text between
// the first '{' and the last '}'. It returns false when nothing decodes.
func ExtractJSON(text string) (any, bool) {
	text = strings.TrimSpace(text)
	text = leadingFence.ReplaceAllString(text, "")
	text = trailingFence.ReplaceAllString(text, "")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return nil, false
	}

	var value any
	if err := json.Unmarshal([]byte(text[start:end+1]), &value); err != nil {
		return nil, false
	}
	return value, true
}

// ExtractObject is ExtractJSON restricted to JSON objects.
func ExtractObject(text string) (map[string]any, bool) {
	value, ok := ExtractJSON(text)
	if !ok {
		return nil, false
	}
	obj, ok := value.(map[string]any)
	return obj, ok
}
