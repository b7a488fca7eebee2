package findings

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Defaults substituted for missing or empty fields.
const (
	DefaultVulnerabilityName = "Unknown Vulnerability"
	DefaultDescription       = "No description available"
	DefaultLocation          = "Unknown location"
	DefaultRemediation       = "No remediation provided"
	DefaultCWEID             = "CWE-Unknown"
	DefaultCWEName           = "Unknown CWE"

	snippetLimit = 100
)

var lineWord = regexp.MustCompile(`\bline(s?)\b\s*`)

// Validate normalizes an arbitrary raw value claiming to be a finding.
// It is total: any input, including nil or a non-object, yields a fully
// populated Finding with a threat level from the closed scale.
func Validate(raw any) Finding {
	obj, _ := raw.(map[string]any)

	level, present := obj["threat_level"]
	if !present {
		level = string(LevelCodeQuality)
	}

	f := Finding{
		VulnerabilityName:        stringField(obj, "vulnerability_name", DefaultVulnerabilityName),
		VulnerabilityDescription: stringField(obj, "vulnerability_description", DefaultDescription),
		Location:                 stringField(obj, "location", DefaultLocation),
		Remediation:              stringField(obj, "remediation", DefaultRemediation),
		ThreatLevel:              ParseThreatLevel(level),
		CWEID:                    stringField(obj, "cwe_id", DefaultCWEID),
		CWEName:                  stringField(obj, "cwe_name", DefaultCWEName),
	}
	f.Location = normalizeLocation(f.Location)
	return f
}

// normalizeLocation makes locations read as "Line N: ..." or as a code snippet.
func normalizeLocation(location string) string {
	lower := strings.ToLower(location)
	switch {
	case strings.Contains(lower, "line") && !strings.Contains(location, ":"):
		return lineWord.ReplaceAllString(location, "Line$1 ") + ":"
	case !strings.Contains(lower, "line") && !strings.Contains(location, ":"):
		return "Code snippet: " + truncateRunes(location, snippetLimit) + "..."
	default:
		return location
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// stringField reads key from obj as a string. Lists are joined with ", ";
// missing, empty or zero values take def.
func stringField(obj map[string]any, key, def string) string {
	v, ok := obj[key]
	if !ok {
		return def
	}
	if list, isList := v.([]any); isList {
		if len(list) == 0 {
			return def
		}
		parts := make([]string, 0, len(list))
		for _, item := range list {
			s, _ := scalarString(item)
			parts = append(parts, s)
		}
		return strings.Join(parts, ", ")
	}
	s, ok := scalarString(v)
	if !ok || s == "" || isZeroScalar(v) {
		return def
	}
	return s
}

// scalarString renders a decoded JSON value as text.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case int:
		return strconv.Itoa(t), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(data), true
	}
}

func isZeroScalar(v any) bool {
	switch t := v.(type) {
	case float64:
		return t == 0
	case int:
		return t == 0
	case bool:
		return !t
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
