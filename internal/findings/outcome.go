package findings

import "strings"

// RefinementOutcome is the second-pass verdict for one original Finding.
type RefinementOutcome struct {
	IsFalsePositive     bool    `json:"is_false_positive"`
	VulnerabilityName   string  `json:"vulnerability_name,omitempty"`
	ImprovedDescription *string `json:"improved_description,omitempty"`
	NewThreatLevel      *string `json:"new_threat_level,omitempty"`
	ManualReview        bool    `json:"manual_review,omitempty"`
	Note                string  `json:"note,omitempty"`
}

// OutcomeFromRaw decodes an outcome from parsed oracle output.
// It returns false when raw is not a JSON object.
func OutcomeFromRaw(raw any) (RefinementOutcome, bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return RefinementOutcome{}, false
	}

	out := RefinementOutcome{
		IsFalsePositive: truthy(obj["is_false_positive"]),
		ManualReview:    truthy(obj["manual_review"]),
	}
	if name, ok := scalarString(obj["vulnerability_name"]); ok {
		out.VulnerabilityName = name
	}
	if note, ok := scalarString(obj["note"]); ok {
		out.Note = note
	}
	if v, present := obj["improved_description"]; present {
		if s, ok := scalarString(v); ok {
			out.ImprovedDescription = &s
		}
	}
	if v, present := obj["new_threat_level"]; present {
		if list, isList := v.([]any); isList && len(list) > 0 {
			v = list[0]
		}
		if s, ok := scalarString(v); ok {
			out.NewThreatLevel = &s
		}
	}
	return out, true
}

// Apply overlays the outcome on f. The second result is false when the
// finding is a false positive and must be dropped.
func (o RefinementOutcome) Apply(f Finding) (Finding, bool) {
	if o.IsFalsePositive {
		return f, false
	}
	if o.ImprovedDescription != nil && strings.TrimSpace(*o.ImprovedDescription) != "" {
		f.VulnerabilityDescription = *o.ImprovedDescription
	}
	if o.NewThreatLevel != nil {
		f.ThreatLevel = ParseThreatLevel(*o.NewThreatLevel)
	}
	if o.ManualReview {
		f.ManualReview = true
		if o.Note != "" {
			f.Note = o.Note
		}
	}
	return f, true
}

// truthy accepts JSON booleans and the string forms models tend to emit.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			return true
		}
	case float64:
		return t != 0
	}
	return false
}
