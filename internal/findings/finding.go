package findings

import "strings"

// ThreatLevel is the closed severity scale every Finding is mapped onto.
type ThreatLevel string

const (
	LevelCodeQuality ThreatLevel = "code quality issue"
	LevelLow         ThreatLevel = "low"
	LevelMedium      ThreatLevel = "medium"
	LevelHigh        ThreatLevel = "high"
	LevelCritical    ThreatLevel = "critical"
)

// Levels lists the severity scale from least to most severe.
var Levels = []ThreatLevel{LevelCodeQuality, LevelLow, LevelMedium, LevelHigh, LevelCritical}

// IsValid reports whether l belongs to the closed scale.
func (l ThreatLevel) IsValid() bool {
	for _, level := range Levels {
		if l == level {
			return true
		}
	}
	return false
}

// ParseThreatLevel maps an arbitrary oracle value onto the closed scale.
// A list contributes its first element; anything unknown becomes LevelCodeQuality.
func ParseThreatLevel(v any) ThreatLevel {
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return LevelCodeQuality
		}
		v = list[0]
	}
	s, ok := scalarString(v)
	if !ok {
		return LevelCodeQuality
	}
	level := ThreatLevel(strings.ToLower(strings.TrimSpace(s)))
	if !level.IsValid() {
		return LevelCodeQuality
	}
	return level
}

// Finding is a single normalized vulnerability record.
// Every instance has the seven core fields populated.
type Finding struct {
	VulnerabilityName        string      `json:"vulnerability_name"`
	VulnerabilityDescription string      `json:"vulnerability_description"`
	Location                 string      `json:"location"`
	Remediation              string      `json:"remediation"`
	ThreatLevel              ThreatLevel `json:"threat_level"`
	CWEID                    string      `json:"cwe_id"`
	CWEName                  string      `json:"cwe_name"`

	ManualReview bool   `json:"manual_review,omitempty"`
	Note         string `json:"note,omitempty"`
}
