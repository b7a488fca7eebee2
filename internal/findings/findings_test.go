package findings

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPopulated(t *testing.T, f Finding) {
	t.Helper()
	assert.NotEmpty(t, f.VulnerabilityName)
	assert.NotEmpty(t, f.VulnerabilityDescription)
	assert.NotEmpty(t, f.Location)
	assert.NotEmpty(t, f.Remediation)
	assert.NotEmpty(t, f.CWEID)
	assert.NotEmpty(t, f.CWEName)
	assert.True(t, f.ThreatLevel.IsValid(), "threat level %q outside the scale", f.ThreatLevel)
}

func TestValidateIsTotal(t *testing.T) {
	inputs := []any{
		nil,
		"not an object",
		42.0,
		[]any{"a", "b"},
		map[string]any{},
		map[string]any{"threat_level": nil},
		map[string]any{"threat_level": []any{}},
		map[string]any{"threat_level": map[string]any{"x": 1.0}},
		map[string]any{"vulnerability_name": []any{}, "location": false, "cwe_id": 0.0},
		map[string]any{"remediation": "", "cwe_name": map[string]any{}},
	}

	for _, in := range inputs {
		assertPopulated(t, Validate(in))
	}
}

func TestValidateHardcodedSecret(t *testing.T) {
	f := Validate(map[string]any{
		"vulnerability_name": "Hardcoded Secret",
		"threat_level":       "HIGH",
	})

	assert.Equal(t, "Hardcoded Secret", f.VulnerabilityName)
	assert.Equal(t, LevelHigh, f.ThreatLevel)
	assert.Equal(t, DefaultDescription, f.VulnerabilityDescription)
	assert.Equal(t, "Code snippet: "+DefaultLocation+"...", f.Location)
	assert.Equal(t, DefaultRemediation, f.Remediation)
	assert.Equal(t, DefaultCWEID, f.CWEID)
	assert.Equal(t, DefaultCWEName, f.CWEName)
}

func TestValidateThreatLevel(t *testing.T) {
	tests := []struct {
		name  string
		raw   map[string]any
		level ThreatLevel
	}{
		{name: "absent", raw: map[string]any{}, level: LevelCodeQuality},
		{name: "upper case", raw: map[string]any{"threat_level": "CRITICAL"}, level: LevelCritical},
		{name: "padded", raw: map[string]any{"threat_level": "  Medium "}, level: LevelMedium},
		{name: "list takes first", raw: map[string]any{"threat_level": []any{"low", "high"}}, level: LevelLow},
		{name: "unknown", raw: map[string]any{"threat_level": "none"}, level: LevelCodeQuality},
		{name: "number", raw: map[string]any{"threat_level": 3.0}, level: LevelCodeQuality},
		{name: "already canonical", raw: map[string]any{"threat_level": "code quality issue"}, level: LevelCodeQuality},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.level, Validate(tt.raw).ThreatLevel)
		})
	}
}

func TestValidateJoinsLists(t *testing.T) {
	f := Validate(map[string]any{
		"remediation": []any{"Use a vault", "Rotate keys"},
		"cwe_id":      []any{"CWE-798", 259.0},
	})

	assert.Equal(t, "Use a vault, Rotate keys", f.Remediation)
	assert.Equal(t, "CWE-798, 259", f.CWEID)
}

func TestNormalizeLocation(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "abcde"
	}

	tests := []struct {
		in, want string
	}{
		{in: "line 42", want: "Line 42:"},
		{in: "Line 42", want: "Line 42:"},
		{in: "lines 10-12", want: "Lines 10-12:"},
		{in: "line 3, line 4", want: "Line 3, Line 4:"},
		{in: "Line 10: password = 'x'", want: "Line 10: password = 'x'"},
		{in: "config.py: DEBUG", want: "config.py: DEBUG"},
		{in: "def login()", want: "Code snippet: def login()..."},
		{in: long, want: "Code snippet: " + long[:100] + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeLocation(tt.in))
		})
	}
}

func TestFileReportJSON(t *testing.T) {
	data, err := json.Marshal(FileReport{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	data, err = json.Marshal(Failure("Failed to read file: permission denied"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Failed to read file: permission denied"}`, string(data))

	var fr FileReport
	require.NoError(t, json.Unmarshal([]byte(`{"error":"boom"}`), &fr))
	assert.True(t, fr.IsFailure())
	assert.Equal(t, "boom", fr.Reason())
	assert.Nil(t, fr.List())

	require.NoError(t, json.Unmarshal([]byte(`null`), &fr))
	assert.False(t, fr.IsFailure())
	assert.NotNil(t, fr.List())
	assert.Empty(t, fr.List())
}

func TestFileReportDecodeValidates(t *testing.T) {
	var fr FileReport
	require.NoError(t, json.Unmarshal([]byte(`[
		{"vulnerability_name": "", "threat_level": "SEVERE", "location": "line 9"},
		{"vulnerability_name": "Weak Hash", "threat_level": "Medium", "location": "Line 2: md5()",
		 "manual_review": true, "note": "check by hand"},
		"garbage"
	]`), &fr))

	list := fr.List()
	require.Len(t, list, 3)
	for _, f := range list {
		assertPopulated(t, f)
	}
	assert.Equal(t, DefaultVulnerabilityName, list[0].VulnerabilityName)
	assert.Equal(t, LevelCodeQuality, list[0].ThreatLevel)
	assert.Equal(t, "Line 9:", list[0].Location)

	assert.Equal(t, LevelMedium, list[1].ThreatLevel)
	assert.Equal(t, "Line 2: md5()", list[1].Location)
	assert.True(t, list[1].ManualReview)
	assert.Equal(t, "check by hand", list[1].Note)

	assert.False(t, list[2].ManualReview)
}

func TestEmptyReportHasOnlySummary(t *testing.T) {
	report := NewReport()
	report.Summarize()

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{"threat_summary":{"code quality issue":0,"low":0,"medium":0,"high":0,"critical":0}}`, string(data))
}

func TestReportRoundTripKeepsOrder(t *testing.T) {
	report := NewReport()
	report.Set("repo/z.py", Findings([]Finding{Validate(map[string]any{"threat_level": "high"})}))
	report.Set("repo/a.py", Failure("Failed to analyze: timeout"))
	report.Set("repo/m.py", Findings(nil))
	report.Summarize()

	data, err := json.Marshal(report)
	require.NoError(t, err)

	decoded := NewReport()
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.Equal(t, []string{"repo/z.py", "repo/a.py", "repo/m.py"}, decoded.Paths())
	assert.Equal(t, 1, decoded.Summary[LevelHigh])

	failed, ok := decoded.Get("repo/a.py")
	require.True(t, ok)
	assert.True(t, failed.IsFailure())
}

func TestSummarizeCountsNonErrorReports(t *testing.T) {
	report := NewReport()
	report.Set("r/a.go", Findings([]Finding{
		{ThreatLevel: LevelHigh},
		{ThreatLevel: LevelLow},
	}))
	report.Set("r/b.go", Failure("x"))
	report.Set("r/c.go", Findings([]Finding{{ThreatLevel: "bogus"}}))

	summary := report.Summarize()
	assert.Equal(t, report.FindingCount(), summary.Total())
	assert.Equal(t, 1, summary[LevelHigh])
	assert.Equal(t, 1, summary[LevelLow])
	assert.Equal(t, 1, summary[LevelCodeQuality])
	assert.Len(t, summary, len(Levels))
}

func TestOutcomeApply(t *testing.T) {
	original := Validate(map[string]any{"vulnerability_name": "SQL Injection", "threat_level": "medium", "location": "line 7"})

	raw := map[string]any{
		"is_false_positive":    false,
		"vulnerability_name":   "SQL Injection",
		"improved_description": "User input reaches a raw query.",
		"new_threat_level":     "Critical",
	}
	outcome, ok := OutcomeFromRaw(raw)
	require.True(t, ok)

	refined, keep := outcome.Apply(original)
	require.True(t, keep)
	assert.Equal(t, "User input reaches a raw query.", refined.VulnerabilityDescription)
	assert.Equal(t, LevelCritical, refined.ThreatLevel)
	assert.Equal(t, original.Location, refined.Location)

	outcome, ok = OutcomeFromRaw(map[string]any{"is_false_positive": "true"})
	require.True(t, ok)
	_, keep = outcome.Apply(original)
	assert.False(t, keep)

	outcome, _ = OutcomeFromRaw(map[string]any{"new_threat_level": "severe"})
	refined, keep = outcome.Apply(original)
	require.True(t, keep)
	assert.Equal(t, LevelCodeQuality, refined.ThreatLevel)

	_, ok = OutcomeFromRaw("nope")
	assert.False(t, ok)
}
