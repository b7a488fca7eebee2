package sarif

import (
	"encoding/json"
	"testing"

	gosarif "github.com/owenrumney/go-sarif/v2/sarif"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/llmscan/internal/findings"
)

func sampleReport() *findings.Report {
	report := findings.NewReport()
	report.Set("demo/app/db.py", findings.Findings([]findings.Finding{
		findings.Validate(map[string]any{
			"vulnerability_name": "SQL Injection",
			"location":           "lines 10-12",
			"threat_level":       "critical",
			"cwe_id":             "CWE-89",
			"cwe_name":           "Improper Neutralization of Special Elements used in an SQL Command",
		}),
		findings.Validate(map[string]any{
			"vulnerability_name": "Verbose Errors",
			"location":           "def handler()",
			"threat_level":       "low",
		}),
	}))
	report.Set("demo/app/broken.py", findings.Failure("Failed to analyze: timeout"))
	report.Set("demo/app/clean.py", findings.Findings(nil))
	report.Summarize()
	return report
}

func TestBuild(t *testing.T) {
	version := "1.0.0"
	doc, err := Build(sampleReport(), "demo", ToolMetadata{Name: "llmscan", InformationURI: "https://example.com", Version: &version}, nil)
	require.NoError(t, err)
	require.Len(t, doc.Runs, 1)

	run := doc.Runs[0]
	assert.Equal(t, "llmscan", run.Tool.Driver.Name)
	require.Len(t, run.Results, 2)
	require.Len(t, run.Tool.Driver.Rules, 2)

	sqli := run.Results[0]
	require.NotNil(t, sqli.RuleID)
	assert.Equal(t, "CWE-89", *sqli.RuleID)
	assert.Equal(t, "error", *sqli.Level)
	loc := sqli.Locations[0].PhysicalLocation
	assert.Equal(t, "app/db.py", *loc.ArtifactLocation.URI)
	require.NotNil(t, loc.Region)
	assert.Equal(t, 10, *loc.Region.StartLine)
	assert.Equal(t, 12, *loc.Region.EndLine)
	assert.Equal(t, "critical", sqli.Properties["threat_level"])

	verbose := run.Results[1]
	assert.Equal(t, "verbose-errors", *verbose.RuleID)
	assert.Equal(t, "note", *verbose.Level)
	assert.Nil(t, verbose.Locations[0].PhysicalLocation.Region)
}

func TestBuildMarksManualReview(t *testing.T) {
	report := findings.NewReport()
	f := findings.Validate(map[string]any{"vulnerability_name": "XSS", "threat_level": "medium", "location": "line 4"})
	f.ManualReview = true
	f.Note = "needs a look"
	report.Set("r/a.js", findings.Findings([]findings.Finding{f}))

	doc, err := Build(report, "r", ToolMetadata{Name: "llmscan"}, nil)
	require.NoError(t, err)
	result := doc.Runs[0].Results[0]
	assert.Equal(t, true, result.Properties["manual_review"])
	assert.Equal(t, "needs a look", result.Properties["note"])
	assert.Equal(t, "warning", *result.Level)
}

func TestEncode(t *testing.T) {
	doc, err := Build(sampleReport(), "demo", ToolMetadata{Name: "llmscan"}, nil)
	require.NoError(t, err)

	data, err := Encode(doc)
	require.NoError(t, err)

	var decoded gosarif.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Runs, 1)
	assert.Len(t, decoded.Runs[0].Results, 2)
	assert.Contains(t, string(data), "\n  ")
}

func TestToSarifErrorLevel(t *testing.T) {
	tests := map[findings.ThreatLevel]string{
		findings.LevelCritical:    "error",
		findings.LevelHigh:        "error",
		findings.LevelMedium:      "warning",
		findings.LevelLow:         "note",
		findings.LevelCodeQuality: "none",
	}
	for level, want := range tests {
		assert.Equal(t, want, toSarifErrorLevel(level), string(level))
	}
}

func TestLineRangeFromLocation(t *testing.T) {
	tests := []struct {
		location   string
		start, end int
	}{
		{"Line 42:", 42, 42},
		{"Lines 10-12:", 10, 12},
		{"Line 10: password = 'x'", 10, 10},
		{"Code snippet: def f()...", 0, 0},
		{"config.py: DEBUG", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			start, end := lineRangeFromLocation(tt.location)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestParseLineRange(t *testing.T) {
	start, end := parseLineRange("5 - 9")
	assert.Equal(t, 5, start)
	assert.Equal(t, 9, end)

	start, end = parseLineRange("abc")
	assert.Zero(t, start)
	assert.Zero(t, end)
}
