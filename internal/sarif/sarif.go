// Package sarif exports scan reports as SARIF 2.1.0.
package sarif

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/scan-io-git/llmscan/internal/findings"
)

// ToolMetadata names the driver recorded in the run.
type ToolMetadata struct {
	Name           string
	InformationURI string
	Version        *string
}

// Build converts report into a single-run SARIF document. Artifact URIs are
// relative to the repository root, so the repoName prefix of report keys is
// removed. Files that failed analysis carry no results and are only logged.
func Build(report *findings.Report, repoName string, tool ToolMetadata, logger hclog.Logger) (*sarif.Report, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	sarifReport, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(tool.Name, tool.InformationURI)
	if tool.Version != nil {
		run.Tool.Driver.SemanticVersion = tool.Version
	}

	prefix := ""
	if repoName != "" {
		prefix = repoName + "/"
	}

	for _, path := range report.Paths() {
		fr, _ := report.Get(path)
		if fr.IsFailure() {
			logger.Debug("file without SARIF results", "file", path, "reason", fr.Reason())
			continue
		}

		uri := strings.TrimPrefix(path, prefix)
		for _, f := range fr.List() {
			level := toSarifErrorLevel(f.ThreatLevel)
			rule := run.AddRule(ruleID(f)).
				WithDescription(f.CWEName).
				WithDefaultConfiguration(&sarif.ReportingConfiguration{
					Level: level,
				})
			if rule.Name == nil {
				name := f.VulnerabilityName
				rule.Name = &name
			}
			if uri := cweURI(f.CWEID); uri != "" && rule.HelpURI == nil {
				rule.HelpURI = &uri
			}

			physical := sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(uri))
			if start, end := lineRangeFromLocation(f.Location); start > 0 {
				region := sarif.NewRegion().WithStartLine(start)
				region.EndLine = &end
				physical = physical.WithRegion(region)
			}

			result := sarif.NewRuleResult(rule.ID).
				WithMessage(sarif.NewTextMessage(fmt.Sprintf("%s: %s", f.VulnerabilityName, f.VulnerabilityDescription))).
				WithLevel(level).
				WithLocations([]*sarif.Location{sarif.NewLocation().WithPhysicalLocation(physical)})
			result.Properties = map[string]interface{}{
				"threat_level": string(f.ThreatLevel),
				"location":     f.Location,
				"remediation":  f.Remediation,
				"fingerprint":  calculateMD5Hash(uri + "|" + f.VulnerabilityName + "|" + f.Location),
			}
			if f.ManualReview {
				result.Properties["manual_review"] = true
				result.Properties["note"] = f.Note
			}
			run.AddResult(result)
		}
	}

	sarifReport.AddRun(run)
	return sarifReport, nil
}

// Encode renders report as indented JSON.
func Encode(report *sarif.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := report.PrettyWrite(&buf); err != nil {
		return nil, fmt.Errorf("error writing SARIF report: %w", err)
	}
	return buf.Bytes(), nil
}
