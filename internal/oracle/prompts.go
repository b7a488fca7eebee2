package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/scan-io-git/llmscan/internal/findings"
)

// BatchItem pairs a finding with the report key of the file it belongs to.
type BatchItem struct {
	FilePath string           `json:"file_path"`
	Finding  findings.Finding `json:"finding"`
}

var analysisPrompt = template.Must(template.New("analysis").Parse(`You are a security expert analyzing the following code for potential security vulnerabilities.

File: {{.Path}}
Code:
{{.Content}}

Instructions:
- List each vulnerability with line numbers or code snippets showing the exact location.
- For each vulnerability include its name, a detailed description, the exact location,
  suggested remediation steps, a threat level (code quality issue, low, medium, high or critical)
  and the CWE number and name.

Respond with a single JSON object of this shape and nothing else:
{
  "vulnerabilities": [
    {
      "vulnerability_name": "...",
      "vulnerability_description": "...",
      "location": "Line N: ...",
      "remediation": "...",
      "threat_level": "code quality issue|low|medium|high|critical",
      "cwe_id": "CWE-...",
      "cwe_name": "..."
    }
  ]
}
If the file has no vulnerabilities return {"vulnerabilities": []}.
`))

var batchPrompt = template.Must(template.New("batch").Parse(`You are a security expert reviewing a batch of preliminary vulnerability reports for a code repository.
{{- if .RepoRef}}
The repository has been uploaded and is available at: {{.RepoRef}}
{{- end}}
Validate and refine these findings to reduce false positives and improve accuracy.

Full repository content:
{{.RepoText}}

Input vulnerability reports (JSON list):
{{.Items}}

Instructions:
1. Analyze each report using the repository content as context.
2. Decide whether each report is a true positive or a false positive.
3. For true positives you may update the threat level (critical, high, medium, low or code quality issue).
4. Respond with a JSON object keyed by file_path. Each value is a list with exactly one entry per input
   report of that file, in the same order:
   - false positive: {"is_false_positive": true, "vulnerability_name": "<original name>"}
   - true positive: {"is_false_positive": false, "vulnerability_name": "<original name>", "improved_description": "...", "new_threat_level": "..."}
Provide only the JSON object, without markdown formatting or explanations.
`))

var findingPrompt = template.Must(template.New("finding").Parse(`You are a security expert reviewing one preliminary vulnerability report for a code repository.
{{- if .RepoRef}}
The repository has been uploaded and is available at: {{.RepoRef}}
{{- end}}
Using the full repository content as context, refine the following report.

File: {{.FilePath}}
Vulnerability report:
{{.Item}}

Full repository content:
{{.RepoText}}

Instructions:
- Decide whether the vulnerability is a true positive or a false positive.
- If it is a true positive provide an improved description and an updated threat level
  (critical, high, medium, low or code quality issue).
- Respond with a JSON object with the keys is_false_positive (boolean), vulnerability_name (string),
  improved_description (string, true positives only) and new_threat_level (string, true positives only).
Provide only the JSON object.
`))

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func renderAnalysisPrompt(path, content string) (string, error) {
	return render(analysisPrompt, struct{ Path, Content string }{path, content})
}

func renderBatchPrompt(items []BatchItem, repoText, repoRef string) (string, error) {
	encoded, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode batch: %w", err)
	}
	return render(batchPrompt, struct{ Items, RepoText, RepoRef string }{string(encoded), repoText, repoRef})
}

func renderFindingPrompt(item BatchItem, repoText, repoRef string) (string, error) {
	encoded, err := json.MarshalIndent(item.Finding, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode finding: %w", err)
	}
	return render(findingPrompt, struct{ FilePath, Item, RepoText, RepoRef string }{item.FilePath, string(encoded), repoText, repoRef})
}
