package findings

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SummaryKey is the top-level key that holds the ThreatSummary in a persisted report.
const SummaryKey = "threat_summary"

// FileReport is the per-file result of analysis: either a list of findings
// or a failure marker with a reason. The zero value is an empty list.
type FileReport struct {
	findings []Finding
	reason   string
	failed   bool
}

// Findings builds a successful FileReport.
func Findings(list []Finding) FileReport {
	if list == nil {
		list = []Finding{}
	}
	return FileReport{findings: list}
}

// Failure builds a FileReport for a file that could not be analysed.
func Failure(reason string) FileReport {
	return FileReport{reason: reason, failed: true}
}

// IsFailure reports whether the file carries an error marker.
func (r FileReport) IsFailure() bool {
	return r.failed
}

// Reason returns the failure reason, empty for successful reports.
func (r FileReport) Reason() string {
	return r.reason
}

// List returns the findings of a successful report; nil for failures.
func (r FileReport) List() []Finding {
	if r.failed {
		return nil
	}
	return r.findings
}

// MarshalJSON renders findings as an array and failures as {"error": reason}.
func (r FileReport) MarshalJSON() ([]byte, error) {
	if r.failed {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{Error: r.reason})
	}
	if r.findings == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.findings)
}

// UnmarshalJSON accepts both persisted shapes. Findings read back are
// validated again, so a hand-edited report still yields in-scale findings.
func (r *FileReport) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var marker struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &marker); err != nil {
			return err
		}
		*r = Failure(marker.Error)
		return nil
	}
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	list := make([]Finding, 0, len(raw))
	for _, item := range raw {
		list = append(list, revalidate(item))
	}
	*r = Findings(list)
	return nil
}

// revalidate runs a persisted finding through Validate, keeping the
// manual review marker set by an earlier refinement.
func revalidate(raw any) Finding {
	f := Validate(raw)
	obj, _ := raw.(map[string]any)
	if truthy(obj["manual_review"]) {
		f.ManualReview = true
		if note, ok := scalarString(obj["note"]); ok {
			f.Note = note
		}
	}
	return f
}

// ThreatSummary counts findings per severity level.
type ThreatSummary map[ThreatLevel]int

// NewThreatSummary returns a summary with every level present and zero.
func NewThreatSummary() ThreatSummary {
	s := make(ThreatSummary, len(Levels))
	for _, level := range Levels {
		s[level] = 0
	}
	return s
}

// Add counts one finding of the given level; unknown levels count as code quality issues.
func (s ThreatSummary) Add(level ThreatLevel) {
	if !level.IsValid() {
		level = LevelCodeQuality
	}
	s[level]++
}

// Total is the number of findings counted.
func (s ThreatSummary) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// Report is the aggregate result of a pass: FileReports in insertion order
// plus the ThreatSummary.
type Report struct {
	order   []string
	files   map[string]FileReport
	Summary ThreatSummary
}

// NewReport creates an empty report with a zeroed summary.
func NewReport() *Report {
	return &Report{
		files:   make(map[string]FileReport),
		Summary: NewThreatSummary(),
	}
}

// Set records the FileReport for path, keeping the first insertion position.
func (r *Report) Set(path string, fr FileReport) {
	if _, exists := r.files[path]; !exists {
		r.order = append(r.order, path)
	}
	r.files[path] = fr
}

// Get returns the FileReport recorded for path.
func (r *Report) Get(path string) (FileReport, bool) {
	fr, ok := r.files[path]
	return fr, ok
}

// Paths returns the file keys in insertion order.
func (r *Report) Paths() []string {
	return append([]string(nil), r.order...)
}

// Len is the number of file entries.
func (r *Report) Len() int {
	return len(r.order)
}

// Summarize recomputes the ThreatSummary from every successful FileReport.
func (r *Report) Summarize() ThreatSummary {
	summary := NewThreatSummary()
	for _, path := range r.order {
		for _, f := range r.files[path].List() {
			summary.Add(f.ThreatLevel)
		}
	}
	r.Summary = summary
	return summary
}

// FindingCount is the number of findings across successful FileReports.
func (r *Report) FindingCount() int {
	n := 0
	for _, path := range r.order {
		n += len(r.files[path].List())
	}
	return n
}

// MarshalJSON writes file entries in insertion order followed by the summary.
func (r *Report) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for _, path := range r.order {
		key, err := json.Marshal(path)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.files[path])
		if err != nil {
			return nil, fmt.Errorf("failed to encode report for %q: %w", path, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
		buf.WriteByte(',')
	}

	summary := r.Summary
	if summary == nil {
		summary = NewThreatSummary()
	}
	value, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"` + SummaryKey + `":`)
	buf.Write(value)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a persisted report and keeps the file order.
func (r *Report) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("report must be a JSON object")
	}

	out := NewReport()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected report key %v", tok)
		}

		if key == SummaryKey {
			summary := NewThreatSummary()
			if err := dec.Decode(&summary); err != nil {
				return fmt.Errorf("failed to decode %s: %w", SummaryKey, err)
			}
			out.Summary = summary
			continue
		}

		var fr FileReport
		if err := dec.Decode(&fr); err != nil {
			return fmt.Errorf("failed to decode report for %q: %w", key, err)
		}
		out.Set(key, fr)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = *out
	return nil
}
