package scanner

// Stage is the position of a scan in its lifecycle.
type Stage string

const (
	StageNew               Stage = ""
	StageCollected         Stage = "COLLECTED"
	StageFirstPassRunning  Stage = "FIRST_PASS_RUNNING"
	StageFirstPassDone     Stage = "FIRST_PASS_DONE"
	StageRefinementRunning Stage = "REFINEMENT_RUNNING"
	StageRefinementDone    Stage = "REFINEMENT_DONE"
	StageSkipped           Stage = "SKIPPED"
	StageReportPersisted   Stage = "REPORT_PERSISTED"
)

var transitions = map[Stage][]Stage{
	StageNew:               {StageCollected},
	StageCollected:         {StageFirstPassRunning},
	StageFirstPassRunning:  {StageFirstPassDone},
	StageFirstPassDone:     {StageRefinementRunning, StageSkipped},
	StageRefinementRunning: {StageRefinementDone},
	StageRefinementDone:    {StageReportPersisted},
	StageSkipped:           {StageReportPersisted},
}

// CanAdvance reports whether a scan in stage s may move to next.
func (s Stage) CanAdvance(next Stage) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (s Stage) String() string {
	if s == StageNew {
		return "NEW"
	}
	return string(s)
}
