package lifecycle

import "time"

// StallResult reports whether completion activity has gone quiet.
type StallResult struct {
	IsStalled             bool       `json:"is_stalled"`
	WorkdaysSinceActivity int        `json:"workdays_since_activity"`
	LastActivity          *time.Time `json:"last_activity,omitempty"`
}

// DetectStall measures working days since the last completion, or since
// the start date when nothing has completed yet. Only started POCs with
// outstanding in-scope work can stall.
func DetectStall(start *time.Time, progress Progress, asOf time.Time, p Policy) StallResult {
	if start == nil || CivilDay(*start, asOf.Location()).After(CivilDay(asOf, asOf.Location())) {
		return StallResult{}
	}
	if progress.Total == 0 || progress.AllCompleted {
		return StallResult{}
	}

	last := *start
	if progress.LatestCompletion != nil {
		last = *progress.LatestCompletion
	}

	days := WorkingDays(last, asOf)
	return StallResult{
		IsStalled:             days >= p.StallWorkdays && progress.Completed < progress.Total,
		WorkdaysSinceActivity: days,
		LastActivity:          &last,
	}
}
