package lifecycle

import (
	"time"

	"github.com/hyperengineering/pocportal/internal/types"
)

// Progress is the reduction of a POC's assignments.
type Progress struct {
	Total            int        `json:"total"`
	Completed        int        `json:"completed"`
	AllCompleted     bool       `json:"all_completed"`
	LatestCompletion *time.Time `json:"latest_completion,omitempty"`
}

// Percent returns completed/total as a percentage, 0 when nothing is in scope.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) * 100 / float64(p.Total)
}

// SummarizeProgress counts in-scope assignments and tracks the most recent
// completion. Unassigned records are skipped entirely.
func SummarizeProgress(assignments []types.Assignment) Progress {
	var p Progress
	for _, a := range assignments {
		if !a.InScope() {
			continue
		}
		p.Total++
		if a.Status() != types.AssignmentCompleted {
			continue
		}
		p.Completed++
		if a.CompletedAt != nil && (p.LatestCompletion == nil || !a.CompletedAt.Before(*p.LatestCompletion)) {
			at := *a.CompletedAt
			p.LatestCompletion = &at
		}
	}
	p.AllCompleted = p.Total > 0 && p.Completed == p.Total
	return p
}
