package lifecycle

import (
	"time"

	"github.com/hyperengineering/pocportal/internal/types"
)

// PrepLabel is the readiness verdict for pre-engagement preparation.
type PrepLabel string

const (
	PrepNone    PrepLabel = "none"
	PrepReady   PrepLabel = "ready"
	PrepInTime  PrepLabel = "in_time"
	PrepAtRisk  PrepLabel = "at_risk"
	PrepOverdue PrepLabel = "overdue"
)

// PrepResult carries the verdict plus the numbers behind it.
type PrepResult struct {
	Label            PrepLabel `json:"label"`
	OutstandingHours float64   `json:"outstanding_hours"`
	CapacityHours    float64   `json:"capacity_hours"`
	DaysLeft         int       `json:"days_left"`
	OutstandingCount int       `json:"outstanding_count"`
}

// Endangered reports whether preparation threatens the start date.
func (r PrepResult) Endangered() bool {
	return r.Label == PrepAtRisk || r.Label == PrepOverdue
}

// EvaluatePrep compares outstanding customer-prep effort with the working-day
// capacity left before start. A POC without a start date or without prep
// steps yields PrepNone.
func EvaluatePrep(start *time.Time, assignments []types.Assignment, asOf time.Time, p Policy) PrepResult {
	if start == nil {
		return PrepResult{Label: PrepNone}
	}

	var r PrepResult
	prepSteps := 0
	for _, a := range assignments {
		if !a.InScope() || !a.IsPrepStep() {
			continue
		}
		prepSteps++
		if a.Status() == types.AssignmentCompleted {
			continue
		}
		r.OutstandingHours += a.EstimateHours()
		r.OutstandingCount++
	}
	if prepSteps == 0 {
		return PrepResult{Label: PrepNone}
	}

	r.DaysLeft = WorkingDays(asOf, *start)
	r.CapacityHours = float64(r.DaysLeft) * p.PrepHoursPerDay
	if r.CapacityHours < 0 {
		r.CapacityHours = 0
	}

	switch {
	case r.OutstandingHours <= 0:
		r.Label = PrepReady
	case r.DaysLeft <= 0 || r.CapacityHours <= 0:
		r.Label = PrepOverdue
	case r.OutstandingHours > r.CapacityHours:
		r.Label = PrepAtRisk
	default:
		r.Label = PrepInTime
	}
	return r
}
