package lifecycle

import (
	"math"
	"time"

	"github.com/hyperengineering/pocportal/internal/types"
)

// LifecycleState is the mutually exclusive lifecycle state of a POC.
type LifecycleState string

const (
	StateActive       LifecycleState = "active"
	StateInReview     LifecycleState = "in_review"
	StateCompleted    LifecycleState = "completed"
	StateDeregistered LifecycleState = "deregistered"
)

// RiskState refines the Active lifecycle state. It is empty for every
// other lifecycle state.
type RiskState string

const (
	RiskNone          RiskState = ""
	RiskOnTrack       RiskState = "on_track"
	RiskAtRisk        RiskState = "at_risk"
	RiskAtRiskPrep    RiskState = "at_risk_prep"
	RiskAtRiskStalled RiskState = "at_risk_stalled"
	RiskOverdue       RiskState = "overdue"
)

// Result is the derived classification of one POC at one instant.
type Result struct {
	Lifecycle LifecycleState `json:"lifecycle_state"`
	Risk      RiskState      `json:"risk_state,omitempty"`
	Progress  Progress       `json:"progress"`
	Prep      PrepResult     `json:"prep"`
	Stall     StallResult    `json:"stall"`

	// HeartbeatAgeDays is nil when the POC has never sent a heartbeat.
	HeartbeatAgeDays *float64 `json:"heartbeat_age_days,omitempty"`

	// DaysUntilEnd is working days until the planned end date, or the
	// negative calendar-day distance once the date has passed. Nil without
	// a planned end date.
	DaysUntilEnd *int `json:"days_until_end,omitempty"`

	AsOf time.Time `json:"as_of"`
}

// StatusLabel is the single string persisted as a POC's risk_status:
// the risk state while Active, otherwise the lifecycle state.
func (r Result) StatusLabel() string {
	if r.Lifecycle == StateActive {
		return string(r.Risk)
	}
	return string(r.Lifecycle)
}

// Classifier applies a Policy. It holds no mutable state and is safe for
// concurrent use.
type Classifier struct {
	policy Policy
}

// NewClassifier creates a Classifier for the given policy.
func NewClassifier(p Policy) *Classifier {
	return &Classifier{policy: p}
}

// Classify derives the lifecycle and risk state of a POC as of asOf.
// It is total: absent or zero dates disable the rules that need them.
func (c *Classifier) Classify(poc types.POC, assignments []types.Assignment, asOf time.Time) Result {
	if poc.IsDeregistered() {
		return Result{
			Lifecycle: StateDeregistered,
			Prep:      PrepResult{Label: PrepNone},
			AsOf:      asOf,
		}
	}

	start := validDate(poc.StartDate)
	plannedEnd := validDate(poc.PlannedEndDate)

	progress := SummarizeProgress(assignments)
	r := Result{
		Progress: progress,
		Prep:     EvaluatePrep(start, assignments, asOf, c.policy),
		Stall:    DetectStall(start, progress, asOf, c.policy),
		AsOf:     asOf,
	}

	age := math.Inf(1)
	if last := validDate(poc.LastActivityAt); last != nil {
		age = math.Max(0, asOf.Sub(*last).Hours()/24)
		r.HeartbeatAgeDays = &age
	}

	if plannedEnd != nil {
		d := calendarDaysBetween(asOf, *plannedEnd)
		if d >= 0 {
			d = WorkingDays(asOf, *plannedEnd)
		}
		r.DaysUntilEnd = &d
	}
	pastEnd := r.DaysUntilEnd != nil && *r.DaysUntilEnd < 0

	recorded := poc.CommercialResult.Recorded()
	if progress.Total == 0 {
		switch {
		case recorded:
			r.Lifecycle = StateCompleted
		case pastEnd:
			r.Lifecycle = StateInReview
		default:
			r.Lifecycle = StateActive
		}
	} else {
		finished := progress.AllCompleted || age > c.policy.HeartbeatStaleDays
		switch {
		case finished && recorded:
			r.Lifecycle = StateCompleted
		case finished:
			r.Lifecycle = StateInReview
		default:
			r.Lifecycle = StateActive
		}
	}

	if r.Lifecycle == StateActive {
		r.Risk = c.risk(r, pastEnd)
	}
	return r
}

// risk evaluates the Active sub-states. Order matters: lateness, then
// preparation, then staleness, then the ending-soon window.
func (c *Classifier) risk(r Result, pastEnd bool) RiskState {
	switch {
	case pastEnd:
		return RiskOverdue
	case r.Prep.Endangered():
		return RiskAtRiskPrep
	case r.Stall.IsStalled:
		return RiskAtRiskStalled
	case r.DaysUntilEnd != nil && *r.DaysUntilEnd >= 0 && *r.DaysUntilEnd <= c.policy.EndingSoonDays && !r.Progress.AllCompleted:
		return RiskAtRisk
	default:
		return RiskOnTrack
	}
}

// ClassifyAll classifies every POC in the snapshot, keyed by POC ID.
func (c *Classifier) ClassifyAll(snap types.Snapshot, asOf time.Time) map[string]Result {
	out := make(map[string]Result, len(snap.POCs))
	for _, p := range snap.POCs {
		out[p.ID] = c.Classify(p, snap.Assignments[p.ID], asOf)
	}
	return out
}

// validDate treats the zero time like an absent value.
func validDate(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	return t
}
