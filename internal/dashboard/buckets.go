package dashboard

import (
	"time"

	"github.com/hyperengineering/pocportal/internal/lifecycle"
)

// Buckets groups POC UIDs for the dashboard summary tiles. A POC lands in
// at most one risk bucket and at most one time-window bucket.
type Buckets struct {
	OnTrack       []string `json:"onTrack"`
	AtRisk        []string `json:"atRisk"`
	AtRiskPrep    []string `json:"atRiskPrep"`
	AtRiskStalled []string `json:"atRiskStalled"`
	Overdue       []string `json:"overdue"`
	InReview      []string `json:"inReview"`

	CompletingThisMonth []string `json:"completingThisMonth"`
	CompletingNextMonth []string `json:"completingNextMonth"`
	CompletedLastMonth  []string `json:"completedLastMonth"`
}

// Counts returns the size of every bucket keyed by its JSON name.
func (b Buckets) Counts() map[string]int {
	return map[string]int{
		"onTrack":             len(b.OnTrack),
		"atRisk":              len(b.AtRisk),
		"atRiskPrep":          len(b.AtRiskPrep),
		"atRiskStalled":       len(b.AtRiskStalled),
		"overdue":             len(b.Overdue),
		"inReview":            len(b.InReview),
		"completingThisMonth": len(b.CompletingThisMonth),
		"completingNextMonth": len(b.CompletingNextMonth),
		"completedLastMonth":  len(b.CompletedLastMonth),
	}
}

// Aggregate buckets a base filtered list. Month windows are calendar months
// of asOf in its own location, and stored instants are read in that location.
func Aggregate(base []Entry, asOf time.Time) Buckets {
	b := Buckets{
		OnTrack:             []string{},
		AtRisk:              []string{},
		AtRiskPrep:          []string{},
		AtRiskStalled:       []string{},
		Overdue:             []string{},
		InReview:            []string{},
		CompletingThisMonth: []string{},
		CompletingNextMonth: []string{},
		CompletedLastMonth:  []string{},
	}

	loc := asOf.Location()
	thisMonth := monthOf(asOf, loc)
	nextMonth := thisMonth.AddDate(0, 1, 0)
	lastMonth := thisMonth.AddDate(0, -1, 0)

	for _, e := range base {
		uid := e.POC.UID
		r := e.Classification

		switch r.Lifecycle {
		case lifecycle.StateActive:
			switch r.Risk {
			case lifecycle.RiskOnTrack:
				b.OnTrack = append(b.OnTrack, uid)
			case lifecycle.RiskAtRisk:
				b.AtRisk = append(b.AtRisk, uid)
			case lifecycle.RiskAtRiskPrep:
				b.AtRiskPrep = append(b.AtRiskPrep, uid)
			case lifecycle.RiskAtRiskStalled:
				b.AtRiskStalled = append(b.AtRiskStalled, uid)
			case lifecycle.RiskOverdue:
				b.Overdue = append(b.Overdue, uid)
			}
		case lifecycle.StateInReview:
			b.InReview = append(b.InReview, uid)
		}

		switch r.Lifecycle {
		case lifecycle.StateActive, lifecycle.StateInReview:
			if e.POC.PlannedEndDate == nil || e.POC.PlannedEndDate.IsZero() {
				continue
			}
			switch monthOf(*e.POC.PlannedEndDate, loc) {
			case thisMonth:
				b.CompletingThisMonth = append(b.CompletingThisMonth, uid)
			case nextMonth:
				b.CompletingNextMonth = append(b.CompletingNextMonth, uid)
			}
		case lifecycle.StateCompleted:
			if end := completionDate(e); end != nil && monthOf(*end, loc) == lastMonth {
				b.CompletedLastMonth = append(b.CompletedLastMonth, uid)
			}
		}
	}
	return b
}

// completionDate resolves when a completed POC ended: the recorded actual
// end date, then the automatic completion date, then the planned end date.
func completionDate(e Entry) *time.Time {
	for _, t := range []*time.Time{e.POC.ActualEndDate, e.POC.CompletionDateAuto, e.POC.PlannedEndDate} {
		if t != nil && !t.IsZero() {
			return t
		}
	}
	return nil
}

func monthOf(t time.Time, loc *time.Location) time.Time {
	y, m, _ := lifecycle.CivilDay(t, loc).Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
