package lifecycle

import (
	"reflect"
	"testing"
	"time"

	"github.com/hyperengineering/pocportal/internal/types"
)

// asOf is a Thursday.
var asOf = time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)

func freshPOC() types.POC {
	return types.POC{
		ID:               "poc-1",
		UID:              "POC-000000000001",
		LastActivityAt:   ptr(asOf.Add(-time.Hour)),
		CommercialResult: types.CommercialUnknown,
	}
}

func TestClassify_CommercialResultCompletesStaleFinishedPOC(t *testing.T) {
	done := day(2026, time.October, 1)
	poc := freshPOC()
	poc.CommercialResult = types.CommercialWon
	poc.LastActivityAt = ptr(asOf.AddDate(0, 0, -10))

	assignments := []types.Assignment{
		completedUC("a", done), completedUC("b", done), completedUC("c", done), completedUC("d", done),
	}

	r := NewClassifier(DefaultPolicy()).Classify(poc, assignments, asOf)

	if r.Lifecycle != StateCompleted {
		t.Errorf("Lifecycle = %q, want %q", r.Lifecycle, StateCompleted)
	}
	if r.Risk != RiskNone {
		t.Errorf("Risk = %q, want none", r.Risk)
	}
}

func TestClassify_NoAssignmentsPastEndIsInReview(t *testing.T) {
	poc := freshPOC()
	poc.PlannedEndDate = ptr(day(2026, time.October, 14))

	r := NewClassifier(DefaultPolicy()).Classify(poc, nil, asOf)

	if r.Lifecycle != StateInReview {
		t.Errorf("Lifecycle = %q, want %q", r.Lifecycle, StateInReview)
	}
}

func TestClassify_LifecycleTransitions(t *testing.T) {
	done := day(2026, time.October, 14)
	staleBeat := ptr(asOf.AddDate(0, 0, -3))

	tests := []struct {
		name        string
		mutate      func(p *types.POC)
		assignments []types.Assignment
		want        LifecycleState
	}{
		{
			name:   "no assignments, end date ahead",
			mutate: func(p *types.POC) { p.PlannedEndDate = ptr(day(2026, time.October, 30)) },
			want:   StateActive,
		},
		{
			name:   "no assignments, no end date",
			mutate: func(p *types.POC) {},
			want:   StateActive,
		},
		{
			name:   "no assignments, end date today",
			mutate: func(p *types.POC) { p.PlannedEndDate = ptr(day(2026, time.October, 15)) },
			want:   StateActive,
		},
		{
			name: "no assignments, result recorded before end",
			mutate: func(p *types.POC) {
				p.PlannedEndDate = ptr(day(2026, time.October, 30))
				p.CommercialResult = types.CommercialLost
			},
			want: StateCompleted,
		},
		{
			name:        "work outstanding, fresh heartbeat",
			mutate:      func(p *types.POC) {},
			assignments: []types.Assignment{activeUC("a"), completedUC("b", done)},
			want:        StateActive,
		},
		{
			name:        "work outstanding, fresh heartbeat, result recorded",
			mutate:      func(p *types.POC) { p.CommercialResult = types.CommercialWon },
			assignments: []types.Assignment{activeUC("a")},
			want:        StateActive,
		},
		{
			name:        "all completed, fresh heartbeat",
			mutate:      func(p *types.POC) {},
			assignments: []types.Assignment{completedUC("a", done)},
			want:        StateInReview,
		},
		{
			name:        "all completed with result skips review",
			mutate:      func(p *types.POC) { p.CommercialResult = types.CommercialNoDecision },
			assignments: []types.Assignment{completedUC("a", done)},
			want:        StateCompleted,
		},
		{
			name:        "stale heartbeat",
			mutate:      func(p *types.POC) { p.LastActivityAt = staleBeat },
			assignments: []types.Assignment{activeUC("a")},
			want:        StateInReview,
		},
		{
			name:        "heartbeat exactly at threshold",
			mutate:      func(p *types.POC) { p.LastActivityAt = ptr(asOf.AddDate(0, 0, -2)) },
			assignments: []types.Assignment{activeUC("a")},
			want:        StateActive,
		},
		{
			name:        "never sent a heartbeat",
			mutate:      func(p *types.POC) { p.LastActivityAt = nil },
			assignments: []types.Assignment{activeUC("a")},
			want:        StateInReview,
		},
		{
			name:        "heartbeat in the future clamps to zero",
			mutate:      func(p *types.POC) { p.LastActivityAt = ptr(asOf.Add(48 * time.Hour)) },
			assignments: []types.Assignment{activeUC("a")},
			want:        StateActive,
		},
		{
			name:        "only removed assignments behave like none",
			mutate:      func(p *types.POC) { p.PlannedEndDate = ptr(day(2026, time.October, 1)) },
			assignments: []types.Assignment{{ID: "gone"}},
			want:        StateInReview,
		},
	}

	c := NewClassifier(DefaultPolicy())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poc := freshPOC()
			tt.mutate(&poc)
			r := c.Classify(poc, tt.assignments, asOf)
			if r.Lifecycle != tt.want {
				t.Errorf("Lifecycle = %q, want %q", r.Lifecycle, tt.want)
			}
		})
	}
}

func TestClassify_RiskPriority(t *testing.T) {
	longAgo := day(2026, time.October, 5)

	tests := []struct {
		name        string
		mutate      func(p *types.POC)
		assignments []types.Assignment
		want        RiskState
	}{
		{
			name: "overdue beats prep",
			mutate: func(p *types.POC) {
				p.StartDate = ptr(day(2026, time.October, 20))
				p.PlannedEndDate = ptr(day(2026, time.October, 14))
			},
			assignments: []types.Assignment{prepUC("p", 100)},
			want:        RiskOverdue,
		},
		{
			name: "prep beats stalled",
			mutate: func(p *types.POC) {
				p.StartDate = &longAgo
				p.PlannedEndDate = ptr(day(2026, time.October, 16))
			},
			assignments: []types.Assignment{prepUC("p", 8), activeUC("a")},
			want:        RiskAtRiskPrep,
		},
		{
			name: "stalled beats ending soon",
			mutate: func(p *types.POC) {
				p.StartDate = &longAgo
				p.PlannedEndDate = ptr(day(2026, time.October, 16))
			},
			assignments: []types.Assignment{activeUC("a")},
			want:        RiskAtRiskStalled,
		},
		{
			name: "ending soon",
			mutate: func(p *types.POC) {
				p.StartDate = ptr(day(2026, time.October, 13))
				p.PlannedEndDate = ptr(day(2026, time.October, 19))
			},
			assignments: []types.Assignment{activeUC("a")},
			want:        RiskAtRisk,
		},
		{
			name: "ending today",
			mutate: func(p *types.POC) {
				p.StartDate = ptr(day(2026, time.October, 13))
				p.PlannedEndDate = ptr(day(2026, time.October, 15))
			},
			assignments: []types.Assignment{activeUC("a")},
			want:        RiskAtRisk,
		},
		{
			name: "no assignments ending soon",
			mutate: func(p *types.POC) {
				p.PlannedEndDate = ptr(day(2026, time.October, 16))
			},
			want: RiskAtRisk,
		},
		{
			name: "on track",
			mutate: func(p *types.POC) {
				p.StartDate = ptr(day(2026, time.October, 13))
				p.PlannedEndDate = ptr(day(2026, time.October, 30))
			},
			assignments: []types.Assignment{activeUC("a")},
			want:        RiskOnTrack,
		},
		{
			name: "prep in time is on track",
			mutate: func(p *types.POC) {
				p.StartDate = ptr(day(2026, time.October, 22))
				p.PlannedEndDate = ptr(day(2026, time.November, 13))
			},
			assignments: []types.Assignment{prepUC("p", 8)},
			want:        RiskOnTrack,
		},
		{
			name:   "no dates at all",
			mutate: func(p *types.POC) {},
			want:   RiskOnTrack,
		},
	}

	c := NewClassifier(DefaultPolicy())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poc := freshPOC()
			tt.mutate(&poc)
			r := c.Classify(poc, tt.assignments, asOf)
			if r.Lifecycle != StateActive {
				t.Fatalf("Lifecycle = %q, want active", r.Lifecycle)
			}
			if r.Risk != tt.want {
				t.Errorf("Risk = %q, want %q (prep=%+v stall=%+v)", r.Risk, tt.want, r.Prep, r.Stall)
			}
		})
	}
}

func TestClassify_DeregisteredDominates(t *testing.T) {
	c := NewClassifier(DefaultPolicy())
	variants := []types.POC{
		freshPOC(),
		func() types.POC { p := freshPOC(); p.CommercialResult = types.CommercialWon; return p }(),
		func() types.POC { p := freshPOC(); p.PlannedEndDate = ptr(day(2020, time.January, 1)); return p }(),
		func() types.POC { p := freshPOC(); p.LastActivityAt = nil; return p }(),
	}

	for i, p := range variants {
		p.DeregisteredAt = ptr(day(2026, time.October, 1))
		r := c.Classify(p, []types.Assignment{completedUC("a", asOf), activeUC("b")}, asOf)
		if r.Lifecycle != StateDeregistered {
			t.Errorf("variant %d: Lifecycle = %q, want deregistered", i, r.Lifecycle)
		}
		if r.Risk != RiskNone {
			t.Errorf("variant %d: Risk = %q, want none", i, r.Risk)
		}
		if r.Stall.IsStalled || r.Prep.Endangered() || r.Progress.AllCompleted {
			t.Errorf("variant %d: expected all flags false, got %+v", i, r)
		}
	}
}

func TestClassify_RiskOnlyWhenActive(t *testing.T) {
	c := NewClassifier(DefaultPolicy())
	ends := []*time.Time{nil, ptr(day(2026, time.October, 1)), ptr(day(2026, time.October, 16)), ptr(day(2026, time.December, 1))}
	beats := []*time.Time{nil, ptr(asOf.Add(-time.Hour)), ptr(asOf.AddDate(0, 0, -5))}
	results := []types.CommercialResult{types.CommercialUnknown, types.CommercialWon}
	sets := [][]types.Assignment{
		nil,
		{activeUC("a")},
		{completedUC("a", asOf.AddDate(0, 0, -1))},
		{prepUC("p", 80), activeUC("a")},
	}

	for _, end := range ends {
		for _, beat := range beats {
			for _, res := range results {
				for _, set := range sets {
					poc := freshPOC()
					poc.StartDate = ptr(day(2026, time.October, 5))
					poc.PlannedEndDate = end
					poc.LastActivityAt = beat
					poc.CommercialResult = res

					r := c.Classify(poc, set, asOf)
					switch r.Lifecycle {
					case StateActive:
						if r.Risk == RiskNone {
							t.Errorf("active POC without risk state: %+v", r)
						}
					case StateInReview, StateCompleted:
						if r.Risk != RiskNone {
							t.Errorf("%s POC carries risk %q", r.Lifecycle, r.Risk)
						}
					default:
						t.Errorf("unexpected lifecycle %q", r.Lifecycle)
					}
				}
			}
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	poc := freshPOC()
	poc.StartDate = ptr(day(2026, time.October, 5))
	poc.PlannedEndDate = ptr(day(2026, time.October, 19))
	assignments := []types.Assignment{prepUC("p", 12), activeUC("a"), completedUC("b", day(2026, time.October, 8))}

	c := NewClassifier(DefaultPolicy())
	first := c.Classify(poc, assignments, asOf)
	for i := 0; i < 10; i++ {
		if got := c.Classify(poc, assignments, asOf); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs:\n got %+v\nwant %+v", i, got, first)
		}
	}
}

func TestClassify_CustomPolicy(t *testing.T) {
	poc := freshPOC()
	poc.LastActivityAt = ptr(asOf.AddDate(0, 0, -3))
	assignments := []types.Assignment{activeUC("a")}

	p := DefaultPolicy()
	p.HeartbeatStaleDays = 5
	r := NewClassifier(p).Classify(poc, assignments, asOf)
	if r.Lifecycle != StateActive {
		t.Errorf("Lifecycle = %q, want active with 5-day stale threshold", r.Lifecycle)
	}
}

func TestResult_StatusLabel(t *testing.T) {
	if got := (Result{Lifecycle: StateActive, Risk: RiskOverdue}).StatusLabel(); got != "overdue" {
		t.Errorf("active label = %q, want overdue", got)
	}
	if got := (Result{Lifecycle: StateInReview}).StatusLabel(); got != "in_review" {
		t.Errorf("in review label = %q, want in_review", got)
	}
}

func TestClassifyAll(t *testing.T) {
	a := freshPOC()
	b := freshPOC()
	b.ID = "poc-2"
	b.DeregisteredAt = ptr(day(2026, time.October, 1))

	snap := types.Snapshot{
		POCs:        []types.POC{a, b},
		Assignments: map[string][]types.Assignment{"poc-1": {activeUC("x")}},
	}
	out := NewClassifier(DefaultPolicy()).ClassifyAll(snap, asOf)

	if len(out) != 2 {
		t.Fatalf("got %d results, want 2", len(out))
	}
	if out["poc-1"].Progress.Total != 1 {
		t.Errorf("poc-1 progress total = %d, want 1", out["poc-1"].Progress.Total)
	}
	if out["poc-2"].Lifecycle != StateDeregistered {
		t.Errorf("poc-2 lifecycle = %q, want deregistered", out["poc-2"].Lifecycle)
	}
}
