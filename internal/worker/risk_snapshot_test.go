package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/pocportal/internal/config"
	"github.com/hyperengineering/pocportal/internal/lifecycle"
	"github.com/hyperengineering/pocportal/internal/types"
)

// mockRiskStore implements RiskStore for testing
type mockRiskStore struct {
	mu        sync.Mutex
	snapshot  *types.Snapshot
	loadErr   error
	saveErr   error
	loadCalls int
	saved     [][]types.RiskStatusUpdate
}

func (m *mockRiskStore) LoadSnapshot(ctx context.Context) (*types.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCalls++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.snapshot, nil
}

func (m *mockRiskStore) SaveRiskStatuses(ctx context.Context, updates []types.RiskStatusUpdate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, updates)
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	return len(updates), nil
}

func (m *mockRiskStore) getLoadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCalls
}

// everySchedule fires at a fixed interval after any instant.
type everySchedule time.Duration

func (s everySchedule) Next(t time.Time) time.Time {
	return t.Add(time.Duration(s))
}

// neverSchedule has no next activation.
type neverSchedule struct{}

func (neverSchedule) Next(time.Time) time.Time {
	return time.Time{}
}

func quietLogs(t *testing.T) {
	t.Helper()
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { slog.SetDefault(old) })
}

func newClassifier() *lifecycle.Classifier {
	return lifecycle.NewClassifier(lifecycle.DefaultPolicy())
}

func emptySnapshot() *types.Snapshot {
	return &types.Snapshot{
		POCs:        []types.POC{{ID: "p1", UID: "POC-000000000001"}},
		Assignments: map[string][]types.Assignment{},
		Users:       map[string]types.User{},
	}
}

func done(code string, at time.Time) types.Assignment {
	return types.Assignment{
		ID:          code,
		IsActive:    true,
		IsCompleted: true,
		CompletedAt: &at,
		UseCase:     &types.UseCase{Code: code},
	}
}

func TestBuildRiskUpdates(t *testing.T) {
	asOf := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	early := time.Date(2026, 10, 9, 10, 0, 0, 0, time.UTC)
	late := time.Date(2026, 10, 13, 16, 0, 0, 0, time.UTC)
	pastEnd := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	gone := time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC)

	snap := types.Snapshot{
		POCs: []types.POC{
			{ID: "fresh"},
			{ID: "late", PlannedEndDate: &pastEnd},
			{ID: "won", CommercialResult: types.CommercialWon},
			{ID: "review"},
			{ID: "partial", LastActivityAt: &asOf},
			{ID: "gone", DeregisteredAt: &gone},
		},
		Assignments: map[string][]types.Assignment{
			"won":     {done("UC-1", early), done("UC-2", late)},
			"review":  {done("UC-1", late)},
			"partial": {done("UC-1", early), {ID: "UC-2", IsActive: true, UseCase: &types.UseCase{Code: "UC-2"}}},
		},
	}

	updates := BuildRiskUpdates(newClassifier(), snap, asOf)

	want := map[string]struct {
		status string
		auto   *time.Time
	}{
		"fresh":   {"on_track", nil},
		"late":    {"in_review", nil},
		"won":     {"completed", &late},
		"review":  {"in_review", &late},
		"partial": {"on_track", nil},
	}

	if len(updates) != len(want) {
		t.Fatalf("len(updates) = %d, want %d (deregistered skipped)", len(updates), len(want))
	}
	for _, u := range updates {
		w, ok := want[u.POCID]
		if !ok {
			t.Errorf("unexpected update for %q", u.POCID)
			continue
		}
		if u.RiskStatus != w.status {
			t.Errorf("%s: RiskStatus = %q, want %q", u.POCID, u.RiskStatus, w.status)
		}
		switch {
		case w.auto == nil && u.CompletionDateAuto != nil:
			t.Errorf("%s: CompletionDateAuto = %v, want nil", u.POCID, *u.CompletionDateAuto)
		case w.auto != nil && (u.CompletionDateAuto == nil || !u.CompletionDateAuto.Equal(*w.auto)):
			t.Errorf("%s: CompletionDateAuto = %v, want %v", u.POCID, u.CompletionDateAuto, *w.auto)
		}
	}
}

func TestRiskSnapshotWorker_RunOnce(t *testing.T) {
	store := &mockRiskStore{snapshot: emptySnapshot()}
	w := NewRiskSnapshotWorker(store, newClassifier(), everySchedule(time.Hour), time.UTC)

	evaluated, changed, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if evaluated != 1 || changed != 1 {
		t.Errorf("evaluated/changed = %d/%d, want 1/1", evaluated, changed)
	}
	if len(store.saved) != 1 || store.saved[0][0].RiskStatus != "on_track" {
		t.Errorf("saved = %+v", store.saved)
	}
}

func TestRiskSnapshotWorker_RunOnce_EmptySnapshotSkipsSave(t *testing.T) {
	store := &mockRiskStore{snapshot: &types.Snapshot{}}
	w := NewRiskSnapshotWorker(store, newClassifier(), everySchedule(time.Hour), time.UTC)

	evaluated, changed, err := w.RunOnce(context.Background())
	if err != nil || evaluated != 0 || changed != 0 {
		t.Errorf("RunOnce() = %d, %d, %v", evaluated, changed, err)
	}
	if len(store.saved) != 0 {
		t.Error("SaveRiskStatuses called with nothing to save")
	}
}

func TestRiskSnapshotWorker_RunOnce_Errors(t *testing.T) {
	loadErr := errors.New("database is locked")
	store := &mockRiskStore{loadErr: loadErr}
	w := NewRiskSnapshotWorker(store, newClassifier(), everySchedule(time.Hour), time.UTC)
	if _, _, err := w.RunOnce(context.Background()); !errors.Is(err, loadErr) {
		t.Errorf("RunOnce() error = %v, want %v", err, loadErr)
	}

	saveErr := errors.New("disk full")
	store = &mockRiskStore{snapshot: emptySnapshot(), saveErr: saveErr}
	w = NewRiskSnapshotWorker(store, newClassifier(), everySchedule(time.Hour), time.UTC)
	evaluated, _, err := w.RunOnce(context.Background())
	if !errors.Is(err, saveErr) {
		t.Errorf("RunOnce() error = %v, want %v", err, saveErr)
	}
	if evaluated != 1 {
		t.Errorf("evaluated = %d, want 1", evaluated)
	}
}

func TestRiskSnapshotWorker_RunsOnSchedule(t *testing.T) {
	quietLogs(t)
	store := &mockRiskStore{snapshot: emptySnapshot()}
	w := NewRiskSnapshotWorker(store, newClassifier(), everySchedule(30*time.Millisecond), time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	// Wait for at least 2 activations
	time.Sleep(120 * time.Millisecond)
	cancel()

	if calls := store.getLoadCalls(); calls < 2 {
		t.Errorf("expected at least 2 cycles, got %d", calls)
	}
}

func TestRiskSnapshotWorker_DoesNotRunImmediately(t *testing.T) {
	quietLogs(t)
	store := &mockRiskStore{snapshot: emptySnapshot()}
	sched, err := config.ParseSchedule("0 6 * * 1-5")
	if err != nil {
		t.Fatalf("ParseSchedule() error = %v", err)
	}
	w := NewRiskSnapshotWorker(store, newClassifier(), sched, time.UTC)
	// Given a clock one minute before a weekday 06:00 run
	w.now = func() time.Time { return time.Date(2026, 10, 19, 5, 59, 0, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	cancel()

	if calls := store.getLoadCalls(); calls != 0 {
		t.Errorf("expected 0 cycles before the scheduled time, got %d", calls)
	}
}

func TestRiskSnapshotWorker_ContinuesAfterErrors(t *testing.T) {
	quietLogs(t)
	store := &mockRiskStore{loadErr: errors.New("database error")}
	w := NewRiskSnapshotWorker(store, newClassifier(), everySchedule(30*time.Millisecond), time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	time.Sleep(120 * time.Millisecond)
	cancel()

	if calls := store.getLoadCalls(); calls < 2 {
		t.Errorf("expected at least 2 cycles despite errors, got %d", calls)
	}
}

func TestRiskSnapshotWorker_GracefulShutdown(t *testing.T) {
	quietLogs(t)
	w := NewRiskSnapshotWorker(&mockRiskStore{}, newClassifier(), everySchedule(time.Hour), nil)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(stopped)
	}()

	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Error("worker did not stop within 1 second")
	}
}

func TestRiskSnapshotWorker_ExhaustedSchedule(t *testing.T) {
	quietLogs(t)
	w := NewRiskSnapshotWorker(&mockRiskStore{}, newClassifier(), neverSchedule{}, time.UTC)

	stopped := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Error("worker kept running without a next activation")
	}
}

func TestRiskSnapshotWorker_RunOnce_EvaluatesInConfiguredZone(t *testing.T) {
	start := time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)
	friday := time.Date(2026, 10, 9, 10, 0, 0, 0, time.UTC)
	// Wednesday in UTC, already Thursday in +02:00.
	now := time.Date(2026, 10, 14, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		loc  *time.Location
		want string
	}{
		{"utc", time.UTC, "on_track"},
		{"cest", time.FixedZone("CEST", 2*60*60), "at_risk_stalled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockRiskStore{snapshot: &types.Snapshot{
				POCs: []types.POC{{ID: "p1", UID: "POC-000000000001", StartDate: &start}},
				Assignments: map[string][]types.Assignment{
					"p1": {done("UC-1", friday), {ID: "UC-2", IsActive: true, UseCase: &types.UseCase{Code: "UC-2"}}},
				},
			}}
			w := NewRiskSnapshotWorker(store, newClassifier(), everySchedule(time.Hour), tt.loc)
			w.now = func() time.Time { return now }

			if _, _, err := w.RunOnce(context.Background()); err != nil {
				t.Fatalf("RunOnce() error = %v", err)
			}
			if len(store.saved) != 1 || len(store.saved[0]) != 1 {
				t.Fatalf("saved = %+v", store.saved)
			}
			if got := store.saved[0][0].RiskStatus; got != tt.want {
				t.Errorf("RiskStatus = %q, want %q", got, tt.want)
			}
		})
	}
}
