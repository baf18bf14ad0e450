package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hyperengineering/pocportal/internal/config"
	"github.com/hyperengineering/pocportal/internal/lifecycle"
	"github.com/hyperengineering/pocportal/internal/store"
	"github.com/hyperengineering/pocportal/internal/types"
)

// Flags shared by the commands that read the database directly.
var (
	dbPathOverride string
	jsonOutput     bool
	asOfFlag       string
)

// localEnv is what an offline command needs: the store and the classifier
// built from the configured policy.
type localEnv struct {
	store      *store.SQLiteStore
	classifier *lifecycle.Classifier
	loc        *time.Location
}

func (e *localEnv) Close() error {
	return e.store.Close()
}

// openLocal opens the configured database, honouring --db.
func openLocal() (*localEnv, error) {
	cfg, err := config.LoadLocal()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	path := cfg.Database.Path
	if dbPathOverride != "" {
		path = dbPathOverride
	}

	db, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return &localEnv{
		store:      db,
		classifier: lifecycle.NewClassifier(cfg.ClassifierPolicy()),
		loc:        cfg.Location(),
	}, nil
}

// resolveAsOf parses --as-of, defaulting to now in the configured zone.
func resolveAsOf(raw string, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Now().In(loc), nil
	}
	t, ok := types.ParseDate(raw)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid --as-of %q: want YYYY-MM-DD or RFC 3339", raw)
	}
	return lifecycle.EvaluationTime(t, loc), nil
}

// printJSON marshals v to indented JSON and writes it to w.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
