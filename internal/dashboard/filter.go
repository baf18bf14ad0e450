// Package dashboard turns a store snapshot into the filtered lists, tab
// counts and buckets shown on the POC dashboard.
package dashboard

import (
	"strings"
	"time"

	"github.com/hyperengineering/pocportal/internal/lifecycle"
	"github.com/hyperengineering/pocportal/internal/types"
)

// FilterState is the presentation layer's current selection. Empty slices
// and strings mean "no restriction".
type FilterState struct {
	// Owners matches the owning user's ID or email.
	Owners   []string `json:"owners,omitempty"`
	Regions  []string `json:"regions,omitempty"`
	Products []string `json:"products,omitempty"`
	Query    string   `json:"q,omitempty"`

	// Category is the selected tab. Empty shows every lifecycle category.
	Category lifecycle.LifecycleState `json:"category,omitempty"`

	// Risks narrows the Active tab only.
	Risks []lifecycle.RiskState `json:"risks,omitempty"`
}

// Entry is one POC with its owner and classification.
type Entry struct {
	POC            types.POC        `json:"poc"`
	Owner          *types.User      `json:"owner,omitempty"`
	Classification lifecycle.Result `json:"classification"`
}

// CategoryCounts are the tab header counts. Total is the size of the base
// filtered set, so Active+InReview+Completed == Total.
type CategoryCounts struct {
	Active    int `json:"active"`
	InReview  int `json:"in_review"`
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Evaluate classifies every non-deregistered POC in the snapshot and joins
// its owner. Deregistered POCs never reach either filter phase.
func Evaluate(snap types.Snapshot, c *lifecycle.Classifier, asOf time.Time) []Entry {
	entries := make([]Entry, 0, len(snap.POCs))
	for _, p := range snap.POCs {
		if p.IsDeregistered() {
			continue
		}
		e := Entry{
			POC:            p,
			Classification: c.Classify(p, snap.Assignments[p.ID], asOf),
		}
		if u, ok := snap.Users[p.OwnerID]; ok {
			owner := u
			e.Owner = &owner
		}
		entries = append(entries, e)
	}
	return entries
}

// BaseFilter applies owner, region, product and free-text filters. It never
// looks at the category or risk selection.
func BaseFilter(entries []Entry, fs FilterState) []Entry {
	q := strings.ToLower(strings.TrimSpace(fs.Query))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Classification.Lifecycle == lifecycle.StateDeregistered {
			continue
		}
		if len(fs.Owners) > 0 && !matchOwner(e, fs.Owners) {
			continue
		}
		if len(fs.Regions) > 0 && (e.Owner == nil || !containsFold(fs.Regions, e.Owner.Region)) {
			continue
		}
		if len(fs.Products) > 0 && !containsFold(fs.Products, e.POC.Product) {
			continue
		}
		if q != "" && !matchQuery(e, q) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FullFilter narrows a base filtered list to the selected category, and to
// the selected risk states when that category is Active.
func FullFilter(base []Entry, fs FilterState) []Entry {
	out := make([]Entry, 0, len(base))
	for _, e := range base {
		if fs.Category != "" && e.Classification.Lifecycle != fs.Category {
			continue
		}
		if fs.Category == lifecycle.StateActive && len(fs.Risks) > 0 && !containsRisk(fs.Risks, e.Classification.Risk) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// CountCategories computes the tab counts from a base filtered list.
func CountCategories(base []Entry) CategoryCounts {
	var c CategoryCounts
	for _, e := range base {
		switch e.Classification.Lifecycle {
		case lifecycle.StateActive:
			c.Active++
		case lifecycle.StateInReview:
			c.InReview++
		case lifecycle.StateCompleted:
			c.Completed++
		default:
			continue
		}
		c.Total++
	}
	return c
}

func matchOwner(e Entry, owners []string) bool {
	for _, o := range owners {
		if o == e.POC.OwnerID {
			return true
		}
		if e.Owner != nil && strings.EqualFold(o, e.Owner.Email) {
			return true
		}
	}
	return false
}

func matchQuery(e Entry, q string) bool {
	fields := []string{e.POC.Name, e.POC.CustomerName, e.POC.Product, e.POC.Partner, e.POC.UID}
	if e.Owner != nil {
		fields = append(fields, e.Owner.DisplayName, e.Owner.Email)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func containsFold(set []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range set {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return true
		}
	}
	return false
}

func containsRisk(set []lifecycle.RiskState, r lifecycle.RiskState) bool {
	for _, s := range set {
		if s == r {
			return true
		}
	}
	return false
}
