package dashboard

import (
	"encoding/json"
	"time"

	"github.com/hyperengineering/pocportal/internal/lifecycle"
	"github.com/hyperengineering/pocportal/internal/types"
)

// View is everything the presentation layer renders for one evaluation.
type View struct {
	AsOf         time.Time      `json:"as_of"`
	Filter       FilterState    `json:"filter"`
	Counts       CategoryCounts `json:"counts"`
	Buckets      Buckets        `json:"buckets"`
	BucketCounts map[string]int `json:"bucket_counts"`

	// Items is the full filtered list, the rows actually displayed.
	Items []Entry `json:"items"`

	// Base is the base filtered list the counts and buckets derive from.
	Base []Entry `json:"-"`
}

// Build runs the whole pipeline: classify, base filter, count, bucket, and
// full filter. The base phase completes before the category phase so tab
// counts never depend on the selected tab.
func Build(snap types.Snapshot, c *lifecycle.Classifier, fs FilterState, asOf time.Time) View {
	base := BaseFilter(Evaluate(snap, c, asOf), fs)
	buckets := Aggregate(base, asOf)
	return View{
		AsOf:         asOf,
		Filter:       fs,
		Counts:       CountCategories(base),
		Buckets:      buckets,
		BucketCounts: buckets.Counts(),
		Items:        FullFilter(base, fs),
		Base:         base,
	}
}

// MarshalJSON ensures a nil Items slice marshals as [].
func (v View) MarshalJSON() ([]byte, error) {
	if v.Items == nil {
		v.Items = []Entry{}
	}
	type Alias View
	return json.Marshal(Alias(v))
}
