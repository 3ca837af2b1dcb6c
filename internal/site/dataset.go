// Package site builds, caches and fetches the site dataset: the ordered
// mapping of chart slug to chart text published at /site.json.
package site

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Dataset maps chart identifiers to their text, keeping insertion order.
// A Dataset is filled once and treated as read-only afterwards.
type Dataset struct {
	m *orderedmap.OrderedMap[string, string]
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{m: orderedmap.New[string, string]()}
}

// Add appends name with text. Re-adding a name replaces its text in place.
func (d *Dataset) Add(name, text string) {
	if d.m == nil {
		d.m = orderedmap.New[string, string]()
	}
	d.m.Set(name, text)
}

// Get returns the text stored for name.
func (d *Dataset) Get(name string) (string, bool) {
	if d == nil || d.m == nil {
		return "", false
	}
	return d.m.Get(name)
}

// Len returns the number of entries.
func (d *Dataset) Len() int {
	if d == nil || d.m == nil {
		return 0
	}
	return d.m.Len()
}

// Each calls fn for every entry in insertion order until fn returns false.
func (d *Dataset) Each(fn func(name, text string) bool) {
	if d == nil || d.m == nil {
		return
	}
	for p := d.m.Oldest(); p != nil; p = p.Next() {
		if !fn(p.Key, p.Value) {
			return
		}
	}
}

// Names returns the identifiers in insertion order.
func (d *Dataset) Names() []string {
	out := make([]string, 0, d.Len())
	d.Each(func(name, _ string) bool {
		out = append(out, name)
		return true
	})
	return out
}

// MarshalJSON encodes the dataset as a JSON object in insertion order.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	if d == nil || d.m == nil {
		return []byte("{}"), nil
	}
	return d.m.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object, keeping the document's key order.
func (d *Dataset) UnmarshalJSON(data []byte) error {
	m := orderedmap.New[string, string]()
	if err := m.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("site: decode dataset: %w", err)
	}
	d.m = m
	return nil
}
