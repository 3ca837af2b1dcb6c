// Package search implements the incremental chart filter: regular expression
// matching of chart names and bodies, context snippets, the bookmarkable URL
// fragment and the controller that drives a search view.
package search

import "fmt"

// Sentinel is the body filter value that lists chart names without
// inspecting bodies.
const Sentinel = "."

// Query holds the two filter strings. Both are case-insensitive regular
// expressions.
type Query struct {
	// Find filters chart names.
	Find string `json:"find"`
	// Search filters chart bodies.
	Search string `json:"search"`
}

// Empty reports whether neither filter is set.
func (q Query) Empty() bool {
	return q.Find == "" && q.Search == ""
}

// Layout selects how the query is entered and bookmarked.
type Layout int

const (
	// LayoutSplit uses separate name and body fields, bookmarked as find= and search=.
	LayoutSplit Layout = iota
	// LayoutCombined uses one field bound to the body filter, bookmarked as search=.
	LayoutCombined
)

// ParseLayout maps a configuration value to a Layout.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "", "split":
		return LayoutSplit, nil
	case "combined":
		return LayoutCombined, nil
	}
	return LayoutSplit, fmt.Errorf("search: unknown layout %q", s)
}

func (l Layout) String() string {
	if l == LayoutCombined {
		return "combined"
	}
	return "split"
}

// Normalize drops the parts of q the layout has no field for.
func (l Layout) Normalize(q Query) Query {
	if l == LayoutCombined {
		q.Find = ""
	}
	return q
}

// Mode is the evaluation mode chosen for a query.
type Mode int

const (
	// ModeNone means no filter applies; the results area is cleared.
	ModeNone Mode = iota
	// ModeList lists matching chart names without body inspection.
	ModeList
	// ModeBody matches chart bodies and extracts snippets.
	ModeBody
)

func (m Mode) String() string {
	switch m {
	case ModeList:
		return "list"
	case ModeBody:
		return "body"
	}
	return "none"
}

// ModeFor returns the mode q evaluates in.
func ModeFor(q Query) Mode {
	switch {
	case q.Search == Sentinel:
		return ModeList
	case q.Search != "":
		return ModeBody
	case q.Find != "":
		return ModeList
	}
	return ModeNone
}
