// Package models defines the domain types for Atlas.
package models

import "time"

// ChartMetadata is a lightweight representation of a chart directory returned
// by list operations.
type ChartMetadata struct {
	// Slug is the directory path relative to the charts root with a trailing
	// slash. The root chart has an empty slug.
	Slug string `json:"slug"`
	// Source is the chart text file relative to the charts root.
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Dir returns the chart directory relative to the charts root.
func (m ChartMetadata) Dir() string {
	if m.Slug == "" {
		return "."
	}
	return m.Slug[:len(m.Slug)-1]
}

// Chart is a chart with its composed searchable text.
type Chart struct {
	Slug    string   `json:"slug"`
	Source  string   `json:"source"`
	Title   string   `json:"title"`
	Authors string   `json:"authors,omitempty"`
	Date    string   `json:"date,omitempty"`
	Text    string   `json:"text"`
	Deps    []string `json:"deps"`
	// UpdatedAt is the newest modification time among the chart's source
	// file and the drawings it links.
	UpdatedAt time.Time `json:"updated_at"`
}
