package search

import "strings"

// Link is a rendered anchor.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// NewChartText is the anchor text of the new chart affordance.
const NewChartText = "make a new chart"

// Href returns the site-relative path of the chart named name.
func Href(name string) string {
	return "/" + name
}

// Title returns the display title of a chart body: its first line without
// the "% " title marker.
func Title(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	line = strings.TrimSuffix(line, "\r")
	return strings.TrimPrefix(line, "% ")
}

// NewChartLink returns the editor link for creating a chart named after term.
func NewChartLink(term string) *Link {
	return &Link{
		Href: "/" + strings.TrimSpace(term) + "/index.txt/editor",
		Text: NewChartText,
	}
}
