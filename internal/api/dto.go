package api

import (
	"github.com/starford/atlas/internal/chartservice"
	"github.com/starford/atlas/internal/search"
)

// ChartDetail is the full chart response type (aliased from the domain layer).
type ChartDetail = chartservice.ChartDetail

// ChartListItem is a lightweight item in a list response (aliased from the domain layer).
type ChartListItem = chartservice.ChartListItem

// ChartListResponse wraps chart listings.
type ChartListResponse struct {
	Charts []ChartListItem `json:"charts"`
	Total  int             `json:"total"`
}

// CreateChartRequest is the request body for creating a chart.
type CreateChartRequest struct {
	Slug string `json:"slug" example:"ops/deploy"`
}

// SearchResponse is the JSON rendition of a search result.
type SearchResponse struct {
	Query search.Query `json:"query"`
	Mode  string       `json:"mode" example:"body"`
	// Fragment is the bookmarkable URL fragment of the query, without "#".
	Fragment string         `json:"fragment" example:"search=deploy"`
	Invalid  bool           `json:"invalid,omitempty"`
	NewChart *search.Link   `json:"new_chart,omitempty"`
	Matches  []search.Match `json:"matches"`
}

func newSearchResponse(res *search.Result, layout search.Layout) SearchResponse {
	matches := res.Matches
	if matches == nil {
		matches = []search.Match{}
	}
	return SearchResponse{
		Query:    res.Query,
		Mode:     res.Mode.String(),
		Fragment: search.EncodeFragment(res.Query, layout),
		Invalid:  res.Invalid,
		NewChart: res.Prefix,
		Matches:  matches,
	}
}
