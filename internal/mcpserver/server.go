// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Atlas chart search tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/atlas/internal/apperr"
	"github.com/starford/atlas/internal/chartservice"
	"github.com/starford/atlas/internal/search"
)

// SyntaxURI is the resource URI of the search syntax guide.
const SyntaxURI = "atlas://search-syntax"

// Server wraps the MCP server with Atlas tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *chartservice.Service
	layout search.Layout
}

// New creates a new MCP server with all Atlas tools registered.
func New(svc *chartservice.Service, layout search.Layout) *Server {
	s := &Server{svc: svc, layout: layout}

	s.mcp = server.NewMCPServer(
		"Atlas",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_charts",
		mcp.WithDescription("Filter charts by a name pattern and a body pattern. "+
			"Both are case-insensitive regular expressions. Pass search \".\" to list "+
			"chart names without snippets. Read the syntax guide via get_search_syntax "+
			"or the "+SyntaxURI+" resource."),
		mcp.WithString("find", mcp.Description("Regular expression matched against chart names")),
		mcp.WithString("search", mcp.Description("Regular expression matched against chart text, or \".\"")),
	), s.searchCharts)

	s.mcp.AddTool(mcp.NewTool("read_chart",
		mcp.WithDescription("Read a chart: its composed text (source plus drawing text), title and tickets."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Chart name (e.g. ops/deploy/)")),
	), s.readChart)

	s.mcp.AddTool(mcp.NewTool("list_charts",
		mcp.WithDescription("List all charts in name order, one \"slug<TAB>title\" per line."),
	), s.listCharts)

	s.mcp.AddTool(mcp.NewTool("create_chart",
		mcp.WithDescription("Create a new chart from the starter template."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Name of the new chart (e.g. ops/deploy)")),
	), s.createChart)

	s.mcp.AddTool(mcp.NewTool("new_chart_link",
		mcp.WithDescription("Return the editor link that starts a new chart named after a search term."),
		mcp.WithString("term", mcp.Required(), mcp.Description("Search term to name the chart after")),
	), s.newChartLink)

	s.mcp.AddTool(mcp.NewTool("save_drawing",
		mcp.WithDescription("Save an SVG drawing next to a chart. The drawing text becomes searchable "+
			"in every chart that links it."),
		mcp.WithString("chart", mcp.Required(), mcp.Description("Chart the drawing belongs to")),
		mcp.WithString("source", mcp.Required(), mcp.Description("SVG markup, a base64 data: URI, or an http(s) URL")),
		mcp.WithString("filename", mcp.Description("File name ending in .svg (generated when empty)")),
	), s.saveDrawing)

	s.mcp.AddTool(mcp.NewTool("get_search_syntax",
		mcp.WithDescription("Returns the chart search syntax guide."),
	), s.getSearchSyntax)

	s.mcp.AddResource(
		mcp.NewResource(SyntaxURI, "Search Syntax",
			mcp.WithResourceDescription("How chart name and body patterns are matched."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSyntaxResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// searchOutput is the tool rendition of a search result.
type searchOutput struct {
	Mode     string         `json:"mode"`
	Fragment string         `json:"fragment"`
	Invalid  bool           `json:"invalid,omitempty"`
	First    string         `json:"first,omitempty"`
	NewChart *search.Link   `json:"new_chart,omitempty"`
	Matches  []search.Match `json:"matches"`
}

func (s *Server) searchCharts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := s.layout.Normalize(search.Query{
		Find:   req.GetString("find", ""),
		Search: req.GetString("search", ""),
	})
	if q.Empty() {
		return mcp.NewToolResultError("find or search is required"), nil
	}
	res, err := s.svc.Search(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := searchOutput{
		Mode:     res.Mode.String(),
		Fragment: search.EncodeFragment(q, s.layout),
		Invalid:  res.Invalid,
		NewChart: res.Prefix,
		Matches:  res.Matches,
	}
	if out.Matches == nil {
		out.Matches = []search.Match{}
	}
	out.First, _ = search.Submit(res)
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) readChart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.svc.GetChart(ctx, slug)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", slug)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, _ := json.MarshalIndent(c, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) listCharts(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListCharts(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no charts found"), nil
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, it.Slug+"\t"+it.Title)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) createChart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.svc.CreateChart(ctx, slug)
	if errors.Is(err, apperr.ErrAlreadyExists) {
		return mcp.NewToolResultError(fmt.Sprintf("chart already exists: %s", slug)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", c.Href)), nil
}

func (s *Server) newChartLink(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	term, err := req.RequireString("term")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(term) == "" {
		return mcp.NewToolResultError("term is blank"), nil
	}
	return mcp.NewToolResultText(search.NewChartLink(term).Href), nil
}

func (s *Server) getSearchSyntax(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SearchSyntax), nil
}

func (s *Server) readSyntaxResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      SyntaxURI,
			MIMEType: "text/markdown",
			Text:     SearchSyntax,
		},
	}, nil
}
