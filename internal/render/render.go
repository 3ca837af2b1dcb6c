// Package render produces the server-side HTML of the search page and the
// chart pages.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/starford/atlas/internal/search"
	"github.com/starford/atlas/internal/ticket"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/search.js
var searchScript []byte

// ScriptPath is where the search page loads its script from.
const ScriptPath = "/static/search.js"

// SearchScript returns the script that drives the search page in the
// browser: incremental results from /search/results and bookmarkable
// fragments.
func SearchScript() []byte { return searchScript }

// Page is the data of the search page.
type Page struct {
	Title    string
	Layout   search.Layout
	Query    search.Query
	Result   *search.Result
	Fragment string
}

// Split reports whether the page shows separate name and body fields.
func (p Page) Split() bool { return p.Layout == search.LayoutSplit }

// Bookmark is the link that restores the page's query. Fragment is already
// form-encoded.
func (p Page) Bookmark() template.URL { return template.URL("/search#" + p.Fragment) }

// Script is the src of the search page script.
func (Page) Script() string { return ScriptPath }

// Renderer executes the parsed templates.
type Renderer struct {
	tpl *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	tpl, err := template.New("base").ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("render: parse templates: %w", err)
	}
	return &Renderer{tpl: tpl}, nil
}

// SearchPage writes the full search page.
func (r *Renderer) SearchPage(w io.Writer, p Page) error {
	if p.Title == "" {
		p.Title = "Search"
	}
	if p.Result == nil {
		p.Result = &search.Result{Query: p.Query}
	}
	if err := r.tpl.ExecuteTemplate(w, "search", p); err != nil {
		return fmt.Errorf("render: search page: %w", err)
	}
	return nil
}

// Results writes only the results area for res.
func (r *Renderer) Results(w io.Writer, res *search.Result) error {
	if res == nil {
		res = &search.Result{}
	}
	if err := r.tpl.ExecuteTemplate(w, "results", res); err != nil {
		return fmt.Errorf("render: results: %w", err)
	}
	return nil
}

// Chart is the data of a chart page. Body is trusted rendered HTML.
type Chart struct {
	Title   string
	Authors string
	Date    string
	Editor  string
	Body    []byte
}

// ChartPage writes the page of a chart with its ticket headings decorated.
func (r *Renderer) ChartPage(w io.Writer, c Chart) error {
	var buf bytes.Buffer
	err := r.tpl.ExecuteTemplate(&buf, "chart", struct {
		Chart
		Body template.HTML
	}{Chart: c, Body: template.HTML(c.Body)})
	if err != nil {
		return fmt.Errorf("render: chart page: %w", err)
	}
	out, err := ticket.Decorate(buf.Bytes())
	if err != nil {
		return fmt.Errorf("render: chart page: %w", err)
	}
	_, err = w.Write(out)
	return err
}
