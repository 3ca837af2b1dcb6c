package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/atlas/internal/chartservice"
	"github.com/starford/atlas/internal/render"
	"github.com/starford/atlas/internal/search"
)

// Handler holds route handlers.
type Handler struct {
	svc    *chartservice.Service
	tpl    *render.Renderer
	layout search.Layout
	feed   FeedOptions
}

// NewHandler creates a new Handler.
func NewHandler(svc *chartservice.Service, tpl *render.Renderer, layout search.Layout) *Handler {
	return &Handler{svc: svc, tpl: tpl, layout: layout}
}

// wildcardPath extracts the path matched by a trailing "*" route pattern.
// Supports encoded slashes from API clients (e.g. ops%2Fdeploy).
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// queryFrom reads find= and search= from URL query or form values.
func (h *Handler) queryFrom(get func(string) string) search.Query {
	return h.layout.Normalize(search.Query{
		Find:   get(search.KeyFind),
		Search: get(search.KeySearch),
	})
}

// SiteJSON handles GET /site.json.
func (h *Handler) SiteJSON(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		writeError(w, "site json", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	http.ServeContent(w, r, "site.json", snap.ModTime, bytes.NewReader(snap.JSON))
}

// Search handles GET /api/search.
//
//	@Summary		Filter charts by name and body regular expressions
//	@Tags			search
//	@Produce		json
//	@Param			find	query		string	false	"Chart name pattern"
//	@Param			search	query		string	false	"Chart body pattern, or \".\" to list names"
//	@Success		200		{object}	SearchResponse
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Search(r.Context(), h.queryFrom(r.URL.Query().Get))
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, newSearchResponse(res, h.layout))
}

// SearchPage handles GET /search.
func (h *Handler) SearchPage(w http.ResponseWriter, r *http.Request) {
	q := h.queryFrom(r.URL.Query().Get)
	res, err := h.svc.Search(r.Context(), q)
	if err != nil {
		writeError(w, "search page", err)
		return
	}
	var buf bytes.Buffer
	if err := h.tpl.SearchPage(&buf, render.Page{
		Layout:   h.layout,
		Query:    q,
		Result:   res,
		Fragment: search.EncodeFragment(q, h.layout),
	}); err != nil {
		writeError(w, "search page", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// SearchResults handles GET /search/results: the results area alone, for
// pages that refresh it in place.
func (h *Handler) SearchResults(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Search(r.Context(), h.queryFrom(r.URL.Query().Get))
	if err != nil {
		writeError(w, "search results", err)
		return
	}
	var buf bytes.Buffer
	if err := h.tpl.Results(&buf, res); err != nil {
		writeError(w, "search results", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// SearchScript handles GET /static/search.js.
func (h *Handler) SearchScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	http.ServeContent(w, r, "search.js", time.Time{}, bytes.NewReader(render.SearchScript()))
}

// SearchSubmit handles POST /search: it redirects to the first candidate,
// or answers 204 when there is none so the page stays as it is.
func (h *Handler) SearchSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid form"))
		return
	}
	res, err := h.svc.Search(r.Context(), h.queryFrom(r.PostForm.Get))
	if err != nil {
		writeError(w, "search submit", err)
		return
	}
	href, ok := search.Submit(res)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, href, http.StatusSeeOther)
}

// ListCharts handles GET /api/charts.
//
//	@Summary		List charts in dataset order
//	@Tags			charts
//	@Produce		json
//	@Success		200	{object}	ChartListResponse
//	@Router			/charts [get]
func (h *Handler) ListCharts(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListCharts(r.Context())
	if err != nil {
		writeError(w, "list charts", err)
		return
	}
	writeJSON(w, http.StatusOK, ChartListResponse{Charts: items, Total: len(items)})
}

// GetChart handles GET /api/charts/*.
//
//	@Summary		Get a chart with its composed text and tickets
//	@Tags			charts
//	@Produce		json
//	@Param			slug	path		string	true	"Chart slug"
//	@Success		200		{object}	ChartDetail
//	@Failure		404		{object}	errResponse
//	@Router			/charts/{slug} [get]
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetChart(r.Context(), wildcardPath(r))
	if err != nil {
		writeError(w, "get chart", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateChart handles POST /api/charts.
//
//	@Summary		Create a chart from the starter template
//	@Tags			charts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateChartRequest	true	"Chart to create"
//	@Success		201		{object}	ChartDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/charts [post]
func (h *Handler) CreateChart(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	var req CreateChartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if strings.Trim(req.Slug, "/ ") == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("slug is required"))
		return
	}
	c, err := h.svc.CreateChart(r.Context(), req.Slug)
	if err != nil {
		writeError(w, "create chart", err)
		return
	}
	slog.Info("chart created", slog.String("slug", c.Slug))
	writeJSON(w, http.StatusCreated, c)
}

// ChartPage handles GET /* for chart pages and editor sources.
func (h *Handler) ChartPage(w http.ResponseWriter, r *http.Request) {
	p := wildcardPath(r)
	if target, ok := strings.CutSuffix(p, "/editor"); ok {
		h.editorGet(w, r, target)
		return
	}
	view, err := h.svc.ChartPage(r.Context(), p)
	if err != nil {
		writeError(w, "chart page", err)
		return
	}
	var buf bytes.Buffer
	if err := h.tpl.ChartPage(&buf, render.Chart{
		Title:   view.Title,
		Authors: view.Authors,
		Date:    view.Date,
		Editor:  view.Editor,
		Body:    view.HTML,
	}); err != nil {
		writeError(w, "chart page", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) editorGet(w http.ResponseWriter, r *http.Request, target string) {
	if isDrawing(target) {
		h.serveSVG(w, r, target)
		return
	}
	src, err := h.svc.EditorSource(r.Context(), target)
	if err != nil {
		writeError(w, "editor source", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(src)
}
