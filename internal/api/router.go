package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/atlas/internal/render"
)

// NewRouter creates a chi router with the JSON API routes, to be mounted at
// /api. authEnabled controls whether Bearer token auth is enforced on
// writes. events, if non-nil, is mounted at GET /events.
func NewRouter(h *Handler, authEnabled bool, token string, events http.Handler) chi.Router {
	r := chi.NewRouter()

	// Reads are public like the site itself.
	r.Get("/search", h.Search)
	r.Get("/charts", h.ListCharts)
	r.Get("/charts/*", h.GetChart)
	r.Get("/svg/*", h.GetSVG)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))
		r.Post("/charts", h.CreateChart)
		r.Post("/svg/*", h.SaveSVG)
	})

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}

// MountSite registers the public site routes on r: the dataset, the Atom
// feed, the search page and the chart pages, which live at "/" + slug.
func MountSite(r chi.Router, h *Handler, authEnabled bool, token string) {
	r.Get("/site.json", h.SiteJSON)
	r.Get("/atom.xml", h.AtomFeed)
	r.Get("/search", h.SearchPage)
	r.Get("/search/results", h.SearchResults)
	r.Get(render.ScriptPath, h.SearchScript)
	r.Post("/search", h.SearchSubmit)
	r.Get("/*", h.ChartPage)
	r.With(AuthMiddleware(authEnabled, token)).Post("/*", h.EditorSave)
}
