package api

import (
	"bytes"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gorilla/feeds"

	"github.com/starford/atlas/internal/site"
)

// FeedOptions configure the Atom feed. An empty BaseURL resolves chart links
// against the requesting host.
type FeedOptions struct {
	Title   string
	BaseURL string
}

// SetFeed configures the Atom feed served at /atom.xml.
func (h *Handler) SetFeed(opts FeedOptions) {
	h.feed = opts
}

// AtomFeed handles GET /atom.xml.
func (h *Handler) AtomFeed(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		writeError(w, "atom feed", err)
		return
	}
	base, err := h.feedBase(r)
	if err != nil {
		writeError(w, "atom feed", err)
		return
	}
	feed, lastUpdated := buildFeed(snap, base, h.feed.Title)
	var buf bytes.Buffer
	if err := feed.WriteAtom(&buf); err != nil {
		writeError(w, "atom feed", err)
		return
	}
	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	http.ServeContent(w, r, "atom.xml", lastUpdated, bytes.NewReader(buf.Bytes()))
}

func (h *Handler) feedBase(r *http.Request) (*url.URL, error) {
	if h.feed.BaseURL != "" {
		return url.Parse(h.feed.BaseURL)
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return &url.URL{Scheme: scheme, Host: r.Host}, nil
}

// buildFeed lists every chart of snap, newest first, with links resolved
// against base. It returns the feed and the newest modification time.
func buildFeed(snap *site.Snapshot, base *url.URL, title string) (*feeds.Feed, time.Time) {
	if title == "" {
		title = "Charts"
	}
	var lastUpdated time.Time
	items := make([]*feeds.Item, 0, snap.Dataset.Len())
	for _, slug := range snap.Dataset.Names() {
		link := base.ResolveReference(&url.URL{Path: "/" + slug}).String()
		updated := snap.Updated[slug]
		name := snap.Titles[slug]
		if name == "" {
			name = slug
		}
		items = append(items, &feeds.Item{
			Title:   name,
			Link:    &feeds.Link{Href: link},
			Id:      link,
			Created: updated,
			Updated: updated,
		})
		if updated.After(lastUpdated) {
			lastUpdated = updated
		}
	}
	slices.SortStableFunc(items, func(a, b *feeds.Item) int {
		return b.Updated.Compare(a.Updated)
	})

	return &feeds.Feed{
		Title:   title,
		Link:    &feeds.Link{Href: base.ResolveReference(&url.URL{Path: "/"}).String()},
		Updated: lastUpdated,
		Items:   items,
	}, lastUpdated
}
