// Package chartservice coordinates storage, the chart index and the site
// dataset on behalf of the HTTP, MCP and CLI front ends.
package chartservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/atlas/internal/apperr"
	"github.com/starford/atlas/internal/chart"
	"github.com/starford/atlas/internal/index"
	"github.com/starford/atlas/internal/markdown"
	"github.com/starford/atlas/internal/metrics"
	"github.com/starford/atlas/internal/models"
	"github.com/starford/atlas/internal/parser"
	"github.com/starford/atlas/internal/search"
	"github.com/starford/atlas/internal/site"
	"github.com/starford/atlas/internal/storage"
	"github.com/starford/atlas/internal/svgtext"
	"github.com/starford/atlas/internal/ticket"
)

// ChartDetail is the full representation of a chart.
type ChartDetail struct {
	Slug      string          `json:"slug"`
	Href      string          `json:"href"`
	Source    string          `json:"source"`
	Title     string          `json:"title"`
	Authors   string          `json:"authors,omitempty"`
	Date      string          `json:"date,omitempty"`
	Text      string          `json:"text"`
	Deps      []string        `json:"deps"`
	Tickets   []ticket.Ticket `json:"tickets"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ChartView is a chart prepared for its HTML page.
type ChartView struct {
	Slug    string
	Title   string
	Authors string
	Date    string
	// Editor is the href of the chart source in the editor.
	Editor string
	// HTML is the rendered chart body.
	HTML []byte
}

// ChartListItem is a lightweight item in a list response.
type ChartListItem struct {
	Slug  string `json:"slug"`
	Href  string `json:"href"`
	Title string `json:"title"`
}

// Deps are the collaborators of a Service. Metrics, Logger and OnChange are
// optional.
type Deps struct {
	Store   storage.Provider
	DB      *index.DB
	Builder *chart.Builder
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	// OnChange is called after every index change, after the dataset cache
	// has been invalidated.
	OnChange index.EventCallback
}

// Service coordinates storage and index operations.
type Service struct {
	store    storage.Provider
	db       *index.DB
	builder  *chart.Builder
	cache    *site.Cache
	metrics  *metrics.Metrics
	logger   *slog.Logger
	onChange index.EventCallback
}

// NewService creates a new chart service.
func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		store:    d.Store,
		db:       d.DB,
		builder:  d.Builder,
		cache:    site.NewCache(d.DB),
		metrics:  d.Metrics,
		logger:   d.Logger,
		onChange: d.OnChange,
	}
}

// SetOnChange replaces the index change callback.
func (s *Service) SetOnChange(cb index.EventCallback) {
	s.onChange = cb
}

// HandleEvent reacts to an index change: it drops the cached dataset and
// forwards the event. It is the callback passed to index.Sync and index.Watch.
func (s *Service) HandleEvent(kind, slug string) {
	s.cache.Invalidate()
	s.metrics.IndexEvent(kind)
	if s.onChange != nil {
		s.onChange(kind, slug)
	}
}

// Reindex reconciles the index with the charts root.
func (s *Service) Reindex(_ context.Context) error {
	if err := index.Sync(s.db, s.builder, s.store, s.logger, s.HandleEvent); err != nil {
		return fmt.Errorf("chartservice: reindex: %w", err)
	}
	return nil
}

// Snapshot returns the current site dataset.
func (s *Service) Snapshot(_ context.Context) (*site.Snapshot, error) {
	snap, err := s.cache.Get()
	if err != nil {
		return nil, err
	}
	s.metrics.SetCharts(snap.Dataset.Len())
	return snap, nil
}

// Search evaluates q against the current dataset.
func (s *Service) Search(ctx context.Context, q search.Query) (*search.Result, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res := search.Evaluate(snap.Dataset, q)
	s.metrics.ObserveSearch(res.Mode.String(), time.Since(start), len(res.Matches))
	return res, nil
}

// ListCharts returns every published chart in dataset order.
func (s *Service) ListCharts(ctx context.Context) ([]ChartListItem, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]ChartListItem, 0, snap.Dataset.Len())
	snap.Dataset.Each(func(name, text string) bool {
		title := snap.Titles[name]
		if title == "" {
			title = search.Title(text)
		}
		items = append(items, ChartListItem{Slug: name, Href: search.Href(name), Title: title})
		return true
	})
	return items, nil
}

// GetChart builds a chart from disk and lists the tickets in its headings.
func (s *Service) GetChart(_ context.Context, slug string) (*ChartDetail, error) {
	meta, err := s.findChart(slug)
	if err != nil {
		return nil, err
	}
	c, err := s.builder.Build(meta)
	if err != nil {
		return nil, err
	}
	tickets := ticket.FromMarkdown(c.Text)
	if tickets == nil {
		tickets = []ticket.Ticket{}
	}
	return &ChartDetail{
		Slug:      c.Slug,
		Href:      search.Href(c.Slug),
		Source:    c.Source,
		Title:     c.Title,
		Authors:   c.Authors,
		Date:      c.Date,
		Text:      c.Text,
		Deps:      c.Deps,
		Tickets:   tickets,
		UpdatedAt: c.UpdatedAt,
	}, nil
}

// ChartPage returns a chart's title block and its body rendered to HTML.
func (s *Service) ChartPage(_ context.Context, slug string) (*ChartView, error) {
	meta, err := s.findChart(slug)
	if err != nil {
		return nil, err
	}
	src, err := s.store.Read(meta.Source)
	if err != nil {
		return nil, err
	}
	res := parser.Parse(src)
	return &ChartView{
		Slug:    meta.Slug,
		Title:   res.Title,
		Authors: res.Authors,
		Date:    res.Date,
		Editor:  "/" + meta.Source + "/editor",
		HTML:    markdown.HTML([]byte(res.Body)),
	}, nil
}

// CreateChart writes a new chart from the starter template and indexes it.
func (s *Service) CreateChart(ctx context.Context, slug string) (*ChartDetail, error) {
	slug, err := NormalizeSlug(slug)
	if err != nil {
		return nil, err
	}
	if slug == "" {
		return nil, fmt.Errorf("chartservice: create root chart: %w", apperr.ErrInvalidPath)
	}
	if _, err := s.findChart(slug); err == nil {
		return nil, fmt.Errorf("chartservice: create %s: %w", slug, apperr.ErrAlreadyExists)
	}
	if err := s.store.Write(slug+storage.ChartFiles[0], []byte(ChartTemplate)); err != nil {
		return nil, err
	}
	if err := s.Reindex(ctx); err != nil {
		return nil, err
	}
	return s.GetChart(ctx, slug)
}

// EditorSource returns the text of a chart source file for editing. A
// chart that does not exist yet starts from ChartTemplate.
func (s *Service) EditorSource(_ context.Context, p string) ([]byte, error) {
	p = path.Clean(strings.TrimPrefix(p, "/"))
	if !isChartFile(path.Base(p)) {
		return nil, fmt.Errorf("chartservice: editor source %q: %w", p, apperr.ErrInvalidPath)
	}
	data, err := s.store.Read(p)
	if errors.Is(err, apperr.ErrNotFound) {
		return []byte(ChartTemplate), nil
	}
	return data, err
}

// LoadSVG returns a drawing, creating a blank one first if it does not exist.
func (s *Service) LoadSVG(_ context.Context, p string) ([]byte, error) {
	p, err := drawingPath(p)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(p)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if err := s.store.Write(p, []byte(BlankSVG)); err != nil {
		return nil, err
	}
	s.logger.Info("chartservice: initialized drawing", slog.String("path", p))
	return []byte(BlankSVG), nil
}

// SaveSVG validates and stores a drawing, then re-indexes the charts that
// link it.
func (s *Service) SaveSVG(ctx context.Context, p string, data []byte) (err error) {
	defer func() { s.metrics.DrawingSaved(err) }()

	p, err = drawingPath(p)
	if err != nil {
		return err
	}
	if err := svgtext.Validate(data); err != nil {
		return err
	}
	if err := s.store.Write(p, data); err != nil {
		return err
	}
	s.logger.Info("chartservice: saved drawing", slog.String("path", p), slog.Int("bytes", len(data)))
	return s.Reindex(ctx)
}

// findChart locates the source file of the chart named slug.
func (s *Service) findChart(slug string) (models.ChartMetadata, error) {
	slug, err := NormalizeSlug(slug)
	if err != nil {
		return models.ChartMetadata{}, err
	}
	for _, name := range storage.ChartFiles {
		src := slug + name
		info, err := s.store.Stat(src)
		if err != nil || info.IsDir() {
			continue
		}
		return models.ChartMetadata{Slug: slug, Source: src, UpdatedAt: info.ModTime()}, nil
	}
	return models.ChartMetadata{}, fmt.Errorf("chartservice: chart %q: %w", slug, apperr.ErrNotFound)
}

// NormalizeSlug cleans a chart name into slug form: relative, slash
// separated, with a trailing "/" (the root chart is ""). Names escaping the
// charts root are rejected.
func NormalizeSlug(name string) (string, error) {
	name = strings.Trim(name, "/")
	if name == "" {
		return "", nil
	}
	clean := path.Clean(name)
	if clean == "." {
		return "", nil
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("chartservice: slug %q: %w", name, apperr.ErrInvalidPath)
	}
	return clean + "/", nil
}

func isChartFile(name string) bool {
	for _, n := range storage.ChartFiles {
		if name == n {
			return true
		}
	}
	return false
}

func drawingPath(p string) (string, error) {
	p = path.Clean(strings.TrimPrefix(p, "/"))
	if !strings.EqualFold(path.Ext(p), ".svg") {
		return "", fmt.Errorf("chartservice: drawing %q: %w", p, apperr.ErrInvalidPath)
	}
	return p, nil
}
