// Package chart composes the searchable text of a chart from its source file
// and the drawings it links.
package chart

import (
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/atlas/internal/models"
	"github.com/starford/atlas/internal/parser"
	"github.com/starford/atlas/internal/storage"
	"github.com/starford/atlas/internal/svgtext"
)

// Builder reads charts through a storage provider.
type Builder struct {
	store  storage.Provider
	svg    *svgtext.Cache
	logger *slog.Logger
}

// NewBuilder creates a Builder. svg may be nil, in which case every drawing is
// parsed on every build.
func NewBuilder(store storage.Provider, svg *svgtext.Cache, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{store: store, svg: svg, logger: logger}
}

// Build reads the chart described by meta and returns it with composed text.
// Drawings that cannot be read or parsed are skipped with a warning.
func (b *Builder) Build(meta models.ChartMetadata) (*models.Chart, error) {
	src, err := b.store.Read(meta.Source)
	if err != nil {
		return nil, fmt.Errorf("chart: read %s: %w", meta.Source, err)
	}
	res := parser.Parse(src)

	c := &models.Chart{
		Slug:      meta.Slug,
		Source:    meta.Source,
		Title:     res.Title,
		Authors:   res.Authors,
		Date:      res.Date,
		Deps:      []string{meta.Source},
		UpdatedAt: meta.UpdatedAt,
	}

	var drawings [][]string
	for _, link := range res.Drawings {
		p := ResolveLink(meta.Dir(), link)
		text, updated, err := b.drawingText(p)
		if err != nil {
			b.logger.Warn("chart: skipping drawing",
				slog.String("chart", meta.Slug),
				slog.String("drawing", p),
				slog.String("error", err.Error()))
			continue
		}
		drawings = append(drawings, text)
		c.Deps = append(c.Deps, p)
		if updated.After(c.UpdatedAt) {
			c.UpdatedAt = updated
		}
	}

	c.Text = Compose(string(src), drawings)
	return c, nil
}

func (b *Builder) drawingText(p string) ([]string, time.Time, error) {
	info, err := b.store.Stat(p)
	if err != nil {
		return nil, time.Time{}, err
	}
	key := svgtext.Key(p, info)
	if b.svg != nil {
		if text, ok := b.svg.Get(key); ok {
			return text, info.ModTime(), nil
		}
	}
	data, err := b.store.Read(p)
	if err != nil {
		return nil, time.Time{}, err
	}
	text, err := svgtext.Extract(data)
	if err != nil {
		return nil, time.Time{}, err
	}
	if b.svg != nil {
		b.svg.Put(key, text)
	}
	return text, info.ModTime(), nil
}

// ResolveLink maps a link found in a chart under dir to a path relative to the
// charts root. Links starting with "/" are already root-relative.
func ResolveLink(dir, link string) string {
	if strings.HasPrefix(link, "/") {
		return path.Clean(strings.TrimPrefix(link, "/"))
	}
	return path.Clean(path.Join(dir, link))
}

// Compose appends one "svg: <text>" line per text item of every drawing to the
// chart source, each drawing introduced by a newline.
func Compose(src string, drawings [][]string) string {
	var b strings.Builder
	b.WriteString(src)
	for _, items := range drawings {
		b.WriteByte('\n')
		for _, item := range items {
			b.WriteString("svg: ")
			b.WriteString(item)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
