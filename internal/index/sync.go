package index

import (
	"log/slog"

	"github.com/starford/atlas/internal/chart"
	"github.com/starford/atlas/internal/checksum"
	"github.com/starford/atlas/internal/storage"
)

// EventCallback is called after an index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, slug string)

// Sync walks the charts root and brings the index up to date:
//   - new/changed charts are composed and upserted
//   - charts removed from disk are deleted from the index
//
// A chart counts as changed when its composed text differs, so edits to a
// linked drawing are picked up as well.
func Sync(db *DB, b *chart.Builder, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	metas, err := store.ListCharts()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Slug] = struct{}{}

		c, err := b.Build(m)
		if err != nil {
			logger.Warn("sync: build failed", slog.String("slug", m.Slug), slog.String("error", err.Error()))
			continue
		}
		cs := checksum.String(c.Text)
		old, known := checksums[m.Slug]
		if known && old == cs {
			continue
		}

		row := ChartRow{
			Slug:      c.Slug,
			Source:    c.Source,
			Title:     c.Title,
			Text:      c.Text,
			Checksum:  cs,
			UpdatedAt: c.UpdatedAt,
		}
		if err := db.UpsertChart(row, c.Deps); err != nil {
			logger.Warn("sync: index failed", slog.String("slug", m.Slug), slog.String("error", err.Error()))
			continue
		}
		kind := "updated"
		if !known {
			kind = "created"
		}
		logger.Debug("sync: indexed", slog.String("slug", m.Slug), slog.String("op", kind))
		if cb != nil {
			cb(kind, m.Slug)
		}
	}

	// Remove stale entries.
	for slug := range checksums {
		if _, ok := disk[slug]; ok {
			continue
		}
		if err := db.DeleteChart(slug); err != nil {
			logger.Warn("sync: delete failed", slog.String("slug", slug), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: removed stale", slog.String("slug", slug))
		if cb != nil {
			cb("deleted", slug)
		}
	}

	return nil
}
