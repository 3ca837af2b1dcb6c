package site

import (
	"log/slog"

	"github.com/starford/atlas/internal/chart"
	"github.com/starford/atlas/internal/checksum"
	"github.com/starford/atlas/internal/index"
	"github.com/starford/atlas/internal/storage"
)

// chartRows adapts a directory scan to Source.
type chartRows struct {
	store   storage.Provider
	builder *chart.Builder
	logger  *slog.Logger
}

func (s chartRows) AllCharts() ([]index.ChartRow, error) {
	metas, err := s.store.ListCharts()
	if err != nil {
		return nil, err
	}
	rows := make([]index.ChartRow, 0, len(metas))
	for _, m := range metas {
		c, err := s.builder.Build(m)
		if err != nil {
			s.logger.Warn("site: skipping chart", slog.String("slug", m.Slug), slog.String("error", err.Error()))
			continue
		}
		rows = append(rows, index.ChartRow{
			Slug:      c.Slug,
			Source:    c.Source,
			Title:     c.Title,
			Text:      c.Text,
			Checksum:  checksum.String(c.Text),
			UpdatedAt: c.UpdatedAt,
		})
	}
	return rows, nil
}

// LoadLocal builds a snapshot by scanning the charts root directly, without
// an index database.
func LoadLocal(store storage.Provider, b *chart.Builder, logger *slog.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return Build(chartRows{store: store, builder: b, logger: logger})
}
