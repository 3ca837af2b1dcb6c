package site

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/starford/atlas/internal/index"
)

// Source supplies the indexed charts a dataset is built from.
type Source interface {
	AllCharts() ([]index.ChartRow, error)
}

// Snapshot is an immutable view of the dataset at one point in time.
type Snapshot struct {
	Dataset *Dataset
	// JSON is the encoded dataset served as /site.json.
	JSON []byte
	// ModTime is the newest chart modification time.
	ModTime time.Time
	// Titles maps chart slug to its parsed title.
	Titles map[string]string
	// Updated maps chart slug to its modification time.
	Updated map[string]time.Time
}

// Cache holds the current Snapshot and rebuilds it lazily after Invalidate.
type Cache struct {
	src Source

	mu    sync.Mutex
	snap  *Snapshot
	stale bool
}

// NewCache creates a cache reading from src. The first Get builds the snapshot.
func NewCache(src Source) *Cache {
	return &Cache{src: src, stale: true}
}

// Invalidate marks the snapshot stale; the next Get rebuilds it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
}

// Get returns the current snapshot, rebuilding it if stale.
func (c *Cache) Get() (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.stale && c.snap != nil {
		return c.snap, nil
	}
	snap, err := Build(c.src)
	if err != nil {
		return nil, err
	}
	c.snap = snap
	c.stale = false
	return snap, nil
}

// Build reads every chart from src into a new Snapshot, in slug order.
func Build(src Source) (*Snapshot, error) {
	rows, err := src.AllCharts()
	if err != nil {
		return nil, fmt.Errorf("site: load charts: %w", err)
	}
	snap := &Snapshot{
		Dataset: NewDataset(),
		Titles:  make(map[string]string, len(rows)),
		Updated: make(map[string]time.Time, len(rows)),
	}
	for _, r := range rows {
		snap.Dataset.Add(r.Slug, r.Text)
		snap.Titles[r.Slug] = r.Title
		snap.Updated[r.Slug] = r.UpdatedAt
		if r.UpdatedAt.After(snap.ModTime) {
			snap.ModTime = r.UpdatedAt
		}
	}
	snap.JSON, err = json.Marshal(snap.Dataset)
	if err != nil {
		return nil, fmt.Errorf("site: encode dataset: %w", err)
	}
	return snap, nil
}
