package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/atlas/internal/apperr"
)

// ChartRow represents a row in the charts table.
type ChartRow struct {
	Slug      string
	Source    string
	Title     string
	Text      string
	Checksum  string
	UpdatedAt time.Time
}

// UpsertChart inserts or replaces a chart and its dependency list within a transaction.
func (db *DB) UpsertChart(c ChartRow, deps []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO charts (slug, source, title, text, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			source     = excluded.source,
			title      = excluded.title,
			text       = excluded.text,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, c.Slug, c.Source, c.Title, c.Text, c.Checksum, c.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert chart: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM chart_deps WHERE slug = ?`, c.Slug); err != nil {
		return fmt.Errorf("index: clear deps: %w", err)
	}
	if len(deps) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO chart_deps (slug, path) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare dep insert: %w", err)
		}
		defer stmt.Close()
		for _, p := range deps {
			if _, err := stmt.Exec(c.Slug, p); err != nil {
				return fmt.Errorf("index: insert dep: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteChart removes a chart and its dependency list.
func (db *DB) DeleteChart(slug string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM chart_deps WHERE slug = ?`, slug)
	_, _ = tx.Exec(`DELETE FROM charts WHERE slug = ?`, slug)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a chart, or empty string if not found.
func (db *DB) GetChecksum(slug string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM charts WHERE slug = ?`, slug).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetChart returns a single chart row.
func (db *DB) GetChart(slug string) (*ChartRow, error) {
	var r ChartRow
	err := db.conn.QueryRow(`
		SELECT slug, source, title, text, checksum, updated_at
		FROM charts WHERE slug = ?
	`, slug).Scan(&r.Slug, &r.Source, &r.Title, &r.Text, &r.Checksum, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get chart: %w", err)
	}
	return &r, nil
}

// AllCharts returns every chart ordered by slug.
func (db *DB) AllCharts() ([]ChartRow, error) {
	rows, err := db.conn.Query(`
		SELECT slug, source, title, text, checksum, updated_at
		FROM charts ORDER BY slug
	`)
	if err != nil {
		return nil, fmt.Errorf("index: all charts: %w", err)
	}
	defer rows.Close()

	var out []ChartRow
	for rows.Next() {
		var r ChartRow
		if err := rows.Scan(&r.Slug, &r.Source, &r.Title, &r.Text, &r.Checksum, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllChecksums returns slug → checksum for every indexed chart.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT slug, checksum FROM charts`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var slug, cs string
		if err := rows.Scan(&slug, &cs); err != nil {
			return nil, err
		}
		out[slug] = cs
	}
	return out, rows.Err()
}

// Dependents returns the slugs of charts whose text includes the file at path.
func (db *DB) Dependents(path string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT slug FROM chart_deps WHERE path = ? ORDER BY slug`, path)
	if err != nil {
		return nil, fmt.Errorf("index: dependents: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
