// Package svgtext extracts human-readable text from SVG drawings so that
// drawings become searchable alongside the chart that links them.
package svgtext

import (
	"bytes"
	"fmt"
	"io/fs"
	"strings"

	"github.com/antchfx/xmlquery"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/atlas/internal/apperr"
)

// Extract returns the non-blank character data of an SVG document in
// document order, trimmed of surrounding whitespace.
func Extract(data []byte) ([]string, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("svgtext: parse: %w: %w", apperr.ErrInvalidSVG, err)
	}
	var out []string
	var walk func(n *xmlquery.Node)
	walk = func(n *xmlquery.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case xmlquery.TextNode, xmlquery.CharDataNode:
				if s := strings.TrimSpace(c.Data); s != "" {
					out = append(out, s)
				}
			case xmlquery.ElementNode:
				walk(c)
			}
		}
	}
	walk(doc)
	return out, nil
}

// Validate reports whether data parses as an XML document with an <svg> root.
func Validate(data []byte) error {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("svgtext: parse: %w: %w", apperr.ErrInvalidSVG, err)
	}
	if xmlquery.FindOne(doc, "/svg") == nil && xmlquery.FindOne(doc, "/*[local-name()='svg']") == nil {
		return fmt.Errorf("svgtext: missing <svg> root: %w", apperr.ErrInvalidSVG)
	}
	return nil
}

// Cache memoizes extracted text keyed by path and file identity (size and
// modification time), so unchanged drawings are not re-parsed.
type Cache struct {
	cache *lru.Cache[string, []string]
}

// NewCache creates a cache holding at most maxItems drawings.
func NewCache(maxItems int) (*Cache, error) {
	if maxItems <= 0 {
		maxItems = 256
	}
	c, err := lru.New[string, []string](maxItems)
	if err != nil {
		return nil, err
	}
	return &Cache{cache: c}, nil
}

// Key identifies one version of a drawing.
func Key(path string, info fs.FileInfo) string {
	return fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
}

// Get returns the cached text for key.
func (c *Cache) Get(key string) ([]string, bool) {
	return c.cache.Get(key)
}

// Put stores text for key.
func (c *Cache) Put(key string, text []string) {
	c.cache.Add(key, text)
}

// Len returns the current number of cached drawings.
func (c *Cache) Len() int {
	return c.cache.Len()
}
