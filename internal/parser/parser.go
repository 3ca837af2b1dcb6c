// Package parser extracts the pandoc title block and drawing links from chart
// source text.
package parser

import (
	"strings"

	"github.com/starford/atlas/internal/markdown"
)

// Result holds the output of parsing a chart source file.
type Result struct {
	Title   string
	Authors string
	Date    string
	Body    string
	// Drawings lists link targets ending in "svg", in order of first appearance.
	Drawings []string
}

// Parse splits the title block from the body and collects drawing links.
func Parse(data []byte) *Result {
	text := string(data)
	r := &Result{Body: text}

	lines := strings.SplitAfterN(text, "\n", 4)
	if len(lines) >= 3 && isHeaderLine(lines[0]) && isHeaderLine(lines[1]) && isHeaderLine(lines[2]) {
		r.Title = headerValue(lines[0])
		r.Authors = headerValue(lines[1])
		r.Date = headerValue(lines[2])
		r.Body = ""
		if len(lines) == 4 {
			r.Body = lines[3]
		}
	}
	if r.Title == "" {
		r.Title = deriveTitle(text)
	}
	r.Drawings = extractDrawings(r.Body)
	return r
}

func isHeaderLine(line string) bool {
	return len(line) > 0 && line[0] == '%'
}

func headerValue(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "% "))
}

// deriveTitle falls back to a lone "% " line or the first H1 heading.
func deriveTitle(text string) string {
	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if i == 0 && strings.HasPrefix(trimmed, "% ") {
			return strings.TrimSpace(trimmed[2:])
		}
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// extractDrawings returns deduplicated local link and image targets that
// point at SVG files. Links inside code are not followed.
func extractDrawings(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(target string) {
		target = strings.TrimSpace(target)
		if i := strings.IndexAny(target, "?#"); i >= 0 {
			target = target[:i]
		}
		if !strings.HasSuffix(strings.ToLower(target), "svg") {
			return
		}
		if strings.Contains(target, "://") || strings.HasPrefix(target, "data:") {
			return
		}
		if _, ok := seen[target]; ok {
			return
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	for _, target := range markdown.Targets(markdown.Parse([]byte(body))) {
		add(target)
	}
	return out
}
