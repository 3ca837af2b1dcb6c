// Package ticket renders ticket state embedded in chart headings. A ticket is
// a heading link of the form [label](data:tkt,key=value&key2=value2).
package ticket

import (
	"bytes"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/russross/blackfriday/v2"

	"github.com/starford/atlas/internal/markdown"
)

// Scheme prefixes every ticket link.
const Scheme = "data:tkt,"

const (
	headingSelector = "h1, h2, h3, h4, h5, h6"
	headingWrapper  = `<div style="clear: both;"></div>`
)

var linkAttrs = `a[href^="` + Scheme + `"]`

// Field is one key/value pair of a ticket.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Ticket is a ticket found under a heading.
type Ticket struct {
	Heading string  `json:"heading"`
	Fields  []Field `json:"fields"`
}

// Parse decodes the fields of a ticket link. ok is false when href does not
// use the ticket scheme. Repeated keys keep their first position and last
// value.
func Parse(href string) (fields []Field, ok bool) {
	qs, ok := strings.CutPrefix(href, Scheme)
	if !ok {
		return nil, false
	}
	pos := make(map[string]int)
	for _, pair := range strings.Split(qs, "&") {
		k, v, found := strings.Cut(pair, "=")
		if !found || k == "" {
			continue
		}
		k, v = unescape(k), unescape(v)
		if i, seen := pos[k]; seen {
			fields[i].Value = v
			continue
		}
		pos[k] = len(fields)
		fields = append(fields, Field{Key: k, Value: v})
	}
	return fields, true
}

func unescape(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}

func selector() string {
	parts := make([]string, 0, 6)
	for i := 1; i <= 6; i++ {
		parts = append(parts, fmt.Sprintf("h%d > %s", i, linkAttrs))
	}
	return strings.Join(parts, ", ")
}

// Decorate wraps every heading of an HTML page in a clearing div and, for
// headings carrying a ticket link, hides the link and appends a table of the
// ticket's fields to the wrapper. Ticket links copied into a table of
// contents are removed.
func Decorate(page []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("ticket: parse html: %w", err)
	}

	doc.Find("nav " + linkAttrs).Remove()
	doc.Find(headingSelector).WrapHtml(headingWrapper)

	doc.Find(selector()).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		fields, ok := Parse(href)
		if !ok {
			return
		}
		s.SetAttr("style", "display: none")
		s.Parent().Parent().AppendHtml(Table(fields))
	})

	out, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("ticket: render html: %w", err)
	}
	return []byte(out), nil
}

// Table renders fields as an HTML ticket table.
func Table(fields []Field) string {
	var b strings.Builder
	b.WriteString(`<table class="ticket"><caption>Ticket State</caption>`)
	for _, f := range fields {
		b.WriteString(`<tr><td class="ticket-key">`)
		b.WriteString(html.EscapeString(f.Key))
		b.WriteString(`</td><td class="ticket-val">`)
		b.WriteString(html.EscapeString(f.Value))
		b.WriteString(`</td></tr>`)
	}
	b.WriteString(`</table>`)
	return b.String()
}

// FromMarkdown lists the tickets linked from the headings of a chart
// source. Links inside code or paragraphs are not tickets.
func FromMarkdown(src string) []Ticket {
	var out []Ticket
	markdown.Headings(markdown.Parse([]byte(src)), func(h *blackfriday.Node, text string) {
		link := ticketLink(h)
		if link == nil {
			return
		}
		fields, _ := Parse(string(link.LinkData.Destination))
		out = append(out, Ticket{Heading: text, Fields: fields})
	})
	return out
}

// ticketLink returns the first ticket link directly inside heading h.
func ticketLink(h *blackfriday.Node) *blackfriday.Node {
	for c := h.FirstChild; c != nil; c = c.Next {
		if c.Type == blackfriday.Link && strings.HasPrefix(string(c.LinkData.Destination), Scheme) {
			return c
		}
	}
	return nil
}
