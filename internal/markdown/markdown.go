// Package markdown wraps the Markdown dialect charts are written in: the
// syntax tree used to find links and headings, and the HTML rendering of
// chart pages.
package markdown

import (
	"strings"

	"github.com/russross/blackfriday/v2"
)

// Extensions is the set of syntax extensions charts are parsed with.
const Extensions = blackfriday.NoIntraEmphasis |
	blackfriday.Tables |
	blackfriday.FencedCode |
	blackfriday.Autolink |
	blackfriday.Strikethrough |
	blackfriday.SpaceHeadings

// HTMLFlags controls chart page rendering. Raw HTML in a chart is dropped.
const HTMLFlags = blackfriday.SkipHTML | blackfriday.TOC

// Parse returns the syntax tree of src.
func Parse(src []byte) *blackfriday.Node {
	return blackfriday.New(blackfriday.WithExtensions(Extensions)).Parse(src)
}

// HTML renders src as an HTML fragment preceded by a table of contents.
func HTML(src []byte) []byte {
	r := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{Flags: HTMLFlags})
	return blackfriday.Run(src, blackfriday.WithExtensions(Extensions), blackfriday.WithRenderer(r))
}

// Targets returns the destinations of every link and image in the tree, in
// document order. Code spans and code blocks carry no links.
func Targets(root *blackfriday.Node) []string {
	var out []string
	root.Walk(func(n *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		if !entering {
			return blackfriday.GoToNext
		}
		switch n.Type {
		case blackfriday.CodeBlock, blackfriday.Code, blackfriday.HTMLBlock, blackfriday.HTMLSpan:
			return blackfriday.SkipChildren
		case blackfriday.Link, blackfriday.Image:
			out = append(out, string(n.LinkData.Destination))
		}
		return blackfriday.GoToNext
	})
	return out
}

// Headings calls fn for each heading node with its plain text.
func Headings(root *blackfriday.Node, fn func(h *blackfriday.Node, text string)) {
	root.Walk(func(n *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		if !entering || n.Type != blackfriday.Heading {
			return blackfriday.GoToNext
		}
		fn(n, Text(n))
		return blackfriday.SkipChildren
	})
}

// Text joins the literal text below n with whitespace collapsed.
func Text(n *blackfriday.Node) string {
	var b strings.Builder
	n.Walk(func(c *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		if !entering {
			return blackfriday.GoToNext
		}
		switch c.Type {
		case blackfriday.Text, blackfriday.Code:
			b.Write(c.Literal)
		case blackfriday.Softbreak, blackfriday.Hardbreak:
			b.WriteByte(' ')
		}
		return blackfriday.GoToNext
	})
	return strings.Join(strings.Fields(b.String()), " ")
}
