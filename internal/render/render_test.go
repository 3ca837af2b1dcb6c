package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/atlas/internal/search"
	"github.com/starford/atlas/internal/site"
)

func sample() *site.Dataset {
	ds := site.NewDataset()
	ds.Add("a/b", "% Title One\nfoo bar")
	ds.Add("c/d", "% Title <Two>\nbaz")
	return ds
}

func results(t *testing.T, res *search.Result) *goquery.Document {
	t.Helper()
	r, err := New()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Results(&buf, res))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)
	return doc
}

func TestResults_BodyMode(t *testing.T) {
	doc := results(t, search.Evaluate(sample(), search.Query{Search: "foo"}))

	assert.Equal(t, "/foo/index.txt/editor", doc.Find("p.newChartLink a").AttrOr("href", ""))
	assert.Contains(t, doc.Find("p.newChartLink").Text(), "shall we make a new chart for that?")
	assert.Equal(t, "Matching Charts", doc.Find("h2").Text())
	assert.Equal(t, "/a/b", doc.Find("#searchresults > ul > li > a").AttrOr("href", ""))
	assert.Equal(t, "foo", doc.Find("span.searchhit").Text())
	assert.Equal(t, " bar", doc.Find("span.searchctx").Last().Text())
	assert.Equal(t, "......", stripSpans(doc.Find("#searchresults li li")))
}

func TestResults_ListModeEscapes(t *testing.T) {
	doc := results(t, search.Evaluate(sample(), search.Query{Search: "."}))

	assert.Equal(t, 0, doc.Find("p.newChartLink").Length())
	assert.Equal(t, 2, doc.Find("#searchresults > ul > li").Length())
	assert.Equal(t, "Title <Two>", doc.Find("#searchresults > ul > li a").Last().Text())
}

func TestResults_None(t *testing.T) {
	doc := results(t, search.Evaluate(sample(), search.Query{Search: "nothing"}))
	assert.Equal(t, "None", doc.Find("#searchresults p b").Text())
	assert.Equal(t, 1, doc.Find("p.newChartLink").Length())
}

func TestResults_Cleared(t *testing.T) {
	doc := results(t, search.Evaluate(sample(), search.Query{}))
	assert.Equal(t, "", strings.TrimSpace(doc.Find("#searchresults").Text()))
	assert.Equal(t, 0, doc.Find("h2").Length())
}

func TestSearchPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	q := search.Query{Find: "a", Search: "foo"}
	var buf bytes.Buffer
	require.NoError(t, r.SearchPage(&buf, Page{
		Layout:   search.LayoutSplit,
		Query:    q,
		Result:   search.Evaluate(sample(), q),
		Fragment: search.EncodeFragment(q, search.LayoutSplit),
	}))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)

	assert.Equal(t, "a", doc.Find("#searchfind").AttrOr("value", ""))
	assert.Equal(t, "foo", doc.Find("#searchgrep").AttrOr("value", ""))
	assert.Equal(t, "post", doc.Find("#searchform").AttrOr("method", ""))
	assert.Equal(t, 1, doc.Find("#searchresults > ul > li").Length())
	assert.Equal(t, ScriptPath, doc.Find("head script").AttrOr("src", ""))
	assert.Equal(t, "/search#find=a&search=foo", doc.Find("#searchbookmark a").AttrOr("href", ""))

	buf.Reset()
	require.NoError(t, r.SearchPage(&buf, Page{Layout: search.LayoutCombined}))
	doc, err = goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, 0, doc.Find("#searchfind").Length())
	assert.Equal(t, "Search", doc.Find("title").Text())
}

func TestSearchScript(t *testing.T) {
	js := string(SearchScript())
	for _, want := range []string{
		"location.hash",
		`"hashchange"`,
		`"keyup"`,
		`"submit"`,
		`"/search/results?"`,
		`"#searchresults > ul > li > a"`,
		`getElementById("searchbookmark")`,
	} {
		assert.Contains(t, js, want)
	}
}

func TestChartPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.ChartPage(&buf, Chart{
		Title:  "Ops <1>",
		Date:   "2024",
		Editor: "/ops/index.txt/editor",
		Body:   []byte(`<h2>Rollout <a href="data:tkt,owner=ann">T</a></h2><p>text</p>`),
	}))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)

	assert.Equal(t, "Ops <1>", doc.Find("title").Text())
	assert.Equal(t, 0, doc.Find("#titleblock p.author").Length())
	assert.Equal(t, "2024", doc.Find("#titleblock p.date").Text())
	assert.Equal(t, "/ops/index.txt/editor", doc.Find("#titleblock a").First().AttrOr("href", ""))
	assert.Equal(t, "text", doc.Find("#chart p").Text())
	assert.Equal(t, "ann", doc.Find("#chart table.ticket td.ticket-val").Text())
}

// stripSpans returns the text of sel without the text of its spans.
func stripSpans(sel *goquery.Selection) string {
	clone := sel.Clone()
	clone.Find("span").Remove()
	return clone.Text()
}
