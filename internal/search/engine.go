package search

import (
	"regexp"
	"strings"

	"github.com/starford/atlas/internal/site"
)

// MaxSnippets bounds the context snippets extracted per matching chart.
const MaxSnippets = 3

// Snippet is one line of context around a body hit.
type Snippet struct {
	Prefix string `json:"prefix"`
	Hit    string `json:"hit"`
	Suffix string `json:"suffix"`
}

// Match is one matching chart.
type Match struct {
	Name     string    `json:"name"`
	Title    string    `json:"title"`
	Href     string    `json:"href"`
	Snippets []Snippet `json:"snippets,omitempty"`
}

// Result is the outcome of evaluating a query against a dataset.
type Result struct {
	Query   Query
	Mode    Mode
	Matches []Match
	// Prefix is shown above the matches in body mode.
	Prefix *Link
	// Invalid is set when a filter failed to compile. Such a filter matches
	// nothing.
	Invalid bool
}

// Candidates returns the matching chart names in dataset order.
func (r *Result) Candidates() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		out[i] = m.Name
	}
	return out
}

// Submit returns the path of the first candidate. ok is false when there is
// nothing to navigate to.
func Submit(r *Result) (href string, ok bool) {
	if r == nil || len(r.Matches) == 0 {
		return "", false
	}
	return Href(r.Matches[0].Name), true
}

// compile builds a case-insensitive regular expression. An empty pattern
// yields nil.
func compile(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile("(?i)" + pattern)
}

// Evaluate filters ds by q. Names are matched against q.Find; bodies against
// q.Search unless it is the Sentinel.
func Evaluate(ds *site.Dataset, q Query) *Result {
	res := &Result{Query: q, Mode: ModeFor(q)}
	if res.Mode == ModeNone {
		return res
	}

	nameRe, err := compile(q.Find)
	if err != nil {
		res.Invalid = true
	}

	if res.Mode == ModeList {
		if res.Invalid {
			return res
		}
		ds.Each(func(name, text string) bool {
			if nameRe == nil || nameRe.MatchString(name) {
				res.Matches = append(res.Matches, newMatch(name, text))
			}
			return true
		})
		return res
	}

	res.Prefix = NewChartLink(q.Search)
	bodyRe, err := compile(q.Search)
	if err != nil {
		res.Invalid = true
	}
	if res.Invalid {
		return res
	}
	ctxRe, err := regexp.Compile("(?im)^(.*)(" + q.Search + ")(.*)$")
	if err != nil {
		ctxRe = nil
	}

	ds.Each(func(name, text string) bool {
		if nameRe != nil && !nameRe.MatchString(name) {
			return true
		}
		if !bodyRe.MatchString(text) {
			return true
		}
		m := newMatch(name, text)
		m.Snippets = snippets(ctxRe, text)
		res.Matches = append(res.Matches, m)
		return true
	})
	return res
}

func newMatch(name, text string) Match {
	return Match{Name: name, Title: Title(text), Href: Href(name)}
}

// snippets returns up to MaxSnippets line-level matches of re in document
// order.
func snippets(re *regexp.Regexp, text string) []Snippet {
	if re == nil {
		return nil
	}
	found := re.FindAllStringSubmatch(text, MaxSnippets)
	out := make([]Snippet, 0, len(found))
	for _, sm := range found {
		out = append(out, Snippet{
			Prefix: sm[1],
			Hit:    sm[2],
			Suffix: strings.TrimSuffix(sm[len(sm)-1], "\r"),
		})
	}
	return out
}
