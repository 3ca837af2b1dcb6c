package search

import (
	"net/url"
	"strings"
)

// Fragment keys.
const (
	KeyFind   = "find"
	KeySearch = "search"
)

// ParseFragment decodes a URL fragment such as "#find=ops&search=deploy".
// The leading "#" is optional. Unknown keys are ignored, and a missing or
// malformed fragment yields an empty query.
func ParseFragment(fragment string, layout Layout) Query {
	fragment = strings.TrimPrefix(fragment, "#")
	if fragment == "" {
		return Query{}
	}
	// ParseQuery keeps the pairs it could decode alongside the error.
	vals, _ := url.ParseQuery(fragment)
	q := Query{Search: vals.Get(KeySearch)}
	if layout == LayoutSplit {
		q.Find = vals.Get(KeyFind)
	}
	return q
}

// EncodeFragment encodes q for the URL fragment, without the leading "#".
// Empty filters are omitted.
func EncodeFragment(q Query, layout Layout) string {
	vals := url.Values{}
	if layout == LayoutSplit && q.Find != "" {
		vals.Set(KeyFind, q.Find)
	}
	if q.Search != "" {
		vals.Set(KeySearch, q.Search)
	}
	return vals.Encode()
}
