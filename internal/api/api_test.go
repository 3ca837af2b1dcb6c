package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/atlas/internal/chart"
	"github.com/starford/atlas/internal/chartservice"
	"github.com/starford/atlas/internal/render"
	"github.com/starford/atlas/internal/search"
	"github.com/starford/atlas/internal/sse"
	"github.com/starford/atlas/internal/testutil"
)

// testEnv sets up a temp charts root, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode; otherwise token mode.
func testEnv(t *testing.T, authToken string) (http.Handler, string) {
	t.Helper()
	return testEnvLayout(t, authToken, search.LayoutSplit, nil)
}

func testEnvLayout(t *testing.T, authToken string, layout search.Layout, events http.Handler) (http.Handler, string) {
	t.Helper()
	root, store := testutil.TestCharts(t)
	testutil.WriteFile(t, root, "a/b/index.txt", "% Title One\nfoo bar")
	testutil.WriteFile(t, root, "c/d/index.txt", "% Title Two\nbaz")

	svc := chartservice.NewService(chartservice.Deps{
		Store:   store,
		DB:      testutil.TestDB(t),
		Builder: chart.NewBuilder(store, nil, testutil.Logger()),
		Logger:  testutil.Logger(),
	})
	if err := svc.Reindex(context.Background()); err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	tpl, err := render.New()
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}

	h := NewHandler(svc, tpl, layout)
	enabled := authToken != ""
	r := chi.NewRouter()
	r.Mount("/api", NewRouter(h, enabled, authToken, events))
	MountSite(r, h, enabled, authToken)
	return r, root
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func svgForm(svg string) *strings.Reader {
	v := url.Values{FormField: {base64.StdEncoding.EncodeToString([]byte(svg))}}
	return strings.NewReader(v.Encode())
}

func TestSiteJSON(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, httptest.NewRequest(http.MethodGet, "/site.json", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	want := `{"a/b/":"% Title One\nfoo bar","c/d/":"% Title Two\nbaz"}`
	if got := strings.TrimSpace(w.Body.String()); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type = %q", ct)
	}

	lm := w.Header().Get("Last-Modified")
	if lm == "" {
		t.Fatal("missing Last-Modified")
	}
	req := httptest.NewRequest(http.MethodGet, "/site.json", nil)
	req.Header.Set("If-Modified-Since", lm)
	if w := do(t, router, req); w.Code != http.StatusNotModified {
		t.Errorf("conditional get = %d, want 304", w.Code)
	}
}

func TestSearchEndpoint_BodyMode(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, httptest.NewRequest(http.MethodGet, "/api/search?search=foo", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp SearchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Mode != "body" || len(resp.Matches) != 1 || resp.Matches[0].Name != "a/b/" {
		t.Fatalf("resp = %+v", resp)
	}
	sn := resp.Matches[0].Snippets
	if len(sn) != 1 || sn[0].Hit != "foo" || sn[0].Suffix != " bar" {
		t.Errorf("snippets = %+v", sn)
	}
	if resp.NewChart == nil || resp.NewChart.Href != "/foo/index.txt/editor" {
		t.Errorf("new chart link = %+v", resp.NewChart)
	}
	if resp.Fragment != "search=foo" {
		t.Errorf("fragment = %q", resp.Fragment)
	}
}

func TestSearchEndpoint_ListAndEmpty(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, httptest.NewRequest(http.MethodGet, "/api/search?find=c&search=.", nil))
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Mode != "list" || len(resp.Matches) != 1 || resp.Matches[0].Href != "/c/d/" {
		t.Errorf("list resp = %+v", resp)
	}

	w = do(t, router, httptest.NewRequest(http.MethodGet, "/api/search", nil))
	resp = SearchResponse{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Mode != "none" || len(resp.Matches) != 0 {
		t.Errorf("empty resp = %+v", resp)
	}
	if !strings.Contains(w.Body.String(), `"matches":[]`) {
		t.Errorf("matches should encode as an empty array: %s", w.Body.String())
	}
}

func TestSearchEndpoint_InvalidPattern(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, httptest.NewRequest(http.MethodGet, "/api/search?find=(", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Invalid || len(resp.Matches) != 0 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSearchEndpoint_CombinedLayoutIgnoresFind(t *testing.T) {
	router, _ := testEnvLayout(t, "", search.LayoutCombined, nil)

	w := do(t, router, httptest.NewRequest(http.MethodGet, "/api/search?find=zzz&search=baz", nil))
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Matches) != 1 || resp.Matches[0].Name != "c/d/" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Fragment != "search=baz" {
		t.Errorf("fragment = %q", resp.Fragment)
	}
}

func TestSearchPage(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, httptest.NewRequest(http.MethodGet, "/search?search=zzz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Matching Charts", "<b>None</b>", `href="/zzz/index.txt/editor"`} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestSearchPageScript(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, httptest.NewRequest(http.MethodGet, "/search", nil))
	if !strings.Contains(w.Body.String(), `<script src="/static/search.js" defer></script>`) {
		t.Fatalf("search page does not load its script: %s", w.Body.String())
	}

	w = do(t, router, httptest.NewRequest(http.MethodGet, "/static/search.js", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("script status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/javascript") {
		t.Errorf("script content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "/search/results?") {
		t.Errorf("script does not fetch the results fragment")
	}
}

func TestSearchResultsFragment(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, httptest.NewRequest(http.MethodGet, "/search/results?find=a&search=.", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, `<div id="searchresults">`) || strings.Contains(body, "<html>") {
		t.Errorf("expected results fragment only, got %q", body)
	}
	if !strings.Contains(body, `href="/a/b/"`) || strings.Contains(body, "newChartLink") {
		t.Errorf("list mode fragment = %q", body)
	}
}

func TestSearchSubmit(t *testing.T) {
	router, _ := testEnv(t, "")

	form := url.Values{"search": {"."}}
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := do(t, router, req)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/a/b/" {
		t.Errorf("location = %q, want /a/b/", loc)
	}

	form = url.Values{"search": {"nothing-matches"}}
	req = httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = do(t, router, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("no candidates = %d, want 204", w.Code)
	}
}

func TestListAndGetChart(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, httptest.NewRequest(http.MethodGet, "/api/charts", nil))
	var list ChartListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 2 || list.Charts[1].Title != "Title Two" {
		t.Errorf("list = %+v", list)
	}

	w = do(t, router, httptest.NewRequest(http.MethodGet, "/api/charts/a%2Fb", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var c ChartDetail
	_ = json.Unmarshal(w.Body.Bytes(), &c)
	if c.Slug != "a/b/" || c.Title != "Title One" {
		t.Errorf("chart = %+v", c)
	}

	w = do(t, router, httptest.NewRequest(http.MethodGet, "/api/charts/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing chart = %d, want 404", w.Code)
	}
}

func TestChartPage(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, httptest.NewRequest(http.MethodGet, "/c/d/", nil))
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("chart page = %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	for _, want := range []string{"<title>Title Two</title>", "baz</p>", `href="/c/d/index.txt/editor"`} {
		if !strings.Contains(w.Body.String(), want) {
			t.Errorf("chart page missing %q in %s", want, w.Body.String())
		}
	}

	w = do(t, router, httptest.NewRequest(http.MethodGet, "/new/one/index.txt/editor", nil))
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), "% Title\n% Authors") {
		t.Errorf("editor source = %d %q", w.Code, w.Body.String())
	}

	w = do(t, router, httptest.NewRequest(http.MethodGet, "/../etc/", nil))
	if w.Code == http.StatusOK {
		t.Errorf("traversal should not succeed")
	}
}

func TestChartPage_TicketTable(t *testing.T) {
	router, _ := testEnv(t, "")

	body, _ := json.Marshal(CreateChartRequest{Slug: "ops/deploy"})
	w := do(t, router, httptest.NewRequest(http.MethodPost, "/api/charts", bytes.NewReader(body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, httptest.NewRequest(http.MethodGet, "/ops/deploy/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("chart page = %d", w.Code)
	}
	page := w.Body.String()
	if !strings.Contains(page, `<table class="ticket">`) {
		t.Errorf("ticket heading not decorated: %s", page)
	}
	if !strings.Contains(page, `<a href="data:tkt,owner=&amp;next_action=" style="display: none">`) {
		t.Errorf("ticket link not hidden: %s", page)
	}
}

func TestCreateChart(t *testing.T) {
	router, _ := testEnv(t, "")

	body, _ := json.Marshal(CreateChartRequest{Slug: "ops/deploy"})
	w := do(t, router, httptest.NewRequest(http.MethodPost, "/api/charts", bytes.NewReader(body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, httptest.NewRequest(http.MethodPost, "/api/charts", bytes.NewReader(body)))
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}

	w = do(t, router, httptest.NewRequest(http.MethodPost, "/api/charts", strings.NewReader(`{"slug":""}`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty slug = %d, want 400", w.Code)
	}
}

func TestSVG_LoadInitializesBlank(t *testing.T) {
	router, root := testEnv(t, "")

	w := do(t, router, httptest.NewRequest(http.MethodGet, "/api/svg/a/b/flow.svg", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "image/svg+xml" {
		t.Errorf("content type = %q", w.Header().Get("Content-Type"))
	}
	if _, err := os.Stat(filepath.Join(root, "a", "b", "flow.svg")); err != nil {
		t.Errorf("blank drawing not written: %v", err)
	}
}

func TestSVG_SaveMakesDrawingSearchable(t *testing.T) {
	router, root := testEnv(t, "")
	testutil.WriteFile(t, root, "a/b/index.txt", "% Title One\n![d](flow.svg)\n")

	req := httptest.NewRequest(http.MethodPost, "/a/b/flow.svg/editor",
		svgForm(`<svg xmlns="http://www.w3.org/2000/svg"><text>canary</text></svg>`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := do(t, router, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("save = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, httptest.NewRequest(http.MethodGet, "/api/search?search=canary", nil))
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Matches) != 1 || resp.Matches[0].Name != "a/b/" {
		t.Errorf("drawing text not searchable: %+v", resp)
	}
}

func TestSVG_SaveRejectsBadInput(t *testing.T) {
	router, _ := testEnv(t, "")

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"not base64", "/api/svg/x.svg", FormField + "=%%%not-base64", http.StatusBadRequest},
		{"missing field", "/api/svg/x.svg", "other=1", http.StatusBadRequest},
		{"not svg", "/api/svg/x.svg", url.Values{FormField: {base64.StdEncoding.EncodeToString([]byte("<p/>"))}}.Encode(), http.StatusBadRequest},
		{"wrong extension", "/api/svg/x.txt", url.Values{FormField: {base64.StdEncoding.EncodeToString([]byte("<svg/>"))}}.Encode(), http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if w := do(t, router, req); w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestAuthMiddleware_ProtectsWrites(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	newReq := func(token string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/svg/a/b/x.svg", svgForm(`<svg/>`))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req
	}

	if w := do(t, router, newReq("")); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token = %d, want 401", w.Code)
	}
	if w := do(t, router, newReq("wrong")); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
	if w := do(t, router, newReq("secret123")); w.Code != http.StatusNoContent {
		t.Errorf("valid token = %d, want 204", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/a/b/x.svg/editor", svgForm(`<svg/>`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if w := do(t, router, req); w.Code != http.StatusUnauthorized {
		t.Errorf("editor save without token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_ReadsArePublic(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	for _, p := range []string{"/site.json", "/api/search?search=.", "/api/charts", "/search"} {
		if w := do(t, router, httptest.NewRequest(http.MethodGet, p, nil)); w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", p, w.Code)
		}
	}
}

func TestSSEEvents(t *testing.T) {
	broker := sse.NewBroker(sse.Options{})
	defer broker.Close()
	router, _ := testEnvLayout(t, "", search.LayoutSplit, broker)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	broker.PublishChartEvent("updated", "a/b/")
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if !strings.Contains(w.Body.String(), "event: chart.updated") {
		t.Errorf("event stream = %q", w.Body.String())
	}
}
