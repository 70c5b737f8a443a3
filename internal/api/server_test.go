package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitescope/internal/analysis"
	"github.com/JakeFAU/sitescope/internal/crawler"
	"github.com/JakeFAU/sitescope/internal/storage/memory"
)

func newTestServer(t *testing.T) (*Server, *memory.DocumentStore) {
	t.Helper()
	store := memory.NewDocumentStore()
	require.NoError(t, store.Put(context.Background(), "a.example", crawler.DocumentSet{
		"https://a.example/":      "home",
		"https://a.example/about": "about us",
	}))
	require.NoError(t, store.Put(context.Background(), "b.example", crawler.DocumentSet{}))
	return NewServer(store, nil, zap.NewNop()), store
}

func serve(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	rec := serve(t, server, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_RequestIDPropagates(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "0190b9a4-1f5e-7c3a-9d7e-1b2c3d4e5f60")
	rec := serve(t, server, req)

	require.Equal(t, "0190b9a4-1f5e-7c3a-9d7e-1b2c3d4e5f60", rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "not a uuid")
	rec = serve(t, server, req)
	require.NotEqual(t, "not a uuid", rec.Header().Get("X-Request-ID"))
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	rec := serve(t, server, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	broken := NewServer(failingStore{}, nil, nil)
	rec = serve(t, broken, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	serve(t, server, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	rec := serve(t, server, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "sitescope_http_requests_total")
}

func TestServer_ListSites(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	rec := serve(t, server, httptest.NewRequest(http.MethodGet, "/v1/sites", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body siteListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"a.example", "b.example"}, body.Sites)
	assert.Equal(t, 2, body.Count)
}

func TestServer_ListSitesEmptyStore(t *testing.T) {
	t.Parallel()

	server := NewServer(memory.NewDocumentStore(), nil, nil)
	rec := serve(t, server, httptest.NewRequest(http.MethodGet, "/v1/sites", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"sites":[],"count":0}`, rec.Body.String())
}

func TestServer_GetSite(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	rec := serve(t, server, httptest.NewRequest(http.MethodGet, "/v1/sites/A.example", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body siteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "a.example", body.Origin)
	assert.Equal(t, []string{"https://a.example/", "https://a.example/about"}, body.URLs)
	assert.Equal(t, 2, body.Count)
}

func TestServer_GetSiteNotFound(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	rec := serve(t, server, httptest.NewRequest(http.MethodGet, "/v1/sites/missing.example", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_GetSiteStoreError(t *testing.T) {
	t.Parallel()

	server := NewServer(failingStore{}, nil, nil)
	rec := serve(t, server, httptest.NewRequest(http.MethodGet, "/v1/sites/a.example", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "disk on fire")
}

func TestServer_GetDocumentsWithETag(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	rec := serve(t, server, httptest.NewRequest(http.MethodGet, "/v1/sites/a.example/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var docs map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	assert.Equal(t, "about us", docs["https://a.example/about"])

	etag := rec.Header().Get("ETag")
	require.Regexp(t, `^"sha256:[0-9a-f]{64}"$`, etag)

	req := httptest.NewRequest(http.MethodGet, "/v1/sites/a.example/documents", nil)
	req.Header.Set("If-None-Match", etag)
	rec = serve(t, server, req)
	require.Equal(t, http.StatusNotModified, rec.Code)
	require.Empty(t, rec.Body.String())
}

func TestServer_GetDocumentsIfNoneMatchForms(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	rec := serve(t, server, httptest.NewRequest(http.MethodGet, "/v1/sites/a.example/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	digest := strings.Trim(rec.Header().Get("ETag"), `"`)
	bare := strings.TrimPrefix(digest, "sha256:")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "bare hex", header: bare, want: http.StatusNotModified},
		{name: "upper case", header: `"` + strings.ToUpper(bare) + `"`, want: http.StatusNotModified},
		{name: "weak tag in list", header: `"sha256:00", W/"` + digest + `"`, want: http.StatusNotModified},
		{name: "wildcard", header: "*", want: http.StatusNotModified},
		{name: "stale", header: `"sha256:` + strings.Repeat("0", 64) + `"`, want: http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/v1/sites/a.example/documents", nil)
		req.Header.Set("If-None-Match", tt.header)
		rec := serve(t, server, req)
		assert.Equal(t, tt.want, rec.Code, tt.name)
	}
}

func TestServer_GetDocumentsEmptySet(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	rec := serve(t, server, httptest.NewRequest(http.MethodGet, "/v1/sites/b.example/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{}`, rec.Body.String())
}

func TestServer_Analyses(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	reader := fakeAnalyses{results: []analysis.Result{{
		RunID:         "run-1",
		Site:          "a.example",
		Analysis:      "A shop.",
		Model:         "gpt-3.5-turbo-16k",
		InputTokens:   12,
		DocumentCount: 2,
		CreatedAt:     created,
	}}}
	server := NewServer(memory.NewDocumentStore(), reader, nil)

	rec := serve(t, server, httptest.NewRequest(http.MethodGet, "/v1/analyses", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"site":"a.example"`)
	require.Contains(t, rec.Body.String(), `"count":1`)

	failing := NewServer(memory.NewDocumentStore(), fakeAnalyses{err: errors.New("boom")}, nil)
	rec = serve(t, failing, httptest.NewRequest(http.MethodGet, "/v1/analyses", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_AnalysesNotConfigured(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	rec := serve(t, server, httptest.NewRequest(http.MethodGet, "/v1/analyses", nil))
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestServer_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	server := NewServer(panicStore{}, nil, nil)
	rec := serve(t, server, httptest.NewRequest(http.MethodGet, "/v1/sites", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}

func TestServer_ListenAndServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

type failingStore struct{}

func (failingStore) Put(context.Context, string, crawler.DocumentSet) error {
	return errors.New("disk on fire")
}

func (failingStore) Get(context.Context, string) (crawler.DocumentSet, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) List(context.Context) ([]string, error) {
	return nil, errors.New("disk on fire")
}

type panicStore struct{ failingStore }

func (panicStore) List(context.Context) ([]string, error) {
	panic("unexpected")
}

type fakeAnalyses struct {
	results []analysis.Result
	err     error
}

func (f fakeAnalyses) Latest(context.Context) ([]analysis.Result, error) {
	return f.results, f.err
}
