package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/sitescope/internal/crawler"
	sitestorage "github.com/JakeFAU/sitescope/internal/storage"
)

// newTestStore creates a DocumentStore whose client talks to handler.
func newTestStore(t *testing.T, handler http.Handler) *DocumentStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "test-bucket", Prefix: "/sites/"})
	require.NoError(t, err)
	return store
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(nil, Config{Bucket: "b"})
	assert.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, err = New(client, Config{})
	assert.Error(t, err)
}

func TestPutUploadsJSONObject(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/test-bucket/o")
		assert.Equal(t, "sites/example.com.json", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"https://example.com/": "home"`)

		fmt.Fprintln(w, `{ "name": "sites/example.com.json", "bucket": "test-bucket" }`)
	})

	store := newTestStore(t, handler)
	err := store.Put(context.Background(), "example.com", crawler.DocumentSet{"https://example.com/": "home"})
	assert.NoError(t, err)
}

func TestPutServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	store := newTestStore(t, handler)
	err := store.Put(context.Background(), "example.com", crawler.DocumentSet{})
	assert.Error(t, err)
}

func TestPutRejectsBadOrigin(t *testing.T) {
	store := newTestStore(t, http.NotFoundHandler())
	assert.Error(t, store.Put(context.Background(), "a/b", crawler.DocumentSet{}))
}

func TestGet(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "example.com.json") {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"https://example.com/":"home"}`)
			return
		}
		http.NotFound(w, r)
	})
	store := newTestStore(t, handler)

	docs, err := store.Get(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, crawler.DocumentSet{"https://example.com/": "home"}, docs)

	_, err = store.Get(context.Background(), "missing.example")
	assert.ErrorIs(t, err, sitestorage.ErrNotFound)
}

func TestList(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/b/test-bucket/o"), r.URL.Path)
		assert.Equal(t, "sites/", r.URL.Query().Get("prefix"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"kind":"storage#objects","items":[
			{"name":"sites/b.example.json","bucket":"test-bucket"},
			{"name":"sites/a.example.json","bucket":"test-bucket"},
			{"name":"sites/nested/c.example.json","bucket":"test-bucket"},
			{"name":"sites/readme.txt","bucket":"test-bucket"}
		]}`)
	})
	store := newTestStore(t, handler)

	origins, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.example", "b.example"}, origins)
}
