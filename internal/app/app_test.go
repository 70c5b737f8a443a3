package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitescope/internal/config"
	"github.com/JakeFAU/sitescope/internal/crawler"
	pubmemory "github.com/JakeFAU/sitescope/internal/publisher/memory"
	"github.com/JakeFAU/sitescope/internal/storage/memory"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendMemory
	cfg.Analysis.RawFile = filepath.Join(dir, "out.raw")
	cfg.Analysis.CSVFile = filepath.Join(dir, "out.csv")
	cfg.Analysis.MarkdownFile = filepath.Join(dir, "out.md")
	return cfg
}

func TestNewLocalBackend(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendLocal
	cfg.Storage.BaseDir = filepath.Join(t.TempDir(), "db")

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Store().Put(context.Background(), "a.example", crawler.DocumentSet{"https://a.example/": "hi"}))
	_, err = os.Stat(filepath.Join(cfg.Storage.BaseDir, "a.example.json"))
	require.NoError(t, err)
}

func TestNewSQLiteBackend(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendSQLite
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "sitescope.db")

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	origins, err := a.Store().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, origins)
}

func TestNewUnknownBackend(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Backend = "floppy"

	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage backend")
}

func TestOrchestratorCrawlsAndNotifies(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>home</p><a href="/next">next</a></body></html>`))
	})
	mux.HandleFunc("/next", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>next page</p></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(t)
	cfg.PubSub.CrawlTopic = "crawls"
	store := memory.NewDocumentStore()
	pub := pubmemory.New()

	a, err := New(context.Background(), cfg, zap.NewNop(), WithDocumentStore(store), WithPublisher(pub))
	require.NoError(t, err)
	defer a.Close()

	results := a.Orchestrator().RunAll(context.Background(), []crawler.Seed{{URL: srv.URL, MaxDepth: 1}})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 2, results[0].Stats.Fetched)

	docs, err := store.Get(context.Background(), results[0].Origin)
	require.NoError(t, err)
	assert.Contains(t, docs[srv.URL+"/"], "home")
	assert.Equal(t, "next page", docs[srv.URL+"/next"])
	assert.Len(t, pub.MessagesFor("crawls"), 1)
}

func TestPipelineRequiresAPIKey(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Pipeline()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init summarizer")
}

func TestPipelinePubSubSinkNeedsPublisher(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.OpenAI.APIKey = "sk-test"
	cfg.Analysis.Sinks = []string{config.SinkRaw, config.SinkPubSub}
	cfg.PubSub.AnalysisTopic = "analyses"

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Pipeline()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init pubsub sink")
}

func TestPipelineRunsOverEmptyStore(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.OpenAI.APIKey = "sk-test"
	cfg.Analysis.Sinks = []string{config.SinkRaw, config.SinkCSV, config.SinkMarkdown, config.SinkPubSub}
	cfg.PubSub.AnalysisTopic = "analyses"

	a, err := New(context.Background(), cfg, nil, WithPublisher(pubmemory.New()))
	require.NoError(t, err)
	defer a.Close()

	pipeline, err := a.Pipeline()
	require.NoError(t, err)

	report, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.NotEmpty(t, report.RunID)

	data, err := os.ReadFile(cfg.Analysis.CSVFile)
	require.NoError(t, err)
	assert.Equal(t, "Website,Description\n", string(data))
	_, err = os.Stat(cfg.Analysis.MarkdownFile)
	assert.True(t, os.IsNotExist(err))
}

func TestNewWithTracing(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Tracing.Enabled = true
	cfg.Tracing.SampleRatio = 1

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, a.closers, 1)
	a.Close()
	assert.Empty(t, a.closers)
}
