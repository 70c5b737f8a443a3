// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitescope/internal/analysis"
	"github.com/JakeFAU/sitescope/internal/analysis/openai"
	"github.com/JakeFAU/sitescope/internal/analysis/sinks"
	"github.com/JakeFAU/sitescope/internal/analysis/tokenizer"
	"github.com/JakeFAU/sitescope/internal/clock/system"
	"github.com/JakeFAU/sitescope/internal/config"
	"github.com/JakeFAU/sitescope/internal/crawler"
	"github.com/JakeFAU/sitescope/internal/extract"
	collyfetcher "github.com/JakeFAU/sitescope/internal/fetcher/colly"
	"github.com/JakeFAU/sitescope/internal/hash/sha256"
	"github.com/JakeFAU/sitescope/internal/id/uuid"
	pubsubpublisher "github.com/JakeFAU/sitescope/internal/publisher/pubsub"
	"github.com/JakeFAU/sitescope/internal/storage/gcs"
	"github.com/JakeFAU/sitescope/internal/storage/local"
	"github.com/JakeFAU/sitescope/internal/storage/memory"
	"github.com/JakeFAU/sitescope/internal/storage/postgres"
	"github.com/JakeFAU/sitescope/internal/storage/sqlite"
	"github.com/JakeFAU/sitescope/internal/telemetry"
)

// App holds the shared, long-lived services for one process: the document
// store, the optional Pub/Sub publisher and the optional Postgres analysis
// store. Crawl and analysis pipelines are assembled on demand so that a crawl
// never needs OpenAI credentials.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	store     crawler.DocumentStore
	publisher crawler.Publisher
	analyses  *postgres.AnalysisStore
	transport http.RoundTripper
	closers   []func() error
}

// Option customizes New.
type Option func(*App)

// WithDocumentStore replaces the configured storage backend.
func WithDocumentStore(store crawler.DocumentStore) Option {
	return func(a *App) { a.store = store }
}

// WithPublisher replaces the Pub/Sub publisher.
func WithPublisher(p crawler.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithTransport sets the HTTP transport used by the fetcher.
func WithTransport(rt http.RoundTripper) Option {
	return func(a *App) { a.transport = rt }
}

// New creates and initializes the App from cfg. It fails fast if any
// configured backend cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	if cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
			ServiceName: cfg.Tracing.ServiceName,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		a.closers = append(a.closers, func() error {
			return tp.Shutdown(context.Background())
		})
	}

	if a.store == nil {
		store, err := a.openDocumentStore(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = store
	}

	if a.publisher == nil && cfg.PubSub.ProjectID != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		pub := pubsubpublisher.New(client)
		a.publisher = pub
		a.closers = append(a.closers, pub.Close)
		logger.Info("Using Pub/Sub publisher", zap.String("project", cfg.PubSub.ProjectID))
	}

	if cfg.SinkEnabled(config.SinkPostgres) {
		store, err := postgres.NewAnalysisStore(ctx, postgres.AnalysisStoreConfig{
			DSN:      cfg.Postgres.DSN,
			Table:    cfg.Postgres.Table,
			MaxConns: cfg.Postgres.MaxConns,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init analysis store: %w", err)
		}
		a.closers = append(a.closers, func() error {
			store.Shutdown()
			return nil
		})
		if err := store.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure analysis schema: %w", err)
		}
		a.analyses = store
	}

	logger.Info("Application services initialized", zap.String("storage", cfg.Storage.Backend))
	return a, nil
}

func (a *App) openDocumentStore(ctx context.Context) (crawler.DocumentStore, error) {
	sc := a.cfg.Storage
	switch sc.Backend {
	case config.BackendLocal:
		a.logger.Info("Using local document store", zap.String("dir", sc.BaseDir))
		store, err := local.New(local.Config{BaseDir: sc.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local store: %w", err)
		}
		return store, nil
	case config.BackendMemory:
		a.logger.Info("Using in-memory document store. Documents are discarded on exit.")
		return memory.NewDocumentStore(), nil
	case config.BackendGCS:
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.logger.Info("Using GCS document store", zap.String("bucket", sc.GCSBucket))
		store, err := gcs.New(client, gcs.Config{Bucket: sc.GCSBucket, Prefix: sc.GCSPrefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs store: %w", err)
		}
		return store, nil
	case config.BackendSQLite:
		a.logger.Info("Using SQLite document store", zap.String("path", sc.SQLitePath))
		store, err := sqlite.Open(ctx, sqlite.Config{Path: sc.SQLitePath})
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", sc.Backend)
	}
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store exposes the configured document store.
func (a *App) Store() crawler.DocumentStore { return a.store }

// Analyses returns the Postgres analysis store, or nil when the postgres
// sink is disabled.
func (a *App) Analyses() *postgres.AnalysisStore { return a.analyses }

// Orchestrator assembles the fetcher, extractor and store into a crawl
// orchestrator.
func (a *App) Orchestrator() *crawler.Orchestrator {
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   a.cfg.HTTP.UserAgent,
		Timeout:     a.cfg.FetchTimeout(),
		MaxBodySize: a.cfg.HTTP.MaxBodyBytes,
	}, a.transport)

	return crawler.NewOrchestrator(
		crawler.OrchestratorConfig{
			MaxParallelSeeds: a.cfg.Crawler.MaxParallelSeeds,
			Topic:            a.cfg.PubSub.CrawlTopic,
		},
		fetcher,
		extract.New(),
		a.store,
		a.publisher,
		system.New(),
		a.logger,
	)
}

// Pipeline assembles the analysis pipeline. Sinks are created fresh for
// every call because the pipeline closes them when a run finishes.
func (a *App) Pipeline() (*analysis.Pipeline, error) {
	summarizer, err := openai.New(openai.Config{
		APIKey:  a.cfg.OpenAI.APIKey,
		BaseURL: a.cfg.OpenAI.BaseURL,
		Model:   a.cfg.OpenAI.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("init summarizer: %w", err)
	}

	outputs, err := a.sinks()
	if err != nil {
		return nil, err
	}

	pipeline, err := analysis.NewPipeline(
		analysis.Config{
			MaxTokens:       a.cfg.Analysis.MaxTokens,
			ExcludePatterns: a.cfg.Analysis.ExcludePatterns,
		},
		analysis.Dependencies{
			Store:      a.store,
			Tokenizer:  tokenizer.New(a.cfg.Analysis.Encoding),
			Summarizer: summarizer,
			Sinks:      outputs,
			IDs:        uuid.New(),
			Clock:      system.New(),
			Hasher:     sha256.New(),
			Logger:     a.logger,
		},
	)
	if err != nil {
		closeSinks(outputs)
		return nil, fmt.Errorf("init pipeline: %w", err)
	}
	return pipeline, nil
}

func (a *App) sinks() ([]analysis.Sink, error) {
	ac := a.cfg.Analysis
	var out []analysis.Sink
	for _, name := range ac.Sinks {
		var (
			sink analysis.Sink
			err  error
		)
		switch name {
		case config.SinkRaw:
			sink, err = sinks.NewRawFile(ac.RawFile)
		case config.SinkCSV:
			sink, err = sinks.NewCSV(ac.CSVFile)
		case config.SinkMarkdown:
			sink = sinks.NewMarkdownReport(ac.MarkdownFile)
		case config.SinkPostgres:
			if a.analyses == nil {
				err = errors.New("postgres sink enabled without an analysis store")
			} else {
				sink = a.analyses
			}
		case config.SinkPubSub:
			sink, err = sinks.NewNotifier(a.publisher, a.cfg.PubSub.AnalysisTopic)
		default:
			err = fmt.Errorf("unknown sink %q", name)
		}
		if err != nil {
			closeSinks(out)
			return nil, fmt.Errorf("init %s sink: %w", name, err)
		}
		out = append(out, sink)
	}
	return out, nil
}

func closeSinks(list []analysis.Sink) {
	for _, s := range list {
		_ = s.Close(context.Background())
	}
}

// Close releases every client opened by New, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Error closing application service", zap.Error(err))
		}
	}
	a.closers = nil
	// Best effort; stderr sync fails on some platforms.
	_ = a.logger.Sync()
}
