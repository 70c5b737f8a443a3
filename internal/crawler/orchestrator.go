package crawler

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/JakeFAU/sitescope/internal/crawler")

// OrchestratorConfig controls the fan-out across seeds.
type OrchestratorConfig struct {
	// MaxParallelSeeds caps concurrently running crawlers; 0 means one
	// goroutine per seed with no cap.
	MaxParallelSeeds int
	// Topic is the notification topic for finished sites; empty disables it.
	Topic string
}

// Orchestrator runs one independent Crawler per seed and persists each
// resulting DocumentSet under the seed's origin.
type Orchestrator struct {
	cfg       OrchestratorConfig
	fetcher   Fetcher
	extractor Extractor
	store     DocumentStore
	publisher Publisher
	clock     Clock
	logger    *zap.Logger
}

// NewOrchestrator wires the shared collaborators. The fetcher is shared by
// every crawler and must be safe for concurrent use. publisher may be nil.
func NewOrchestrator(
	cfg OrchestratorConfig,
	fetcher Fetcher,
	extractor Extractor,
	store DocumentStore,
	publisher Publisher,
	clock Clock,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		store:     store,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// RunAll crawls every seed concurrently and blocks until all of them have
// finished and been persisted. Results are returned in seed order; a failure
// in one seed never affects the others.
func (o *Orchestrator) RunAll(ctx context.Context, seeds []Seed) []CrawlResult {
	results := make([]CrawlResult, len(seeds))

	var g errgroup.Group
	if o.cfg.MaxParallelSeeds > 0 {
		g.SetLimit(o.cfg.MaxParallelSeeds)
	}
	for i, seed := range seeds {
		g.Go(func() error {
			results[i] = o.runSeed(ctx, seed)
			return nil
		})
	}
	// Seed goroutines never return errors; Wait is a join barrier.
	_ = g.Wait()

	return results
}

func (o *Orchestrator) runSeed(ctx context.Context, seed Seed) CrawlResult {
	ctx, span := tracer.Start(ctx, "crawl.seed")
	defer span.End()
	span.SetAttributes(attribute.String("seed", seed.URL), attribute.Int("max_depth", seed.MaxDepth))

	c, err := New(seed, o.fetcher, o.extractor, o.logger.Named("crawler"))
	if err != nil {
		o.logger.Error("seed setup failed", zap.String("seed", seed.URL), zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return CrawlResult{Seed: seed, Err: err}
	}

	o.logger.Info("crawl started",
		zap.String("seed", seed.URL),
		zap.String("origin", c.Origin()),
		zap.Int("max_depth", seed.MaxDepth),
	)
	res := c.Run(ctx)
	o.logger.Info("crawl finished",
		zap.String("origin", res.Origin),
		zap.Int("documents", len(res.Documents)),
		zap.Int("fetched", res.Stats.Fetched),
		zap.Int("failed", res.Stats.Failed),
		zap.Int("skipped", res.Stats.Skipped),
		zap.Duration("duration", res.Duration),
	)

	// Persist even when ctx was cancelled so partial crawls are not lost.
	persistCtx := context.WithoutCancel(ctx)
	span.SetAttributes(attribute.String("origin", res.Origin), attribute.Int("documents", len(res.Documents)))
	if err := o.persist(persistCtx, res); err != nil {
		span.SetStatus(codes.Error, err.Error())
		res.Err = err
		return res
	}
	o.notify(persistCtx, res)
	return res
}

func (o *Orchestrator) persist(ctx context.Context, res CrawlResult) error {
	if o.store == nil {
		return nil
	}
	if err := o.store.Put(ctx, res.Origin, res.Documents); err != nil {
		sitesPersistedTotal.WithLabelValues("error").Inc()
		o.logger.Error("persist documents failed", zap.String("origin", res.Origin), zap.Error(err))
		return fmt.Errorf("persist %s: %w", res.Origin, err)
	}
	sitesPersistedTotal.WithLabelValues("success").Inc()
	return nil
}

func (o *Orchestrator) notify(ctx context.Context, res CrawlResult) {
	if o.cfg.Topic == "" || o.publisher == nil {
		return
	}
	now := time.Now().UTC()
	if o.clock != nil {
		now = o.clock.Now()
	}
	payload := map[string]any{
		"event":     "site.crawled",
		"origin":    res.Origin,
		"seed":      res.Seed.URL,
		"max_depth": res.Seed.MaxDepth,
		"documents": len(res.Documents),
		"fetched":   res.Stats.Fetched,
		"failed":    res.Stats.Failed,
		"timestamp": now.Format(time.RFC3339),
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.Topic, payload); err != nil {
		o.logger.Warn("publish crawl notification failed", zap.String("origin", res.Origin), zap.Error(err))
	}
}
