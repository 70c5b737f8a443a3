package crawler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// frame is one pending visit on the traversal stack.
type frame struct {
	url   string
	depth int
}

// Crawler walks the link graph of a single seed, depth first, staying on the
// seed's origin. A Crawler is single use and not safe for concurrent use; the
// orchestrator gives every seed its own instance.
type Crawler struct {
	seed      Seed
	origin    string
	fetcher   Fetcher
	extractor Extractor
	logger    *zap.Logger

	visited map[string]struct{}
	docs    DocumentSet
	stats   CrawlStats
}

// New prepares a Crawler for seed. It fails only when the seed itself is
// unusable.
func New(seed Seed, fetcher Fetcher, extractor Extractor, logger *zap.Logger) (*Crawler, error) {
	if fetcher == nil || extractor == nil {
		return nil, fmt.Errorf("crawler requires a fetcher and an extractor")
	}
	canonical, origin, err := ParseSeed(seed)
	if err != nil {
		return nil, err
	}
	seed.URL = canonical
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		seed:      seed,
		origin:    origin,
		fetcher:   fetcher,
		extractor: extractor,
		logger:    logger.With(zap.String("origin", origin)),
		visited:   make(map[string]struct{}),
		docs:      make(DocumentSet),
	}, nil
}

// Origin returns the network location the crawl is restricted to.
func (c *Crawler) Origin() string {
	return c.origin
}

// Run traverses from the seed and returns the collected documents. Fetch
// failures prune their branch only; Run never fails. Cancelling ctx stops the
// traversal before the next fetch and returns what was gathered so far.
func (c *Crawler) Run(ctx context.Context) CrawlResult {
	start := time.Now()
	activeCrawls.Inc()
	defer activeCrawls.Dec()

	stack := []frame{{url: c.seed.URL, depth: 0}}
	for len(stack) > 0 {
		if ctx.Err() != nil {
			c.logger.Warn("crawl interrupted", zap.Int("pending", len(stack)), zap.Error(ctx.Err()))
			break
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		links, ok := c.visit(ctx, top)
		if !ok {
			continue
		}
		// Push in reverse so the first link on the page is explored first.
		for i := len(links) - 1; i >= 0; i-- {
			stack = append(stack, frame{url: links[i], depth: top.depth + 1})
		}
	}

	return CrawlResult{
		Seed:      c.seed,
		Origin:    c.origin,
		Documents: c.docs,
		Stats:     c.stats,
		Duration:  time.Since(start),
	}
}

// visit handles one stack entry and returns the links to explore next.
func (c *Crawler) visit(ctx context.Context, f frame) ([]string, bool) {
	if reason, skip := c.shouldSkip(f); skip {
		c.stats.Skipped++
		skipsTotal.WithLabelValues(string(reason)).Inc()
		c.logger.Debug("skipping url",
			zap.String("url", f.url),
			zap.Int("depth", f.depth),
			zap.String("reason", string(reason)),
		)
		return nil, false
	}
	c.visited[f.url] = struct{}{}

	c.logger.Info("visiting url", zap.String("url", f.url), zap.Int("depth", f.depth))
	res, err := c.fetcher.Fetch(ctx, f.url)
	if err != nil {
		c.stats.Failed++
		fetchErrorsTotal.Inc()
		c.logger.Warn("fetch failed",
			zap.String("url", f.url),
			zap.Int("depth", f.depth),
			zap.Error(err),
		)
		return nil, false
	}
	c.stats.Fetched++
	pagesFetchedTotal.Inc()
	bytesFetchedTotal.Add(float64(len(res.Body)))

	page := c.extractor.Extract(res.Body, f.url)
	c.docs[f.url] = page.Text
	return page.Links, true
}

func (c *Crawler) shouldSkip(f frame) (SkipReason, bool) {
	if _, seen := c.visited[f.url]; seen {
		return SkipVisited, true
	}
	origin, err := Origin(f.url)
	if err != nil || origin != c.origin {
		return SkipCrossOrigin, true
	}
	if f.depth > c.seed.MaxDepth {
		return SkipTooDeep, true
	}
	return "", false
}
