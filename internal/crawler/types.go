package crawler

import (
	"sort"
	"time"
)

// Seed is a starting URL plus the maximum link depth for one crawl.
type Seed struct {
	URL      string `json:"url" mapstructure:"url"`
	MaxDepth int    `json:"max_depth" mapstructure:"max_depth"`
}

// DocumentSet maps a crawled URL to the plain text extracted from it.
type DocumentSet map[string]string

// Keys returns the URLs of the set in lexical order.
func (d DocumentSet) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy of the set.
func (d DocumentSet) Clone() DocumentSet {
	cp := make(DocumentSet, len(d))
	for k, v := range d {
		cp[k] = v
	}
	return cp
}

// FetchResult is the raw outcome of a successful fetch.
type FetchResult struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Page is the extractor output for one HTML document.
type Page struct {
	Text  string
	Links []string
}

// SkipReason explains why the crawler pruned a URL without fetching it.
type SkipReason string

// Pruning decisions made by the traversal.
const (
	SkipVisited     SkipReason = "visited"
	SkipCrossOrigin SkipReason = "cross_origin"
	SkipTooDeep     SkipReason = "too_deep"
)

// CrawlStats counts traversal outcomes for a single seed.
type CrawlStats struct {
	Fetched int `json:"fetched"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// CrawlResult is what the orchestrator reports for each seed.
type CrawlResult struct {
	Seed      Seed          `json:"seed"`
	Origin    string        `json:"origin"`
	Documents DocumentSet   `json:"-"`
	Stats     CrawlStats    `json:"stats"`
	Duration  time.Duration `json:"duration"`
	// Err is set when the seed could not be set up or its documents could
	// not be persisted. Fetch failures never surface here.
	Err error `json:"-"`
}
