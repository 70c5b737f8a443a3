package crawler

import (
	"context"
	"time"
)

// Fetcher performs a single GET for a URL. Any transport failure, timeout or
// non-2xx response is returned as an error.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResult, error)
}

// Extractor converts an HTML body into plain text and the absolute links it
// contains. It must tolerate malformed markup.
type Extractor interface {
	Extract(body []byte, pageURL string) Page
}

// DocumentStore persists one DocumentSet per site origin.
type DocumentStore interface {
	Put(ctx context.Context, origin string, docs DocumentSet) error
	Get(ctx context.Context, origin string) (DocumentSet, error)
	List(ctx context.Context) ([]string, error)
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher computes digests for integrity checks.
type Hasher interface {
	Hash(data []byte) (string, error)
}
