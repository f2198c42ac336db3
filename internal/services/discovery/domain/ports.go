package domain

import (
	"context"
	"time"
)

// FetchResult is one HTTP fetch outcome
type FetchResult struct {
	Status      int
	Body        []byte
	ContentType string
	ETag        string
	NotModified bool
	FinalURL    string
}

// FetcherPort performs a single conditional fetch. Implementations own
// per-request timeouts and transient retries; the circuit breaker lives above
type FetcherPort interface {
	Fetch(ctx context.Context, url, etag string) (FetchResult, error)
}

// Link is one discovered URL with optional listing metadata
type Link struct {
	URL     string
	Title   string
	LastMod *time.Time
}

// ListerPort resolves an endpoint's listing into candidate links. All
// traversal is budget-bounded work-queue iteration, never recursion
type ListerPort interface {
	Sitemap(ctx context.Context, url string, maxDepth, maxURLs int) ([]Link, error)
	HTMLList(ctx context.Context, url, selector string) ([]Link, error)
	Paginate(ctx context.Context, url, selector string, maxPages int) ([]Link, error)
	Crawl(ctx context.Context, start string, maxDepth, maxURLs int) ([]Link, error)
}

// OCRPort queues a scanned document for out-of-band text recovery
type OCRPort interface {
	Enqueue(ctx context.Context, evidenceID string) error
}

// ExtractorPort hands fetched evidence to the rule extraction stage
type ExtractorPort interface {
	EnqueueEvidence(ctx context.Context, evidenceID string) error
}
