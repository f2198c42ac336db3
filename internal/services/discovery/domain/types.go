// Package domain defines the discovery-side entities: endpoints we scrape,
// items we found, and the evidence snapshots fetched from them
package domain

import (
	"time"

	"regtruth/internal/core/velocity"
)

// Strategy is how an endpoint's listing is resolved into item URLs
type Strategy string

const (
	StrategySitemap    Strategy = "SITEMAP"
	StrategyHTMLList   Strategy = "HTML_LIST"
	StrategyPagination Strategy = "PAGINATION"
	StrategyCrawl      Strategy = "CRAWL"
)

// Valid reports whether s is a known listing strategy
func (s Strategy) Valid() bool {
	switch s {
	case StrategySitemap, StrategyHTMLList, StrategyPagination, StrategyCrawl:
		return true
	}
	return false
}

// Endpoint is a configured entry point on a regulatory source domain
type Endpoint struct {
	ID       string
	Domain   string
	BaseURL  string
	Strategy Strategy
	// Selector narrows HTML_LIST/PAGINATION extraction to matching anchors
	Selector string
	Priority int

	ScrapeEvery       time.Duration
	ConsecutiveErrors int
	Active            bool

	LastScrapedAt *time.Time
	NextScrapeAt  time.Time
}

// ItemStatus is the fetch lifecycle of a discovered item. Mutated only
// through the scheduler service
type ItemStatus string

const (
	ItemPending   ItemStatus = "PENDING"
	ItemFetched   ItemStatus = "FETCHED"
	ItemProcessed ItemStatus = "PROCESSED"
	ItemFailed    ItemStatus = "FAILED"
	ItemSkipped   ItemStatus = "SKIPPED"
)

// NodeRole is a coarse guess at what kind of document a URL points to
type NodeRole string

const (
	RoleLawText   NodeRole = "LAW_TEXT"
	RoleRegulation NodeRole = "REGULATION"
	RoleGuidance  NodeRole = "GUIDANCE"
	RoleListing   NodeRole = "LISTING"
	RoleOther     NodeRole = "OTHER"
)

// Item is one discovered URL under an endpoint, with its adaptive scan state
type Item struct {
	ID         string
	EndpointID string
	URL        string
	Domain     string

	Status   ItemStatus
	NodeRole NodeRole
	RiskTier velocity.RiskTier

	// ChangeFreq is the EWMA change velocity in [0,1]
	ChangeFreq  float64
	ScanCount   int
	ContentHash string
	ETag        string

	NextScanDue time.Time
	RetryCount  int
	LastError   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContentClass tags what kind of payload a fetch produced
type ContentClass string

const (
	ContentHTML       ContentClass = "HTML"
	ContentPDFText    ContentClass = "PDF_TEXT"
	ContentPDFScanned ContentClass = "PDF_SCANNED"
	ContentDocx       ContentClass = "DOCX"
	ContentPlain      ContentClass = "TEXT"
)

// Evidence is an immutable fetched snapshot. Unique on (URL, ContentHash):
// refetching identical content collapses to the existing row
type Evidence struct {
	ID          string
	ItemID      string
	URL         string
	ContentHash string
	Class       ContentClass

	// Text is the extracted plain text; empty for scanned PDFs until OCR
	Text string

	IsChange    bool
	DiffSummary string

	FetchedAt time.Time
}
