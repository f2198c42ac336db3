// Package listing resolves discovery endpoints into candidate links.
//
// Four strategies are supported: sitemap (with sitemapindex recursion),
// selector-based HTML listings, paginated listings, and a bounded
// same-domain crawl. All traversal is work-queue iteration with explicit
// budgets; nothing here recurses
package listing

import (
	"net/url"
	"strings"
	"sync"

	"regtruth/internal/platform/logger"
	"regtruth/internal/services/discovery/domain"
)

// Lister implements domain.ListerPort on top of a FetcherPort
type Lister struct {
	Fetch domain.FetcherPort

	log logger.Logger

	mu     sync.Mutex
	robots map[string]*robotsRules // per-host cache
}

var _ domain.ListerPort = (*Lister)(nil)

// New wires a Lister over the given fetcher
func New(fetch domain.FetcherPort) *Lister {
	return &Lister{
		Fetch:  fetch,
		log:    *logger.Named("listing"),
		robots: make(map[string]*robotsRules),
	}
}

// resolveRef turns a possibly-relative href into an absolute URL against base.
// Returns "" for unusable refs (javascript:, mailto:, empty, fragments)
func resolveRef(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}
