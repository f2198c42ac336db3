package listing

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	perr "regtruth/internal/platform/errors"
	"regtruth/internal/services/discovery/domain"
)

// HTMLList fetches one listing page and extracts the anchors matched by
// selector. Anchors without an href, or resolving outside http(s), are skipped
func (l *Lister) HTMLList(ctx context.Context, pageURL, selector string) ([]domain.Link, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, perr.InvalidArgumentf("html listing requires a selector")
	}
	doc, base, err := l.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return extractLinks(doc, base, selector), nil
}

// Paginate walks a listing forward through its rel=next chain, collecting
// selector-matched anchors from each page, bounded by maxPages
func (l *Lister) Paginate(ctx context.Context, pageURL, selector string, maxPages int) ([]domain.Link, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, perr.InvalidArgumentf("paginated listing requires a selector")
	}

	var out []domain.Link
	seen := map[string]struct{}{pageURL: {}}
	cur := pageURL

	for page := 0; page < maxPages && cur != ""; page++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		doc, base, err := l.fetchDocument(ctx, cur)
		if err != nil {
			if page == 0 {
				return nil, err
			}
			l.log.Warn().Err(err).Str("url", cur).Int("page", page).Msg("pagination stopped early")
			break
		}

		out = append(out, extractLinks(doc, base, selector)...)

		next := nextPageURL(doc, base)
		if next == "" {
			break
		}
		if _, ok := seen[next]; ok {
			break // pagination loop
		}
		seen[next] = struct{}{}
		cur = next
	}
	return out, nil
}

// fetchDocument fetches a page and parses it as HTML
func (l *Lister) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	res, err := l.Fetch.Fetch(ctx, pageURL, "")
	if err != nil {
		return nil, nil, err
	}

	base, err := url.Parse(res.FinalURL)
	if err != nil || base.Host == "" {
		base, err = url.Parse(pageURL)
		if err != nil {
			return nil, nil, perr.InvalidArgumentf("bad page url %q", pageURL)
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, nil, perr.Contentf("parse html %s: %v", pageURL, err)
	}
	return doc, base, nil
}

// extractLinks pulls hrefs from selector matches. When a match is not itself
// an anchor, the first anchor inside it is used
func extractLinks(doc *goquery.Document, base *url.URL, selector string) []domain.Link {
	var out []domain.Link
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		a := sel
		if !sel.Is("a") {
			a = sel.Find("a").First()
		}
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		abs := resolveRef(base, href)
		if abs == "" {
			return
		}
		out = append(out, domain.Link{
			URL:   abs,
			Title: strings.TrimSpace(a.Text()),
		})
	})
	return out
}

// nextPageURL finds the forward pagination link: rel=next first, then the
// common next-class fallbacks
func nextPageURL(doc *goquery.Document, base *url.URL) string {
	for _, sel := range []string{`a[rel="next"]`, `link[rel="next"]`, "a.next", "a.pagination-next"} {
		if href, ok := doc.Find(sel).First().Attr("href"); ok {
			if abs := resolveRef(base, href); abs != "" {
				return abs
			}
		}
	}
	return ""
}
