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

func errBadStart(start string) error {
	return perr.InvalidArgumentf("crawl start url %q is not absolute", start)
}

// Crawl walks same-domain links breadth-first from start, bounded by maxDepth
// and maxURLs, honoring the host's robots.txt disallow rules. Every visited
// page is returned as a link; the caller classifies and filters
func (l *Lister) Crawl(ctx context.Context, start string, maxDepth, maxURLs int) ([]domain.Link, error) {
	startURL, err := url.Parse(start)
	if err != nil || startURL.Host == "" {
		return nil, errBadStart(start)
	}

	rules := l.robotsFor(ctx, startURL)

	type item struct {
		url   string
		depth int
	}
	queue := []item{{url: start, depth: 0}}
	seen := map[string]struct{}{start: {}}
	var out []domain.Link

	for len(queue) > 0 && len(out) < maxURLs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		cur := queue[0]
		queue = queue[1:]

		curURL, err := url.Parse(cur.url)
		if err != nil {
			continue
		}
		if !rules.Allowed(curURL.Path) {
			continue
		}

		res, err := l.Fetch.Fetch(ctx, cur.url, "")
		if err != nil {
			if cur.url == start {
				return nil, err
			}
			l.log.Warn().Err(err).Str("url", cur.url).Msg("crawl fetch failed")
			continue
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
		if err != nil {
			continue
		}

		title := strings.TrimSpace(doc.Find("title").First().Text())
		out = append(out, domain.Link{URL: cur.url, Title: title})

		if cur.depth+1 > maxDepth {
			continue
		}

		base := curURL
		if fu, err := url.Parse(res.FinalURL); err == nil && fu.Host != "" {
			base = fu
		}
		doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			abs := resolveRef(base, href)
			if abs == "" {
				return
			}
			next, err := url.Parse(abs)
			if err != nil || !strings.EqualFold(next.Host, startURL.Host) {
				return
			}
			if _, ok := seen[abs]; ok {
				return
			}
			seen[abs] = struct{}{}
			queue = append(queue, item{url: abs, depth: cur.depth + 1})
		})
	}
	return out, nil
}
