package listing

import (
	"context"
	"encoding/xml"
	"time"

	perr "regtruth/internal/platform/errors"
	"regtruth/internal/services/discovery/domain"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapURL `xml:"sitemap"`
}

// Sitemap fetches a sitemap and returns its page links. A sitemapindex is
// walked breadth-first: child sitemaps go back on the work queue with a
// depth one greater, bounded by maxDepth; link collection stops at maxURLs
func (l *Lister) Sitemap(ctx context.Context, startURL string, maxDepth, maxURLs int) ([]domain.Link, error) {
	type item struct {
		url   string
		depth int
	}

	queue := []item{{url: startURL, depth: 0}}
	var out []domain.Link
	seen := map[string]struct{}{startURL: {}}

	for len(queue) > 0 && len(out) < maxURLs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		cur := queue[0]
		queue = queue[1:]

		res, err := l.Fetch.Fetch(ctx, cur.url, "")
		if err != nil {
			if cur.url == startURL {
				return nil, err
			}
			l.log.Warn().Err(err).Str("url", cur.url).Msg("child sitemap fetch failed")
			continue
		}

		links, children, err := parseSitemap(res.Body)
		if err != nil {
			if cur.url == startURL {
				return nil, err
			}
			l.log.Warn().Err(err).Str("url", cur.url).Msg("child sitemap unparseable")
			continue
		}

		for _, ln := range links {
			if len(out) >= maxURLs {
				break
			}
			out = append(out, ln)
		}

		if cur.depth+1 > maxDepth {
			continue
		}
		for _, child := range children {
			if _, ok := seen[child]; ok {
				continue
			}
			seen[child] = struct{}{}
			queue = append(queue, item{url: child, depth: cur.depth + 1})
		}
	}
	return out, nil
}

// parseSitemap decodes either a urlset or a sitemapindex document
func parseSitemap(body []byte) (links []domain.Link, children []string, err error) {
	// the XMLName field makes unmarshal reject the wrong root element, so an
	// empty-but-valid urlset still parses as a urlset
	var set sitemapURLSet
	if err := xml.Unmarshal(body, &set); err == nil {
		for _, u := range set.URLs {
			if u.Loc == "" {
				continue
			}
			links = append(links, domain.Link{URL: u.Loc, LastMod: parseLastMod(u.LastMod)})
		}
		return links, nil, nil
	}

	var idx sitemapIndex
	if err := xml.Unmarshal(body, &idx); err == nil {
		for _, s := range idx.Sitemaps {
			if s.Loc != "" {
				children = append(children, s.Loc)
			}
		}
		return nil, children, nil
	}

	return nil, nil, perr.Contentf("not a sitemap or sitemapindex document")
}

// parseLastMod accepts the W3C datetime forms sitemaps use in the wild
func parseLastMod(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
