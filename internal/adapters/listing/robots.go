package listing

import (
	"context"
	"net/url"
	"strings"

	perr "regtruth/internal/platform/errors"
)

// robotsRules holds the User-agent: * disallow prefixes for one host.
// An empty rule set allows everything, which is also the failure mode when
// robots.txt cannot be fetched or parsed
type robotsRules struct {
	disallow []string
}

// Allowed reports whether path escapes every disallow prefix. An empty
// Disallow line means "allow all" and is ignored
func (r *robotsRules) Allowed(path string) bool {
	if r == nil {
		return true
	}
	if path == "" {
		path = "/"
	}
	for _, p := range r.disallow {
		if strings.HasPrefix(path, p) {
			return false
		}
	}
	return true
}

// robotsFor returns the cached rules for u's host, fetching robots.txt on
// first use
func (l *Lister) robotsFor(ctx context.Context, u *url.URL) *robotsRules {
	host := strings.ToLower(u.Host)

	l.mu.Lock()
	if r, ok := l.robots[host]; ok {
		l.mu.Unlock()
		return r
	}
	l.mu.Unlock()

	rules := l.fetchRobots(ctx, u)

	l.mu.Lock()
	l.robots[host] = rules
	l.mu.Unlock()
	return rules
}

func (l *Lister) fetchRobots(ctx context.Context, u *url.URL) *robotsRules {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
	res, err := l.Fetch.Fetch(ctx, robotsURL, "")
	if err != nil {
		if perr.CodeOf(err) != perr.ErrorCodeNotFound {
			l.log.Warn().Err(err).Str("host", u.Host).Msg("robots.txt unavailable, allowing all")
		}
		return &robotsRules{}
	}
	return parseRobots(string(res.Body))
}

// parseRobots extracts Disallow prefixes from the User-agent: * group.
// Named-agent groups are skipped; we only ever identify as a generic crawler
func parseRobots(body string) *robotsRules {
	rules := &robotsRules{}
	applies := false
	for _, line := range strings.Split(body, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)

		switch key {
		case "user-agent":
			applies = val == "*"
		case "disallow":
			if applies && val != "" {
				rules.disallow = append(rules.disallow, val)
			}
		}
	}
	return rules
}
