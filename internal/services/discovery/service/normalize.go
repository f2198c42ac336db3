package service

import (
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a discovered link so dedupe works across the
// cosmetic variants listings produce: scheme/host case, default ports,
// fragments, trailing slashes
func NormalizeURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if h, p, ok := strings.Cut(u.Host, ":"); ok {
		if (u.Scheme == "http" && p == "80") || (u.Scheme == "https" && p == "443") {
			u.Host = h
		}
	}

	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), true
}

// DedupeLinks normalizes and deduplicates, preserving first-seen order.
// Links resolving outside wantHost are dropped when wantHost is non-empty
func DedupeLinks(raws []string, wantHost string) []string {
	seen := make(map[string]struct{}, len(raws))
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		norm, ok := NormalizeURL(raw)
		if !ok {
			continue
		}
		if wantHost != "" {
			u, _ := url.Parse(norm)
			if !sameHost(u.Host, wantHost) {
				continue
			}
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

// sameHost treats www. as transparent
func sameHost(a, b string) bool {
	return strings.TrimPrefix(strings.ToLower(a), "www.") ==
		strings.TrimPrefix(strings.ToLower(b), "www.")
}
