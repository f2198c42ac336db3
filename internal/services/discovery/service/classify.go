package service

import (
	"bytes"
	"strings"

	"regtruth/internal/core/velocity"
	"regtruth/internal/services/discovery/domain"
)

// rolePatterns maps URL path fragments to the coarse document role. Patterns
// cover the English and Croatian terms seen across the configured sources
var rolePatterns = []struct {
	fragments []string
	role      domain.NodeRole
	risk      velocity.RiskTier
}{
	{[]string{"zakon", "/act", "/law", "statute", "official-gazette", "narodne-novine"},
		domain.RoleLawText, velocity.RiskCritical},
	{[]string{"pravilnik", "uredba", "regulation", "ordinance", "directive"},
		domain.RoleRegulation, velocity.RiskHigh},
	{[]string{"misljenj", "opinion", "guidance", "uputa", "instruction", "circular"},
		domain.RoleGuidance, velocity.RiskMedium},
	{[]string{"novosti", "news", "list", "arhiva", "archive", "index"},
		domain.RoleListing, velocity.RiskLow},
}

// ClassifyURL guesses the node role and freshness risk from the URL path
func ClassifyURL(rawURL string) (domain.NodeRole, velocity.RiskTier) {
	lower := strings.ToLower(rawURL)
	for _, p := range rolePatterns {
		for _, f := range p.fragments {
			if strings.Contains(lower, f) {
				return p.role, p.risk
			}
		}
	}
	return domain.RoleOther, velocity.RiskLow
}

// ClassifyContent tags a fetched payload by content type, URL extension and
// magic bytes, in that order of trust
func ClassifyContent(contentType, url string, body []byte) domain.ContentClass {
	ct := strings.ToLower(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(ct)

	switch ct {
	case "text/html", "application/xhtml+xml":
		return domain.ContentHTML
	case "application/pdf":
		return domain.ContentPDFText
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/msword":
		return domain.ContentDocx
	case "text/plain":
		return domain.ContentPlain
	}

	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return domain.ContentPDFText
	case strings.HasSuffix(lower, ".docx") || strings.HasSuffix(lower, ".doc"):
		return domain.ContentDocx
	case strings.HasSuffix(lower, ".txt"):
		return domain.ContentPlain
	}

	switch {
	case bytes.HasPrefix(body, []byte("%PDF-")):
		return domain.ContentPDFText
	case bytes.HasPrefix(body, []byte("PK\x03\x04")):
		return domain.ContentDocx
	case looksLikeHTML(body):
		return domain.ContentHTML
	}
	return domain.ContentPlain
}

func looksLikeHTML(body []byte) bool {
	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	lower := bytes.ToLower(head)
	return bytes.Contains(lower, []byte("<!doctype html")) || bytes.Contains(lower, []byte("<html"))
}
