package llm

import (
	"context"
	"encoding/json"

	perr "regtruth/internal/platform/errors"
	"regtruth/internal/services/audit"
	extdom "regtruth/internal/services/extraction/domain"
)

const extractSystemPrompt = `You extract regulatory assertions from official tax and labor
administration documents. Given the plain text of one document, return every concrete,
dated regulatory fact as a claim. Only state what the text supports with a verbatim quote.

Respond with a single JSON object:
{
  "claims": [
    {
      "concept_slug": "<kebab-case concept, e.g. vat-rate-standard>",
      "value": "<the asserted value>",
      "value_type": "PERCENT" | "AMOUNT" | "DATE" | "BOOLEAN" | "TEXT" | "DURATION",
      "authority": "LAW" | "GUIDANCE" | "PROCEDURE" | "PRACTICE",
      "risk_tier": "CRITICAL" | "HIGH" | "MEDIUM" | "LOW",
      "confidence": <0..1>,
      "effective_from": "<RFC 3339 date-time>",
      "effective_until": "<RFC 3339 date-time or null>",
      "quotes": ["<verbatim supporting passage>", ...]
    }
  ]
}
An empty claims array is a valid answer for documents with no extractable facts.`

type claimsEnvelope struct {
	Claims []extdom.Claim `json:"claims"`
}

type extractRequest struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

var _ extdom.AgentPort = (*Client)(nil)

// Extract implements the extraction AgentPort. The envelope must decode;
// per-claim validation stays with the extraction service, which can drop a
// bad claim while keeping its siblings
func (c *Client) Extract(ctx context.Context, in extdom.Input) ([]extdom.Claim, error) {
	payload, err := json.Marshal(extractRequest{URL: in.URL, Text: in.Text})
	if err != nil {
		return nil, perr.InvalidArgumentf("marshal extraction input: %v", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		start := c.now()
		raw, err := c.completeJSON(ctx, extractSystemPrompt, string(payload))
		lat := c.now().Sub(start).Milliseconds()

		if err != nil {
			c.record(ctx, audit.AgentRun{
				Agent: "extraction", EntityType: "evidence", EntityID: in.EvidenceID,
				Status: "transport_error", LatencyMS: lat, Error: err.Error(),
			})
			return nil, err
		}

		var env claimsEnvelope
		if uerr := json.Unmarshal([]byte(raw), &env); uerr != nil {
			lastErr = perr.Schemaf("claims envelope is not valid json (attempt %d): %v", attempt, uerr)
			c.record(ctx, audit.AgentRun{
				Agent: "extraction", EntityType: "evidence", EntityID: in.EvidenceID,
				Status: "schema_error", LatencyMS: lat, Error: uerr.Error(),
			})
			c.log.Warn().Err(uerr).Str("evidence_id", in.EvidenceID).Int("attempt", attempt).
				Msg("claims failed to decode, re-asking")
			continue
		}

		c.record(ctx, audit.AgentRun{
			Agent: "extraction", EntityType: "evidence", EntityID: in.EvidenceID,
			Status: "ok", LatencyMS: lat,
		})
		return env.Claims, nil
	}
	return nil, lastErr
}
