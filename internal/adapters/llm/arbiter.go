package llm

import (
	"context"
	"encoding/json"

	perr "regtruth/internal/platform/errors"
	arbdom "regtruth/internal/services/arbiter/domain"
	"regtruth/internal/services/audit"
)

const arbiterSystemPrompt = `You are the arbitration judge for a regulatory rule pipeline.
Two extracted rules about the same regulatory concept are in conflict. Decide which one
prevails, or escalate to a human reviewer when the evidence does not clearly favor a side.

Weigh, in order: the authority hierarchy (LAW > GUIDANCE > PROCEDURE > PRACTICE),
effective dates (a later rule from an equal-or-higher authority usually supersedes),
specificity of the supporting quotes, and agreement between sources.

Respond with a single JSON object:
{
  "conflict_type": "VALUE_MISMATCH" | "AUTHORITY_SUPERSEDE" | "TEMPORAL_CONFLICT" | "SOURCE_CONFLICT",
  "winner": "RULE_A_PREVAILS" | "RULE_B_PREVAILS" | "ESCALATE_TO_HUMAN",
  "strategy": "hierarchy" | "temporal" | "specificity" | "consensus",
  "confidence": <0..1>,
  "rationale": "<one or two sentences>"
}`

var _ arbdom.AgentPort = (*Client)(nil)

// Arbitrate implements the arbiter's AgentPort. Malformed model output is
// re-asked up to MaxRetries times; the returned Verdict always passed schema
// validation
func (c *Client) Arbitrate(ctx context.Context, in arbdom.Input) (arbdom.Verdict, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return arbdom.Verdict{}, perr.InvalidArgumentf("marshal arbitration input: %v", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		start := c.now()
		raw, err := c.completeJSON(ctx, arbiterSystemPrompt, string(payload))
		lat := c.now().Sub(start).Milliseconds()

		if err != nil {
			c.record(ctx, audit.AgentRun{
				Agent: "arbiter", EntityType: "conflict", EntityID: in.ConflictID,
				Status: "transport_error", LatencyMS: lat, Error: err.Error(),
			})
			return arbdom.Verdict{}, err
		}

		var v arbdom.Verdict
		if uerr := json.Unmarshal([]byte(raw), &v); uerr != nil {
			err = perr.Schemaf("verdict is not valid json: %v", uerr)
		} else {
			err = c.validate.Struct(v)
		}
		if err != nil {
			lastErr = perr.Wrapf(err, perr.ErrorCodeSchema, "verdict rejected (attempt %d)", attempt)
			c.record(ctx, audit.AgentRun{
				Agent: "arbiter", EntityType: "conflict", EntityID: in.ConflictID,
				Status: "schema_error", LatencyMS: lat, Error: err.Error(),
			})
			c.log.Warn().Err(err).Str("conflict_id", in.ConflictID).Int("attempt", attempt).
				Msg("verdict failed schema, re-asking")
			continue
		}

		c.record(ctx, audit.AgentRun{
			Agent: "arbiter", EntityType: "conflict", EntityID: in.ConflictID,
			Status: "ok", LatencyMS: lat,
		})
		return v, nil
	}
	return arbdom.Verdict{}, lastErr
}
