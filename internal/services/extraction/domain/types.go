// Package domain defines the extraction stage types
package domain

import (
	"context"
	"time"
)

// Input is the evidence text handed to the extraction agent
type Input struct {
	EvidenceID string
	URL        string
	Text       string
}

// Claim is one structured candidate assertion extracted from evidence.
// The agent's raw output is validated against these tags before any claim
// becomes a draft rule
type Claim struct {
	ConceptSlug string  `json:"concept_slug" validate:"required"`
	Value       string  `json:"value"        validate:"required"`
	ValueType   string  `json:"value_type"   validate:"required,oneof=PERCENT AMOUNT DATE BOOLEAN TEXT DURATION"`
	Authority   string  `json:"authority"    validate:"required,oneof=LAW GUIDANCE PROCEDURE PRACTICE"`
	RiskTier    string  `json:"risk_tier"    validate:"required,oneof=CRITICAL HIGH MEDIUM LOW"`
	Confidence  float64 `json:"confidence"   validate:"gte=0,lte=1"`

	EffectiveFrom  time.Time  `json:"effective_from" validate:"required"`
	EffectiveUntil *time.Time `json:"effective_until"`

	// Quotes are verbatim supporting passages from the evidence text
	Quotes []string `json:"quotes" validate:"min=1,dive,required"`
}

// AgentPort is the opaque LLM extraction call: facts text in, claims out.
// May fail, and may return claims that do not survive validation
type AgentPort interface {
	Extract(ctx context.Context, in Input) ([]Claim, error)
}

// QueuePort accepts evidence ids for asynchronous extraction
type QueuePort interface {
	EnqueueEvidence(ctx context.Context, evidenceID string) error
}
