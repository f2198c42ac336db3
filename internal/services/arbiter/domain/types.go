// Package domain defines arbitration types: claims sent to the model,
// verdicts received back, and the deterministic escalation vocabulary
package domain

import (
	"time"

	"regtruth/internal/core/authority"
	"regtruth/internal/core/velocity"
)

// Claim is one side of a rule-vs-rule arbitration, built from the persisted
// rule plus its supporting evidence quotes
type Claim struct {
	RuleID         string          `json:"rule_id"`
	Value          string          `json:"value"`
	Authority      authority.Level `json:"authority"`
	RiskTier       velocity.RiskTier `json:"risk_tier"`
	EffectiveFrom  time.Time       `json:"effective_from"`
	EffectiveUntil *time.Time      `json:"effective_until,omitempty"`
	Quotes         []string        `json:"quotes,omitempty"`
	// ExtractionConfidence is the confidence the extractor reported when the
	// rule was drafted, not the arbiter's own confidence
	ExtractionConfidence float64 `json:"extraction_confidence"`
}

// Input is the full payload for one arbitration call
type Input struct {
	ConflictID   string `json:"conflict_id"`
	ConflictType string `json:"conflict_type"`
	ConceptSlug  string `json:"concept_slug"`
	RuleA        Claim  `json:"rule_a"`
	RuleB        Claim  `json:"rule_b"`
}

// Winner is the model's mapped recommendation
type Winner string

const (
	WinnerRuleA    Winner = "RULE_A_PREVAILS"
	WinnerRuleB    Winner = "RULE_B_PREVAILS"
	WinnerEscalate Winner = "ESCALATE_TO_HUMAN"
)

// Valid reports whether w is a known winner value
func (w Winner) Valid() bool {
	return w == WinnerRuleA || w == WinnerRuleB || w == WinnerEscalate
}

// Strategy is the resolution strategy the model claims to have applied
type Strategy string

const (
	StrategyHierarchy   Strategy = "hierarchy"
	StrategyTemporal    Strategy = "temporal"
	StrategySpecificity Strategy = "specificity"
	StrategyConsensus   Strategy = "consensus"
)

// Verdict is the schema-validated model output. Field tags drive both JSON
// decoding and validator checks; anything failing validation is a schema
// error and retried at the adapter
type Verdict struct {
	ConflictType string  `json:"conflict_type" validate:"required,oneof=VALUE_MISMATCH AUTHORITY_SUPERSEDE TEMPORAL_CONFLICT SOURCE_CONFLICT"`
	Winner       Winner  `json:"winner" validate:"required,oneof=RULE_A_PREVAILS RULE_B_PREVAILS ESCALATE_TO_HUMAN"`
	Strategy     Strategy `json:"strategy" validate:"required,oneof=hierarchy temporal specificity consensus"`
	Confidence   float64 `json:"confidence" validate:"gte=0,lte=1"`
	Rationale    string  `json:"rationale" validate:"required"`
}

// EscalationReason categorizes why a conflict went to a human
type EscalationReason string

const (
	ReasonModelRecommends  EscalationReason = "model_recommends_escalation"
	ReasonLowConfidence    EscalationReason = "low_model_confidence"
	ReasonBothCritical     EscalationReason = "both_rules_critical_tier"
	ReasonEqualAuthority   EscalationReason = "equal_authority_hierarchy_tie"
	ReasonSameEffective    EscalationReason = "identical_effective_from_temporal_tie"
	ReasonLowExtraction    EscalationReason = "low_extraction_confidence"
	ReasonSourceConflict   EscalationReason = "source_level_disagreement"
)

// Outcome is what an arbitration pass decided for one conflict
type Outcome struct {
	ConflictID string
	Escalated  bool
	WinnerID   string
	LoserID    string
	Strategy   Strategy
	Confidence float64
	Rationale  string
	Reasons    []EscalationReason
}
