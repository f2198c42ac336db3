// Package domain defines the core types for regulatory rules
package domain

import (
	"time"

	"regtruth/internal/core/authority"
	"regtruth/internal/core/statusgate"
	"regtruth/internal/core/velocity"
)

// ValueType tags how a rule's value should be interpreted downstream
type ValueType string

const (
	ValuePercent  ValueType = "PERCENT"
	ValueAmount   ValueType = "AMOUNT"
	ValueDate     ValueType = "DATE"
	ValueBoolean  ValueType = "BOOLEAN"
	ValueText     ValueType = "TEXT"
	ValueDuration ValueType = "DURATION"
)

// Rule is a versioned, concept-scoped regulatory assertion. Identity is the
// row id, not the concept: many rules may share a ConceptSlug across time and
// authority. Status mutations go through the rules service only
type Rule struct {
	ID          string
	ConceptSlug string

	Value     string
	ValueType ValueType

	Authority authority.Level
	RiskTier  velocity.RiskTier

	EffectiveFrom  time.Time
	EffectiveUntil *time.Time // nil means open-ended

	// Confidence is the extraction confidence reported when the rule was drafted
	Confidence float64

	Status statusgate.Status

	EvidenceID string
	Notes      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Window returns the effective range, with ok=false when EffectiveFrom is zero
func (r Rule) Window() (from time.Time, until *time.Time, ok bool) {
	return r.EffectiveFrom, r.EffectiveUntil, !r.EffectiveFrom.IsZero()
}

// OverlapsWindow reports whether the effective ranges of a and b intersect.
// A nil until is open-ended. Ranges touching at a single instant do not overlap
func OverlapsWindow(a, b Rule) bool {
	aFrom, aUntil, okA := a.Window()
	bFrom, bUntil, okB := b.Window()
	if !okA || !okB {
		return false
	}
	if aUntil != nil && !aUntil.After(bFrom) {
		return false
	}
	if bUntil != nil && !bUntil.After(aFrom) {
		return false
	}
	return true
}

// DeprecationNote is the structured note stamped on a losing rule
type DeprecationNote struct {
	ConflictID       string    `json:"conflict_id"`
	SupersededByID   string    `json:"superseded_by_id"`
	Rationale        string    `json:"rationale"`
	ResolvedStrategy string    `json:"resolved_strategy"`
	At               time.Time `json:"at"`
}

// OverrideEdge is one lex-specialis relation: Overrider overrides Overridden
type OverrideEdge struct {
	OverriderID  string
	OverriddenID string
}
