// Package domain defines conflict types for the regulatory pipeline
package domain

import "time"

// Type classifies how two rules disagree
type Type string

const (
	TypeValueMismatch      Type = "VALUE_MISMATCH"
	TypeAuthoritySupersede Type = "AUTHORITY_SUPERSEDE"
	TypeTemporalConflict   Type = "TEMPORAL_CONFLICT"
	TypeSourceConflict     Type = "SOURCE_CONFLICT"
)

// Valid reports whether t is a known conflict type
func (t Type) Valid() bool {
	switch t {
	case TypeValueMismatch, TypeAuthoritySupersede, TypeTemporalConflict, TypeSourceConflict:
		return true
	}
	return false
}

// Status is the lifecycle of a detected conflict
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusResolved  Status = "RESOLVED"
	StatusEscalated Status = "ESCALATED"
)

// Resolution is the arbitration outcome attached to a non-open conflict
type Resolution struct {
	WinnerID  string  `json:"winner_id,omitempty"`
	Strategy  string  `json:"strategy"`
	Rationale string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
	// EscalationReasons is set when the conflict ended ESCALATED
	EscalationReasons []string `json:"escalation_reasons,omitempty"`
}

// Conflict pairs an existing rule with a newer candidate on the same concept.
// ExistingID/CandidateID are ordered: detection always stores the older row
// first, and the pair is unique among OPEN conflicts
type Conflict struct {
	ID          string
	Type        Type
	ConceptSlug string

	ExistingID  string
	CandidateID string

	// SourcePointers are evidence URLs backing each side of a source
	// disagreement; only SOURCE_CONFLICT rows carry more than two
	SourcePointers []string

	Status              Status
	Resolution          *Resolution
	RequiresHumanReview bool

	DetectedAt time.Time
	ResolvedAt *time.Time
}
