// Package statusgate is the state machine governing regulatory rule statuses.
// Every status mutation in the repo layer funnels through Check; nothing else
// may set a rule's status.
package statusgate

import (
	"strings"

	perr "regtruth/internal/platform/errors"
)

// Status is the lifecycle state of a regulatory rule
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusApproved      Status = "APPROVED"
	StatusPublished     Status = "PUBLISHED"
	StatusRejected      Status = "REJECTED"
	StatusDeprecated    Status = "DEPRECATED" // terminal
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingReview, StatusApproved,
		StatusPublished, StatusRejected, StatusDeprecated:
		return true
	}
	return false
}

// SystemAction names the narrow system-initiated exceptions that bypass the
// ordinary transition table
type SystemAction string

const (
	// ActionNone means the ordinary table applies
	ActionNone SystemAction = ""

	// ActionQuarantineDowngrade allows APPROVED/PUBLISHED -> PENDING_REVIEW only
	ActionQuarantineDowngrade SystemAction = "QUARANTINE_DOWNGRADE"

	// ActionRollback allows PUBLISHED -> APPROVED only
	ActionRollback SystemAction = "ROLLBACK"
)

// Request describes one attempted transition
type Request struct {
	From Status
	To   Status

	// SourceContext names who/what drives the transition. Publishing is
	// refused without one even when the base transition is legal
	SourceContext string

	// SystemAction selects a system-initiated exception path
	SystemAction SystemAction

	// Bypass is the legacy downgrade flag. It can only ever downgrade
	// APPROVED/PUBLISHED to PENDING_REVIEW; it never grants approval or
	// publication
	Bypass bool
}

// tableAllows is the ordinary allow-list
func tableAllows(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusPendingReview
	case StatusPendingReview:
		return to == StatusApproved || to == StatusRejected || to == StatusDraft
	case StatusApproved:
		return to == StatusPublished || to == StatusPendingReview
	case StatusPublished:
		return to == StatusDeprecated
	case StatusRejected:
		return to == StatusDraft
	case StatusDeprecated:
		return false
	}
	return false
}

// Check validates the transition and returns nil when it may proceed.
// Violations come back as typed transition errors naming the rule broken
func Check(req Request) error {
	if !req.From.Valid() {
		return perr.Transitionf("unknown current status %q", req.From)
	}
	if !req.To.Valid() {
		return perr.Transitionf("unknown target status %q", req.To)
	}

	// same-state transitions are always permitted as no-ops
	if req.From == req.To {
		return nil
	}

	switch req.SystemAction {
	case ActionQuarantineDowngrade:
		if (req.From == StatusApproved || req.From == StatusPublished) && req.To == StatusPendingReview {
			return nil
		}
		return perr.Transitionf(
			"QUARANTINE_DOWNGRADE only permits APPROVED or PUBLISHED to PENDING_REVIEW, not %s to %s",
			req.From, req.To)
	case ActionRollback:
		if req.From == StatusPublished && req.To == StatusApproved {
			return nil
		}
		return perr.Transitionf(
			"ROLLBACK only permits PUBLISHED to APPROVED, not %s to %s", req.From, req.To)
	case ActionNone:
		// fall through to bypass/table handling
	default:
		return perr.Transitionf("unknown system action %q", req.SystemAction)
	}

	if req.Bypass {
		// the legacy flag may only ever downgrade
		if req.To == StatusApproved || req.To == StatusPublished {
			return perr.Transitionf(
				"bypass flag cannot reach %s; approval and publication go through the PENDING_REVIEW allow-list",
				req.To)
		}
		if (req.From == StatusApproved || req.From == StatusPublished) && req.To == StatusPendingReview {
			return nil
		}
	}

	// deprecated compatibility: a source context naming a rollback may still
	// downgrade PUBLISHED to APPROVED; prefer SystemAction ROLLBACK
	if req.From == StatusPublished && req.To == StatusApproved &&
		strings.Contains(strings.ToLower(req.SourceContext), "rollback") {
		return nil
	}

	if !tableAllows(req.From, req.To) {
		return perr.Transitionf("illegal status transition %s to %s", req.From, req.To)
	}

	if req.To == StatusPublished && strings.TrimSpace(req.SourceContext) == "" {
		return perr.Transitionf("publishing requires an explicit source context")
	}
	return nil
}
