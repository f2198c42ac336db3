package domain

import (
	"context"

	"regtruth/internal/core/statusgate"
)

// ReaderPort reads rules
type ReaderPort interface {
	Get(ctx context.Context, id string) (Rule, error)
	ListByConcept(ctx context.Context, slug string, statuses []statusgate.Status) ([]Rule, error)
	OverridesAmong(ctx context.Context, ids []string) ([]OverrideEdge, error)
}

// WriterPort mutates rules. Status changes go through Transition only;
// batch field updates never touch status
type WriterPort interface {
	InsertDraft(ctx context.Context, r Rule) (Rule, error)
	Transition(ctx context.Context, id string, req statusgate.Request, note string) (Rule, error)
	UpdateFields(ctx context.Context, id string, fields FieldPatch) error
	AddOverride(ctx context.Context, e OverrideEdge) error
}

// FieldPatch carries non-status field updates. Nil members are untouched
type FieldPatch struct {
	Value      *string
	Confidence *float64
	Notes      *string
	EvidenceID *string
}
