package domain

import "context"

// DetectorPort finds structural conflicts between a candidate rule and the
// standing rules on the same concept, then seeds them idempotently
type DetectorPort interface {
	DetectForRule(ctx context.Context, ruleID string) (created int, err error)
}

// QueryPort reads conflicts for arbitration and reporting
type QueryPort interface {
	Get(ctx context.Context, id string) (Conflict, error)
	LeaseOpen(ctx context.Context, limit int) ([]Conflict, error)
}

// WriterPort mutates conflict rows
type WriterPort interface {
	Seed(ctx context.Context, xs []Conflict) (created int, err error)
	Resolve(ctx context.Context, id string, r Resolution) error
	Escalate(ctx context.Context, id string, r Resolution) error
	Release(ctx context.Context, id string) error
}
