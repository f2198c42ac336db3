package domain

import "context"

// AgentPort is the model seam. Implementations own prompt construction,
// retries on malformed output, and schema validation; a returned Verdict is
// always structurally valid
type AgentPort interface {
	Arbitrate(ctx context.Context, in Input) (Verdict, error)
}

// ReviewPort raises a human review request. Failures are logged and ignored:
// the conflict's own ESCALATED state is the durable record
type ReviewPort interface {
	RequestReview(ctx context.Context, conflictID string, reason EscalationReason, detail string) error
}

// RunnerPort drains open conflicts in batches
type RunnerPort interface {
	RunBatch(ctx context.Context, limit int) (BatchReport, error)
}

// BatchReport summarizes one arbitration batch. Per-conflict failures are
// counted, not propagated
type BatchReport struct {
	Leased    int
	Resolved  int
	Escalated int
	Failed    int
}
