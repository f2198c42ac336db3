// Package domain defines the scheduler ports. The scheduler is the single
// writer for item status: fetch and extraction workers report outcomes here
// instead of touching rows themselves
package domain

import (
	"context"

	discdom "regtruth/internal/services/discovery/domain"
)

// QueuePort surfaces the adaptive re-scan queue
type QueuePort interface {
	// DueItems returns scanned items whose next_scan_due has passed, ordered
	// by risk tier (highest first) then due time. PENDING items are excluded:
	// they are already in the fetch queue
	DueItems(ctx context.Context, limit int) ([]discdom.Item, error)
	// RequeueDue flips due items back to PENDING for the fetch workers and
	// returns how many were requeued
	RequeueDue(ctx context.Context, limit int) (int, error)
	// LeasePending leases PENDING items for the fetch pipeline
	LeasePending(ctx context.Context, limit int) ([]discdom.Item, error)
}

// WriterPort applies scan outcomes. Every item status mutation in the system
// goes through exactly one of these
type WriterPort interface {
	MarkFetched(ctx context.Context, item discdom.Item, changed bool, contentHash, etag string) error
	MarkProcessed(ctx context.Context, itemID string) error
	MarkSkipped(ctx context.Context, itemID, reason string) error
	// ScanError records a failed scan: bounded retries with a fixed cooldown,
	// then terminal FAILED
	ScanError(ctx context.Context, item discdom.Item, reason string) error
}
