// Package repo provides the scheduler's view over discovered items.
package repo

import (
	"context"
	"time"

	"regtruth/internal/modkit/repokit"
	discdom "regtruth/internal/services/discovery/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// ScanPatch carries the full post-scan state for one item
type ScanPatch struct {
	Status      discdom.ItemStatus
	ChangeFreq  float64
	ScanCount   int
	ContentHash string
	ETag        string
	NextScanDue time.Time
	RetryCount  int
	LastError   string
}

// Storage defines the scheduler repository
type Storage interface {
	Get(ctx context.Context, id string) (discdom.Item, error)
	DueItems(ctx context.Context, limit int) ([]discdom.Item, error)
	Requeue(ctx context.Context, ids []string) (int, error)
	LeasePending(ctx context.Context, limit int, leaseFor time.Duration) ([]discdom.Item, error)
	SetScanState(ctx context.Context, id string, p ScanPatch) error
	SetStatus(ctx context.Context, id string, st discdom.ItemStatus, lastError string) error
}

const itemCols = `id::text, endpoint_id::text, url, domain, status, node_role, risk_tier,
	change_freq, scan_count, content_hash, etag, next_scan_due, retry_count,
	last_error, created_at, updated_at`

func scanItem(row repokit.Row) (discdom.Item, error) {
	var it discdom.Item
	err := row.Scan(
		&it.ID, &it.EndpointID, &it.URL, &it.Domain, &it.Status, &it.NodeRole,
		&it.RiskTier, &it.ChangeFreq, &it.ScanCount, &it.ContentHash, &it.ETag,
		&it.NextScanDue, &it.RetryCount, &it.LastError, &it.CreatedAt, &it.UpdatedAt,
	)
	return it, err
}

func collect(rows repokit.Rows) ([]discdom.Item, error) {
	defer rows.Close()
	var out []discdom.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Get implements Storage
func (s *pg) Get(ctx context.Context, id string) (discdom.Item, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+itemCols+` FROM discovered_items WHERE id = $1::uuid`, id)
	return scanItem(row)
}

// DueItems implements Storage. Highest risk first, then oldest due; PENDING
// rows are excluded because they already sit in the fetch queue
func (s *pg) DueItems(ctx context.Context, limit int) ([]discdom.Item, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+itemCols+`
		FROM discovered_items
		WHERE status IN ('FETCHED', 'PROCESSED')
			AND next_scan_due <= NOW()
		ORDER BY
			CASE risk_tier
				WHEN 'CRITICAL' THEN 3
				WHEN 'HIGH' THEN 2
				WHEN 'MEDIUM' THEN 1
				ELSE 0
			END DESC,
			next_scan_due ASC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Requeue implements Storage
func (s *pg) Requeue(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.q.Exec(ctx, `
		UPDATE discovered_items
		SET status = 'PENDING', retry_count = 0, updated_at = NOW()
		WHERE id = ANY($1::uuid[]) AND status IN ('FETCHED', 'PROCESSED')`,
		ids,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// LeasePending implements Storage
func (s *pg) LeasePending(
	ctx context.Context,
	limit int,
	leaseFor time.Duration,
) ([]discdom.Item, error) {
	rows, err := s.q.Query(ctx, `
		WITH cte AS (
			SELECT id
			FROM discovered_items
			WHERE status = 'PENDING'
				AND next_scan_due <= NOW()
				AND (leased_until IS NULL OR leased_until <= NOW())
			ORDER BY
				CASE risk_tier
					WHEN 'CRITICAL' THEN 3
					WHEN 'HIGH' THEN 2
					WHEN 'MEDIUM' THEN 1
					ELSE 0
				END DESC,
				next_scan_due ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE discovered_items i
		SET leased_until = NOW() + $2::interval
		FROM cte
		WHERE i.id = cte.id
		RETURNING i.id::text, i.endpoint_id::text, i.url, i.domain, i.status,
			i.node_role, i.risk_tier, i.change_freq, i.scan_count, i.content_hash,
			i.etag, i.next_scan_due, i.retry_count, i.last_error, i.created_at,
			i.updated_at`,
		limit, leaseFor.String(),
	)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// SetScanState implements Storage
func (s *pg) SetScanState(ctx context.Context, id string, p ScanPatch) error {
	_, err := s.q.Exec(ctx, `
		UPDATE discovered_items
		SET status = $1,
			change_freq = $2,
			scan_count = $3,
			content_hash = $4,
			etag = $5,
			next_scan_due = $6,
			retry_count = $7,
			last_error = $8,
			leased_until = NULL,
			updated_at = NOW()
		WHERE id = $9::uuid`,
		string(p.Status), p.ChangeFreq, p.ScanCount, p.ContentHash, p.ETag,
		p.NextScanDue, p.RetryCount, p.LastError, id,
	)
	return err
}

// SetStatus implements Storage
func (s *pg) SetStatus(ctx context.Context, id string, st discdom.ItemStatus, lastError string) error {
	_, err := s.q.Exec(ctx, `
		UPDATE discovered_items
		SET status = $1,
			last_error = CASE WHEN $2 = '' THEN last_error ELSE $2 END,
			leased_until = NULL,
			updated_at = NOW()
		WHERE id = $3::uuid`,
		string(st), lastError, id,
	)
	return err
}
