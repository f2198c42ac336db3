// Package repo provides the conflicts repository implementation.
package repo

import (
	"context"
	"encoding/json"
	"time"

	"regtruth/internal/modkit/repokit"
	perr "regtruth/internal/platform/errors"
	"regtruth/internal/services/conflicts/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the conflicts repository
type Storage interface {
	Insert(ctx context.Context, c domain.Conflict) (created bool, err error)
	Get(ctx context.Context, id string) (domain.Conflict, error)
	ListByStatus(ctx context.Context, st domain.Status, limit int) ([]domain.Conflict, error)
	LeaseOpen(ctx context.Context, limit int, leaseFor time.Duration) ([]domain.Conflict, error)
	Release(ctx context.Context, id string) error
	SetOutcome(ctx context.Context, id string, st domain.Status, r domain.Resolution, review bool) error
}

const conflictCols = `id::text, conflict_type, concept_slug, existing_id::text, candidate_id::text,
	source_pointers, status, resolution, requires_human_review, detected_at, resolved_at`

func scanConflict(row repokit.Row) (domain.Conflict, error) {
	var c domain.Conflict
	var resRaw []byte
	err := row.Scan(
		&c.ID, &c.Type, &c.ConceptSlug, &c.ExistingID, &c.CandidateID,
		&c.SourcePointers, &c.Status, &resRaw, &c.RequiresHumanReview,
		&c.DetectedAt, &c.ResolvedAt,
	)
	if err != nil {
		return domain.Conflict{}, err
	}
	if len(resRaw) > 0 {
		var r domain.Resolution
		if err := json.Unmarshal(resRaw, &r); err != nil {
			return domain.Conflict{}, perr.Wrap(err, perr.ErrorCodeDB, "decode resolution")
		}
		c.Resolution = &r
	}
	return c, nil
}

// Insert implements Storage. The partial unique index on
// (existing_id, candidate_id) WHERE status = 'OPEN' makes detection idempotent:
// a second structural pass over the same pair inserts nothing
func (s *pg) Insert(ctx context.Context, c domain.Conflict) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO regulatory_conflicts
			(conflict_type, concept_slug, existing_id, candidate_id, source_pointers, status)
		VALUES ($1, $2, $3::uuid, $4::uuid, $5, 'OPEN')
		ON CONFLICT (existing_id, candidate_id) WHERE status = 'OPEN' DO NOTHING`,
		string(c.Type), c.ConceptSlug, c.ExistingID, c.CandidateID, c.SourcePointers,
	)
	if err != nil {
		if perr.IsDuplicateKey(err) {
			return false, nil
		}
		return false, perr.FromPostgresf(err, "insert conflict %s/%s", c.ExistingID, c.CandidateID)
	}
	return tag.RowsAffected() == 1, nil
}

// Get implements Storage
func (s *pg) Get(ctx context.Context, id string) (domain.Conflict, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+conflictCols+` FROM regulatory_conflicts WHERE id = $1::uuid`, id)
	c, err := scanConflict(row)
	if err != nil {
		if perr.IsNoRows(err) {
			return domain.Conflict{}, perr.NotFoundf("conflict %s not found", id)
		}
		return domain.Conflict{}, err
	}
	return c, nil
}

// ListByStatus implements Storage. Newest first so review queues surface
// fresh escalations at the top
func (s *pg) ListByStatus(ctx context.Context, st domain.Status, limit int) ([]domain.Conflict, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+conflictCols+`
		FROM regulatory_conflicts
		WHERE status = $1
		ORDER BY detected_at DESC
		LIMIT $2`,
		string(st), limit,
	)
	if err != nil {
		return nil, perr.FromPostgresf(err, "list conflicts by status %s", st)
	}
	defer rows.Close()
	var out []domain.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LeaseOpen implements Storage. Leased rows stay OPEN but are invisible to
// other workers until the lease lapses
func (s *pg) LeaseOpen(
	ctx context.Context,
	limit int,
	leaseFor time.Duration,
) ([]domain.Conflict, error) {
	rows, err := s.q.Query(ctx, `
		WITH cte AS (
			SELECT id
			FROM regulatory_conflicts
			WHERE status = 'OPEN' AND (leased_until IS NULL OR leased_until <= NOW())
			ORDER BY detected_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE regulatory_conflicts c
		SET leased_until = NOW() + $2::interval
		FROM cte
		WHERE c.id = cte.id
		RETURNING c.id::text, c.conflict_type, c.concept_slug, c.existing_id::text,
			c.candidate_id::text, c.source_pointers, c.status, c.resolution,
			c.requires_human_review, c.detected_at, c.resolved_at`,
		limit, leaseFor.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Release implements Storage; drops the lease so another worker can retry
func (s *pg) Release(ctx context.Context, id string) error {
	_, err := s.q.Exec(ctx,
		`UPDATE regulatory_conflicts SET leased_until = NULL WHERE id = $1::uuid`, id)
	return err
}

// SetOutcome implements Storage
func (s *pg) SetOutcome(
	ctx context.Context,
	id string,
	st domain.Status,
	r domain.Resolution,
	review bool,
) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "marshal resolution")
	}
	tag, err := s.q.Exec(ctx, `
		UPDATE regulatory_conflicts
		SET status = $1,
			resolution = $2,
			requires_human_review = $3,
			resolved_at = NOW(),
			leased_until = NULL
		WHERE id = $4::uuid AND status = 'OPEN'`,
		string(st), raw, review, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return perr.Conflictf("conflict %s is no longer open", id)
	}
	return nil
}
