// Package repo provides the rules repository implementation.
package repo

import (
	"context"
	"fmt"
	"strings"

	"regtruth/internal/core/statusgate"
	"regtruth/internal/modkit/repokit"
	perr "regtruth/internal/platform/errors"
	"regtruth/internal/services/rules/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the rules repository
type Storage interface {
	Insert(ctx context.Context, r domain.Rule) (domain.Rule, error)
	Get(ctx context.Context, id string) (domain.Rule, error)
	ListByConcept(ctx context.Context, slug string, statuses []statusgate.Status) ([]domain.Rule, error)
	// SetStatus moves id from->to and returns false when the row was not in
	// the expected from state (lost race or stale caller)
	SetStatus(ctx context.Context, id string, from, to statusgate.Status, note string) (bool, error)
	UpdateFields(ctx context.Context, id string, p domain.FieldPatch) error
	AddOverride(ctx context.Context, e domain.OverrideEdge) error
	OverridesAmong(ctx context.Context, ids []string) ([]domain.OverrideEdge, error)
}

const ruleCols = `id::text, concept_slug, value, value_type, authority, risk_tier,
	effective_from, effective_until, confidence, status, evidence_id, notes,
	created_at, updated_at`

func scanRule(row repokit.Row) (domain.Rule, error) {
	var r domain.Rule
	err := row.Scan(
		&r.ID, &r.ConceptSlug, &r.Value, &r.ValueType, &r.Authority, &r.RiskTier,
		&r.EffectiveFrom, &r.EffectiveUntil, &r.Confidence, &r.Status,
		&r.EvidenceID, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

// Insert implements Storage
func (s *pg) Insert(ctx context.Context, r domain.Rule) (domain.Rule, error) {
	row := s.q.QueryRow(ctx, `
		INSERT INTO regulatory_rules
			(concept_slug, value, value_type, authority, risk_tier,
			effective_from, effective_until, confidence, status, evidence_id, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING `+ruleCols,
		r.ConceptSlug, r.Value, r.ValueType, r.Authority, r.RiskTier,
		r.EffectiveFrom, r.EffectiveUntil, r.Confidence, r.Status, r.EvidenceID, r.Notes,
	)
	out, err := scanRule(row)
	if err != nil {
		return domain.Rule{}, perr.FromPostgresf(err, "insert rule for %s", r.ConceptSlug)
	}
	return out, nil
}

// Get implements Storage
func (s *pg) Get(ctx context.Context, id string) (domain.Rule, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+ruleCols+` FROM regulatory_rules WHERE id = $1::uuid`, id)
	r, err := scanRule(row)
	if err != nil {
		if perr.IsNoRows(err) {
			return domain.Rule{}, perr.NotFoundf("rule %s not found", id)
		}
		return domain.Rule{}, err
	}
	return r, nil
}

// ListByConcept implements Storage
func (s *pg) ListByConcept(
	ctx context.Context,
	slug string,
	statuses []statusgate.Status,
) ([]domain.Rule, error) {
	var sb strings.Builder
	var args []any
	arg := func(v any) string { args = append(args, v); return fmt.Sprintf("$%d", len(args)) }

	sb.WriteString(`SELECT ` + ruleCols + ` FROM regulatory_rules WHERE concept_slug = ` + arg(slug))
	if len(statuses) > 0 {
		ph := make([]string, 0, len(statuses))
		for _, st := range statuses {
			ph = append(ph, arg(string(st)))
		}
		sb.WriteString(" AND status IN (" + strings.Join(ph, ",") + ")")
	}
	sb.WriteString(" ORDER BY effective_from DESC, id ASC")

	rows, err := s.q.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetStatus implements Storage. The WHERE status guard makes the update a
// compare-and-set so concurrent writers cannot skip a gate check
func (s *pg) SetStatus(
	ctx context.Context,
	id string,
	from, to statusgate.Status,
	note string,
) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE regulatory_rules
		SET status = $1,
			notes = CASE WHEN $2 = '' THEN notes ELSE $2 END,
			updated_at = now()
		WHERE id = $3::uuid AND status = $4`,
		string(to), note, id, string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateFields implements Storage
func (s *pg) UpdateFields(ctx context.Context, id string, p domain.FieldPatch) error {
	var sets []string
	var args []any
	arg := func(v any) string { args = append(args, v); return fmt.Sprintf("$%d", len(args)) }

	if p.Value != nil {
		sets = append(sets, "value = "+arg(*p.Value))
	}
	if p.Confidence != nil {
		sets = append(sets, "confidence = "+arg(*p.Confidence))
	}
	if p.Notes != nil {
		sets = append(sets, "notes = "+arg(*p.Notes))
	}
	if p.EvidenceID != nil {
		sets = append(sets, "evidence_id = "+arg(*p.EvidenceID))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = now()")

	_, err := s.q.Exec(ctx,
		"UPDATE regulatory_rules SET "+strings.Join(sets, ", ")+" WHERE id = "+arg(id)+"::uuid",
		args...,
	)
	return err
}

// AddOverride implements Storage. Idempotent for the same edge
func (s *pg) AddOverride(ctx context.Context, e domain.OverrideEdge) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO rule_overrides (overrider_id, overridden_id)
		VALUES ($1::uuid, $2::uuid)
		ON CONFLICT (overrider_id, overridden_id) DO NOTHING`,
		e.OverriderID, e.OverriddenID,
	)
	return err
}

// OverridesAmong implements Storage
func (s *pg) OverridesAmong(ctx context.Context, ids []string) ([]domain.OverrideEdge, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.q.Query(ctx, `
		SELECT overrider_id::text, overridden_id::text
		FROM rule_overrides
		WHERE overrider_id = ANY($1::uuid[]) AND overridden_id = ANY($1::uuid[])`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OverrideEdge
	for rows.Next() {
		var e domain.OverrideEdge
		if err := rows.Scan(&e.OverriderID, &e.OverriddenID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
