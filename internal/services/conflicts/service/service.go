// Package service implements structural conflict detection and the conflict
// store surface consumed by the arbiter
package service

import (
	"context"
	"time"

	"regtruth/internal/core/authority"
	"regtruth/internal/core/statusgate"
	"regtruth/internal/modkit/repokit"
	perr "regtruth/internal/platform/errors"
	"regtruth/internal/platform/logger"
	"regtruth/internal/services/conflicts/domain"
	"regtruth/internal/services/conflicts/repo"
	rulesdom "regtruth/internal/services/rules/domain"
)

// Config for the conflicts service
type Config struct {
	LeaseFor time.Duration
}

// Service implements domain.DetectorPort, domain.QueryPort and domain.WriterPort
type Service struct {
	DB    repokit.TxRunner
	Bind  repokit.Binder[repo.Storage]
	Rules rulesdom.ReaderPort
	Cfg   Config
	Log   *logger.Logger
}

// New constructs a new conflicts service
func New(db repokit.TxRunner, rules rulesdom.ReaderPort, cfg Config) *Service {
	if cfg.LeaseFor <= 0 {
		cfg.LeaseFor = 2 * time.Minute
	}
	return &Service{
		DB:    db,
		Bind:  repo.NewPG(),
		Rules: rules,
		Cfg:   cfg,
		Log:   logger.Named("conflicts"),
	}
}

// standingStatuses are the rule states a candidate is compared against.
// Rejected and deprecated rules are out of circulation and never conflict
var standingStatuses = []statusgate.Status{
	statusgate.StatusDraft,
	statusgate.StatusPendingReview,
	statusgate.StatusApproved,
	statusgate.StatusPublished,
}

// DetectForRule implements domain.DetectorPort. It compares the rule against
// every standing rule on the same concept and seeds one conflict per pair and
// type. Both checks run independently: the same pair can yield a value
// mismatch and an authority supersede in one pass
func (s *Service) DetectForRule(ctx context.Context, ruleID string) (int, error) {
	cand, err := s.Rules.Get(ctx, ruleID)
	if err != nil {
		return 0, err
	}
	peers, err := s.Rules.ListByConcept(ctx, cand.ConceptSlug, standingStatuses)
	if err != nil {
		return 0, err
	}

	var found []domain.Conflict
	for _, peer := range peers {
		if peer.ID == cand.ID {
			continue
		}
		existing, newer := orderPair(peer, cand)
		found = append(found, Structural(existing, newer)...)
	}
	return s.Seed(ctx, found)
}

// orderPair puts the older rule first so every detection pass, no matter
// which side triggered it, seeds the same (existing, candidate) row and the
// open-pair uniqueness holds. Identical created stamps fall back to id order
func orderPair(a, b rulesdom.Rule) (existing, cand rulesdom.Rule) {
	if b.CreatedAt.Before(a.CreatedAt) ||
		(b.CreatedAt.Equal(a.CreatedAt) && b.ID < a.ID) {
		return b, a
	}
	return a, b
}

// Structural returns the structural conflicts between an existing rule and a
// candidate on the same concept. Disjoint effective windows never conflict
func Structural(existing, cand rulesdom.Rule) []domain.Conflict {
	if existing.ConceptSlug != cand.ConceptSlug {
		return nil
	}
	if !rulesdom.OverlapsWindow(existing, cand) {
		return nil
	}

	base := domain.Conflict{
		ConceptSlug: existing.ConceptSlug,
		ExistingID:  existing.ID,
		CandidateID: cand.ID,
		Status:      domain.StatusOpen,
	}

	var out []domain.Conflict
	if !authority.EqualValues(existing.Value, cand.Value) {
		c := base
		c.Type = domain.TypeValueMismatch
		out = append(out, c)
	}
	// Strictly higher candidate authority supersedes independent of values:
	// an overlapping LAW candidate over GUIDANCE fires even when both agree
	if cand.Authority.Supersedes(existing.Authority) {
		c := base
		c.Type = domain.TypeAuthoritySupersede
		out = append(out, c)
	}
	return out
}

// Seed implements domain.WriterPort. Re-seeding an already open pair creates
// nothing; the return counts only rows actually inserted
func (s *Service) Seed(ctx context.Context, xs []domain.Conflict) (int, error) {
	if len(xs) == 0 {
		return 0, nil
	}
	created := 0
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		st := s.Bind.Bind(q)
		for _, c := range xs {
			if !c.Type.Valid() {
				return perr.InvalidArgumentf("unknown conflict type %q", c.Type)
			}
			ok, err := st.Insert(ctx, c)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if created > 0 {
		s.Log.Info().Int("created", created).Msg("seeded conflicts")
	}
	return created, nil
}

// Get implements domain.QueryPort
func (s *Service) Get(ctx context.Context, id string) (domain.Conflict, error) {
	return s.Bind.Bind(s.DB).Get(ctx, id)
}

// ListByStatus returns conflicts in a given state, newest first
func (s *Service) ListByStatus(ctx context.Context, st domain.Status, limit int) ([]domain.Conflict, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.Bind.Bind(s.DB).ListByStatus(ctx, st, limit)
}

// LeaseOpen implements domain.QueryPort
func (s *Service) LeaseOpen(ctx context.Context, limit int) ([]domain.Conflict, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.Bind.Bind(s.DB).LeaseOpen(ctx, limit, s.Cfg.LeaseFor)
}

// Resolve implements domain.WriterPort. A winner is optional: source-pointer
// conflicts resolve without one when the disagreement evaporates
func (s *Service) Resolve(ctx context.Context, id string, r domain.Resolution) error {
	if r.Rationale == "" {
		return perr.InvalidArgumentf("resolution needs a rationale")
	}
	return s.Bind.Bind(s.DB).SetOutcome(ctx, id, domain.StatusResolved, r, false)
}

// Escalate implements domain.WriterPort. Escalated conflicts always require
// human review regardless of model confidence
func (s *Service) Escalate(ctx context.Context, id string, r domain.Resolution) error {
	if len(r.EscalationReasons) == 0 {
		return perr.InvalidArgumentf("escalation needs at least one reason")
	}
	return s.Bind.Bind(s.DB).SetOutcome(ctx, id, domain.StatusEscalated, r, true)
}

// Release implements domain.WriterPort
func (s *Service) Release(ctx context.Context, id string) error {
	return s.Bind.Bind(s.DB).Release(ctx, id)
}
