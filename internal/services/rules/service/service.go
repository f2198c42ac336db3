// Package service implements the rules service. Every status mutation in the
// system funnels through Transition here; the repository compare-and-set plus
// the transition table make illegal or racy status writes impossible
package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"regtruth/internal/core/statusgate"
	"regtruth/internal/modkit/repokit"
	perr "regtruth/internal/platform/errors"
	"regtruth/internal/platform/logger"
	"regtruth/internal/services/rules/domain"
	"regtruth/internal/services/rules/repo"
)

// AuditPort records rule lifecycle events. Best effort; failures never block
type AuditPort interface {
	Event(ctx context.Context, action, entityType, entityID string, meta map[string]any)
}

// Service implements domain.ReaderPort and domain.WriterPort
type Service struct {
	DB    repokit.TxRunner
	Bind  repokit.Binder[repo.Storage]
	Audit AuditPort
	Log   *logger.Logger
	Now   func() time.Time
}

// New constructs a new rules service
func New(db repokit.TxRunner, audit AuditPort) *Service {
	return &Service{
		DB:    db,
		Bind:  repo.NewPG(),
		Audit: audit,
		Log:   logger.Named("rules"),
		Now:   time.Now,
	}
}

// Get implements domain.ReaderPort
func (s *Service) Get(ctx context.Context, id string) (domain.Rule, error) {
	return s.Bind.Bind(s.DB).Get(ctx, id)
}

// ListByConcept implements domain.ReaderPort
func (s *Service) ListByConcept(
	ctx context.Context,
	slug string,
	statuses []statusgate.Status,
) ([]domain.Rule, error) {
	return s.Bind.Bind(s.DB).ListByConcept(ctx, slug, statuses)
}

// OverridesAmong implements domain.ReaderPort
func (s *Service) OverridesAmong(ctx context.Context, ids []string) ([]domain.OverrideEdge, error) {
	return s.Bind.Bind(s.DB).OverridesAmong(ctx, ids)
}

// InsertDraft implements domain.WriterPort. New rules always enter as DRAFT
// regardless of what the caller set on the struct
func (s *Service) InsertDraft(ctx context.Context, r domain.Rule) (domain.Rule, error) {
	if r.ConceptSlug == "" {
		return domain.Rule{}, perr.InvalidArgumentf("concept slug required")
	}
	if !r.Authority.Valid() {
		return domain.Rule{}, perr.InvalidArgumentf("unknown authority %q", r.Authority)
	}
	if r.EffectiveFrom.IsZero() {
		return domain.Rule{}, perr.InvalidArgumentf("effective_from required")
	}
	r.Status = statusgate.StatusDraft

	out, err := s.Bind.Bind(s.DB).Insert(ctx, r)
	if err != nil {
		return domain.Rule{}, err
	}
	if s.Audit != nil {
		s.Audit.Event(ctx, "rule.draft", "rule", out.ID, map[string]any{
			"concept":   out.ConceptSlug,
			"authority": string(out.Authority),
		})
	}
	return out, nil
}

// Transition implements domain.WriterPort. The request's From is ignored and
// replaced with the current persisted status so callers cannot smuggle a
// stale starting state past the table
func (s *Service) Transition(
	ctx context.Context,
	id string,
	req statusgate.Request,
	note string,
) (domain.Rule, error) {
	var out domain.Rule
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		st := s.Bind.Bind(q)
		cur, err := st.Get(ctx, id)
		if err != nil {
			return err
		}
		req.From = cur.Status
		if err := statusgate.Check(req); err != nil {
			return err
		}
		if req.SystemAction == "" && req.From == statusgate.StatusPublished &&
			req.To == statusgate.StatusApproved &&
			strings.Contains(strings.ToLower(req.SourceContext), "rollback") {
			s.Log.Warn().Str("rule_id", id).
				Msg("rollback inferred from source context; use the ROLLBACK system action")
		}
		if req.From == req.To {
			out = cur
			return nil
		}

		ok, err := st.SetStatus(ctx, id, req.From, req.To, note)
		if err != nil {
			return err
		}
		if !ok {
			return perr.Conflictf("rule %s moved out of %s concurrently", id, req.From)
		}
		out, err = st.Get(ctx, id)
		return err
	})
	if err != nil {
		return domain.Rule{}, err
	}

	if s.Audit != nil && req.From != req.To {
		s.Audit.Event(ctx, "rule.transition", "rule", id, map[string]any{
			"from":           string(req.From),
			"to":             string(req.To),
			"source_context": req.SourceContext,
			"system_action":  string(req.SystemAction),
		})
	}
	return out, nil
}

// UpdateFields implements domain.WriterPort
func (s *Service) UpdateFields(ctx context.Context, id string, p domain.FieldPatch) error {
	return s.Bind.Bind(s.DB).UpdateFields(ctx, id, p)
}

// AddOverride implements domain.WriterPort
func (s *Service) AddOverride(ctx context.Context, e domain.OverrideEdge) error {
	if e.OverriderID == "" || e.OverriddenID == "" || e.OverriderID == e.OverriddenID {
		return perr.InvalidArgumentf("override edge needs two distinct rule ids")
	}
	return s.Bind.Bind(s.DB).AddOverride(ctx, e)
}

// Retire marks the losing rule of a resolved conflict out of circulation with
// a structured note. Published losers are deprecated; losers still in the
// draft/review funnel are walked through the legal path to REJECTED instead,
// since nothing short of publication can be deprecated
func (s *Service) Retire(ctx context.Context, id string, n domain.DeprecationNote) error {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if n.At.IsZero() {
		n.At = s.Now().UTC()
	}
	raw, err := json.Marshal(n)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "marshal deprecation note")
	}
	note := string(raw)
	srcCtx := "arbiter:conflict-" + n.ConflictID

	step := func(to statusgate.Status, withNote string) error {
		_, err := s.Transition(ctx, id, statusgate.Request{
			To:            to,
			SourceContext: srcCtx,
		}, withNote)
		return err
	}

	switch cur.Status {
	case statusgate.StatusPublished:
		return step(statusgate.StatusDeprecated, note)
	case statusgate.StatusApproved:
		if err := step(statusgate.StatusPendingReview, ""); err != nil {
			return err
		}
		return step(statusgate.StatusRejected, note)
	case statusgate.StatusDraft:
		if err := step(statusgate.StatusPendingReview, ""); err != nil {
			return err
		}
		return step(statusgate.StatusRejected, note)
	case statusgate.StatusPendingReview:
		return step(statusgate.StatusRejected, note)
	case statusgate.StatusRejected, statusgate.StatusDeprecated:
		// Already out of circulation
		logger.C(ctx).Debug().Str("rule_id", id).Msg("retire on terminal rule is a no-op")
		return nil
	}
	return perr.Transitionf("cannot retire rule %s in status %s", id, cur.Status)
}
