// Package service implements the arbiter: rule-vs-rule arbitration with
// deterministic escalation overrides layered over the model's verdict
package service

import (
	"context"
	"fmt"

	"regtruth/internal/core/velocity"
	perr "regtruth/internal/platform/errors"
	"regtruth/internal/platform/logger"
	dom "regtruth/internal/services/arbiter/domain"
	conflictsdom "regtruth/internal/services/conflicts/domain"
	rulesdom "regtruth/internal/services/rules/domain"
)

// RetirerPort takes the losing rule out of circulation with a structured note
type RetirerPort interface {
	Retire(ctx context.Context, id string, n rulesdom.DeprecationNote) error
}

// AuditPort records arbitration outcomes. Best effort
type AuditPort interface {
	Event(ctx context.Context, action, entityType, entityID string, meta map[string]any)
}

// EvidencePort fetches supporting quotes for a rule's evidence, if any
type EvidencePort interface {
	QuotesFor(ctx context.Context, evidenceID string) ([]string, error)
}

// Config for the arbiter service
type Config struct {
	// MinModelConfidence below which a verdict always escalates
	MinModelConfidence float64
	// MinExtractionConfidence below which either side's rule forces escalation
	MinExtractionConfidence float64
}

// Service arbitrates open conflicts
type Service struct {
	Conflicts interface {
		conflictsdom.QueryPort
		conflictsdom.WriterPort
	}
	Rules    rulesdom.ReaderPort
	Retirer  RetirerPort
	Agent    dom.AgentPort
	Review   dom.ReviewPort
	Audit    AuditPort
	Evidence EvidencePort
	Cfg      Config
	Log      *logger.Logger
}

// New constructs a new arbiter service
func New(
	conflicts interface {
		conflictsdom.QueryPort
		conflictsdom.WriterPort
	},
	rules rulesdom.ReaderPort,
	retirer RetirerPort,
	agent dom.AgentPort,
	review dom.ReviewPort,
	audit AuditPort,
	cfg Config,
) *Service {
	if cfg.MinModelConfidence <= 0 {
		cfg.MinModelConfidence = 0.8
	}
	if cfg.MinExtractionConfidence <= 0 {
		cfg.MinExtractionConfidence = 0.85
	}
	return &Service{
		Conflicts: conflicts,
		Rules:     rules,
		Retirer:   retirer,
		Agent:     agent,
		Review:    review,
		Audit:     audit,
		Cfg:       cfg,
		Log:       logger.Named("arbiter"),
	}
}

// Arbitrate decides one open conflict end to end: source conflicts short
// circuit, everything else goes through the model and then the override pass
func (s *Service) Arbitrate(ctx context.Context, conflictID string) (dom.Outcome, error) {
	c, err := s.Conflicts.Get(ctx, conflictID)
	if err != nil {
		return dom.Outcome{}, err
	}
	if c.Status != conflictsdom.StatusOpen {
		return dom.Outcome{}, perr.Conflictf("conflict %s is %s, not OPEN", c.ID, c.Status)
	}

	if c.Type == conflictsdom.TypeSourceConflict {
		return s.arbitrateSource(ctx, c)
	}
	return s.arbitrateRules(ctx, c)
}

// arbitrateSource handles disagreements between raw source pointers. These
// are never auto-resolved in favor of one side: either the disagreement has
// evaporated (fewer than two pointers remain) or a human decides
func (s *Service) arbitrateSource(
	ctx context.Context,
	c conflictsdom.Conflict,
) (dom.Outcome, error) {
	if len(c.SourcePointers) < 2 {
		res := conflictsdom.Resolution{
			Strategy:  string(dom.StrategyConsensus),
			Rationale: "insufficient pointers: fewer than two sources remain in disagreement",
		}
		if err := s.Conflicts.Resolve(ctx, c.ID, res); err != nil {
			return dom.Outcome{}, err
		}
		s.audit(ctx, "conflict.resolved", c.ID, map[string]any{
			"type": string(c.Type), "strategy": res.Strategy,
		})
		return dom.Outcome{ConflictID: c.ID, Rationale: res.Rationale}, nil
	}

	reasons := []dom.EscalationReason{dom.ReasonSourceConflict}
	out := dom.Outcome{ConflictID: c.ID, Escalated: true, Reasons: reasons}
	err := s.escalate(ctx, c, conflictsdom.Resolution{
		Strategy:          string(dom.StrategyConsensus),
		Rationale:         fmt.Sprintf("%d sources disagree; source-level conflicts require human review", len(c.SourcePointers)),
		EscalationReasons: reasonStrings(reasons),
	}, reasons[0])
	return out, err
}

func (s *Service) arbitrateRules(
	ctx context.Context,
	c conflictsdom.Conflict,
) (dom.Outcome, error) {
	ruleA, err := s.Rules.Get(ctx, c.ExistingID)
	if err != nil {
		return dom.Outcome{}, err
	}
	ruleB, err := s.Rules.Get(ctx, c.CandidateID)
	if err != nil {
		return dom.Outcome{}, err
	}

	in := dom.Input{
		ConflictID:   c.ID,
		ConflictType: string(c.Type),
		ConceptSlug:  c.ConceptSlug,
		RuleA:        s.claim(ctx, ruleA),
		RuleB:        s.claim(ctx, ruleB),
	}

	verdict, err := s.Agent.Arbitrate(ctx, in)
	if err != nil {
		// Bounded retries already happened inside the adapter; the conflict
		// stays OPEN and the lease lapses
		return dom.Outcome{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "arbitration of %s failed", c.ID)
	}

	reasons := s.escalationReasons(verdict, ruleA, ruleB)
	if len(reasons) > 0 {
		out := dom.Outcome{
			ConflictID: c.ID,
			Escalated:  true,
			Strategy:   verdict.Strategy,
			Confidence: verdict.Confidence,
			Rationale:  verdict.Rationale,
			Reasons:    reasons,
		}
		err := s.escalate(ctx, c, conflictsdom.Resolution{
			Strategy:          string(verdict.Strategy),
			Rationale:         verdict.Rationale,
			Confidence:        verdict.Confidence,
			EscalationReasons: reasonStrings(reasons),
		}, reasons[0])
		return out, err
	}

	winID, loseID := ruleA.ID, ruleB.ID
	if verdict.Winner == dom.WinnerRuleB {
		winID, loseID = ruleB.ID, ruleA.ID
	}

	if err := s.Retirer.Retire(ctx, loseID, rulesdom.DeprecationNote{
		ConflictID:       c.ID,
		SupersededByID:   winID,
		Rationale:        verdict.Rationale,
		ResolvedStrategy: string(verdict.Strategy),
	}); err != nil {
		return dom.Outcome{}, err
	}

	res := conflictsdom.Resolution{
		WinnerID:   winID,
		Strategy:   string(verdict.Strategy),
		Rationale:  verdict.Rationale,
		Confidence: verdict.Confidence,
	}
	if err := s.Conflicts.Resolve(ctx, c.ID, res); err != nil {
		return dom.Outcome{}, err
	}

	s.audit(ctx, "conflict.resolved", c.ID, map[string]any{
		"type":       string(c.Type),
		"winner_id":  winID,
		"loser_id":   loseID,
		"strategy":   string(verdict.Strategy),
		"confidence": verdict.Confidence,
	})

	return dom.Outcome{
		ConflictID: c.ID,
		WinnerID:   winID,
		LoserID:    loseID,
		Strategy:   verdict.Strategy,
		Confidence: verdict.Confidence,
		Rationale:  verdict.Rationale,
	}, nil
}

// escalationReasons applies the deterministic overrides. The model's own
// recommendation is just another input here: business rules win
func (s *Service) escalationReasons(
	v dom.Verdict,
	ruleA, ruleB rulesdom.Rule,
) []dom.EscalationReason {
	var out []dom.EscalationReason

	if v.Winner == dom.WinnerEscalate {
		out = append(out, dom.ReasonModelRecommends)
	}
	if v.Confidence < s.Cfg.MinModelConfidence {
		out = append(out, dom.ReasonLowConfidence)
	}
	if ruleA.RiskTier == velocity.RiskCritical && ruleB.RiskTier == velocity.RiskCritical {
		out = append(out, dom.ReasonBothCritical)
	}
	if v.Strategy == dom.StrategyHierarchy && ruleA.Authority.Rank() == ruleB.Authority.Rank() {
		// Hierarchy cannot break an equal-authority tie
		out = append(out, dom.ReasonEqualAuthority)
	}
	if v.Strategy == dom.StrategyTemporal && ruleA.EffectiveFrom.Equal(ruleB.EffectiveFrom) {
		out = append(out, dom.ReasonSameEffective)
	}
	if ruleA.Confidence < s.Cfg.MinExtractionConfidence || ruleB.Confidence < s.Cfg.MinExtractionConfidence {
		out = append(out, dom.ReasonLowExtraction)
	}
	return out
}

func (s *Service) escalate(
	ctx context.Context,
	c conflictsdom.Conflict,
	res conflictsdom.Resolution,
	primary dom.EscalationReason,
) error {
	if err := s.Conflicts.Escalate(ctx, c.ID, res); err != nil {
		return err
	}
	// Fire and forget: the ESCALATED row is the durable record, the review
	// request is a courtesy ping
	if s.Review != nil {
		if err := s.Review.RequestReview(ctx, c.ID, primary, res.Rationale); err != nil {
			s.Log.Warn().Err(err).Str("conflict_id", c.ID).Msg("review request failed")
		}
	}
	s.audit(ctx, "conflict.escalated", c.ID, map[string]any{
		"type":    string(c.Type),
		"reasons": res.EscalationReasons,
	})
	return nil
}

func (s *Service) claim(ctx context.Context, r rulesdom.Rule) dom.Claim {
	c := dom.Claim{
		RuleID:               r.ID,
		Value:                r.Value,
		Authority:            r.Authority,
		RiskTier:             r.RiskTier,
		EffectiveFrom:        r.EffectiveFrom,
		EffectiveUntil:       r.EffectiveUntil,
		ExtractionConfidence: r.Confidence,
	}
	if s.Evidence != nil && r.EvidenceID != "" {
		quotes, err := s.Evidence.QuotesFor(ctx, r.EvidenceID)
		if err != nil {
			s.Log.Warn().Err(err).Str("rule_id", r.ID).Msg("quotes unavailable")
		} else {
			c.Quotes = quotes
		}
	}
	return c
}

func (s *Service) audit(ctx context.Context, action, id string, meta map[string]any) {
	if s.Audit != nil {
		s.Audit.Event(ctx, action, "conflict", id, meta)
	}
}

func reasonStrings(xs []dom.EscalationReason) []string {
	out := make([]string, len(xs))
	for i, r := range xs {
		out[i] = string(r)
	}
	return out
}
