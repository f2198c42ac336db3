// Package service turns fetched evidence into draft rules.
//
// The extraction agent is an opaque fallible call; its claims are
// schema-validated here before anything reaches the rules service. Each
// accepted claim becomes a DRAFT rule and is immediately handed to the
// conflict detector
package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	perr "regtruth/internal/platform/errors"
	"regtruth/internal/platform/logger"
	conflictsdom "regtruth/internal/services/conflicts/domain"
	discoverydom "regtruth/internal/services/discovery/domain"
	"regtruth/internal/services/extraction/domain"
	rulesdom "regtruth/internal/services/rules/domain"

	"regtruth/internal/core/authority"
	"regtruth/internal/core/velocity"
)

// EvidenceStore reads captured evidence
type EvidenceStore interface {
	GetEvidence(ctx context.Context, id string) (discoverydom.Evidence, error)
}

// RulesPort drafts rules from accepted claims
type RulesPort interface {
	InsertDraft(ctx context.Context, r rulesdom.Rule) (rulesdom.Rule, error)
}

// AuditPort records extraction events. Best effort
type AuditPort interface {
	Event(ctx context.Context, action, entityType, entityID string, meta map[string]any)
}

// SchedPort closes the scan lifecycle: a fully extracted item moves from
// FETCHED to PROCESSED so the scheduler owns the complete state machine
type SchedPort interface {
	MarkProcessed(ctx context.Context, itemID string) error
}

// Config for the extraction service
type Config struct {
	// QueueSize bounds the pending-evidence backlog
	QueueSize int
	// MaxQuotes caps how many supporting passages QuotesFor returns
	MaxQuotes int
	// MaxQuoteLen truncates each returned passage
	MaxQuoteLen int
}

func (c *Config) defaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.MaxQuotes <= 0 {
		c.MaxQuotes = 3
	}
	if c.MaxQuoteLen <= 0 {
		c.MaxQuoteLen = 240
	}
}

// Service implements domain.QueuePort and the arbiter's quote lookup
type Service struct {
	Evidence EvidenceStore
	Rules    RulesPort
	Detector conflictsdom.DetectorPort
	Agent    domain.AgentPort
	Audit    AuditPort
	Sched    SchedPort
	Cfg      Config
	Log      *logger.Logger
	Now      func() time.Time

	validate *validator.Validate
	queue    chan string
}

// New constructs the extraction service
func New(
	evidence EvidenceStore,
	rules RulesPort,
	detector conflictsdom.DetectorPort,
	agent domain.AgentPort,
	audit AuditPort,
	cfg Config,
) *Service {
	cfg.defaults()
	return &Service{
		Evidence: evidence,
		Rules:    rules,
		Detector: detector,
		Agent:    agent,
		Audit:    audit,
		Cfg:      cfg,
		Log:      logger.Named("extraction"),
		Now:      time.Now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		queue:    make(chan string, cfg.QueueSize),
	}
}

// EnqueueEvidence implements domain.QueuePort. Blocks when the backlog is
// full rather than dropping work
func (s *Service) EnqueueEvidence(ctx context.Context, evidenceID string) error {
	select {
	case s.queue <- evidenceID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until ctx is cancelled. Per-item failures are logged
// and never stop the loop
func (s *Service) Run(ctx context.Context) error {
	s.Log.Info().Int("queue_size", s.Cfg.QueueSize).Msg("extraction worker started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id := <-s.queue:
			if _, err := s.ProcessEvidence(ctx, id); err != nil {
				s.Log.Error().Err(err).Str("evidence_id", id).Msg("extraction failed")
			}
		}
	}
}

// ProcessEvidence runs the full extraction path for one evidence row and
// returns how many draft rules were created
func (s *Service) ProcessEvidence(ctx context.Context, evidenceID string) (int, error) {
	ev, err := s.Evidence.GetEvidence(ctx, evidenceID)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(ev.Text) == "" {
		// scanned PDFs sit textless until OCR completes
		return 0, perr.Contentf("evidence %s has no extractable text", evidenceID)
	}

	claims, err := s.Agent.Extract(ctx, domain.Input{
		EvidenceID: ev.ID,
		URL:        ev.URL,
		Text:       ev.Text,
	})
	if err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeUnavailable, "extraction agent")
	}

	drafted := 0
	for _, c := range claims {
		if err := s.validate.Struct(c); err != nil {
			s.Log.Warn().Err(err).
				Str("evidence_id", evidenceID).
				Str("concept", c.ConceptSlug).
				Msg("claim rejected by schema")
			if s.Audit != nil {
				s.Audit.Event(ctx, "claim.rejected", "evidence", evidenceID, map[string]any{
					"concept": c.ConceptSlug,
					"reason":  err.Error(),
				})
			}
			continue
		}

		rule, err := s.Rules.InsertDraft(ctx, claimToDraft(c, ev.ID))
		if err != nil {
			return drafted, err
		}
		drafted++

		created, err := s.Detector.DetectForRule(ctx, rule.ID)
		if err != nil {
			// the draft exists; detection can be retried by a later pass
			s.Log.Error().Err(err).Str("rule_id", rule.ID).Msg("conflict detection failed")
		}
		if s.Audit != nil {
			s.Audit.Event(ctx, "rule.extracted", "rule", rule.ID, map[string]any{
				"evidence_id": evidenceID,
				"concept":     rule.ConceptSlug,
				"confidence":  rule.Confidence,
				"conflicts":   created,
			})
		}
	}

	// the pass ran to completion, with or without accepted claims; the item
	// is done until its next scan comes due
	if s.Sched != nil && ev.ItemID != "" {
		if err := s.Sched.MarkProcessed(ctx, ev.ItemID); err != nil {
			s.Log.Warn().Err(err).
				Str("item_id", ev.ItemID).
				Msg("mark processed failed")
		}
	}
	return drafted, nil
}

// QuotesFor returns the leading non-empty passages of the evidence text,
// used as supporting quotes during arbitration
func (s *Service) QuotesFor(ctx context.Context, evidenceID string) ([]string, error) {
	ev, err := s.Evidence.GetEvidence(ctx, evidenceID)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, line := range strings.Split(ev.Text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > s.Cfg.MaxQuoteLen {
			line = line[:s.Cfg.MaxQuoteLen]
		}
		out = append(out, line)
		if len(out) == s.Cfg.MaxQuotes {
			break
		}
	}
	return out, nil
}

func claimToDraft(c domain.Claim, evidenceID string) rulesdom.Rule {
	return rulesdom.Rule{
		ConceptSlug:    c.ConceptSlug,
		Value:          c.Value,
		ValueType:      rulesdom.ValueType(c.ValueType),
		Authority:      authority.Level(c.Authority),
		RiskTier:       velocity.RiskTier(c.RiskTier),
		EffectiveFrom:  c.EffectiveFrom,
		EffectiveUntil: c.EffectiveUntil,
		Confidence:     c.Confidence,
		EvidenceID:     evidenceID,
	}
}
