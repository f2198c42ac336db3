// Package service implements discovery: endpoint resolution into items and
// the fetch stage that turns pending items into evidence
package service

import (
	"context"
	"time"

	"regtruth/internal/core/throttle"
	"regtruth/internal/modkit/repokit"
	perr "regtruth/internal/platform/errors"
	"regtruth/internal/platform/logger"
	"regtruth/internal/services/discovery/domain"
	"regtruth/internal/services/discovery/repo"
	scheddom "regtruth/internal/services/scheduler/domain"
)

// AuditPort records discovery events. Best effort
type AuditPort interface {
	Event(ctx context.Context, action, entityType, entityID string, meta map[string]any)
}

// Config for the discovery service
type Config struct {
	MaxDepth      int
	MaxURLs       int
	MaxPages      int
	EndpointBatch int
	FetchBatch    int
	DryRun        bool

	// worker loop cadences
	ResolveEvery time.Duration
	RequeueEvery time.Duration
	FetchEvery   time.Duration
}

// Service drives endpoint resolution and item fetching. Item status writes
// all go through the scheduler ports
type Service struct {
	DB      repokit.TxRunner
	Bind    repokit.Binder[repo.Storage]
	Sched   interface {
		scheddom.QueuePort
		scheddom.WriterPort
	}
	Fetcher domain.FetcherPort
	Lister  domain.ListerPort
	Gate    *throttle.Gate
	OCR     domain.OCRPort
	Extract domain.ExtractorPort
	Audit   AuditPort
	Cfg     Config
	Log     *logger.Logger
	Now     func() time.Time
}

// New constructs a new discovery service
func New(
	db repokit.TxRunner,
	sched interface {
		scheddom.QueuePort
		scheddom.WriterPort
	},
	fetcher domain.FetcherPort,
	lister domain.ListerPort,
	gate *throttle.Gate,
	cfg Config,
) *Service {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 3
	}
	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = 500
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	if cfg.EndpointBatch <= 0 {
		cfg.EndpointBatch = 10
	}
	if cfg.FetchBatch <= 0 {
		cfg.FetchBatch = 50
	}
	if cfg.ResolveEvery <= 0 {
		cfg.ResolveEvery = 30 * time.Second
	}
	if cfg.RequeueEvery <= 0 {
		cfg.RequeueEvery = time.Minute
	}
	if cfg.FetchEvery <= 0 {
		cfg.FetchEvery = 2 * time.Second
	}
	return &Service{
		DB:      db,
		Bind:    repo.NewPG(),
		Sched:   sched,
		Fetcher: fetcher,
		Lister:  lister,
		Gate:    gate,
		Cfg:     cfg,
		Log:     logger.Named("discovery"),
		Now:     time.Now,
	}
}

// GetEvidence exposes stored evidence to downstream stages
func (s *Service) GetEvidence(ctx context.Context, id string) (domain.Evidence, error) {
	return s.Bind.Bind(s.DB).GetEvidence(ctx, id)
}

// ListEndpoints returns every registered endpoint with its health state
func (s *Service) ListEndpoints(ctx context.Context) ([]domain.Endpoint, error) {
	return s.Bind.Bind(s.DB).ListEndpoints(ctx)
}

// RegisterEndpoint adds a new scrape endpoint, active and due immediately
func (s *Service) RegisterEndpoint(ctx context.Context, ep domain.Endpoint) (domain.Endpoint, error) {
	if ep.BaseURL == "" || ep.Domain == "" {
		return domain.Endpoint{}, perr.InvalidArgumentf("endpoint requires domain and base url")
	}
	if !ep.Strategy.Valid() {
		return domain.Endpoint{}, perr.InvalidArgumentf("unknown strategy %q", ep.Strategy)
	}
	if ep.ScrapeEvery <= 0 {
		ep.ScrapeEvery = 24 * time.Hour
	}
	out, err := s.Bind.Bind(s.DB).InsertEndpoint(ctx, ep)
	if err != nil {
		return domain.Endpoint{}, err
	}
	if s.Audit != nil {
		s.Audit.Event(ctx, "endpoint.registered", "endpoint", out.ID, map[string]any{
			"base_url": out.BaseURL,
			"strategy": string(out.Strategy),
		})
	}
	return out, nil
}

// ResetEndpoint reactivates an endpoint that erred out of rotation
func (s *Service) ResetEndpoint(ctx context.Context, id string) error {
	if err := s.Bind.Bind(s.DB).ResetEndpoint(ctx, id); err != nil {
		return err
	}
	if s.Audit != nil {
		s.Audit.Event(ctx, "endpoint.reset", "endpoint", id, nil)
	}
	return nil
}
