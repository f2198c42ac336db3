// Package service implements the adaptive re-scan scheduler. It is the only
// writer of item status: fetch workers lease through it and report back
// through it
package service

import (
	"context"
	"time"

	"regtruth/internal/core/velocity"
	"regtruth/internal/modkit/repokit"
	"regtruth/internal/platform/logger"
	discdom "regtruth/internal/services/discovery/domain"
	"regtruth/internal/services/scheduler/repo"
)

// Config for the scheduler service
type Config struct {
	MaxRetries int
	LeaseFor   time.Duration
}

// Service implements domain.QueuePort and domain.WriterPort
type Service struct {
	DB   repokit.TxRunner
	Bind repokit.Binder[repo.Storage]
	Cfg  Config
	Log  *logger.Logger
	Now  func() time.Time
}

// New constructs a new scheduler service
func New(db repokit.TxRunner, cfg Config) *Service {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.LeaseFor <= 0 {
		cfg.LeaseFor = 5 * time.Minute
	}
	return &Service{
		DB:   db,
		Bind: repo.NewPG(),
		Cfg:  cfg,
		Log:  logger.Named("scheduler"),
		Now:  time.Now,
	}
}

// DueItems implements domain.QueuePort
func (s *Service) DueItems(ctx context.Context, limit int) ([]discdom.Item, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.Bind.Bind(s.DB).DueItems(ctx, limit)
}

// RequeueDue implements domain.QueuePort
func (s *Service) RequeueDue(ctx context.Context, limit int) (int, error) {
	due, err := s.DueItems(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}
	ids := make([]string, len(due))
	for i, it := range due {
		ids[i] = it.ID
	}
	n, err := s.Bind.Bind(s.DB).Requeue(ctx, ids)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.Log.Info().Int("requeued", n).Msg("due items back in fetch queue")
	}
	return n, nil
}

// LeasePending implements domain.QueuePort
func (s *Service) LeasePending(ctx context.Context, limit int) ([]discdom.Item, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.Bind.Bind(s.DB).LeasePending(ctx, limit, s.Cfg.LeaseFor)
}

// MarkFetched implements domain.WriterPort. The velocity EWMA and the next
// scan interval are recomputed from this scan's outcome
func (s *Service) MarkFetched(
	ctx context.Context,
	item discdom.Item,
	changed bool,
	contentHash, etag string,
) error {
	freq := velocity.Update(item.ChangeFreq, item.ScanCount, changed)
	next := s.Now().UTC().Add(velocity.NextInterval(freq, item.RiskTier))

	return s.Bind.Bind(s.DB).SetScanState(ctx, item.ID, repo.ScanPatch{
		Status:      discdom.ItemFetched,
		ChangeFreq:  freq,
		ScanCount:   item.ScanCount + 1,
		ContentHash: contentHash,
		ETag:        etag,
		NextScanDue: next,
		RetryCount:  0,
		LastError:   "",
	})
}

// MarkProcessed implements domain.WriterPort
func (s *Service) MarkProcessed(ctx context.Context, itemID string) error {
	return s.Bind.Bind(s.DB).SetStatus(ctx, itemID, discdom.ItemProcessed, "")
}

// MarkSkipped implements domain.WriterPort
func (s *Service) MarkSkipped(ctx context.Context, itemID, reason string) error {
	return s.Bind.Bind(s.DB).SetStatus(ctx, itemID, discdom.ItemSkipped, reason)
}

// ScanError implements domain.WriterPort. The cooldown is deliberately fixed
// rather than velocity-derived: an erroring endpoint tells us nothing about
// content change frequency
func (s *Service) ScanError(ctx context.Context, item discdom.Item, reason string) error {
	retry := item.RetryCount + 1
	if retry >= s.Cfg.MaxRetries {
		s.Log.Warn().
			Str("item_id", item.ID).
			Str("url", item.URL).
			Int("retries", retry).
			Str("reason", reason).
			Msg("item failed terminally")
		return s.Bind.Bind(s.DB).SetScanState(ctx, item.ID, repo.ScanPatch{
			Status:      discdom.ItemFailed,
			ChangeFreq:  item.ChangeFreq,
			ScanCount:   item.ScanCount,
			ContentHash: item.ContentHash,
			ETag:        item.ETag,
			NextScanDue: s.Now().UTC().Add(velocity.ErrorCooldown),
			RetryCount:  retry,
			LastError:   reason,
		})
	}

	return s.Bind.Bind(s.DB).SetScanState(ctx, item.ID, repo.ScanPatch{
		Status:      discdom.ItemPending,
		ChangeFreq:  item.ChangeFreq,
		ScanCount:   item.ScanCount,
		ContentHash: item.ContentHash,
		ETag:        item.ETag,
		NextScanDue: s.Now().UTC().Add(velocity.ErrorCooldown),
		RetryCount:  retry,
		LastError:   reason,
	})
}
