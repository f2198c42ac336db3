package service

import (
	"context"
	"time"
)

// Run drives the three discovery loops until ctx is cancelled: endpoint
// resolution on a slow cadence, due-item requeue in between, and queue
// draining on a fast one. The requeue loop is what keeps the pipeline
// adaptive: without it a fetched item would never come back for a drift scan
func (s *Service) Run(ctx context.Context) error {
	errCh := make(chan error, 3)
	go func() { errCh <- s.runResolveLoop(ctx) }()
	go func() { errCh <- s.runRequeueLoop(ctx) }()
	go func() { errCh <- s.runFetchLoop(ctx) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Service) runResolveLoop(ctx context.Context) error {
	t := time.NewTicker(s.Cfg.ResolveEvery)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if _, err := s.ResolveDue(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Service) runRequeueLoop(ctx context.Context) error {
	t := time.NewTicker(s.Cfg.RequeueEvery)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if _, err := s.Sched.RequeueDue(ctx, s.Cfg.FetchBatch); err != nil {
				return err
			}
		}
	}
}

func (s *Service) runFetchLoop(ctx context.Context) error {
	t := time.NewTicker(s.Cfg.FetchEvery)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if _, err := s.ProcessQueue(ctx); err != nil {
				return err
			}
		}
	}
}
