package service

import (
	"context"

	perr "regtruth/internal/platform/errors"
	dom "regtruth/internal/services/arbiter/domain"
)

// RunBatch implements domain.RunnerPort. One conflict's failure is counted
// and its lease released; the rest of the batch proceeds
func (s *Service) RunBatch(ctx context.Context, limit int) (dom.BatchReport, error) {
	var rep dom.BatchReport

	leased, err := s.Conflicts.LeaseOpen(ctx, limit)
	if err != nil {
		return rep, err
	}
	rep.Leased = len(leased)

	for _, c := range leased {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		out, err := s.Arbitrate(ctx, c.ID)
		if err != nil {
			rep.Failed++
			s.Log.Error().Err(err).
				Str("conflict_id", c.ID).
				Str("conflict_type", string(c.Type)).
				Msg("arbitration failed; conflict stays open")
			if relErr := s.Conflicts.Release(ctx, c.ID); relErr != nil && !perr.IsNoRows(relErr) {
				s.Log.Warn().Err(relErr).Str("conflict_id", c.ID).Msg("lease release failed")
			}
			continue
		}
		if out.Escalated {
			rep.Escalated++
		} else {
			rep.Resolved++
		}
	}
	return rep, nil
}
