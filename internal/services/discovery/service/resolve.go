package service

import (
	"context"

	"regtruth/internal/services/discovery/domain"
	"regtruth/internal/services/discovery/repo"
)

// ResolveDue resolves every due endpoint's listing into new pending items.
// Returns how many items were created across all endpoints
func (s *Service) ResolveDue(ctx context.Context) (int, error) {
	st := s.Bind.Bind(s.DB)
	endpoints, err := st.DueEndpoints(ctx, s.Cfg.EndpointBatch)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, ep := range endpoints {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.resolveOne(ctx, st, ep)
		if err != nil {
			// Endpoint failures are isolated; health bookkeeping decides
			// whether the endpoint stays in rotation
			s.Log.Warn().Err(err).
				Str("endpoint_id", ep.ID).
				Str("base_url", ep.BaseURL).
				Msg("endpoint resolution failed")
			continue
		}
		total += n
	}
	return total, nil
}

func (s *Service) resolveOne(ctx context.Context, st repo.Storage, ep domain.Endpoint) (int, error) {
	release, err := s.Gate.WaitSlot(ctx, ep.Domain)
	if err != nil {
		return 0, err
	}
	defer release()

	links, err := s.listLinks(ctx, ep)
	nextAt := s.Now().UTC().Add(ep.ScrapeEvery)
	if err != nil {
		s.Gate.RecordError(ep.Domain, err.Error())
		if touchErr := st.TouchEndpoint(ctx, ep.ID, false, err.Error(), nextAt); touchErr != nil {
			s.Log.Error().Err(touchErr).Str("endpoint_id", ep.ID).Msg("endpoint touch failed")
		}
		return 0, err
	}
	s.Gate.RecordSuccess(ep.Domain)

	urls := make([]string, 0, len(links))
	for _, l := range links {
		urls = append(urls, l.URL)
	}
	items := make([]repo.NewItem, 0, len(urls))
	for _, u := range DedupeLinks(urls, ep.Domain) {
		role, risk := ClassifyURL(u)
		items = append(items, repo.NewItem{URL: u, NodeRole: role, RiskTier: string(risk)})
	}

	created := 0
	if !s.Cfg.DryRun {
		created, err = st.InsertItems(ctx, ep, items)
		if err != nil {
			return 0, err
		}
	}
	if err := st.TouchEndpoint(ctx, ep.ID, true, "", nextAt); err != nil {
		return created, err
	}

	if created > 0 {
		s.Log.Info().
			Str("endpoint_id", ep.ID).
			Str("strategy", string(ep.Strategy)).
			Int("links", len(items)).
			Int("created", created).
			Msg("endpoint resolved")
		if s.Audit != nil {
			s.Audit.Event(ctx, "discovery.resolved", "endpoint", ep.ID, map[string]any{
				"created": created, "strategy": string(ep.Strategy),
			})
		}
	}
	return created, nil
}

func (s *Service) listLinks(ctx context.Context, ep domain.Endpoint) ([]domain.Link, error) {
	switch ep.Strategy {
	case domain.StrategySitemap:
		return s.Lister.Sitemap(ctx, ep.BaseURL, s.Cfg.MaxDepth, s.Cfg.MaxURLs)
	case domain.StrategyPagination:
		return s.Lister.Paginate(ctx, ep.BaseURL, ep.Selector, s.Cfg.MaxPages)
	case domain.StrategyCrawl:
		return s.Lister.Crawl(ctx, ep.BaseURL, s.Cfg.MaxDepth, s.Cfg.MaxURLs)
	default:
		return s.Lister.HTMLList(ctx, ep.BaseURL, ep.Selector)
	}
}
