package main

import (
	"context"
	"flag"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"regtruth/internal/platform/config"
	"regtruth/internal/platform/logger"
	"regtruth/internal/platform/store"

	"regtruth/internal/adapters/fetchhttp"
	"regtruth/internal/adapters/listing"
	"regtruth/internal/adapters/llm"
	"regtruth/internal/core/throttle"
	"regtruth/internal/services/audit"
	conflictssvc "regtruth/internal/services/conflicts/service"
	discdom "regtruth/internal/services/discovery/domain"
	discsvc "regtruth/internal/services/discovery/service"
	extsvc "regtruth/internal/services/extraction/service"
	rulessvc "regtruth/internal/services/rules/service"
	schedsvc "regtruth/internal/services/scheduler/service"
)

func main() {
	root := config.New()
	cfg := root.Prefix("REGTRUTH_")

	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         cfg.MustString("PG_URL"),
			MaxConns:    int32(cfg.MayInt("PG_MAX_CONNS", 8)),
			SlowQueryMs: cfg.MayInt("PG_SLOW_MS", 500),
			LogSQL:      cfg.MayBool("PG_LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled: cfg.MayString("CH_URL", "") != "",
			URL:     cfg.MayString("CH_URL", ""),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	var (
		fMode   = flag.String("mode", "worker", "discovery mode: worker | resolve | fetch | endpoint-add | endpoint-reset")
		fDryRun = flag.Bool("dryrun", false, "resolve endpoints but do not queue items")
		fDepth  = flag.Int("depth", 3, "max sitemap/crawl depth")
		fURLs   = flag.Int("urls", 500, "max urls per endpoint resolution")
		fPages  = flag.Int("pages", 20, "max pages per paginated listing")

		fURL      = flag.String("url", "", "endpoint-add: base url")
		fStrategy = flag.String("strategy", "SITEMAP", "endpoint-add: SITEMAP | HTML_LIST | PAGINATION | CRAWL")
		fSelector = flag.String("selector", "", "endpoint-add: listing selector (HTML_LIST/PAGINATION)")
		fPriority = flag.Int("priority", 0, "endpoint-add: resolution priority")
		fEvery    = flag.Duration("every", 24*time.Hour, "endpoint-add: scrape interval")
		fID       = flag.String("id", "", "endpoint-reset: endpoint id")
	)
	flag.Parse()

	rec := audit.New(st.CH)

	gate := throttle.New(throttle.Config{
		SlotsPerDomain: cfg.MayInt("SLOTS_PER_DOMAIN", 2),
	})

	fetcher := fetchhttp.NewClient(fetchhttp.Options{
		UserAgent: cfg.MayString("USER_AGENT", "regtruth-discovery"),
	})
	lister := listing.New(fetcher)

	sched := schedsvc.New(st.PG, schedsvc.Config{})

	rules := rulessvc.New(st.PG, rec)
	detector := conflictssvc.New(st.PG, rules, conflictssvc.Config{})

	disc := discsvc.New(st.PG, sched, fetcher, lister, gate, discsvc.Config{
		MaxDepth: *fDepth,
		MaxURLs:  *fURLs,
		MaxPages: *fPages,
		DryRun:   *fDryRun,
	})
	disc.Audit = rec

	// The extraction stage runs in-process so captured evidence flows straight
	// into drafting and conflict detection. Without an API key the pipeline
	// still fetches and stores evidence; extraction just stays cold
	var extraction *extsvc.Service
	if key := cfg.MayString("OPENAI_API_KEY", ""); key != "" {
		agent := llm.NewClient(llm.Options{
			APIKey:  key,
			BaseURL: cfg.MayString("OPENAI_BASE_URL", ""),
			Model:   cfg.MayString("OPENAI_MODEL", ""),
		}, rec)
		extraction = extsvc.New(disc, rules, detector, agent, rec, extsvc.Config{})
		extraction.Sched = sched
		disc.Extract = extraction
	} else {
		l.Warn().Msg("no OPENAI_API_KEY, extraction disabled")
	}

	switch *fMode {
	case "worker":
		if extraction != nil {
			go func() {
				if err := extraction.Run(ctx); err != nil && ctx.Err() == nil {
					l.Error().Err(err).Msg("extraction worker stopped")
				}
			}()
		}
		if err := disc.Run(ctx); err != nil && ctx.Err() == nil {
			l.Fatal().Err(err).Msg("discovery worker failed")
		}

	case "resolve":
		n, err := disc.ResolveDue(ctx)
		if err != nil {
			l.Fatal().Err(err).Msg("resolve sweep failed")
		}
		l.Info().Int("queued", n).Msg("resolve sweep done")

	case "fetch":
		n, err := disc.ProcessQueue(ctx)
		if err != nil {
			l.Fatal().Err(err).Msg("fetch sweep failed")
		}
		l.Info().Int("processed", n).Msg("fetch sweep done")

	case "endpoint-add":
		if *fURL == "" {
			l.Panic().Msg("endpoint-add mode: -url is required")
		}
		u, err := url.Parse(*fURL)
		if err != nil || u.Host == "" {
			l.Panic().Str("url", *fURL).Msg("endpoint-add: -url must be absolute")
		}
		ep, err := disc.RegisterEndpoint(ctx, discdom.Endpoint{
			Domain:      u.Host,
			BaseURL:     *fURL,
			Strategy:    discdom.Strategy(strings.ToUpper(*fStrategy)),
			Selector:    *fSelector,
			Priority:    *fPriority,
			ScrapeEvery: *fEvery,
		})
		if err != nil {
			l.Fatal().Err(err).Msg("endpoint registration failed")
		}
		l.Info().Str("endpoint_id", ep.ID).Str("base_url", ep.BaseURL).Msg("endpoint registered")

	case "endpoint-reset":
		if *fID == "" {
			l.Panic().Msg("endpoint-reset mode: -id is required")
		}
		if err := disc.ResetEndpoint(ctx, *fID); err != nil {
			l.Fatal().Err(err).Msg("endpoint reset failed")
		}
		l.Info().Str("endpoint_id", *fID).Msg("endpoint reset")

	default:
		l.Panic().Str("mode", *fMode).Msg("unknown -mode (expected: worker | resolve | fetch | endpoint-add | endpoint-reset)")
	}
}
