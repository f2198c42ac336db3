package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"regtruth/internal/platform/config"
	"regtruth/internal/platform/logger"
	"regtruth/internal/platform/store"

	"regtruth/internal/adapters/llm"
	"regtruth/internal/adapters/review"
	arbsvc "regtruth/internal/services/arbiter/service"
	"regtruth/internal/services/audit"
	conflictssvc "regtruth/internal/services/conflicts/service"
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
			MaxConns:    int32(cfg.MayInt("PG_MAX_CONNS", 4)),
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
		fMode     = flag.String("mode", "worker", "arbiter mode: worker | batch")
		fBatch    = flag.Int("batch", 20, "conflicts leased per pass")
		fInterval = flag.Duration("interval", 15*time.Second, "worker pass interval")
	)
	flag.Parse()

	rec := audit.New(st.CH)

	rules := rulessvc.New(st.PG, rec)
	conflicts := conflictssvc.New(st.PG, rules, conflictssvc.Config{})

	agent := llm.NewClient(llm.Options{
		APIKey:  cfg.MustString("OPENAI_API_KEY"),
		BaseURL: cfg.MayString("OPENAI_BASE_URL", ""),
		Model:   cfg.MayString("OPENAI_MODEL", ""),
	}, rec)

	notifier := review.New(review.Options{
		URL: cfg.MayString("REVIEW_WEBHOOK_URL", ""),
	})

	arb := arbsvc.New(conflicts, rules, rules, agent, notifier, rec, arbsvc.Config{})

	// quote lookup reuses the extraction service's evidence reader; the agent
	// side of that service is never touched here
	disc := discsvc.New(st.PG, schedsvc.New(st.PG, schedsvc.Config{}), nil, nil, nil, discsvc.Config{})
	arb.Evidence = extsvc.New(disc, nil, nil, nil, nil, extsvc.Config{})

	runBatch := func() {
		report, err := arb.RunBatch(ctx, *fBatch)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.Error().Err(err).Msg("arbitration pass failed")
			return
		}
		if report.Leased > 0 {
			l.Info().
				Int("leased", report.Leased).
				Int("resolved", report.Resolved).
				Int("escalated", report.Escalated).
				Int("failed", report.Failed).
				Msg("arbitration pass done")
		}
	}

	switch *fMode {
	case "worker":
		l.Info().Dur("interval", *fInterval).Msg("arbiter worker started")
		ticker := time.NewTicker(*fInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runBatch()
			}
		}

	case "batch":
		runBatch()

	default:
		l.Panic().Str("mode", *fMode).Msg("unknown -mode (expected: worker | batch)")
	}
}
