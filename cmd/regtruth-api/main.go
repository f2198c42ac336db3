// @title         Regulatory Truth API
// @version       0.1.0
// @description   Operator endpoints for endpoint health, conflicts, and the rule lifecycle

package main

import (
	"context"
	"os/signal"
	"syscall"

	"regtruth/internal/core/version"
	"regtruth/internal/platform/config"
	"regtruth/internal/platform/logger"
	phttp "regtruth/internal/platform/net/http"
	"regtruth/internal/platform/store"

	"regtruth/internal/services/api"
	conflictssvc "regtruth/internal/services/conflicts/service"
	discsvc "regtruth/internal/services/discovery/service"
	rulessvc "regtruth/internal/services/rules/service"
	schedsvc "regtruth/internal/services/scheduler/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := config.New()
	cfg := root.Prefix("REGTRUTH_")
	apiCfg := root.Prefix("REGTRUTH_API_")
	l := logger.Get()
	l.Info().Interface("build", version.Info("regtruth-api")).Msg("starting")

	st, err := store.Open(ctx, store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         cfg.MustString("PG_URL"),
			MaxConns:    int32(cfg.MayInt("PG_MAX_CONNS", 4)),
			SlowQueryMs: cfg.MayInt("PG_SLOW_MS", 500),
			LogSQL:      cfg.MayBool("PG_LOG_SQL", false),
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

	rules := rulessvc.New(st.PG, nil)
	conflicts := conflictssvc.New(st.PG, rules, conflictssvc.Config{})
	sched := schedsvc.New(st.PG, schedsvc.Config{})
	disc := discsvc.New(st.PG, sched, nil, nil, nil, discsvc.Config{})

	srv := phttp.NewServer(apiCfg)
	api.Mount(srv.Router(), api.Options{
		Config:         apiCfg,
		Logger:         l,
		Health:         st,
		Endpoints:      disc,
		Conflicts:      conflicts,
		Rules:          rules,
		OperatorToken:  apiCfg.MayString("TOKEN", ""),
		EnableSwagger:  apiCfg.MayBool("SWAGGER", false),
		EnableProfiler: apiCfg.MayBool("PROFILER", false),
	})

	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
