// Operator tool for the rule lifecycle: run status transitions through the
// gate, trigger conflict detection for a rule, and inspect precedence among
// competing rules
package main

import (
	"context"
	"flag"
	"strings"

	"regtruth/internal/platform/config"
	"regtruth/internal/platform/logger"
	"regtruth/internal/platform/store"

	"regtruth/internal/core/statusgate"
	arbsvc "regtruth/internal/services/arbiter/service"
	"regtruth/internal/services/audit"
	conflictssvc "regtruth/internal/services/conflicts/service"
	rulessvc "regtruth/internal/services/rules/service"
)

func main() {
	root := config.New()
	cfg := root.Prefix("REGTRUTH_")
	l := logger.Get()

	st, err := store.Open(context.Background(), store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         cfg.MustString("PG_URL"),
			MaxConns:    int32(cfg.MayInt("PG_MAX_CONNS", 2)),
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
		fMode   = flag.String("mode", "", "rules mode: transition | detect | precedence")
		fRule   = flag.String("rule", "", "rule id")
		fTo     = flag.String("to", "", "target status for transition")
		fSource = flag.String("source", "", "source context (required to publish)")
		fAction = flag.String("action", "", "system action: quarantine_downgrade | rollback")
		fBypass = flag.Bool("bypass", false, "legacy bypass flag (downgrades only)")
		fNote   = flag.String("note", "", "transition note")
		fRules  = flag.String("rules", "", "comma-separated rule ids for precedence")
	)
	flag.Parse()

	ctx := context.Background()
	rec := audit.New(st.CH)
	rules := rulessvc.New(st.PG, rec)

	switch *fMode {
	case "transition":
		if *fRule == "" || *fTo == "" {
			l.Panic().Msg("transition mode: -rule and -to are required")
		}
		req := statusgate.Request{
			To:            statusgate.Status(strings.ToUpper(*fTo)),
			SourceContext: *fSource,
			Bypass:        *fBypass,
		}
		switch strings.ToLower(*fAction) {
		case "":
		case "quarantine_downgrade":
			req.SystemAction = statusgate.ActionQuarantineDowngrade
		case "rollback":
			req.SystemAction = statusgate.ActionRollback
		default:
			l.Panic().Str("action", *fAction).Msg("unknown -action")
		}
		r, err := rules.Transition(ctx, *fRule, req, *fNote)
		if err != nil {
			l.Fatal().Err(err).Msg("transition rejected")
		}
		l.Info().Str("rule_id", r.ID).Str("status", string(r.Status)).Msg("transitioned")

	case "detect":
		if *fRule == "" {
			l.Panic().Msg("detect mode: -rule is required")
		}
		detector := conflictssvc.New(st.PG, rules, conflictssvc.Config{})
		n, err := detector.DetectForRule(ctx, *fRule)
		if err != nil {
			l.Fatal().Err(err).Msg("detection failed")
		}
		l.Info().Str("rule_id", *fRule).Int("conflicts_seeded", n).Msg("detection done")

	case "precedence":
		ids := strings.Split(*fRules, ",")
		if *fRules == "" || len(ids) < 2 {
			l.Panic().Msg("precedence mode: -rules needs at least two comma-separated ids")
		}
		conflicts := conflictssvc.New(st.PG, rules, conflictssvc.Config{})
		arb := arbsvc.New(conflicts, rules, rules, nil, nil, rec, arbsvc.Config{})
		winner, err := arb.ResolvePrecedence(ctx, ids)
		if err != nil {
			l.Fatal().Err(err).Msg("precedence resolution failed")
		}
		l.Info().Str("winner", winner).Strs("rules", ids).Msg("precedence resolved")

	default:
		l.Panic().Str("mode", *fMode).Msg("unknown -mode (expected: transition | detect | precedence)")
	}
}
