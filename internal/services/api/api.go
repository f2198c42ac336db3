// Package api provides the operator HTTP surface for the pipeline
package api

import (
	"context"
	"time"

	"regtruth/internal/core/statusgate"
	"regtruth/internal/platform/config"
	"regtruth/internal/platform/logger"
	phttp "regtruth/internal/platform/net/http"
	"regtruth/internal/platform/net/middleware"

	confdom "regtruth/internal/services/conflicts/domain"
	discdom "regtruth/internal/services/discovery/domain"
	rulesdom "regtruth/internal/services/rules/domain"
)

// HealthPort reports backing-store readiness
type HealthPort interface {
	Guard(ctx context.Context) error
}

// EndpointsPort is the slice of the discovery service the API consumes
type EndpointsPort interface {
	ListEndpoints(ctx context.Context) ([]discdom.Endpoint, error)
	RegisterEndpoint(ctx context.Context, ep discdom.Endpoint) (discdom.Endpoint, error)
	ResetEndpoint(ctx context.Context, id string) error
}

// ConflictsPort is the slice of the conflicts service the API consumes
type ConflictsPort interface {
	Get(ctx context.Context, id string) (confdom.Conflict, error)
	ListByStatus(ctx context.Context, st confdom.Status, limit int) ([]confdom.Conflict, error)
}

// RulesPort is the slice of the rules service the API consumes
type RulesPort interface {
	Get(ctx context.Context, id string) (rulesdom.Rule, error)
	ListByConcept(ctx context.Context, slug string, statuses []statusgate.Status) ([]rulesdom.Rule, error)
	Transition(ctx context.Context, id string, req statusgate.Request, note string) (rulesdom.Rule, error)
}

// Options are the API options
type Options struct {
	Config config.Conf
	Logger *logger.Logger

	Health    HealthPort
	Endpoints EndpointsPort
	Conflicts ConflictsPort
	Rules     RulesPort

	// OperatorToken guards mutating endpoints; empty disables the check
	OperatorToken string

	EnableSwagger  bool
	EnableProfiler bool
}

// Mount mounts the operator API onto the given router
func Mount(r phttp.Router, opt Options) {
	r.Use(middleware.Defaults()...)
	r.Use(middleware.CORS(middleware.CORSOptions{AllowedOrigins: []string{"*"}}))
	r.Use(middleware.AccessLog(middleware.AccessLogOptions{Slow: 500 * time.Millisecond}))

	phttp.MountSwagger(r, opt.EnableSwagger)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

	h := &handlers{opt: opt}

	r.Route("/api/v1", func(api phttp.Router) {
		phttp.GetJSON(api, "/healthz", h.healthz)
		phttp.GetJSON(api, "/version", h.version)

		phttp.GetJSON(api, "/endpoints", h.listEndpoints)
		phttp.GetJSON(api, "/conflicts", h.listConflicts)
		phttp.GetJSON(api, "/conflicts/{id}", h.getConflict)
		phttp.GetJSON(api, "/rules/{id}", h.getRule)
		phttp.GetJSON(api, "/concepts/{slug}/rules", h.rulesByConcept)

		// mutating endpoints sit behind the operator token
		api.Group(func(g phttp.Router) {
			g.Use(middleware.BearerToken(opt.OperatorToken, phttp.JSON))
			phttp.PostJSON[registerEndpointBody](g, "/endpoints", h.registerEndpoint)
			phttp.PostJSONNoBody(g, "/endpoints/{id}/reset", h.resetEndpoint)
			phttp.PostJSON[transitionBody](g, "/rules/{id}/transition", h.transitionRule)
		})
	})
}

type handlers struct{ opt Options }
