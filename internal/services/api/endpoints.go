package api

import (
	stdhttp "net/http"
	"time"

	perr "regtruth/internal/platform/errors"
	phttp "regtruth/internal/platform/net/http"

	discdom "regtruth/internal/services/discovery/domain"
)

// endpointView is the wire shape for one scrape endpoint
type endpointView struct {
	ID                string     `json:"id"`
	Domain            string     `json:"domain"`
	BaseURL           string     `json:"base_url"`
	Strategy          string     `json:"strategy"`
	Selector          string     `json:"selector,omitempty"`
	Priority          int        `json:"priority"`
	ScrapeEvery       string     `json:"scrape_every"`
	ConsecutiveErrors int        `json:"consecutive_errors"`
	Active            bool       `json:"active"`
	LastScrapedAt     *time.Time `json:"last_scraped_at,omitempty"`
	NextScrapeAt      time.Time  `json:"next_scrape_at"`
}

func toEndpointView(ep discdom.Endpoint) endpointView {
	return endpointView{
		ID:                ep.ID,
		Domain:            ep.Domain,
		BaseURL:           ep.BaseURL,
		Strategy:          string(ep.Strategy),
		Selector:          ep.Selector,
		Priority:          ep.Priority,
		ScrapeEvery:       ep.ScrapeEvery.String(),
		ConsecutiveErrors: ep.ConsecutiveErrors,
		Active:            ep.Active,
		LastScrapedAt:     ep.LastScrapedAt,
		NextScrapeAt:      ep.NextScrapeAt,
	}
}

// registerEndpointBody is the request body for endpoint registration
type registerEndpointBody struct {
	Domain      string `json:"domain" validate:"required,fqdn"`
	BaseURL     string `json:"base_url" validate:"required,url"`
	Strategy    string `json:"strategy" validate:"required,oneof=SITEMAP HTML_LIST PAGINATION CRAWL"`
	Selector    string `json:"selector"`
	Priority    int    `json:"priority" validate:"gte=0,lte=100"`
	ScrapeEvery string `json:"scrape_every"`
}

// @Summary List scrape endpoints with their health state
// @Tags Endpoints
// @Produce json
// @Success 200 {array} endpointView "ok"
// @Router /endpoints [get]
func (h *handlers) listEndpoints(r *stdhttp.Request) (any, error) {
	eps, err := h.opt.Endpoints.ListEndpoints(r.Context())
	if err != nil {
		return nil, err
	}
	out := make([]endpointView, 0, len(eps))
	for _, ep := range eps {
		out = append(out, toEndpointView(ep))
	}
	return out, nil
}

// @Summary Register a scrape endpoint
// @Tags Endpoints
// @Accept json
// @Produce json
// @Param payload body registerEndpointBody true "Endpoint"
// @Success 200 {object} endpointView "ok"
// @Router /endpoints [post]
func (h *handlers) registerEndpoint(r *stdhttp.Request, in registerEndpointBody) (any, error) {
	ep := discdom.Endpoint{
		Domain:   in.Domain,
		BaseURL:  in.BaseURL,
		Strategy: discdom.Strategy(in.Strategy),
		Selector: in.Selector,
		Priority: in.Priority,
	}
	if in.ScrapeEvery != "" {
		d, err := time.ParseDuration(in.ScrapeEvery)
		if err != nil || d <= 0 {
			return nil, perr.InvalidArgumentf("scrape_every must be a positive duration")
		}
		ep.ScrapeEvery = d
	}
	out, err := h.opt.Endpoints.RegisterEndpoint(r.Context(), ep)
	if err != nil {
		return nil, err
	}
	return toEndpointView(out), nil
}

// @Summary Reset an endpoint that erred out of rotation
// @Tags Endpoints
// @Produce json
// @Param id path string true "Endpoint id"
// @Success 200 {object} map[string]string "ok"
// @Router /endpoints/{id}/reset [post]
func (h *handlers) resetEndpoint(r *stdhttp.Request) (any, error) {
	id := phttp.URLParam(r, "id")
	if err := h.opt.Endpoints.ResetEndpoint(r.Context(), id); err != nil {
		return nil, err
	}
	return map[string]string{"id": id, "status": "reset"}, nil
}
