package api

import (
	stdhttp "net/http"

	"regtruth/internal/core/statusgate"
	perr "regtruth/internal/platform/errors"
	phttp "regtruth/internal/platform/net/http"
)

// transitionBody is the request body for a rule status transition
type transitionBody struct {
	To     string `json:"to" validate:"required,oneof=DRAFT PENDING_REVIEW APPROVED PUBLISHED REJECTED DEPRECATED"`
	Source string `json:"source" validate:"required"`
	Action string `json:"action" validate:"omitempty,oneof=QUARANTINE_DOWNGRADE ROLLBACK"`
	Bypass bool   `json:"bypass"`
	Note   string `json:"note" validate:"max=500"`
}

// @Summary Fetch one rule
// @Tags Rules
// @Produce json
// @Param id path string true "Rule id"
// @Success 200 {object} rulesdom.Rule "ok"
// @Router /rules/{id} [get]
func (h *handlers) getRule(r *stdhttp.Request) (any, error) {
	return h.opt.Rules.Get(r.Context(), phttp.URLParam(r, "id"))
}

// @Summary List rules for a concept
// @Tags Rules
// @Produce json
// @Param slug path string true "Concept slug"
// @Param status query string false "restrict to one status"
// @Success 200 {array} rulesdom.Rule "ok"
// @Router /concepts/{slug}/rules [get]
func (h *handlers) rulesByConcept(r *stdhttp.Request) (any, error) {
	slug := phttp.URLParam(r, "slug")
	var statuses []statusgate.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		statuses = append(statuses, statusgate.Status(raw))
	}
	return h.opt.Rules.ListByConcept(r.Context(), slug, statuses)
}

// @Summary Transition a rule through the status gate
// @Tags Rules
// @Accept json
// @Produce json
// @Param id path string true "Rule id"
// @Param payload body transitionBody true "Transition"
// @Success 200 {object} rulesdom.Rule "ok"
// @Router /rules/{id}/transition [post]
func (h *handlers) transitionRule(r *stdhttp.Request, in transitionBody) (any, error) {
	req := statusgate.Request{
		To:            statusgate.Status(in.To),
		SourceContext: in.Source,
		Bypass:        in.Bypass,
	}
	switch in.Action {
	case "":
	case string(statusgate.ActionQuarantineDowngrade):
		req.SystemAction = statusgate.ActionQuarantineDowngrade
	case string(statusgate.ActionRollback):
		req.SystemAction = statusgate.ActionRollback
	default:
		return nil, perr.InvalidArgumentf("unknown system action %q", in.Action)
	}
	return h.opt.Rules.Transition(r.Context(), phttp.URLParam(r, "id"), req, in.Note)
}
