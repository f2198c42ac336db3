package api

import (
	stdhttp "net/http"
	"strconv"

	perr "regtruth/internal/platform/errors"
	phttp "regtruth/internal/platform/net/http"

	confdom "regtruth/internal/services/conflicts/domain"
)

// @Summary List conflicts by status, newest first
// @Tags Conflicts
// @Produce json
// @Param status query string false "OPEN, RESOLVED, or ESCALATED (default ESCALATED)"
// @Param limit query int false "max rows (default 50)"
// @Success 200 {array} confdom.Conflict "ok"
// @Router /conflicts [get]
func (h *handlers) listConflicts(r *stdhttp.Request) (any, error) {
	st := confdom.Status(r.URL.Query().Get("status"))
	if st == "" {
		st = confdom.StatusEscalated
	}
	switch st {
	case confdom.StatusOpen, confdom.StatusResolved, confdom.StatusEscalated:
	default:
		return nil, perr.InvalidArgumentf("unknown conflict status %q", st)
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, perr.InvalidArgumentf("limit must be an integer")
		}
		limit = n
	}
	return h.opt.Conflicts.ListByStatus(r.Context(), st, limit)
}

// @Summary Fetch one conflict with its resolution, if any
// @Tags Conflicts
// @Produce json
// @Param id path string true "Conflict id"
// @Success 200 {object} confdom.Conflict "ok"
// @Router /conflicts/{id} [get]
func (h *handlers) getConflict(r *stdhttp.Request) (any, error) {
	return h.opt.Conflicts.Get(r.Context(), phttp.URLParam(r, "id"))
}
