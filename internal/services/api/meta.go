package api

import (
	stdhttp "net/http"

	"regtruth/internal/core/version"
	perr "regtruth/internal/platform/errors"
)

// @Summary Readiness probe over the backing stores
// @Tags Meta
// @Produce json
// @Success 200 {object} map[string]string "ok"
// @Router /healthz [get]
func (h *handlers) healthz(r *stdhttp.Request) (any, error) {
	if h.opt.Health != nil {
		if err := h.opt.Health.Guard(r.Context()); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "store not ready")
		}
	}
	return map[string]string{"status": "ok"}, nil
}

// @Summary Build information for the running binary
// @Tags Meta
// @Produce json
// @Success 200 {object} version.BuildInfo "ok"
// @Router /version [get]
func (h *handlers) version(*stdhttp.Request) (any, error) {
	return version.Info("regtruth-api"), nil
}
