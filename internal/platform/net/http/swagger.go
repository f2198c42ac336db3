package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

// MountSwagger mounts the swagger UI under /docs when enabled.
// The OpenAPI document is generated out of tree with the swag CLI
func MountSwagger(r Router, enabled bool) {
	if !enabled {
		return
	}
	r.Get("/docs/*", func(w http.ResponseWriter, r *http.Request) {
		httpSwagger.WrapHandler(w, r)
	})
}
