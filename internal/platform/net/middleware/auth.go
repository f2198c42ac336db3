package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	perr "regtruth/internal/platform/errors"
	pnet "regtruth/internal/platform/net"
)

// BearerToken guards mutating endpoints with a static operator token.
// An empty token disables the check
func BearerToken(token string, write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				status, body := pnet.Error(
					perr.Unauthorizedf("operator token required"),
					pnet.RequestID(r.Context()),
				)
				write(w, status, body)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
