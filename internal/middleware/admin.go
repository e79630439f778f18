package middleware

import (
	"crypto/subtle"
	"net/http"

	"ygo-storefront-api/pkg/apierror"
	"ygo-storefront-api/pkg/response"
)

// AdminKeyHeader carries the admin key on guarded routes.
const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey rejects requests whose X-Admin-Key does not match key.
// An empty key leaves routes open.
func RequireAdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminKeyHeader)
			if got == "" {
				response.Error(w, apierror.Unauthorized("X-Admin-Key header required"))
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				response.Error(w, apierror.Unauthorized("invalid admin key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
