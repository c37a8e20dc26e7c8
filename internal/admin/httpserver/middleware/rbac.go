package middleware

import (
	"net/http"

	"github.com/shinefiling/filing-admin/internal/admin/httpx"
	"github.com/shinefiling/filing-admin/internal/admin/rbac"
)

// RequireCapability answers 403 when the authenticated user lacks capability.
func RequireCapability(capability rbac.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || !rbac.HasCapability(user.Roles, capability) {
				httpx.WriteError(r.Context(), w, httpx.NewError(
					"forbidden",
					"missing capability "+string(capability),
					http.StatusForbidden,
				))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
