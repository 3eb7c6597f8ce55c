package middleware

import (
	"net/http"

	"ledgerbank/internal/models"

	"github.com/go-chi/chi/v5"
)

// RequireAdmin lets only tokens carrying the admin role through. It must run
// after Auth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if role, _ := RoleFromContext(r.Context()); role != models.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSelfOrAdmin allows admins, and users whose id equals the named URL
// parameter.
func RequireSelfOrAdmin(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			role, _ := RoleFromContext(r.Context())
			if role != models.RoleAdmin && chi.URLParam(r, param) != userID {
				writeError(w, http.StatusForbidden, "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
