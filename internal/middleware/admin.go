package middleware

import (
	"net/http"

	"github.com/randgate/backend/internal/contextkeys"
	"github.com/randgate/backend/internal/domain"
	"github.com/randgate/backend/internal/handler"
)

// AdminOnly middleware ensures the token carries the admin role.
// Must be used AFTER Auth middleware which sets contextkeys.Role in context.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := r.Context().Value(contextkeys.Role).(string)
		if !ok || role != domain.RoleAdmin {
			handler.Error(w, domain.ErrForbidden("forbidden: admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
