package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/jacksonlee411/leadimport/pkg/composables"
	"github.com/jacksonlee411/leadimport/pkg/configuration"
	"github.com/jacksonlee411/leadimport/pkg/httpapi"
)

// ProvideIdentity reads the identity asserted by the upstream gateway. Requests
// without a complete identity pass through anonymously; RequireIdentity
// rejects them on protected routes.
func ProvideIdentity(opts configuration.IdentityOptions) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(opts.UserHeader))
			tenantID, err := uuid.Parse(strings.TrimSpace(r.Header.Get(opts.TenantHeader)))
			if userID == "" || err != nil || tenantID == uuid.Nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := composables.WithUser(r.Context(), &composables.User{
				ID:       userID,
				TenantID: tenantID,
				Role:     strings.TrimSpace(r.Header.Get(opts.RoleHeader)),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireIdentity() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := composables.UseUser(r.Context()); err != nil {
				_ = httpapi.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing user or tenant context", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
