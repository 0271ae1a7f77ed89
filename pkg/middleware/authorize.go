package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jacksonlee411/leadimport/pkg/authz"
	"github.com/jacksonlee411/leadimport/pkg/composables"
	"github.com/jacksonlee411/leadimport/pkg/httpapi"
)

type Authorizer interface {
	Authorize(ctx context.Context, req authz.Request) error
}

// RequirePermission checks the caller's gateway role against object/action.
func RequirePermission(authorizer Authorizer, object, action string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := composables.UseUser(r.Context())
			if err != nil {
				_ = httpapi.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing user or tenant context", nil)
				return
			}
			req := authz.NewRequest(
				authz.SubjectForRole(user.Role),
				authz.DomainFromTenant(user.TenantID),
				object,
				authz.NormalizeAction(action),
			)
			if err := authorizer.Authorize(r.Context(), req); err != nil {
				if errors.Is(err, authz.ErrForbidden) {
					_ = httpapi.WriteError(w, http.StatusForbidden, "AUTHZ_FORBIDDEN", "permission denied", map[string]string{
						"object": object,
						"action": req.Action,
					})
					return
				}
				composables.UseLogger(r.Context()).WithError(err).Error("authorization check failed")
				_ = httpapi.WriteError(w, http.StatusInternalServerError, "AUTHZ_ERROR", "authorization check failed", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
