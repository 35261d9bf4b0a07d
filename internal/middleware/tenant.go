package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/techspire01/ciadev/internal/auth"
	"github.com/techspire01/ciadev/internal/logger"
	"github.com/techspire01/ciadev/internal/response"
	"github.com/techspire01/ciadev/internal/tenant"
)

// TenantResolver maps a principal to the tenant it controls.
type TenantResolver interface {
	Resolve(ctx context.Context, p auth.Principal) (*tenant.Tenant, error)
}

// RequireTenant resolves the caller's tenant once per request and stores it in
// the context. Must run after RequireAuth.
func RequireTenant(resolver TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				response.Unauthorized(w, "unauthorized")
				return
			}

			t, err := resolver.Resolve(r.Context(), p)
			switch {
			case err == nil:
			case errors.Is(err, tenant.ErrAccessDenied):
				response.Forbidden(w, "no company is linked to this account")
				return
			case errors.Is(err, tenant.ErrIntegrity):
				response.Forbidden(w, "account configuration problem, please contact support")
				return
			default:
				logger.FromContext(r.Context()).Error("tenant resolution failed", zap.Error(err))
				response.InternalError(w)
				return
			}

			ctx := tenant.WithTenant(r.Context(), t)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.String("tenant_id", t.ID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
