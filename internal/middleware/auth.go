package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/techspire01/ciadev/internal/auth"
	"github.com/techspire01/ciadev/internal/logger"
	"github.com/techspire01/ciadev/internal/response"
)

// TokenParser verifies a bearer token.
type TokenParser interface {
	Parse(token string) (auth.Principal, error)
}

// RequireAuth returns middleware that validates a Bearer JWT and injects
// the principal into the request context.
func RequireAuth(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "authorization header required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Unauthorized(w, "invalid authorization header format")
				return
			}

			p, err := tokens.Parse(parts[1])
			if err != nil {
				response.Unauthorized(w, "invalid or expired token")
				return
			}

			ctx := auth.WithPrincipal(r.Context(), p)
			log := logger.FromContext(ctx).With(zap.String("principal_id", p.ID))
			ctx = logger.WithContext(ctx, log)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects principals whose role differs from role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				response.Unauthorized(w, "unauthorized")
				return
			}
			if p.Role != role {
				response.Forbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
