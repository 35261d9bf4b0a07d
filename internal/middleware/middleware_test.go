package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/techspire01/ciadev/internal/auth"
	"github.com/techspire01/ciadev/internal/logger"
	"github.com/techspire01/ciadev/internal/tenant"
)

func okHandler(check func(r *http.Request)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAuth(t *testing.T) {
	issuer := auth.NewIssuer("secret", time.Hour)
	token, err := issuer.Issue(auth.Principal{ID: "p1", Email: "a@x.com"})
	require.NoError(t, err)

	var seen auth.Principal
	h := RequireAuth(issuer)(okHandler(func(r *http.Request) {
		seen, _ = auth.PrincipalFrom(r.Context())
	}))

	for name, header := range map[string]string{
		"missing":   "",
		"no bearer": "Token " + token,
		"garbage":   "Bearer nope",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "p1", seen.ID)
	assert.Equal(t, auth.RoleSupplier, seen.Role)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(auth.RoleAdmin)(okHandler(nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{ID: "p", Role: auth.RoleSupplier}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{ID: "p", Role: auth.RoleAdmin}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type resolverFunc func(ctx context.Context, p auth.Principal) (*tenant.Tenant, error)

func (f resolverFunc) Resolve(ctx context.Context, p auth.Principal) (*tenant.Tenant, error) {
	return f(ctx, p)
}

func TestRequireTenantResolvesOnce(t *testing.T) {
	calls := 0
	resolver := resolverFunc(func(_ context.Context, p auth.Principal) (*tenant.Tenant, error) {
		calls++
		switch p.ID {
		case "owner":
			return &tenant.Tenant{ID: "t1"}, nil
		case "dup":
			return nil, tenant.ErrIntegrity
		}
		return nil, tenant.ErrAccessDenied
	})

	var got *tenant.Tenant
	h := RequireTenant(resolver)(okHandler(func(r *http.Request) {
		got, _ = tenant.FromContext(r.Context())
		again, _ := tenant.FromContext(r.Context())
		assert.Same(t, got, again)
	}))

	serve := func(id string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{ID: id}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, serve("owner"))
	assert.Equal(t, 1, calls)
	require.NotNil(t, got)
	assert.Equal(t, "t1", got.ID)

	assert.Equal(t, http.StatusForbidden, serve("stranger"))
	assert.Equal(t, http.StatusForbidden, serve("dup"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoggerWarnsOnRejections(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	handler := chiMiddleware.RequestID(Logger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/denied":
			w.WriteHeader(http.StatusForbidden)
		case "/slow-down":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/boom":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusOK)
		}
	})))

	for _, path := range []string{"/ok", "/denied", "/slow-down", "/boom"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	warns := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warns, 2)
	assert.Equal(t, int64(http.StatusForbidden), warns[0].ContextMap()["status"])
	assert.NotEmpty(t, warns[0].ContextMap()["request_id"])
	assert.Equal(t, 2, logs.FilterLevelExact(zapcore.InfoLevel).Len())
}

func TestLoggerInjectsRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Debug("inside")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, 1, logs.FilterMessage("inside").Len())
}

func TestRequireTenantIntegrityIsForbidden(t *testing.T) {
	h := RequireTenant(resolverFunc(func(context.Context, auth.Principal) (*tenant.Tenant, error) {
		return nil, fmt.Errorf("resolve: %w", tenant.ErrIntegrity)
	}))(okHandler(func(*http.Request) {
		t.Error("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{ID: "p", Email: "dup@x.com"}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "contact support")
}
