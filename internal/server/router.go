// Package server assembles the HTTP router.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/techspire01/ciadev/internal/application"
	"github.com/techspire01/ciadev/internal/auth"
	"github.com/techspire01/ciadev/internal/metrics"
	appMiddleware "github.com/techspire01/ciadev/internal/middleware"
	"github.com/techspire01/ciadev/internal/posting"
	"github.com/techspire01/ciadev/internal/tenant"
	"github.com/techspire01/ciadev/internal/user"
)

// PortalBase is the mount point of the tenant portal.
const PortalBase = "/api/v1/portal"

// Deps are the handlers and collaborators the router wires together.
type Deps struct {
	Logger         *zap.Logger
	Tokens         appMiddleware.TokenParser
	Resolver       appMiddleware.TenantResolver
	AllowedOrigins []string
	// ApplyConcurrency bounds in-flight application uploads; zero means unbounded.
	ApplyConcurrency int

	Users        *user.Handler
	Tenants      *tenant.Handler
	Postings     *posting.Handler
	Applications *application.Handler
}

// NewRouter builds the chi router serving the API.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(d.Logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.StripSlashes)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", metrics.Handler())

	// Swagger UI, available at /swagger/index.html
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		// Public listings and applications
		r.Route("/postings/{kind}", func(r chi.Router) {
			r.Get("/", d.Postings.ListActive)
			r.Get("/{id}", d.Postings.GetActive)
			r.Group(func(r chi.Router) {
				if d.ApplyConcurrency > 0 {
					r.Use(chiMiddleware.Throttle(d.ApplyConcurrency))
				}
				r.Post("/{id}/apply", d.Applications.Apply)
			})
		})

		// Tenant portal
		r.Route("/portal", func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth(d.Tokens))
			r.Use(appMiddleware.RequireTenant(d.Resolver))
			r.Use(chiMiddleware.NoCache)

			r.Get("/me", d.Users.GetMe)
			r.Post("/company/logo", d.Tenants.UploadLogo)

			r.Route("/postings/{kind}", func(r chi.Router) {
				r.Get("/", d.Postings.ListOwned)
				r.Post("/", d.Postings.Create)
				r.Patch("/{id}", d.Postings.Update)
				r.Delete("/{id}", d.Postings.Delete)
				r.Post("/{id}/toggle", d.Postings.Toggle)
				r.Post("/{id}/image", d.Postings.UploadImage)
				r.Get("/{id}/applicants", d.Applications.ListApplicants)
			})

			r.Get("/applications/{kind}/{id}", d.Applications.Get)
			r.Get("/preview/{kind}/{id}/{fileType}", d.Applications.Preview)
			r.Get("/stream/{kind}/{id}/{fileType}", d.Applications.Stream)
			r.Post("/{kind}/{postingID}/applicant/{id}/delete", d.Applications.Delete)
		})

		// Operator endpoints
		r.Route("/admin", func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth(d.Tokens))
			r.Use(appMiddleware.RequireRole(auth.RoleAdmin))

			r.Post("/tenants", d.Tenants.Create)
			r.Post("/tenants/{id}/link", d.Tenants.Link)
			r.Delete("/tenants/{id}", d.Tenants.Delete)
		})
	})

	return r
}
