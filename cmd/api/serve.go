package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/techspire01/ciadev/internal/application"
	"github.com/techspire01/ciadev/internal/auth"
	"github.com/techspire01/ciadev/internal/cleanup"
	"github.com/techspire01/ciadev/internal/config"
	"github.com/techspire01/ciadev/internal/logger"
	"github.com/techspire01/ciadev/internal/posting"
	"github.com/techspire01/ciadev/internal/reconcile"
	"github.com/techspire01/ciadev/internal/server"
	"github.com/techspire01/ciadev/internal/tenant"
	"github.com/techspire01/ciadev/internal/user"
)

// NewServeCommand returns the command running the HTTP server.
func NewServeCommand(cfg *config.Config) *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cfg, !skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply database migrations on startup")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	log := logger.FromContext(ctx)

	pool, err := connect(ctx, cfg, migrate)
	if err != nil {
		return err
	}
	defer pool.Close()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	cleaner := cleanup.New(store)

	// Wire dependencies: repository → service → handler
	userRepo := user.NewRepository(pool)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	tenantRepo := tenant.NewRepository(pool)
	tenantSvc := tenant.NewService(tenantRepo, store, cleaner, cfg.SignedURLExpiry)
	tenantHandler := tenant.NewHandler(tenantSvc, cfg.MaxUploadSize)

	postingRepo := posting.NewRepository(pool)
	postingSvc := posting.NewService(postingRepo, store, cleaner, cfg.SignedURLExpiry)
	postingHandler := posting.NewHandler(postingSvc, cfg.MaxUploadSize)

	applicationRepo := application.NewRepository(pool)
	applicationSvc := application.NewService(applicationRepo, postingRepo, store, cleaner, cfg.SignedURLExpiry, cfg.MaxUploadSize)
	applicationHandler := application.NewHandler(applicationSvc, cfg.MaxUploadSize, server.PortalBase)

	router := server.NewRouter(server.Deps{
		Logger:           log,
		Tokens:           auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Resolver:         tenant.NewResolver(tenantRepo),
		AllowedOrigins:   cfg.AllowedOrigins,
		ApplyConcurrency: cfg.ApplyConcurrency,
		Users:            userHandler,
		Tenants:          tenantHandler,
		Postings:         postingHandler,
		Applications:     applicationHandler,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := reconcile.New(reconcile.NewRepository(pool), store, cfg.ReconcileInterval)
	go sweeper.Run(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.AppEnv),
			zap.String("swagger", "http://localhost:"+cfg.Port+"/swagger/index.html"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
