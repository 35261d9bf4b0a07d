package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/techspire01/ciadev/internal/config"
	"github.com/techspire01/ciadev/internal/db"
	"github.com/techspire01/ciadev/internal/logger"
	"github.com/techspire01/ciadev/internal/storage"
)

const serviceName = "ciadev-api"

// NewRootCommand returns the root command with all subcommands attached.
func NewRootCommand(cfg *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "api",
		Short: "Supplier job portal API.",
		Long: `Serves the supplier job portal: public postings and applications, the tenant
portal for managing postings and applicant documents, and operator endpoints.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.Init(logger.Options{
				Level:       cfg.LogLevel,
				Environment: cfg.AppEnv,
				ServiceName: serviceName,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			cmd.SetContext(logger.WithContext(cmd.Context(), log))
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.L().Sync()
		},
	}

	rootCmd.AddCommand(NewServeCommand(cfg))
	rootCmd.AddCommand(NewMigrateCommand(cfg))
	rootCmd.AddCommand(NewTokenCommand(cfg))
	rootCmd.AddCommand(NewReconcileCommand(cfg))
	return rootCmd
}

// connect opens the database pool, applying migrations first when migrate is set.
func connect(ctx context.Context, cfg *config.Config, migrate bool) (*pgxpool.Pool, error) {
	if migrate {
		if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return pool, nil
}

// openStorage builds the object store selected by STORAGE_DRIVER.
func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case config.DriverLocal:
		logger.FromContext(ctx).Info("using local object storage", zap.String("root", cfg.StorageLocalRoot))
		return storage.NewFSStorage(afero.NewOsFs(), cfg.StorageLocalRoot, cfg.StoragePublicBase)
	case config.DriverMinio:
		return storage.NewMinioStorage(ctx, storage.MinioOptions{
			Endpoint:   cfg.StorageEndpoint,
			AccessKey:  cfg.StorageAccessKey,
			SecretKey:  cfg.StorageSecretKey,
			Bucket:     cfg.StorageBucket,
			PublicBase: cfg.StoragePublicBase,
			UseSSL:     cfg.StorageUseSSL,
			URLExpiry:  cfg.SignedURLExpiry,
		})
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}
