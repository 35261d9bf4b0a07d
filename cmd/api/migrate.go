package main

import (
	"github.com/spf13/cobra"

	"github.com/techspire01/ciadev/internal/config"
	"github.com/techspire01/ciadev/internal/db"
)

// NewMigrateCommand returns the command applying database migrations.
func NewMigrateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return db.Migrate(cmd.Context(), cfg.DatabaseURL)
		},
	}
}
