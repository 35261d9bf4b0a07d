package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/techspire01/ciadev/internal/config"
	"github.com/techspire01/ciadev/internal/reconcile"
)

// NewReconcileCommand returns the command running one blob reference sweep.
func NewReconcileCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Report rows that reference files missing from object storage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			pool, err := connect(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer pool.Close()

			store, err := openStorage(ctx, cfg)
			if err != nil {
				return err
			}

			report, err := reconcile.New(reconcile.NewRepository(pool), store, 0).Sweep(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
