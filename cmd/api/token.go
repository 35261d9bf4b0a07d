package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/techspire01/ciadev/internal/auth"
	"github.com/techspire01/ciadev/internal/config"
	"github.com/techspire01/ciadev/internal/logger"
	"github.com/techspire01/ciadev/internal/user"
)

// NewTokenCommand returns the command minting bearer tokens. Login happens
// outside this service; operators use this to hand out portal credentials.
func NewTokenCommand(cfg *config.Config) *cobra.Command {
	var (
		email string
		role  string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Create (or reuse) an account and print a bearer token for it",
		Example: `  api token --email owner@supplier.example
  api token --email ops@example.com --role admin`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			pool, err := connect(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer pool.Close()

			u, err := user.NewService(user.NewRepository(pool)).Ensure(ctx, email, role)
			if err != nil {
				return err
			}

			token, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL).
				Issue(auth.Principal{ID: u.ID, Email: u.Email, Role: u.Role})
			if err != nil {
				return err
			}
			logger.FromContext(ctx).Info("token issued",
				zap.String("principal_id", u.ID), zap.String("role", u.Role), zap.Duration("ttl", cfg.TokenTTL))
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&role, "role", auth.RoleSupplier, "account role: supplier or admin")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
