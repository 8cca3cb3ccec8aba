package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/persistence"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withPostgres(cmd.Context(), persistence.RunMigrations)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show migration state",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withPostgres(cmd.Context(), persistence.MigrationStatus)
			},
		},
	)
	return cmd
}

func withPostgres(ctx context.Context, fn func(context.Context, *pgxpool.Pool, *zap.Logger) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name+"-migrate", logger)
	if err != nil {
		return fmt.Errorf("failed to connect postgres: %w", err)
	}
	defer pg.Close()
	return fn(ctx, pg.PoolHandle(), logger)
}
