package main

import (
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenking/kart-fulfillment/internal/storage/postgres"
)

func newMigrateCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				pool, err := g.connect(cmd.Context())
				if err != nil {
					return err
				}
				defer pool.Close()

				if err := postgres.RunMigrations(cmd.Context(), pool); err != nil {
					return errors.Wrap(err, "migrate up")
				}
				g.lg.Info("Migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				pool, err := g.connect(cmd.Context())
				if err != nil {
					return err
				}
				defer pool.Close()

				if err := postgres.MigrateDown(pool); err != nil {
					return errors.Wrap(err, "migrate down")
				}
				g.lg.Info("Migrations reverted")
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				pool, err := g.connect(cmd.Context())
				if err != nil {
					return err
				}
				defer pool.Close()

				version, dirty, err := postgres.MigrationVersion(pool)
				if err != nil {
					return errors.Wrap(err, "read version")
				}
				g.lg.Info("Schema version",
					zap.Uint("version", version),
					zap.Bool("dirty", dirty),
				)
				return nil
			},
		},
	)
	return cmd
}
