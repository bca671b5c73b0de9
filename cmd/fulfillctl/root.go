package main

import (
	"context"
	"os"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenking/kart-fulfillment/internal/storage/postgres"
)

type globals struct {
	databaseURL string
	verbose     bool

	lg *zap.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:           "fulfillctl",
		Short:         "Administer the kart-fulfillment database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg := zap.NewDevelopmentConfig()
			if !g.verbose {
				cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
			}
			lg, err := cfg.Build()
			if err != nil {
				return errors.Wrap(err, "build logger")
			}
			g.lg = lg
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if g.lg != nil {
				_ = g.lg.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&g.databaseURL, "database-url", "",
		"PostgreSQL connection URL (or FULFILL_DATABASE_URL, DATABASE_URL env)")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Debug logging")

	cmd.AddCommand(
		newMigrateCmd(g),
		newSeedCmd(g),
		newTokenCmd(g),
		newSummaryCmd(g),
	)
	return cmd
}

func (g *globals) dsn() (string, error) {
	for _, v := range []string{g.databaseURL, os.Getenv("FULFILL_DATABASE_URL"), os.Getenv("DATABASE_URL")} {
		if v != "" {
			return v, nil
		}
	}
	return "", errors.New("database URL is required: set --database-url or DATABASE_URL")
}

func (g *globals) connect(ctx context.Context) (*pgxpool.Pool, error) {
	dsn, err := g.dsn()
	if err != nil {
		return nil, err
	}
	g.lg.Debug("Connecting to database")
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	return pool, nil
}
