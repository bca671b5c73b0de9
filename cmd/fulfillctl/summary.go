package main

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/xenking/kart-fulfillment/internal/storage/postgres"
)

func newSummaryCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print order count and revenue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := g.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			s, err := postgres.NewOrderRepository(pool).Summary(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "summarize orders")
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "orders:  %d\nrevenue: %s\n", s.TotalOrders, s.TotalRevenue.StringFixed(2))
			return err
		},
	}
}
