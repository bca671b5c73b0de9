package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenking/kart-fulfillment/internal/domain/access"
	"github.com/xenking/kart-fulfillment/internal/domain/customer"
	"github.com/xenking/kart-fulfillment/internal/identity"
	"github.com/xenking/kart-fulfillment/internal/storage/postgres"
)

func newTokenCmd(g *globals) *cobra.Command {
	var (
		secret string
		issuer string
		ttl    time.Duration
		lookup bool
		role   string
	)
	cmd := &cobra.Command{
		Use:   "token CUSTOMER_ID",
		Short: "Issue a bearer token for a customer",
		Long: `Issue a signed bearer token for a customer.

With --lookup the role is read from the database; otherwise --role is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("FULFILL_JWT_SECRET")
			}
			iss, err := identity.New(secret, issuer, ttl)
			if err != nil {
				return err
			}

			p := access.Principal{ID: args[0], Role: customer.Role(role)}
			if lookup {
				pool, err := g.connect(cmd.Context())
				if err != nil {
					return err
				}
				defer pool.Close()

				c, err := postgres.NewCustomerRepository(pool).GetByID(cmd.Context(), p.ID)
				if err != nil {
					return errors.Wrap(err, "lookup customer")
				}
				p.Role = c.Role
			}
			if !p.Role.Valid() {
				return errors.Errorf("invalid role %q", p.Role)
			}

			token, err := iss.Issue(p)
			if err != nil {
				return errors.Wrap(err, "issue token")
			}
			g.lg.Debug("Issued token",
				zap.String("customer_id", p.ID),
				zap.String("role", string(p.Role)),
				zap.Duration("ttl", ttl),
			)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&secret, "jwt-secret", "", "Signing secret (or FULFILL_JWT_SECRET env)")
	cmd.Flags().StringVar(&issuer, "issuer", "kart-fulfillment", "Token issuer")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.Flags().BoolVar(&lookup, "lookup", false, "Read the role from the database")
	cmd.Flags().StringVar(&role, "role", string(customer.RoleClient), "Role when not looked up (admin, client)")
	return cmd
}
