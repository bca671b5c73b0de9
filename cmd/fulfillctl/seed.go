package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-fulfillment/internal/domain/customer"
	"github.com/xenking/kart-fulfillment/internal/domain/product"
	"github.com/xenking/kart-fulfillment/internal/storage/postgres"
)

// seedFile is the layout of a --file seed document.
type seedFile struct {
	Customers []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Mail string `json:"mail"`
		Role string `json:"role"`
	} `json:"customers"`
	Products []struct {
		ID       string          `json:"id"`
		Name     string          `json:"name"`
		Price    decimal.Decimal `json:"price"`
		Stock    int             `json:"stock"`
		ImageURL string          `json:"image_url"`
	} `json:"products"`
}

func defaultSeed() ([]customer.Customer, []product.Product) {
	customers := []customer.Customer{
		{ID: "admin", Name: "Store Admin", Mail: "admin@example.com", Role: customer.RoleAdmin},
		{ID: "alice", Name: "Alice", Mail: "alice@example.com", Role: customer.RoleClient},
		{ID: "bob", Name: "Bob", Mail: "bob@example.com", Role: customer.RoleClient},
	}
	products := []product.Product{
		{ID: "waffle", Name: "Waffle with Berries", Price: decimal.RequireFromString("6.50"), Stock: 40},
		{ID: "creme-brulee", Name: "Vanilla Bean Crème Brûlée", Price: decimal.RequireFromString("7.00"), Stock: 25},
		{ID: "macaron", Name: "Macaron Mix of Five", Price: decimal.RequireFromString("8.00"), Stock: 30},
		{ID: "tiramisu", Name: "Classic Tiramisu", Price: decimal.RequireFromString("5.50"), Stock: 20},
		{ID: "baklava", Name: "Pistachio Baklava", Price: decimal.RequireFromString("4.00"), Stock: 50},
	}
	return customers, products
}

func readSeed(path string) ([]customer.Customer, []product.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read seed file")
	}
	var f seedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil, errors.Wrap(err, "parse seed file")
	}

	customers := make([]customer.Customer, 0, len(f.Customers))
	for _, c := range f.Customers {
		role := customer.Role(c.Role)
		if role == "" {
			role = customer.RoleClient
		}
		if !role.Valid() {
			return nil, nil, errors.Errorf("customer %s: invalid role %q", c.ID, c.Role)
		}
		customers = append(customers, customer.Customer{ID: c.ID, Name: c.Name, Mail: c.Mail, Role: role})
	}
	products := make([]product.Product, 0, len(f.Products))
	for _, p := range f.Products {
		if p.Stock < 0 {
			return nil, nil, errors.Errorf("product %s: negative stock", p.ID)
		}
		products = append(products, product.Product{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Stock:    p.Stock,
			ImageURL: p.ImageURL,
		})
	}
	return customers, products, nil
}

func newSeedCmd(g *globals) *cobra.Command {
	var (
		file    string
		migrate bool
		workers int
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert customers and products",
		Long: `Upsert customers and products into the database.

Without --file a small built-in data set is used. A seed file is JSON with
"customers" (id, name, mail, role) and "products" (id, name, price, stock,
image_url) arrays.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			customers, products := defaultSeed()
			if file != "" {
				var err error
				if customers, products, err = readSeed(file); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			pool, err := g.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if migrate {
				if err := postgres.RunMigrations(ctx, pool); err != nil {
					return errors.Wrap(err, "run migrations")
				}
			}

			store := postgres.NewStore(pool)
			if err := seed(ctx, g.lg, store, workers, customers, products); err != nil {
				return err
			}
			g.lg.Info("Seed completed",
				zap.Int("customers", len(customers)),
				zap.Int("products", len(products)),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Seed document (JSON)")
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply migrations before seeding")
	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent upserts")
	return cmd
}

func seed(
	ctx context.Context,
	lg *zap.Logger,
	store *postgres.Store,
	workers int,
	customers []customer.Customer,
	products []product.Product,
) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for i := range customers {
		c := &customers[i]
		g.Go(func() error {
			if err := store.Customers.Upsert(ctx, c); err != nil {
				return errors.Wrapf(err, "upsert customer %s", c.ID)
			}
			lg.Debug("Upserted customer", zap.String("id", c.ID), zap.String("role", string(c.Role)))
			return nil
		})
	}
	for i := range products {
		p := &products[i]
		g.Go(func() error {
			if err := store.Products.Upsert(ctx, p); err != nil {
				return errors.Wrapf(err, "upsert product %s", p.ID)
			}
			lg.Debug("Upserted product", zap.String("id", p.ID), zap.Int("stock", p.Stock))
			return nil
		})
	}
	return g.Wait()
}
