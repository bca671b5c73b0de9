package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-fulfillment/internal/domain/access"
	"github.com/xenking/kart-fulfillment/internal/domain/cart"
	"github.com/xenking/kart-fulfillment/internal/domain/catalog"
	"github.com/xenking/kart-fulfillment/internal/domain/order"
	"github.com/xenking/kart-fulfillment/internal/domain/product"
)

const (
	cartOwnerSQL   = `SELECT customer_id FROM carts WHERE id = $1`
	cartOfItemSQL  = `SELECT cart_id FROM cart_items WHERE id = $1`
	cartOfOrderSQL = `SELECT cart_id FROM orders WHERE id = $1`
)

// Store groups the repositories over one pool and runs atomic units.
type Store struct {
	pool *pgxpool.Pool

	Products  *ProductRepository
	Customers *CustomerRepository
	Carts     *CartRepository
	Orders    *OrderRepository
}

// NewStore wires every repository over pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:      pool,
		Products:  NewProductRepository(pool),
		Customers: NewCustomerRepository(pool),
		Carts:     NewCartRepository(pool),
		Orders:    NewOrderRepository(pool),
	}
}

// CartUnit returns the unit of work used by cart line mutations.
func (s *Store) CartUnit() cart.UnitOfWork { return cartUnit{pool: s.pool} }

// OrderUnit returns the unit of work used by the order coordinator.
func (s *Store) OrderUnit() order.UnitOfWork { return orderUnit{pool: s.pool} }

// CatalogUnit returns the unit of work used by the product delete cascade.
func (s *Store) CatalogUnit() catalog.UnitOfWork { return catalogUnit{pool: s.pool} }

// Graph returns the ownership graph used by the access resolver.
func (s *Store) Graph() access.Graph { return ownershipGraph{db: s.pool} }

type cartUnit struct {
	pool *pgxpool.Pool
}

func (u cartUnit) Atomic(ctx context.Context, fn func(ctx context.Context, tx cart.Tx) error) error {
	return pgx.BeginFunc(ctx, u.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewCartRepository(tx))
	})
}

type orderUnit struct {
	pool *pgxpool.Pool
}

func (u orderUnit) Atomic(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return pgx.BeginFunc(ctx, u.pool, func(tx pgx.Tx) error {
		return fn(ctx, orderTx{
			Ledger: NewLedger(tx),
			carts:  NewCartRepository(tx),
			orders: NewOrderRepository(tx),
		})
	})
}

type catalogUnit struct {
	pool *pgxpool.Pool
}

func (u catalogUnit) Atomic(ctx context.Context, fn func(ctx context.Context, tx catalog.Tx) error) error {
	return pgx.BeginFunc(ctx, u.pool, func(tx pgx.Tx) error {
		return fn(ctx, catalogTx{
			carts:    NewCartRepository(tx),
			products: NewProductRepository(tx),
		})
	})
}

type catalogTx struct {
	carts    *CartRepository
	products *ProductRepository
}

var _ catalog.Tx = catalogTx{}

func (t catalogTx) RecomputeTotal(ctx context.Context, cartID string) (decimal.Decimal, error) {
	return t.carts.RecomputeTotal(ctx, cartID)
}

func (t catalogTx) Update(ctx context.Context, p *product.Product) error {
	return t.products.Update(ctx, p)
}

func (t catalogTx) SetStock(ctx context.Context, id string, stock int) error {
	return t.products.SetStock(ctx, id, stock)
}

func (t catalogTx) DeleteOpenCartLines(ctx context.Context, productID string) ([]string, error) {
	return t.carts.DeleteOpenCartLines(ctx, productID)
}

func (t catalogTx) DeleteProduct(ctx context.Context, id string) error {
	return t.products.DeleteProduct(ctx, id)
}

var _ access.Graph = ownershipGraph{}

type ownershipGraph struct {
	db DBTX
}

func (g ownershipGraph) CartOwner(ctx context.Context, cartID string) (string, error) {
	return g.lookup(ctx, cartOwnerSQL, cartID, cart.ErrNotFound)
}

func (g ownershipGraph) CartOfItem(ctx context.Context, itemID string) (string, error) {
	return g.lookup(ctx, cartOfItemSQL, itemID, cart.ErrItemNotFound)
}

func (g ownershipGraph) CartOfOrder(ctx context.Context, orderID string) (string, error) {
	return g.lookup(ctx, cartOfOrderSQL, orderID, order.ErrNotFound)
}

func (g ownershipGraph) lookup(ctx context.Context, sql, id string, notFound error) (string, error) {
	var out string
	if err := g.db.QueryRow(ctx, sql, id).Scan(&out); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", notFound
		}
		return "", fmt.Errorf("resolving owner of %q: %w", id, err)
	}
	return out, nil
}
