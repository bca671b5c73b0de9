package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/kart-fulfillment/internal/domain/cart"
	"github.com/xenking/kart-fulfillment/internal/domain/order"
)

const (
	orderColumns = `o.id, o.cart_id, o.created_at, o.updated_at`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`

	findOrderByCartSQL = `SELECT ` + orderColumns + ` FROM orders o WHERE o.cart_id = $1`

	orderWithCartColumns = orderColumns + `, ` + cartColumns

	listOrdersSQL = `SELECT ` + orderWithCartColumns + `
		FROM orders o JOIN carts c ON c.id = o.cart_id
		ORDER BY o.created_at DESC, o.id`

	listOrdersByCustomerSQL = `SELECT ` + orderWithCartColumns + `
		FROM orders o JOIN carts c ON c.id = o.cart_id
		WHERE c.customer_id = $1
		ORDER BY o.created_at DESC, o.id`

	insertOrderSQL = `INSERT INTO orders (id, cart_id) VALUES ($1, $2)
		RETURNING created_at, updated_at`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1 AND cart_id = $2`

	reassignOrderSQL = `UPDATE orders SET cart_id = $2, updated_at = now() WHERE id = $1`

	orderSummarySQL = `SELECT count(*), COALESCE(SUM(c.total), 0)
		FROM orders o JOIN carts c ON c.id = o.cart_id`
)

var (
	_ order.Repository = (*OrderRepository)(nil)
	_ order.Tx         = orderTx{}
)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db    DBTX
	carts *CartRepository
}

// NewOrderRepository returns an OrderRepository over db.
func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db, carts: NewCartRepository(db)}
}

// GetByID returns the order with its cart, items and products.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	o, err := r.one(ctx, getOrderSQL, id)
	if err != nil {
		return nil, err
	}
	if o.Cart, err = r.carts.GetWithItems(ctx, o.CartID); err != nil {
		return nil, fmt.Errorf("getting cart of order %q: %w", id, err)
	}
	return o, nil
}

// FindByCartID returns the order bound to cartID.
func (r *OrderRepository) FindByCartID(ctx context.Context, cartID string) (*order.Order, error) {
	return r.one(ctx, findOrderByCartSQL, cartID)
}

func (r *OrderRepository) one(ctx context.Context, sql string, arg string) (*order.Order, error) {
	rows, err := r.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}
	return &o, nil
}

// List returns every order with its cart header, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrderWithCart)
}

// ListByCustomer returns the orders of a customer, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, listOrdersByCustomerSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", customerID, err)
	}
	return pgx.CollectRows(rows, scanOrderWithCart)
}

// Reassign points the order at another cart.
func (r *OrderRepository) Reassign(ctx context.Context, id, cartID string) error {
	tag, err := r.db.Exec(ctx, reassignOrderSQL, id, cartID)
	if err != nil {
		switch pgCode(err) {
		case uniqueViolation:
			return order.ErrAlreadyExists
		case foreignKeyViolation:
			return cart.ErrNotFound
		}
		return fmt.Errorf("reassigning order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// Summary counts orders and sums their cart totals.
func (r *OrderRepository) Summary(ctx context.Context) (order.Summary, error) {
	var s order.Summary
	if err := r.db.QueryRow(ctx, orderSummarySQL).Scan(&s.TotalOrders, &s.TotalRevenue); err != nil {
		return order.Summary{}, fmt.Errorf("summarizing orders: %w", err)
	}
	return s, nil
}

// Insert creates the order row.
func (r *OrderRepository) Insert(ctx context.Context, o *order.Order) error {
	err := r.db.QueryRow(ctx, insertOrderSQL, o.ID, o.CartID).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		switch pgCode(err) {
		case uniqueViolation:
			return order.ErrAlreadyExists
		case foreignKeyViolation:
			return cart.ErrNotFound
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Delete removes the order row while it is bound to cartID.
func (r *OrderRepository) Delete(ctx context.Context, id, cartID string) error {
	tag, err := r.db.Exec(ctx, deleteOrderSQL, id, cartID)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// orderTx is the order.Tx view of one transaction.
type orderTx struct {
	*Ledger
	carts  *CartRepository
	orders *OrderRepository
}

func (t orderTx) LockCart(ctx context.Context, cartID string) (*cart.Cart, error) {
	if err := t.carts.Lock(ctx, cartID); err != nil {
		return nil, err
	}
	return t.carts.GetWithItems(ctx, cartID)
}

func (t orderTx) Insert(ctx context.Context, o *order.Order) error {
	return t.orders.Insert(ctx, o)
}

func (t orderTx) Delete(ctx context.Context, id, cartID string) error {
	return t.orders.Delete(ctx, id, cartID)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.CartID, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func scanOrderWithCart(row pgx.CollectableRow) (order.Order, error) {
	var (
		o order.Order
		c cart.Cart
	)
	err := row.Scan(
		&o.ID, &o.CartID, &o.CreatedAt, &o.UpdatedAt,
		&c.ID, &c.CustomerID, &c.Total, &c.CreatedAt, &c.UpdatedAt,
	)
	o.Cart = &c
	return o, err
}
