package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-fulfillment/internal/domain/cart"
	"github.com/xenking/kart-fulfillment/internal/domain/product"
)

const (
	cartColumns = `c.id, c.customer_id, c.total, c.created_at, c.updated_at`

	getCartSQL = `SELECT ` + cartColumns + ` FROM carts c WHERE c.id = $1`

	listCartsSQL = `SELECT ` + cartColumns + ` FROM carts c ORDER BY c.created_at DESC, c.id`

	findOpenCartSQL = `SELECT ` + cartColumns + ` FROM carts c
		WHERE c.customer_id = $1
		AND NOT EXISTS (SELECT 1 FROM orders o WHERE o.cart_id = c.id)
		ORDER BY c.created_at DESC, c.id
		LIMIT 1`

	// Serializes open-cart creation per customer until the transaction ends.
	lockCustomerCartsSQL = `SELECT pg_advisory_xact_lock(hashtext('carts:' || $1))`

	insertCartSQL = `INSERT INTO carts (id, customer_id, total)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`

	isOrderedSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE cart_id = $1)`

	// Kept apart from isOrderedSQL: only a statement issued after the lock
	// is granted sees an order committed by the previous holder.
	lockCartSQL = `SELECT id FROM carts WHERE id = $1 FOR UPDATE`

	deleteCartSQL = `DELETE FROM carts WHERE id = $1`

	recomputeTotalSQL = `UPDATE carts
		SET total = COALESCE((SELECT SUM(i.total) FROM cart_items i WHERE i.cart_id = carts.id), 0),
			updated_at = now()
		WHERE id = $1
		RETURNING total`

	itemColumns = `i.id, i.cart_id, i.product_id, i.quantity, i.total, i.created_at, i.updated_at,
		p.id, p.name, p.price, p.stock, p.image_url, p.created_at, p.updated_at`

	itemFrom = ` FROM cart_items i JOIN products p ON p.id = i.product_id`

	getItemSQL = `SELECT ` + itemColumns + itemFrom + ` WHERE i.id = $1`

	findItemSQL = `SELECT ` + itemColumns + itemFrom + ` WHERE i.cart_id = $1 AND i.product_id = $2`

	listItemsSQL = `SELECT ` + itemColumns + itemFrom + ` WHERE i.cart_id = $1 ORDER BY i.created_at, i.id`

	listAllItemsSQL = `SELECT ` + itemColumns + itemFrom + ` ORDER BY i.created_at, i.id`

	listOpenItemsByCustomerSQL = `SELECT ` + itemColumns + itemFrom + `
		JOIN carts c ON c.id = i.cart_id
		WHERE c.customer_id = $1
		AND NOT EXISTS (SELECT 1 FROM orders o WHERE o.cart_id = c.id)
		ORDER BY i.created_at, i.id`

	insertItemSQL = `INSERT INTO cart_items (id, cart_id, product_id, quantity, total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	updateItemSQL = `UPDATE cart_items SET quantity = $2, total = $3, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	deleteItemSQL = `DELETE FROM cart_items WHERE id = $1`

	deleteItemsSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	// Carts are locked in id order ahead of the line delete, matching the
	// cart-then-lines order of line mutations and checkout.
	lockCartsHoldingSQL = `SELECT c.id FROM carts c
		WHERE EXISTS (SELECT 1 FROM cart_items i WHERE i.cart_id = c.id AND i.product_id = $1)
		ORDER BY c.id
		FOR UPDATE`

	deleteOpenCartLinesSQL = `DELETE FROM cart_items i
		WHERE i.product_id = $1
		AND NOT EXISTS (SELECT 1 FROM orders o WHERE o.cart_id = i.cart_id)
		RETURNING i.cart_id`
)

var (
	_ cart.Repository = (*CartRepository)(nil)
	_ cart.Tx         = (*CartRepository)(nil)
)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	db DBTX
}

// NewCartRepository returns a CartRepository over db.
func NewCartRepository(db DBTX) *CartRepository {
	return &CartRepository{db: db}
}

// GetByID returns a cart without items.
func (r *CartRepository) GetByID(ctx context.Context, id string) (*cart.Cart, error) {
	rows, err := r.db.Query(ctx, getCartSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting cart %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart %q: %w", id, err)
	}
	return &c, nil
}

// GetWithItems returns a cart with its items and their current products.
func (r *CartRepository) GetWithItems(ctx context.Context, id string) (*cart.Cart, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Items, err = r.ListItems(ctx, id); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateOpen inserts c after checking, under a per-customer advisory lock,
// that the customer has no open cart.
func (r *CartRepository) CreateOpen(ctx context.Context, c *cart.Cart) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockCustomerCartsSQL, c.CustomerID); err != nil {
			return fmt.Errorf("locking carts of %q: %w", c.CustomerID, err)
		}

		var open bool
		rows, err := tx.Query(ctx, findOpenCartSQL, c.CustomerID)
		if err != nil {
			return fmt.Errorf("finding open cart of %q: %w", c.CustomerID, err)
		}
		open, err = hasRows(rows)
		if err != nil {
			return fmt.Errorf("finding open cart of %q: %w", c.CustomerID, err)
		}
		if open {
			return cart.ErrAlreadyOpen
		}

		err = tx.QueryRow(ctx, insertCartSQL, c.ID, c.CustomerID, c.Total).Scan(&c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			if pgCode(err) == foreignKeyViolation {
				return cart.ErrCustomerNotFound
			}
			return fmt.Errorf("creating cart %q: %w", c.ID, err)
		}
		return nil
	})
}

// FindOpen returns the customer's newest cart without an order.
func (r *CartRepository) FindOpen(ctx context.Context, customerID string) (*cart.Cart, error) {
	rows, err := r.db.Query(ctx, findOpenCartSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("finding open cart of %q: %w", customerID, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("finding open cart of %q: %w", customerID, err)
	}
	return &c, nil
}

// List returns every cart, newest first.
func (r *CartRepository) List(ctx context.Context) ([]cart.Cart, error) {
	rows, err := r.db.Query(ctx, listCartsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing carts: %w", err)
	}
	return pgx.CollectRows(rows, scanCart)
}

// IsOrdered reports whether an order references the cart.
func (r *CartRepository) IsOrdered(ctx context.Context, cartID string) (bool, error) {
	var ordered bool
	if err := r.db.QueryRow(ctx, isOrderedSQL, cartID).Scan(&ordered); err != nil {
		return false, fmt.Errorf("checking order of cart %q: %w", cartID, err)
	}
	return ordered, nil
}

// Lock takes the cart row lock until the surrounding transaction ends.
func (r *CartRepository) Lock(ctx context.Context, cartID string) error {
	var id string
	if err := r.db.QueryRow(ctx, lockCartSQL, cartID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.ErrNotFound
		}
		return fmt.Errorf("locking cart %q: %w", cartID, err)
	}
	return nil
}

// LockOpen locks the cart row and fails with cart.ErrOrdered when an order
// references the cart.
func (r *CartRepository) LockOpen(ctx context.Context, cartID string) error {
	if err := r.Lock(ctx, cartID); err != nil {
		return err
	}
	ordered, err := r.IsOrdered(ctx, cartID)
	if err != nil {
		return err
	}
	if ordered {
		return cart.ErrOrdered
	}
	return nil
}

// Delete removes the cart; its items go with it.
func (r *CartRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteCartSQL, id)
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return cart.ErrOrdered
		}
		return fmt.Errorf("deleting cart %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

// RecomputeTotal re-sums the cart's lines and stores the result in a single
// statement.
func (r *CartRepository) RecomputeTotal(ctx context.Context, cartID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := r.db.QueryRow(ctx, recomputeTotalSQL, cartID).Scan(&total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, cart.ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("recomputing total of cart %q: %w", cartID, err)
	}
	return total, nil
}

// GetItem returns a line with its product.
func (r *CartRepository) GetItem(ctx context.Context, id string) (*cart.Item, error) {
	return r.oneItem(ctx, getItemSQL, id)
}

// FindItem returns the line of productID in cartID.
func (r *CartRepository) FindItem(ctx context.Context, cartID, productID string) (*cart.Item, error) {
	return r.oneItem(ctx, findItemSQL, cartID, productID)
}

func (r *CartRepository) oneItem(ctx context.Context, sql string, args ...any) (*cart.Item, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("getting cart item: %w", err)
	}

	it, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotFound
		}
		return nil, fmt.Errorf("getting cart item: %w", err)
	}
	return &it, nil
}

// ListItems returns the lines of a cart.
func (r *CartRepository) ListItems(ctx context.Context, cartID string) ([]cart.Item, error) {
	return r.items(ctx, listItemsSQL, cartID)
}

// ListAllItems returns every line.
func (r *CartRepository) ListAllItems(ctx context.Context) ([]cart.Item, error) {
	return r.items(ctx, listAllItemsSQL)
}

// ListOpenItemsByCustomer returns the lines of the customer's unordered carts.
func (r *CartRepository) ListOpenItemsByCustomer(ctx context.Context, customerID string) ([]cart.Item, error) {
	return r.items(ctx, listOpenItemsByCustomerSQL, customerID)
}

func (r *CartRepository) items(ctx context.Context, sql string, args ...any) ([]cart.Item, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	return items, nil
}

// CreateItem inserts a line.
func (r *CartRepository) CreateItem(ctx context.Context, it *cart.Item) error {
	err := r.db.QueryRow(ctx, insertItemSQL, it.ID, it.CartID, it.ProductID, it.Quantity, it.Total).
		Scan(&it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		switch pgCode(err) {
		case uniqueViolation:
			return cart.ErrItemExists
		case foreignKeyViolation:
			return cart.ErrNotFound
		}
		return fmt.Errorf("creating cart item %q: %w", it.ID, err)
	}
	return nil
}

// UpdateItem persists quantity and total.
func (r *CartRepository) UpdateItem(ctx context.Context, it *cart.Item) error {
	err := r.db.QueryRow(ctx, updateItemSQL, it.ID, it.Quantity, it.Total).Scan(&it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.ErrItemNotFound
		}
		return fmt.Errorf("updating cart item %q: %w", it.ID, err)
	}
	return nil
}

// DeleteItem removes a line.
func (r *CartRepository) DeleteItem(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteItemSQL, id)
	if err != nil {
		return fmt.Errorf("deleting cart item %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// DeleteItems removes every line of a cart.
func (r *CartRepository) DeleteItems(ctx context.Context, cartID string) error {
	if _, err := r.db.Exec(ctx, deleteItemsSQL, cartID); err != nil {
		return fmt.Errorf("deleting items of cart %q: %w", cartID, err)
	}
	return nil
}

// DeleteOpenCartLines removes the product from carts without an order and
// returns the distinct affected cart ids.
func (r *CartRepository) DeleteOpenCartLines(ctx context.Context, productID string) ([]string, error) {
	if _, err := r.db.Exec(ctx, lockCartsHoldingSQL, productID); err != nil {
		return nil, fmt.Errorf("locking carts holding %q: %w", productID, err)
	}

	rows, err := r.db.Query(ctx, deleteOpenCartLinesSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("deleting open lines of %q: %w", productID, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("deleting open lines of %q: %w", productID, err)
	}

	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func hasRows(rows pgx.Rows) (bool, error) {
	defer rows.Close()
	found := rows.Next()
	rows.Close()
	return found, rows.Err()
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var c cart.Cart
	err := row.Scan(&c.ID, &c.CustomerID, &c.Total, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanItem(row pgx.CollectableRow) (cart.Item, error) {
	var (
		it cart.Item
		p  product.Product
	)
	err := row.Scan(
		&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.Total, &it.CreatedAt, &it.UpdatedAt,
		&p.ID, &p.Name, &p.Price, &p.Stock, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
	)
	it.Product = &p
	return it, err
}
