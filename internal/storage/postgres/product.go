package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/kart-fulfillment/internal/domain/catalog"
	"github.com/xenking/kart-fulfillment/internal/domain/product"
)

const (
	productColumns = `id, name, price, stock, image_url, created_at, updated_at`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY created_at, id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	insertProductSQL = `INSERT INTO products (id, name, price, stock, image_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	upsertProductSQL = `INSERT INTO products (id, name, price, stock, image_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, price = EXCLUDED.price, stock = EXCLUDED.stock,
			image_url = EXCLUDED.image_url, updated_at = now()
		RETURNING created_at, updated_at`

	updateProductSQL = `UPDATE products SET name = $2, price = $3, image_url = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	setStockSQL = `UPDATE products SET stock = $2, updated_at = now() WHERE id = $1`

	countOrderedLinesSQL = `SELECT count(*) FROM cart_items i
		JOIN orders o ON o.cart_id = i.cart_id
		WHERE i.product_id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

var _ catalog.Repository = (*ProductRepository)(nil)

// ProductRepository implements catalog.Repository backed by PostgreSQL.
type ProductRepository struct {
	db DBTX
}

// NewProductRepository returns a ProductRepository over db.
func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns all products.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.db.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// Create inserts a product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := r.db.QueryRow(ctx, insertProductSQL, p.ID, p.Name, p.Price, p.Stock, p.ImageURL).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Upsert inserts or overwrites a product, stock included. Used by seeding.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	err := r.db.QueryRow(ctx, upsertProductSQL, p.ID, p.Name, p.Price, p.Stock, p.ImageURL).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// Update persists name, price and image.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	err := r.db.QueryRow(ctx, updateProductSQL, p.ID, p.Name, p.Price, p.ImageURL).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return product.ErrNotFound
		}
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	return nil
}

// SetStock overwrites the stock count.
func (r *ProductRepository) SetStock(ctx context.Context, id string, stock int) error {
	tag, err := r.db.Exec(ctx, setStockSQL, id, stock)
	if err != nil {
		return fmt.Errorf("setting stock of %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// CountOrderedLines counts lines referencing the product in ordered carts.
func (r *ProductRepository) CountOrderedLines(ctx context.Context, productID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, countOrderedLinesSQL, productID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting ordered lines of %q: %w", productID, err)
	}
	return n, nil
}

// DeleteProduct removes a product. Remaining cart lines block the delete.
func (r *ProductRepository) DeleteProduct(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return catalog.ErrReferenced
		}
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
