package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/kart-fulfillment/internal/domain/customer"
)

const (
	customerColumns = `id, name, mail, role, created_at, updated_at`

	listCustomersSQL = `SELECT ` + customerColumns + ` FROM customers ORDER BY created_at, id`

	getCustomerByIDSQL = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	insertCustomerSQL = `INSERT INTO customers (id, name, mail, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	upsertCustomerSQL = `INSERT INTO customers (id, name, mail, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, mail = EXCLUDED.mail, role = EXCLUDED.role, updated_at = now()
		RETURNING created_at, updated_at`

	updateCustomerSQL = `UPDATE customers SET name = $2, mail = $3, role = $4, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`

	deleteCustomerSQL = `DELETE FROM customers WHERE id = $1`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	db DBTX
}

// NewCustomerRepository returns a CustomerRepository over db.
func NewCustomerRepository(db DBTX) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// List returns every customer.
func (r *CustomerRepository) List(ctx context.Context) ([]customer.Customer, error) {
	rows, err := r.db.Query(ctx, listCustomersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	return pgx.CollectRows(rows, scanCustomer)
}

// GetByID returns a single customer.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	rows, err := r.db.Query(ctx, getCustomerByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}
	return &c, nil
}

// Create inserts a customer.
func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	err := r.db.QueryRow(ctx, insertCustomerSQL, c.ID, c.Name, c.Mail, string(c.Role)).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return customer.ErrMailTaken
		}
		return fmt.Errorf("creating customer %q: %w", c.ID, err)
	}
	return nil
}

// Update overwrites name, mail and role.
func (r *CustomerRepository) Update(ctx context.Context, c *customer.Customer) error {
	err := r.db.QueryRow(ctx, updateCustomerSQL, c.ID, c.Name, c.Mail, string(c.Role)).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return customer.ErrNotFound
		}
		if pgCode(err) == uniqueViolation {
			return customer.ErrMailTaken
		}
		return fmt.Errorf("updating customer %q: %w", c.ID, err)
	}
	return nil
}

// Delete removes the customer. Carts cascade, but an ordered cart blocks
// the delete through the orders foreign key.
func (r *CustomerRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteCustomerSQL, id)
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return customer.ErrHasOrders
		}
		return fmt.Errorf("deleting customer %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrNotFound
	}
	return nil
}

// Upsert inserts or overwrites a customer. Used by seeding.
func (r *CustomerRepository) Upsert(ctx context.Context, c *customer.Customer) error {
	err := r.db.QueryRow(ctx, upsertCustomerSQL, c.ID, c.Name, c.Mail, string(c.Role)).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting customer %q: %w", c.ID, err)
	}
	return nil
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var (
		c    customer.Customer
		role string
	)
	err := row.Scan(&c.ID, &c.Name, &c.Mail, &role, &c.CreatedAt, &c.UpdatedAt)
	c.Role = customer.Role(role)
	return c, err
}
