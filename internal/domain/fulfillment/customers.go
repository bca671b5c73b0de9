package fulfillment

import (
	"context"

	"github.com/google/uuid"

	"github.com/xenking/kart-fulfillment/internal/domain/access"
	"github.com/xenking/kart-fulfillment/internal/domain/customer"
)

// GetCustomer returns a customer. Clients may only read themselves.
func (e *Engine) GetCustomer(ctx context.Context, p *access.Principal, id string) (*customer.Customer, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	if !p.IsAdmin() && p.ID != id {
		return nil, access.ErrForbidden
	}
	return e.customers.GetByID(ctx, id)
}

// ListCustomers returns every customer. Administrators only.
func (e *Engine) ListCustomers(ctx context.Context, p *access.Principal) ([]customer.Customer, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	return e.customers.List(ctx)
}

// CreateCustomer registers an account under a fresh id. The role defaults
// to client. Administrators only.
func (e *Engine) CreateCustomer(ctx context.Context, p *access.Principal, in customer.Customer) (*customer.Customer, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}

	c := &customer.Customer{
		ID:   uuid.New().String(),
		Name: in.Name,
		Mail: in.Mail,
		Role: in.Role,
	}
	if c.Role == "" {
		c.Role = customer.RoleClient
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := e.customers.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCustomer patches name, mail or role. Administrators only.
func (e *Engine) UpdateCustomer(ctx context.Context, p *access.Principal, id string, patch customer.Patch) (*customer.Customer, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}

	c, err := e.customers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Apply(patch)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := e.customers.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCustomer removes an account and its open carts. Customers with
// placed orders are kept. Administrators only.
func (e *Engine) DeleteCustomer(ctx context.Context, p *access.Principal, id string) error {
	if err := access.RequireAdmin(p); err != nil {
		return err
	}
	return e.customers.Delete(ctx, id)
}
