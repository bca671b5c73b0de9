package fulfillment

import (
	"context"

	"github.com/xenking/kart-fulfillment/internal/domain/access"
	"github.com/xenking/kart-fulfillment/internal/domain/catalog"
	"github.com/xenking/kart-fulfillment/internal/domain/order"
	"github.com/xenking/kart-fulfillment/internal/domain/product"
)

// CreateOrder converts a cart into an order.
func (e *Engine) CreateOrder(ctx context.Context, p *access.Principal, cartID string) (*order.Order, error) {
	if err := e.auth.Authorize(ctx, p, access.OrderTarget{CartID: cartID}); err != nil {
		return nil, err
	}
	return e.orders.CreateOrder(ctx, cartID)
}

// CancelOrder deletes an order and restocks its lines.
func (e *Engine) CancelOrder(ctx context.Context, p *access.Principal, id string) (*order.Order, error) {
	if err := e.auth.Authorize(ctx, p, access.OrderTarget{ID: id}); err != nil {
		return nil, err
	}
	return e.orders.CancelOrder(ctx, id)
}

// GetOrder returns an order with its cart.
func (e *Engine) GetOrder(ctx context.Context, p *access.Principal, id string) (*order.Order, error) {
	if err := e.auth.Authorize(ctx, p, access.OrderTarget{ID: id}); err != nil {
		return nil, err
	}
	return e.orders.Get(ctx, id)
}

// MyOrders returns the caller's orders.
func (e *Engine) MyOrders(ctx context.Context, p *access.Principal) ([]order.Order, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	return e.orders.ListByCustomer(ctx, p.ID)
}

// ListOrders returns every order. Administrators only.
func (e *Engine) ListOrders(ctx context.Context, p *access.Principal) ([]order.Order, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	return e.orders.List(ctx)
}

// UpdateOrder rebinds an order to another cart. Administrators only.
func (e *Engine) UpdateOrder(ctx context.Context, p *access.Principal, id, cartID string) (*order.Order, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	return e.orders.UpdateOrder(ctx, id, cartID)
}

// Summary returns order count and revenue. Administrators only.
func (e *Engine) Summary(ctx context.Context, p *access.Principal) (order.Summary, error) {
	if err := access.RequireAdmin(p); err != nil {
		return order.Summary{}, err
	}
	return e.orders.Summary(ctx)
}

// ListProducts returns the catalog. No principal is required.
func (e *Engine) ListProducts(ctx context.Context) ([]product.Product, error) {
	return e.catalog.List(ctx)
}

// GetProduct returns one product. No principal is required.
func (e *Engine) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	return e.catalog.Get(ctx, id)
}

// CreateProduct adds a product. Administrators only.
func (e *Engine) CreateProduct(ctx context.Context, p *access.Principal, in catalog.NewProduct) (*product.Product, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	return e.catalog.Create(ctx, in)
}

// UpdateProduct patches a product. Administrators only.
func (e *Engine) UpdateProduct(ctx context.Context, p *access.Principal, id string, patch catalog.Patch) (*product.Product, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	return e.catalog.Update(ctx, id, patch)
}

// DeleteProduct removes a product and purges it from open carts.
// Administrators only.
func (e *Engine) DeleteProduct(ctx context.Context, p *access.Principal, id string) error {
	if err := access.RequireAdmin(p); err != nil {
		return err
	}
	return e.catalog.Delete(ctx, id)
}
