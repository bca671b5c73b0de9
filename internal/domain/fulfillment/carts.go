package fulfillment

import (
	"context"

	"github.com/xenking/kart-fulfillment/internal/domain/access"
	"github.com/xenking/kart-fulfillment/internal/domain/cart"
)

// OpenCart opens a cart for customerID, which must be the caller unless the
// caller is an administrator.
func (e *Engine) OpenCart(ctx context.Context, p *access.Principal, customerID string) (*cart.Cart, error) {
	if err := e.auth.Authorize(ctx, p, access.CartTarget{ClientID: customerID}); err != nil {
		return nil, err
	}
	return e.carts.OpenCart(ctx, customerID)
}

// MyOpenCart returns the caller's open cart, or nil when there is none.
func (e *Engine) MyOpenCart(ctx context.Context, p *access.Principal) (*cart.Cart, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	return e.carts.GetOpenCart(ctx, p.ID)
}

// GetCart returns a cart with items.
func (e *Engine) GetCart(ctx context.Context, p *access.Principal, id string) (*cart.Cart, error) {
	if err := e.auth.Authorize(ctx, p, access.CartTarget{ID: id}); err != nil {
		return nil, err
	}
	return e.carts.Get(ctx, id)
}

// ListCarts returns every cart. Administrators only.
func (e *Engine) ListCarts(ctx context.Context, p *access.Principal) ([]cart.Cart, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	return e.carts.List(ctx)
}

// DeleteCart removes a cart that has no order.
func (e *Engine) DeleteCart(ctx context.Context, p *access.Principal, id string) error {
	if err := e.auth.Authorize(ctx, p, access.CartTarget{ID: id}); err != nil {
		return err
	}
	return e.carts.DeleteCart(ctx, id)
}

// AddItem adds or merges a line into a cart.
func (e *Engine) AddItem(ctx context.Context, p *access.Principal, cartID, productID string, quantity int) (*cart.Item, error) {
	if err := e.auth.Authorize(ctx, p, access.CartItemTarget{CartID: cartID}); err != nil {
		return nil, err
	}
	return e.carts.AddOrMergeItem(ctx, cartID, productID, quantity)
}

// UpdateItem changes the quantity of a line.
func (e *Engine) UpdateItem(ctx context.Context, p *access.Principal, itemID string, quantity int) (*cart.Item, error) {
	if err := e.auth.Authorize(ctx, p, access.CartItemTarget{ID: itemID}); err != nil {
		return nil, err
	}
	return e.carts.UpdateItem(ctx, itemID, quantity)
}

// RemoveItem deletes a line.
func (e *Engine) RemoveItem(ctx context.Context, p *access.Principal, itemID string) (*cart.Item, error) {
	if err := e.auth.Authorize(ctx, p, access.CartItemTarget{ID: itemID}); err != nil {
		return nil, err
	}
	return e.carts.RemoveItem(ctx, itemID)
}

// RemoveAllItems empties a cart.
func (e *Engine) RemoveAllItems(ctx context.Context, p *access.Principal, cartID string) error {
	if err := e.auth.Authorize(ctx, p, access.CartItemTarget{CartID: cartID}); err != nil {
		return err
	}
	return e.carts.RemoveAllItems(ctx, cartID)
}

// GetItem returns a single line.
func (e *Engine) GetItem(ctx context.Context, p *access.Principal, itemID string) (*cart.Item, error) {
	if err := e.auth.Authorize(ctx, p, access.CartItemTarget{ID: itemID}); err != nil {
		return nil, err
	}
	return e.carts.GetItem(ctx, itemID)
}

// ListCartItems returns the lines of one cart.
func (e *Engine) ListCartItems(ctx context.Context, p *access.Principal, cartID string) ([]cart.Item, error) {
	if err := e.auth.Authorize(ctx, p, access.CartTarget{ID: cartID}); err != nil {
		return nil, err
	}
	return e.carts.ListItems(ctx, cartID)
}

// MyOpenItems returns the lines of the caller's unordered carts.
func (e *Engine) MyOpenItems(ctx context.Context, p *access.Principal) ([]cart.Item, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	return e.carts.ListOpenItemsByCustomer(ctx, p.ID)
}

// ListAllItems returns every line. Administrators only.
func (e *Engine) ListAllItems(ctx context.Context, p *access.Principal) ([]cart.Item, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	return e.carts.ListAllItems(ctx)
}
