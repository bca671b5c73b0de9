// Package access decides whether an authenticated principal may touch a
// cart, cart item or order by walking the ownership chain to a customer.
package access

import (
	"context"

	"github.com/xenking/kart-fulfillment/internal/domain/customer"
	"github.com/xenking/kart-fulfillment/internal/domain/failure"
)

var (
	// ErrForbidden is returned when the principal may not act on the target.
	ErrForbidden = failure.New(failure.Forbidden, "you do not have access to this resource")
	// ErrAdminOnly is returned by RequireAdmin for non-admin principals.
	ErrAdminOnly = failure.New(failure.Forbidden, "administrator role required")
	// ErrMissingTarget is returned when a request names no resource to check.
	ErrMissingTarget = failure.New(failure.BadRequest, "request does not identify a resource")
)

// Principal is the authenticated caller.
type Principal struct {
	ID   string
	Role customer.Role
}

// IsAdmin reports whether p is an administrator.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == customer.RoleAdmin
}

// Target is the resource a request acts on. It is one of CartTarget,
// CartItemTarget or OrderTarget.
type Target interface {
	target()
}

// CartTarget addresses a cart by id, or a cart about to be created for
// ClientID.
type CartTarget struct {
	ID       string
	ClientID string
}

// CartItemTarget addresses a cart item by id, or a cart the item is being
// added to.
type CartItemTarget struct {
	ID     string
	CartID string
}

// OrderTarget addresses an order by id, or a cart the order is being
// created from.
type OrderTarget struct {
	ID     string
	CartID string
}

func (CartTarget) target()     {}
func (CartItemTarget) target() {}
func (OrderTarget) target()    {}

// Graph resolves one hop of the ownership chain each.
type Graph interface {
	// CartOwner returns the customer owning the cart.
	CartOwner(ctx context.Context, cartID string) (string, error)
	// CartOfItem returns the cart holding the item.
	CartOfItem(ctx context.Context, itemID string) (string, error)
	// CartOfOrder returns the cart the order was created from.
	CartOfOrder(ctx context.Context, orderID string) (string, error)
}
