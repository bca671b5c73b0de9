// Package fulfillment exposes the fulfillment core behind explicit
// authorization. Every operation takes the caller's principal, checks it
// with the ownership resolver, and then delegates to the domain services.
package fulfillment

import (
	"context"

	"github.com/xenking/kart-fulfillment/internal/domain/access"
	"github.com/xenking/kart-fulfillment/internal/domain/cart"
	"github.com/xenking/kart-fulfillment/internal/domain/catalog"
	"github.com/xenking/kart-fulfillment/internal/domain/customer"
	"github.com/xenking/kart-fulfillment/internal/domain/order"
	"github.com/xenking/kart-fulfillment/internal/domain/product"
)

// Carts is the cart aggregate and line item manager.
type Carts interface {
	OpenCart(ctx context.Context, customerID string) (*cart.Cart, error)
	GetOpenCart(ctx context.Context, customerID string) (*cart.Cart, error)
	Get(ctx context.Context, id string) (*cart.Cart, error)
	List(ctx context.Context) ([]cart.Cart, error)
	DeleteCart(ctx context.Context, id string) error

	AddOrMergeItem(ctx context.Context, cartID, productID string, quantity int) (*cart.Item, error)
	UpdateItem(ctx context.Context, itemID string, quantity int) (*cart.Item, error)
	RemoveItem(ctx context.Context, itemID string) (*cart.Item, error)
	RemoveAllItems(ctx context.Context, cartID string) error
	GetItem(ctx context.Context, itemID string) (*cart.Item, error)
	ListItems(ctx context.Context, cartID string) ([]cart.Item, error)
	ListAllItems(ctx context.Context) ([]cart.Item, error)
	ListOpenItemsByCustomer(ctx context.Context, customerID string) ([]cart.Item, error)
}

// Orders is the order transaction coordinator.
type Orders interface {
	CreateOrder(ctx context.Context, cartID string) (*order.Order, error)
	CancelOrder(ctx context.Context, id string) (*order.Order, error)
	UpdateOrder(ctx context.Context, id, cartID string) (*order.Order, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	List(ctx context.Context) ([]order.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]order.Order, error)
	Summary(ctx context.Context) (order.Summary, error)
}

// Catalog administers products.
type Catalog interface {
	Get(ctx context.Context, id string) (*product.Product, error)
	List(ctx context.Context) ([]product.Product, error)
	Create(ctx context.Context, in catalog.NewProduct) (*product.Product, error)
	Update(ctx context.Context, id string, patch catalog.Patch) (*product.Product, error)
	Delete(ctx context.Context, id string) error
}

// Authorizer decides principal access to targets.
type Authorizer interface {
	Authorize(ctx context.Context, p *access.Principal, t access.Target) error
}

// Engine is the guarded entry point used by transports.
type Engine struct {
	carts     Carts
	orders    Orders
	catalog   Catalog
	customers customer.Repository
	auth      Authorizer
}

// NewEngine creates an Engine.
func NewEngine(
	carts Carts,
	orders Orders,
	catalog Catalog,
	customers customer.Repository,
	auth Authorizer,
) *Engine {
	return &Engine{
		carts:     carts,
		orders:    orders,
		catalog:   catalog,
		customers: customers,
		auth:      auth,
	}
}

func authenticated(p *access.Principal) error {
	if p == nil {
		return access.ErrForbidden
	}
	return nil
}
