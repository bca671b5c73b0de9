package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-fulfillment/internal/domain/cart"
	"github.com/xenking/kart-fulfillment/internal/domain/failure"
	"github.com/xenking/kart-fulfillment/internal/domain/inventory"
)

var (
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = failure.New(failure.NotFound, "order not found")
	// ErrAlreadyExists is returned when the cart is already bound to an order.
	ErrAlreadyExists = failure.New(failure.Conflict, "an order already exists for this cart")
	// ErrEmptyCart is returned when ordering a cart without items.
	ErrEmptyCart = failure.New(failure.BadRequest, "cart has no items")
	// ErrStockChanged is returned when a debit lost a race after the pre-check
	// passed. Nothing was written.
	ErrStockChanged = failure.New(failure.Conflict, "stock changed concurrently")
)

// InsufficientStockError is returned by the stock pre-check. It names the
// first product that cannot cover its line.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

// Unwrap classifies the error as a bad request.
func (e *InsufficientStockError) Unwrap() error { return failure.BadRequest }

// Order binds a cart to a placed order. Cart is populated by reads.
type Order struct {
	ID        string
	CartID    string
	CreatedAt time.Time
	UpdatedAt time.Time
	Cart      *cart.Cart
}

// Summary aggregates all orders.
type Summary struct {
	TotalOrders  int
	TotalRevenue decimal.Decimal
}

// Repository defines non-transactional order persistence.
type Repository interface {
	// GetByID returns the order with its cart, items and products.
	GetByID(ctx context.Context, id string) (*Order, error)
	// FindByCartID returns the order bound to cartID, or ErrNotFound.
	FindByCartID(ctx context.Context, cartID string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	// Reassign points the order at another cart. It returns ErrAlreadyExists
	// when that cart already has an order.
	Reassign(ctx context.Context, id, cartID string) error
	Summary(ctx context.Context) (Summary, error)
}

// Tx is the view of storage available inside an atomic unit.
type Tx interface {
	inventory.Ledger

	// LockCart locks the cart row until the unit ends and returns the cart
	// with items and products read under that lock. Cart line mutations take
	// the same lock, so the lines cannot change before the unit commits.
	LockCart(ctx context.Context, cartID string) (*cart.Cart, error)
	// Insert returns ErrAlreadyExists when the cart already has an order.
	Insert(ctx context.Context, o *Order) error
	// Delete removes the order only while it is still bound to cartID and
	// returns ErrNotFound when no row was removed.
	Delete(ctx context.Context, id, cartID string) error
}

// UnitOfWork runs fn in a single transaction. Any error returned by fn
// rolls back every write made through tx.
type UnitOfWork interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Events receives notifications after an order transaction commits.
type Events interface {
	OrderPlaced(ctx context.Context, o *Order) error
	OrderCancelled(ctx context.Context, o *Order) error
}

type nopEvents struct{}

func (nopEvents) OrderPlaced(context.Context, *Order) error    { return nil }
func (nopEvents) OrderCancelled(context.Context, *Order) error { return nil }
