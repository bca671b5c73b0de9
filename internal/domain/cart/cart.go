package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-fulfillment/internal/domain/failure"
	"github.com/xenking/kart-fulfillment/internal/domain/product"
)

var (
	// ErrNotFound is returned when a cart does not exist.
	ErrNotFound = failure.New(failure.NotFound, "cart not found")
	// ErrItemNotFound is returned when a cart item does not exist.
	ErrItemNotFound = failure.New(failure.NotFound, "cart item not found")
	// ErrAlreadyOpen is returned when the customer already has an open cart.
	ErrAlreadyOpen = failure.New(failure.Conflict, "customer already has an open cart")
	// ErrOrdered is returned when a cart that became an order is modified or deleted.
	ErrOrdered = failure.New(failure.Conflict, "cart has already been converted to an order")
	// ErrItemExists is returned when a concurrent request created the same
	// (cart, product) line first.
	ErrItemExists = failure.New(failure.Conflict, "product is already in the cart")
	// ErrCustomerNotFound is returned when opening a cart for an unknown customer.
	ErrCustomerNotFound = failure.New(failure.BadRequest, "customer not found")
	// ErrInvalidQuantity is returned for non-positive quantities.
	ErrInvalidQuantity = failure.New(failure.BadRequest, "quantity must be greater than 0")
	// ErrInsufficientStock is returned when the live stock cannot cover a line.
	ErrInsufficientStock = failure.New(failure.BadRequest, "insufficient stock")
)

// Cart is a customer's shopping cart. Total is the denormalized sum of the
// line totals and is written only by RecomputeTotal.
type Cart struct {
	ID         string
	CustomerID string
	Total      decimal.Decimal
	Items      []Item
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Item is a cart line. Total is Quantity × unit price at the time of write.
type Item struct {
	ID        string
	CartID    string
	ProductID string
	Quantity  int
	Total     decimal.Decimal
	// Product is populated by reads that join the catalog.
	Product   *product.Product
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineTotal prices quantity units of p.
func LineTotal(p *product.Product, quantity int) decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// TotalStore recomputes a cart's cached total from its current line items
// and persists it in one step, returning the new total.
type TotalStore interface {
	RecomputeTotal(ctx context.Context, cartID string) (decimal.Decimal, error)
}

// Reader provides cart lookups.
type Reader interface {
	GetByID(ctx context.Context, id string) (*Cart, error)
	// GetWithItems returns the cart with its items and their products.
	GetWithItems(ctx context.Context, id string) (*Cart, error)
}

// Repository defines persistence for carts and their line items.
type Repository interface {
	Reader
	TotalStore

	// CreateOpen inserts c unless its customer already has an open cart, in
	// which case it returns ErrAlreadyOpen.
	CreateOpen(ctx context.Context, c *Cart) error
	// FindOpen returns the customer's open cart without items, or ErrNotFound.
	FindOpen(ctx context.Context, customerID string) (*Cart, error)
	List(ctx context.Context) ([]Cart, error)
	IsOrdered(ctx context.Context, cartID string) (bool, error)
	// Delete removes the cart and its items. It returns ErrNotFound or
	// ErrOrdered when an order references the cart.
	Delete(ctx context.Context, id string) error

	GetItem(ctx context.Context, id string) (*Item, error)
	// FindItem returns the line for (cartID, productID), or ErrItemNotFound.
	FindItem(ctx context.Context, cartID, productID string) (*Item, error)
	ListItems(ctx context.Context, cartID string) ([]Item, error)
	ListAllItems(ctx context.Context) ([]Item, error)
	// ListOpenItemsByCustomer returns the lines of carts the customer owns
	// that have no order.
	ListOpenItemsByCustomer(ctx context.Context, customerID string) ([]Item, error)
	CreateItem(ctx context.Context, it *Item) error
	// UpdateItem persists Quantity and Total.
	UpdateItem(ctx context.Context, it *Item) error
	DeleteItem(ctx context.Context, id string) error
	DeleteItems(ctx context.Context, cartID string) error
}

// Tx is the view of storage available inside an atomic line mutation.
type Tx interface {
	TotalStore

	// LockOpen locks the cart row until the unit ends, then fails with
	// ErrNotFound or ErrOrdered. Checkout takes the same lock, so a cart
	// that passed LockOpen cannot become an order before the unit commits.
	LockOpen(ctx context.Context, cartID string) error
	GetItem(ctx context.Context, id string) (*Item, error)
	FindItem(ctx context.Context, cartID, productID string) (*Item, error)
	CreateItem(ctx context.Context, it *Item) error
	UpdateItem(ctx context.Context, it *Item) error
	DeleteItem(ctx context.Context, id string) error
	DeleteItems(ctx context.Context, cartID string) error
}

// UnitOfWork runs fn atomically. Any error returned by fn rolls back all
// writes made through tx.
type UnitOfWork interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
