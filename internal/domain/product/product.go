package product

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-fulfillment/internal/domain/failure"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = failure.New(failure.NotFound, "product not found")

// Product is a catalog item. Stock is only ever changed through the
// inventory ledger's conditional writes.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Stock     int
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reader provides product lookups.
type Reader interface {
	GetByID(ctx context.Context, id string) (*Product, error)
}

// Repository is the catalog persistence façade.
type Repository interface {
	Reader
	List(ctx context.Context) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	// Update persists name, price and image. Stock is not written here.
	Update(ctx context.Context, p *Product) error
	// SetStock overwrites the stock count; used by administrative restocking.
	SetStock(ctx context.Context, id string, stock int) error
}
