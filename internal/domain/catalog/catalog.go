// Package catalog implements product administration, including the delete
// cascade that keeps open carts consistent with the catalog.
package catalog

import (
	"context"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-fulfillment/internal/domain/cart"
	"github.com/xenking/kart-fulfillment/internal/domain/failure"
	"github.com/xenking/kart-fulfillment/internal/domain/product"
)

// MaxImageSize is the largest accepted product image.
const MaxImageSize = 5 << 20

// ImageFolder is the object store folder for product images.
const ImageFolder = "products"

var (
	// ErrReferenced is returned when deleting a product that placed orders still reference.
	ErrReferenced = failure.New(failure.Conflict, "product is referenced by placed orders")
	// ErrInvalidImage is returned for uploads that are not images.
	ErrInvalidImage = failure.New(failure.BadRequest, "only image files are allowed")
	// ErrImageTooLarge is returned for images above MaxImageSize.
	ErrImageTooLarge = failure.New(failure.BadRequest, "image must not exceed 5 MiB")
	// ErrEmptyName is returned when a product has no name.
	ErrEmptyName = failure.New(failure.BadRequest, "name is required")
	// ErrNegativePrice is returned for prices below zero.
	ErrNegativePrice = failure.New(failure.BadRequest, "price must not be negative")
	// ErrNegativeStock is returned for stock below zero.
	ErrNegativeStock = failure.New(failure.BadRequest, "stock must not be negative")
)

// Object is a binary asset to upload.
type Object struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Validate checks that o is an acceptable product image.
func (o Object) Validate() error {
	if !strings.HasPrefix(o.ContentType, "image/") {
		return ErrInvalidImage
	}
	if o.Size > MaxImageSize {
		return ErrImageTooLarge
	}
	return nil
}

// ObjectStore uploads assets and returns their public URL.
type ObjectStore interface {
	Upload(ctx context.Context, folder string, obj Object) (string, error)
}

// Repository is the product façade plus the reference check used by Delete.
type Repository interface {
	product.Repository
	// CountOrderedLines counts lines referencing the product in carts that
	// have an order.
	CountOrderedLines(ctx context.Context, productID string) (int, error)
}

// Tx is the view of storage available inside a catalog unit.
type Tx interface {
	cart.TotalStore

	// Update persists name, price and image.
	Update(ctx context.Context, p *product.Product) error
	SetStock(ctx context.Context, id string, stock int) error

	// DeleteOpenCartLines removes the product's lines from carts without an
	// order and returns the affected cart ids.
	DeleteOpenCartLines(ctx context.Context, productID string) ([]string, error)
	// DeleteProduct returns product.ErrNotFound or ErrReferenced.
	DeleteProduct(ctx context.Context, id string) error
}

// UnitOfWork runs fn in a single transaction.
type UnitOfWork interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// NewProduct is the input of Create.
type NewProduct struct {
	Name  string
	Price decimal.Decimal
	Stock int
	Image *Object
}

// Patch is the input of Update. Nil fields are left unchanged.
type Patch struct {
	Name  *string
	Price *decimal.Decimal
	Stock *int
	Image *Object
}
