package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-fulfillment/internal/domain/customer"
	"github.com/xenking/kart-fulfillment/internal/domain/product"
)

// Service implements the cart aggregate and the line item manager.
type Service struct {
	carts     Repository
	uow       UnitOfWork
	products  product.Reader
	customers customer.Reader
}

// NewService creates a cart Service. Line mutations run through uow.
func NewService(carts Repository, uow UnitOfWork, products product.Reader, customers customer.Reader) *Service {
	return &Service{
		carts:     carts,
		uow:       uow,
		products:  products,
		customers: customers,
	}
}

// OpenCart creates an empty cart for the customer.
func (s *Service) OpenCart(ctx context.Context, customerID string) (*Cart, error) {
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, errors.Wrap(err, "get customer")
	}

	switch _, err := s.carts.FindOpen(ctx, customerID); {
	case err == nil:
		return nil, ErrAlreadyOpen
	case !errors.Is(err, ErrNotFound):
		return nil, errors.Wrap(err, "find open cart")
	}

	c := &Cart{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Total:      decimal.Zero,
		Items:      []Item{},
	}
	if err := s.carts.CreateOpen(ctx, c); err != nil {
		if errors.Is(err, ErrAlreadyOpen) {
			return nil, ErrAlreadyOpen
		}
		return nil, errors.Wrap(err, "create cart")
	}
	return c, nil
}

// GetOpenCart returns the customer's open cart with items and products,
// or nil when there is none.
func (s *Service) GetOpenCart(ctx context.Context, customerID string) (*Cart, error) {
	c, err := s.carts.FindOpen(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find open cart")
	}

	items, err := s.carts.ListItems(ctx, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list items")
	}
	c.Items = items
	return c, nil
}

// Get returns a cart with its items and products.
func (s *Service) Get(ctx context.Context, id string) (*Cart, error) {
	return s.carts.GetWithItems(ctx, id)
}

// List returns every cart without items.
func (s *Service) List(ctx context.Context) ([]Cart, error) {
	return s.carts.List(ctx)
}

// RecomputeTotal re-sums the cart's line totals and persists the result.
func (s *Service) RecomputeTotal(ctx context.Context, cartID string) (decimal.Decimal, error) {
	total, err := s.carts.RecomputeTotal(ctx, cartID)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "recompute total of cart %s", cartID)
	}
	return total, nil
}

// DeleteCart removes a cart that has not been converted into an order.
func (s *Service) DeleteCart(ctx context.Context, id string) error {
	ordered, err := s.carts.IsOrdered(ctx, id)
	if err != nil {
		return errors.Wrap(err, "check order")
	}
	if ordered {
		return ErrOrdered
	}
	return s.carts.Delete(ctx, id)
}
