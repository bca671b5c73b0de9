package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// AddOrMergeItem adds quantity units of a product to the cart. When the
// product already has a line, the quantities are merged and the live stock
// is checked against the merged quantity.
func (s *Service) AddOrMergeItem(ctx context.Context, cartID, productID string, quantity int) (*Item, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	var it *Item
	err = s.uow.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockOpen(ctx, cartID); err != nil {
			return err
		}
		if p.Stock < quantity {
			return errors.Wrapf(ErrInsufficientStock, "%s: available %d, requested %d", p.Name, p.Stock, quantity)
		}

		existing, err := tx.FindItem(ctx, cartID, productID)
		switch {
		case err == nil:
			merged := existing.Quantity + quantity
			if p.Stock < merged {
				return errors.Wrapf(ErrInsufficientStock, "%s: available %d, requested %d in total", p.Name, p.Stock, merged)
			}
			existing.Quantity = merged
			existing.Total = LineTotal(p, merged)
			if err := tx.UpdateItem(ctx, existing); err != nil {
				return errors.Wrap(err, "update item")
			}
			it = existing
		case errors.Is(err, ErrItemNotFound):
			it = &Item{
				ID:        uuid.New().String(),
				CartID:    cartID,
				ProductID: productID,
				Quantity:  quantity,
				Total:     LineTotal(p, quantity),
			}
			if err := tx.CreateItem(ctx, it); err != nil {
				if errors.Is(err, ErrItemExists) {
					return ErrItemExists
				}
				return errors.Wrap(err, "create item")
			}
		default:
			return errors.Wrap(err, "find item")
		}
		return recomputeTotal(ctx, tx, cartID)
	})
	if err != nil {
		return nil, err
	}
	it.Product = p
	return it, nil
}

// UpdateItem replaces the quantity of a line, re-reading the product's
// current price and stock.
func (s *Service) UpdateItem(ctx context.Context, itemID string, quantity int) (*Item, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	current, err := s.carts.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, current.ProductID)
	if err != nil {
		return nil, err
	}

	var it *Item
	err = s.uow.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockOpen(ctx, current.CartID); err != nil {
			return err
		}
		var err error
		if it, err = tx.GetItem(ctx, itemID); err != nil {
			return err
		}
		if p.Stock < quantity {
			return errors.Wrapf(ErrInsufficientStock, "%s: available %d, requested %d", p.Name, p.Stock, quantity)
		}

		it.Quantity = quantity
		it.Total = LineTotal(p, quantity)
		if err := tx.UpdateItem(ctx, it); err != nil {
			return errors.Wrap(err, "update item")
		}
		return recomputeTotal(ctx, tx, it.CartID)
	})
	if err != nil {
		return nil, err
	}
	it.Product = p
	return it, nil
}

// RemoveItem deletes a line and recomputes the cart total.
func (s *Service) RemoveItem(ctx context.Context, itemID string) (*Item, error) {
	it, err := s.carts.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	err = s.uow.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockOpen(ctx, it.CartID); err != nil {
			return err
		}
		if err := tx.DeleteItem(ctx, itemID); err != nil {
			return err
		}
		return recomputeTotal(ctx, tx, it.CartID)
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

// RemoveAllItems empties the cart.
func (s *Service) RemoveAllItems(ctx context.Context, cartID string) error {
	return s.uow.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockOpen(ctx, cartID); err != nil {
			return err
		}
		if err := tx.DeleteItems(ctx, cartID); err != nil {
			return errors.Wrap(err, "delete items")
		}
		return recomputeTotal(ctx, tx, cartID)
	})
}

func recomputeTotal(ctx context.Context, tx TotalStore, cartID string) error {
	if _, err := tx.RecomputeTotal(ctx, cartID); err != nil {
		return errors.Wrapf(err, "recompute total of cart %s", cartID)
	}
	return nil
}

// GetItem returns a single line with its product.
func (s *Service) GetItem(ctx context.Context, itemID string) (*Item, error) {
	return s.carts.GetItem(ctx, itemID)
}

// ListItems returns the lines of a cart.
func (s *Service) ListItems(ctx context.Context, cartID string) ([]Item, error) {
	if _, err := s.carts.GetByID(ctx, cartID); err != nil {
		return nil, err
	}
	return s.carts.ListItems(ctx, cartID)
}

// ListAllItems returns every line across all carts.
func (s *Service) ListAllItems(ctx context.Context) ([]Item, error) {
	return s.carts.ListAllItems(ctx)
}

// ListOpenItemsByCustomer returns the lines of the customer's unordered carts.
func (s *Service) ListOpenItemsByCustomer(ctx context.Context, customerID string) ([]Item, error) {
	return s.carts.ListOpenItemsByCustomer(ctx, customerID)
}
