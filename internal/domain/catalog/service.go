package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/kart-fulfillment/internal/domain/product"
)

// Service administers the catalog.
type Service struct {
	products Repository
	uow      UnitOfWork
	images   ObjectStore
}

// NewService creates a catalog Service. images may be nil when uploads are
// not configured; requests carrying an image then fail.
func NewService(products Repository, uow UnitOfWork, images ObjectStore) *Service {
	return &Service{
		products: products,
		uow:      uow,
		images:   images,
	}
}

// Get returns a product.
func (s *Service) Get(ctx context.Context, id string) (*product.Product, error) {
	return s.products.GetByID(ctx, id)
}

// List returns all products.
func (s *Service) List(ctx context.Context) ([]product.Product, error) {
	return s.products.List(ctx)
}

// Create validates and stores a product, uploading its image first.
func (s *Service) Create(ctx context.Context, in NewProduct) (*product.Product, error) {
	switch {
	case in.Name == "":
		return nil, ErrEmptyName
	case in.Price.IsNegative():
		return nil, ErrNegativePrice
	case in.Stock < 0:
		return nil, ErrNegativeStock
	}

	p := &product.Product{
		ID:    uuid.New().String(),
		Name:  in.Name,
		Price: in.Price.Round(2),
		Stock: in.Stock,
	}
	if in.Image != nil {
		url, err := s.upload(ctx, *in.Image)
		if err != nil {
			return nil, err
		}
		p.ImageURL = url
	}

	if err := s.products.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// Update applies a patch. A stock value overwrites the current count.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*product.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, ErrEmptyName
		}
		p.Name = *patch.Name
	}
	if patch.Price != nil {
		if patch.Price.IsNegative() {
			return nil, ErrNegativePrice
		}
		p.Price = patch.Price.Round(2)
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return nil, ErrNegativeStock
	}
	if patch.Image != nil {
		url, err := s.upload(ctx, *patch.Image)
		if err != nil {
			return nil, err
		}
		p.ImageURL = url
	}

	err = s.uow.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Update(ctx, p); err != nil {
			return errors.Wrap(err, "update product")
		}
		if patch.Stock != nil {
			if err := tx.SetStock(ctx, id, *patch.Stock); err != nil {
				return errors.Wrap(err, "set stock")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	return p, nil
}

// Delete removes a product that no placed order references. Lines in open
// carts are dropped and those carts' totals recomputed in the same
// transaction as the product delete.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.products.GetByID(ctx, id); err != nil {
		return err
	}

	n, err := s.products.CountOrderedLines(ctx, id)
	if err != nil {
		return errors.Wrap(err, "count ordered lines")
	}
	if n > 0 {
		return ErrReferenced
	}

	var affected []string
	err = s.uow.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		cartIDs, err := tx.DeleteOpenCartLines(ctx, id)
		if err != nil {
			return errors.Wrap(err, "delete open cart lines")
		}
		for _, cartID := range cartIDs {
			if _, err := tx.RecomputeTotal(ctx, cartID); err != nil {
				return errors.Wrapf(err, "recompute cart %s", cartID)
			}
		}
		affected = cartIDs
		return tx.DeleteProduct(ctx, id)
	})
	if err != nil {
		if errors.Is(err, ErrReferenced) || errors.Is(err, product.ErrNotFound) {
			return err
		}
		return errors.Wrap(err, "delete product")
	}

	if len(affected) > 0 {
		zctx.From(ctx).Info("Purged product from open carts",
			zap.String("product_id", id),
			zap.Int("carts", len(affected)),
		)
	}
	return nil
}

func (s *Service) upload(ctx context.Context, obj Object) (string, error) {
	if err := obj.Validate(); err != nil {
		return "", err
	}
	if s.images == nil {
		return "", errors.New("object store is not configured")
	}
	url, err := s.images.Upload(ctx, ImageFolder, obj)
	if err != nil {
		return "", errors.Wrap(err, "upload image")
	}
	return url, nil
}
