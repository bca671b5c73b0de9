package access

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-fulfillment/internal/domain/customer"
)

// Resolver authorizes principals against targets.
type Resolver struct {
	graph Graph
}

// NewResolver creates a Resolver over the ownership graph.
func NewResolver(graph Graph) *Resolver {
	return &Resolver{graph: graph}
}

// RequireAdmin fails unless p is an administrator.
func RequireAdmin(p *Principal) error {
	if !p.IsAdmin() {
		return ErrAdminOnly
	}
	return nil
}

// Authorize grants administrators everything and clients only targets that
// resolve to themselves. A target that names nothing is a bad request; any
// other resolution failure, including a missing resource, is reported as
// ErrForbidden.
func (r *Resolver) Authorize(ctx context.Context, p *Principal, t Target) error {
	if p == nil {
		return ErrForbidden
	}
	switch p.Role {
	case customer.RoleAdmin:
		return nil
	case customer.RoleClient:
	default:
		return ErrForbidden
	}

	owners, err := r.owners(ctx, t)
	if err != nil {
		if errors.Is(err, ErrMissingTarget) {
			return err
		}
		zctx.From(ctx).Debug("Ownership resolution failed",
			zap.String("principal", p.ID),
			zap.Error(err),
		)
		return ErrForbidden
	}
	for _, owner := range owners {
		if owner != p.ID {
			return ErrForbidden
		}
	}
	return nil
}

// owners walks the chain from every identifier t carries to the owning
// customer ids. The body reference and the path identifier are both checked
// when both are present.
func (r *Resolver) owners(ctx context.Context, t Target) ([]string, error) {
	type hop func(context.Context, string) (string, error)
	var (
		out   []string
		steps []func() (string, error)
	)
	via := func(first hop, id string) func() (string, error) {
		return func() (string, error) {
			cartID, err := first(ctx, id)
			if err != nil {
				return "", err
			}
			return r.graph.CartOwner(ctx, cartID)
		}
	}
	cartOwner := func(id string) func() (string, error) {
		return func() (string, error) { return r.graph.CartOwner(ctx, id) }
	}

	switch t := t.(type) {
	case CartTarget:
		if t.ClientID != "" {
			out = append(out, t.ClientID)
		}
		if t.ID != "" {
			steps = append(steps, cartOwner(t.ID))
		}
	case CartItemTarget:
		if t.CartID != "" {
			steps = append(steps, cartOwner(t.CartID))
		}
		if t.ID != "" {
			steps = append(steps, via(r.graph.CartOfItem, t.ID))
		}
	case OrderTarget:
		if t.CartID != "" {
			steps = append(steps, cartOwner(t.CartID))
		}
		if t.ID != "" {
			steps = append(steps, via(r.graph.CartOfOrder, t.ID))
		}
	default:
		return nil, errors.Errorf("unsupported target %T", t)
	}
	if len(out) == 0 && len(steps) == 0 {
		return nil, ErrMissingTarget
	}

	for _, step := range steps {
		owner, err := step()
		if err != nil {
			return nil, err
		}
		out = append(out, owner)
	}
	return out, nil
}
