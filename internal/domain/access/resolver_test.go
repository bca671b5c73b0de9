package access

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-fulfillment/internal/domain/customer"
	"github.com/xenking/kart-fulfillment/internal/domain/failure"
)

// --- Mock implementations ---

var errNoRow = errors.New("no row")

type mockGraph struct {
	cartOwner   map[string]string
	itemCart    map[string]string
	orderCart   map[string]string
	failLookups bool
}

func lookup(m map[string]string, id string, fail bool) (string, error) {
	if fail {
		return "", errors.New("connection refused")
	}
	v, ok := m[id]
	if !ok {
		return "", errNoRow
	}
	return v, nil
}

func (g *mockGraph) CartOwner(_ context.Context, cartID string) (string, error) {
	return lookup(g.cartOwner, cartID, g.failLookups)
}

func (g *mockGraph) CartOfItem(_ context.Context, itemID string) (string, error) {
	return lookup(g.itemCart, itemID, g.failLookups)
}

func (g *mockGraph) CartOfOrder(_ context.Context, orderID string) (string, error) {
	return lookup(g.orderCart, orderID, g.failLookups)
}

// --- Helpers ---

func newGraph() *mockGraph {
	return &mockGraph{
		cartOwner: map[string]string{"cart-a": "alice", "cart-b": "bob"},
		itemCart:  map[string]string{"item-a": "cart-a", "item-b": "cart-b", "item-orphan": "cart-gone"},
		orderCart: map[string]string{"order-a": "cart-a", "order-b": "cart-b"},
	}
}

var (
	alice = &Principal{ID: "alice", Role: customer.RoleClient}
	admin = &Principal{ID: "root", Role: customer.RoleAdmin}
)

// --- Tests ---

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name      string
		principal *Principal
		target    Target
		wantErr   error
	}{
		{name: "admin any cart", principal: admin, target: CartTarget{ID: "cart-b"}},
		{name: "admin missing resource", principal: admin, target: OrderTarget{ID: "nope"}},
		{name: "own cart", principal: alice, target: CartTarget{ID: "cart-a"}},
		{name: "foreign cart", principal: alice, target: CartTarget{ID: "cart-b"}, wantErr: ErrForbidden},
		{name: "missing cart", principal: alice, target: CartTarget{ID: "nope"}, wantErr: ErrForbidden},
		{name: "create own cart", principal: alice, target: CartTarget{ClientID: "alice"}},
		{name: "create cart for other", principal: alice, target: CartTarget{ClientID: "bob"}, wantErr: ErrForbidden},
		{name: "body and path disagree", principal: alice, target: CartTarget{ID: "cart-b", ClientID: "alice"}, wantErr: ErrForbidden},
		{name: "add item to own cart", principal: alice, target: CartItemTarget{CartID: "cart-a"}},
		{name: "add item to foreign cart", principal: alice, target: CartItemTarget{CartID: "cart-b"}, wantErr: ErrForbidden},
		{name: "own item", principal: alice, target: CartItemTarget{ID: "item-a"}},
		{name: "foreign item", principal: alice, target: CartItemTarget{ID: "item-b"}, wantErr: ErrForbidden},
		{name: "item with vanished cart", principal: alice, target: CartItemTarget{ID: "item-orphan"}, wantErr: ErrForbidden},
		{name: "move own item to foreign cart", principal: alice, target: CartItemTarget{ID: "item-a", CartID: "cart-b"}, wantErr: ErrForbidden},
		{name: "order own cart", principal: alice, target: OrderTarget{CartID: "cart-a"}},
		{name: "order foreign cart", principal: alice, target: OrderTarget{CartID: "cart-b"}, wantErr: ErrForbidden},
		{name: "own order", principal: alice, target: OrderTarget{ID: "order-a"}},
		{name: "foreign order", principal: alice, target: OrderTarget{ID: "order-b"}, wantErr: ErrForbidden},
		{name: "empty target", principal: alice, target: OrderTarget{}, wantErr: ErrMissingTarget},
		{name: "nil target", principal: alice, target: nil, wantErr: ErrForbidden},
		{name: "no principal", principal: nil, target: CartTarget{ID: "cart-a"}, wantErr: ErrForbidden},
		{name: "unknown role", principal: &Principal{ID: "alice", Role: "guest"}, target: CartTarget{ID: "cart-a"}, wantErr: ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(newGraph())

			err := r.Authorize(context.Background(), tt.principal, tt.target)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthorize_LookupFailureDenies(t *testing.T) {
	g := newGraph()
	g.failLookups = true
	r := NewResolver(g)

	err := r.Authorize(context.Background(), alice, CartTarget{ID: "cart-a"})
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, failure.Forbidden, failure.KindOf(err))
}

func TestRequireAdmin(t *testing.T) {
	require.NoError(t, RequireAdmin(admin))
	require.ErrorIs(t, RequireAdmin(alice), ErrAdminOnly)
	require.ErrorIs(t, RequireAdmin(nil), ErrAdminOnly)
	assert.Equal(t, failure.Forbidden, failure.KindOf(RequireAdmin(alice)))
}
