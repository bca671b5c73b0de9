package cart

import (
	"context"
	"sort"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-fulfillment/internal/domain/customer"
	"github.com/xenking/kart-fulfillment/internal/domain/failure"
	"github.com/xenking/kart-fulfillment/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID map[string]*product.Product
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type mockCustomerRepo struct {
	byID map[string]*customer.Customer
	err  error
}

func (m *mockCustomerRepo) GetByID(_ context.Context, id string) (*customer.Customer, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.byID[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return c, nil
}

type mockCartRepo struct {
	carts   map[string]*Cart
	items   map[string]*Item
	ordered map[string]bool

	recomputes   int
	recomputeErr error
	createErr    error
	// locked records every cart LockOpen was called for, in order.
	locked []string
}

func newCartRepo() *mockCartRepo {
	return &mockCartRepo{
		carts:   map[string]*Cart{},
		items:   map[string]*Item{},
		ordered: map[string]bool{},
	}
}

func (m *mockCartRepo) GetByID(_ context.Context, id string) (*Cart, error) {
	c, ok := m.carts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCartRepo) GetWithItems(ctx context.Context, id string) (*Cart, error) {
	c, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Items, _ = m.ListItems(ctx, id)
	return c, nil
}

// Atomic runs fn against the repository itself and restores the lines and
// totals when fn fails.
func (m *mockCartRepo) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	items := make(map[string]*Item, len(m.items))
	for id, it := range m.items {
		cp := *it
		items[id] = &cp
	}
	totals := make(map[string]decimal.Decimal, len(m.carts))
	for id, c := range m.carts {
		totals[id] = c.Total
	}

	if err := fn(ctx, m); err != nil {
		m.items = items
		for id, total := range totals {
			if c, ok := m.carts[id]; ok {
				c.Total = total
			}
		}
		return err
	}
	return nil
}

func (m *mockCartRepo) LockOpen(_ context.Context, cartID string) error {
	m.locked = append(m.locked, cartID)
	if _, ok := m.carts[cartID]; !ok {
		return ErrNotFound
	}
	if m.ordered[cartID] {
		return ErrOrdered
	}
	return nil
}

func (m *mockCartRepo) RecomputeTotal(_ context.Context, cartID string) (decimal.Decimal, error) {
	if m.recomputeErr != nil {
		return decimal.Zero, m.recomputeErr
	}
	c, ok := m.carts[cartID]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	m.recomputes++
	total := decimal.Zero
	for _, it := range m.items {
		if it.CartID == cartID {
			total = total.Add(it.Total)
		}
	}
	c.Total = total
	return total, nil
}

func (m *mockCartRepo) CreateOpen(_ context.Context, c *Cart) error {
	if m.createErr != nil {
		return m.createErr
	}
	cp := *c
	m.carts[c.ID] = &cp
	return nil
}

func (m *mockCartRepo) FindOpen(_ context.Context, customerID string) (*Cart, error) {
	for _, c := range m.carts {
		if c.CustomerID == customerID && !m.ordered[c.ID] {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockCartRepo) List(_ context.Context) ([]Cart, error) {
	out := make([]Cart, 0, len(m.carts))
	for _, c := range m.carts {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockCartRepo) IsOrdered(_ context.Context, cartID string) (bool, error) {
	return m.ordered[cartID], nil
}

func (m *mockCartRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.carts[id]; !ok {
		return ErrNotFound
	}
	delete(m.carts, id)
	for itemID, it := range m.items {
		if it.CartID == id {
			delete(m.items, itemID)
		}
	}
	return nil
}

func (m *mockCartRepo) GetItem(_ context.Context, id string) (*Item, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *mockCartRepo) FindItem(_ context.Context, cartID, productID string) (*Item, error) {
	for _, it := range m.items {
		if it.CartID == cartID && it.ProductID == productID {
			cp := *it
			return &cp, nil
		}
	}
	return nil, ErrItemNotFound
}

func (m *mockCartRepo) ListItems(_ context.Context, cartID string) ([]Item, error) {
	var out []Item
	for _, it := range m.items {
		if it.CartID == cartID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (m *mockCartRepo) ListAllItems(_ context.Context) ([]Item, error) {
	out := make([]Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, *it)
	}
	return out, nil
}

func (m *mockCartRepo) ListOpenItemsByCustomer(_ context.Context, customerID string) ([]Item, error) {
	var out []Item
	for _, it := range m.items {
		c := m.carts[it.CartID]
		if c != nil && c.CustomerID == customerID && !m.ordered[c.ID] {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (m *mockCartRepo) CreateItem(_ context.Context, it *Item) error {
	cp := *it
	m.items[it.ID] = &cp
	return nil
}

func (m *mockCartRepo) UpdateItem(_ context.Context, it *Item) error {
	stored, ok := m.items[it.ID]
	if !ok {
		return ErrItemNotFound
	}
	stored.Quantity = it.Quantity
	stored.Total = it.Total
	return nil
}

func (m *mockCartRepo) DeleteItem(_ context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return ErrItemNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockCartRepo) DeleteItems(_ context.Context, cartID string) error {
	for id, it := range m.items {
		if it.CartID == cartID {
			delete(m.items, id)
		}
	}
	return nil
}

// --- Helpers ---

type fixture struct {
	svc      *Service
	carts    *mockCartRepo
	products *mockProductRepo
}

func newFixture(products ...product.Product) *fixture {
	byID := make(map[string]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	pr := &mockProductRepo{byID: byID}
	cr := newCartRepo()
	customers := &mockCustomerRepo{byID: map[string]*customer.Customer{
		"alice": {ID: "alice", Role: customer.RoleClient},
		"bob":   {ID: "bob", Role: customer.RoleClient},
	}}
	return &fixture{
		svc:      NewService(cr, cr, pr, customers),
		carts:    cr,
		products: pr,
	}
}

func newProduct(id string, price string, stock int) product.Product {
	return product.Product{
		ID:    id,
		Name:  "product " + id,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
}

func (f *fixture) openCart(t *testing.T, customerID string) *Cart {
	t.Helper()
	c, err := f.svc.OpenCart(context.Background(), customerID)
	require.NoError(t, err)
	return c
}

func (f *fixture) cartTotal(t *testing.T, cartID string) decimal.Decimal {
	t.Helper()
	return f.carts.carts[cartID].Total
}

// sumOfLines is the source-of-truth total for a cart.
func (f *fixture) sumOfLines(cartID string) decimal.Decimal {
	total := decimal.Zero
	for _, it := range f.carts.items {
		if it.CartID == cartID {
			total = total.Add(it.Total)
		}
	}
	return total
}

// --- Tests ---

func TestOpenCart(t *testing.T) {
	f := newFixture()

	c := f.openCart(t, "alice")
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "alice", c.CustomerID)
	assert.True(t, c.Total.IsZero())
	assert.Empty(t, c.Items)
}

func TestOpenCart_UnknownCustomer(t *testing.T) {
	f := newFixture()

	_, err := f.svc.OpenCart(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrCustomerNotFound)
	assert.Equal(t, failure.BadRequest, failure.KindOf(err))
}

func TestOpenCart_CustomerLookupFails(t *testing.T) {
	f := newFixture()
	f.svc.customers = &mockCustomerRepo{err: errors.New("connection reset")}

	_, err := f.svc.OpenCart(context.Background(), "alice")
	require.Error(t, err)
	assert.Equal(t, failure.Kind(0), failure.KindOf(err))
}

func TestOpenCart_AlreadyOpen(t *testing.T) {
	f := newFixture()
	f.openCart(t, "alice")

	_, err := f.svc.OpenCart(context.Background(), "alice")
	require.ErrorIs(t, err, ErrAlreadyOpen)
	assert.Equal(t, failure.Conflict, failure.KindOf(err))
}

func TestOpenCart_StorageRejectsSecondOpenCart(t *testing.T) {
	f := newFixture()
	f.carts.createErr = errors.Wrap(ErrAlreadyOpen, "advisory lock")

	_, err := f.svc.OpenCart(context.Background(), "alice")
	require.ErrorIs(t, err, ErrAlreadyOpen)
}

func TestOpenCart_AfterOrder(t *testing.T) {
	f := newFixture()
	c := f.openCart(t, "alice")
	f.carts.ordered[c.ID] = true

	next := f.openCart(t, "alice")
	assert.NotEqual(t, c.ID, next.ID)
}

func TestGetOpenCart(t *testing.T) {
	f := newFixture(newProduct("p1", "10.00", 5))
	ctx := context.Background()

	got, err := f.svc.GetOpenCart(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)

	c := f.openCart(t, "alice")
	_, err = f.svc.AddOrMergeItem(ctx, c.ID, "p1", 2)
	require.NoError(t, err)

	got, err = f.svc.GetOpenCart(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)
	require.Len(t, got.Items, 1)
	assert.True(t, decimal.RequireFromString("20.00").Equal(got.Total))
}

func TestDeleteCart(t *testing.T) {
	f := newFixture(newProduct("p1", "10.00", 5))
	ctx := context.Background()
	c := f.openCart(t, "alice")
	_, err := f.svc.AddOrMergeItem(ctx, c.ID, "p1", 1)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteCart(ctx, c.ID))
	assert.Empty(t, f.carts.carts)
	assert.Empty(t, f.carts.items)

	err = f.svc.DeleteCart(ctx, c.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteCart_Ordered(t *testing.T) {
	f := newFixture()
	c := f.openCart(t, "alice")
	f.carts.ordered[c.ID] = true

	err := f.svc.DeleteCart(context.Background(), c.ID)
	require.ErrorIs(t, err, ErrOrdered)
	assert.Contains(t, f.carts.carts, c.ID)
}

func TestAddOrMergeItem(t *testing.T) {
	f := newFixture(newProduct("p1", "25.00", 10))
	c := f.openCart(t, "alice")

	it, err := f.svc.AddOrMergeItem(context.Background(), c.ID, "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, it.Quantity)
	assert.True(t, decimal.RequireFromString("75.00").Equal(it.Total))
	require.NotNil(t, it.Product)
	assert.Equal(t, "p1", it.Product.ID)
	assert.True(t, decimal.RequireFromString("75.00").Equal(f.cartTotal(t, c.ID)))
}

func TestAddOrMergeItem_Merges(t *testing.T) {
	f := newFixture(newProduct("p1", "25.00", 10))
	ctx := context.Background()
	c := f.openCart(t, "alice")

	first, err := f.svc.AddOrMergeItem(ctx, c.ID, "p1", 2)
	require.NoError(t, err)
	second, err := f.svc.AddOrMergeItem(ctx, c.ID, "p1", 3)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Quantity)
	assert.Len(t, f.carts.items, 1)
	assert.True(t, decimal.RequireFromString("125.00").Equal(f.cartTotal(t, c.ID)))
}

func TestAddOrMergeItem_MergedQuantityExceedsStock(t *testing.T) {
	f := newFixture(newProduct("p1", "25.00", 4))
	ctx := context.Background()
	c := f.openCart(t, "alice")

	_, err := f.svc.AddOrMergeItem(ctx, c.ID, "p1", 3)
	require.NoError(t, err)
	_, err = f.svc.AddOrMergeItem(ctx, c.ID, "p1", 2)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, failure.BadRequest, failure.KindOf(err))

	it, err := f.carts.FindItem(ctx, c.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, it.Quantity)
}

func TestAddOrMergeItem_Errors(t *testing.T) {
	tests := []struct {
		name      string
		cartID    string
		productID string
		quantity  int
		ordered   bool
		wantErr   error
	}{
		{name: "zero quantity", productID: "p1", quantity: 0, wantErr: ErrInvalidQuantity},
		{name: "negative quantity", productID: "p1", quantity: -1, wantErr: ErrInvalidQuantity},
		{name: "unknown product", productID: "nope", quantity: 1, wantErr: product.ErrNotFound},
		{name: "unknown cart", cartID: "nope", productID: "p1", quantity: 1, wantErr: ErrNotFound},
		{name: "not enough stock", productID: "p1", quantity: 6, wantErr: ErrInsufficientStock},
		{name: "ordered cart", productID: "p1", quantity: 1, ordered: true, wantErr: ErrOrdered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(newProduct("p1", "10.00", 5))
			c := f.openCart(t, "alice")
			f.carts.ordered[c.ID] = tt.ordered
			cartID := c.ID
			if tt.cartID != "" {
				cartID = tt.cartID
			}

			_, err := f.svc.AddOrMergeItem(context.Background(), cartID, tt.productID, tt.quantity)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.carts.items)
		})
	}
}

func TestUpdateItem_RecomputesFromSource(t *testing.T) {
	f := newFixture(
		newProduct("a", "25.00", 10),
		newProduct("b", "50.00", 10),
	)
	ctx := context.Background()
	c := f.openCart(t, "alice")

	_, err := f.svc.AddOrMergeItem(ctx, c.ID, "a", 3)
	require.NoError(t, err)
	b, err := f.svc.AddOrMergeItem(ctx, c.ID, "b", 2)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("175.00").Equal(f.cartTotal(t, c.ID)))

	updated, err := f.svc.UpdateItem(ctx, b.ID, 1)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("50.00").Equal(updated.Total))
	assert.True(t, decimal.RequireFromString("125.00").Equal(f.cartTotal(t, c.ID)))
}

func TestUpdateItem_UsesCurrentPrice(t *testing.T) {
	f := newFixture(newProduct("a", "10.00", 10))
	ctx := context.Background()
	c := f.openCart(t, "alice")
	it, err := f.svc.AddOrMergeItem(ctx, c.ID, "a", 2)
	require.NoError(t, err)

	f.products.byID["a"].Price = decimal.RequireFromString("12.50")

	updated, err := f.svc.UpdateItem(ctx, it.ID, 2)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("25.00").Equal(updated.Total))
	assert.True(t, decimal.RequireFromString("25.00").Equal(f.cartTotal(t, c.ID)))
}

func TestUpdateItem_Errors(t *testing.T) {
	f := newFixture(newProduct("a", "10.00", 3))
	ctx := context.Background()
	c := f.openCart(t, "alice")
	it, err := f.svc.AddOrMergeItem(ctx, c.ID, "a", 1)
	require.NoError(t, err)

	_, err = f.svc.UpdateItem(ctx, it.ID, 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.svc.UpdateItem(ctx, "missing", 1)
	require.ErrorIs(t, err, ErrItemNotFound)

	_, err = f.svc.UpdateItem(ctx, it.ID, 4)
	require.ErrorIs(t, err, ErrInsufficientStock)

	f.carts.ordered[c.ID] = true
	_, err = f.svc.UpdateItem(ctx, it.ID, 2)
	require.ErrorIs(t, err, ErrOrdered)

	stored, err := f.carts.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Quantity)
}

func TestRemoveItem(t *testing.T) {
	f := newFixture(newProduct("a", "10.00", 5), newProduct("b", "2.50", 5))
	ctx := context.Background()
	c := f.openCart(t, "alice")
	a, err := f.svc.AddOrMergeItem(ctx, c.ID, "a", 2)
	require.NoError(t, err)
	_, err = f.svc.AddOrMergeItem(ctx, c.ID, "b", 2)
	require.NoError(t, err)

	removed, err := f.svc.RemoveItem(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, removed.ID)
	assert.True(t, decimal.RequireFromString("5.00").Equal(f.cartTotal(t, c.ID)))

	_, err = f.svc.RemoveItem(ctx, a.ID)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestRemoveAllItems(t *testing.T) {
	f := newFixture(newProduct("a", "10.00", 5), newProduct("b", "2.50", 5))
	ctx := context.Background()
	c := f.openCart(t, "alice")
	_, err := f.svc.AddOrMergeItem(ctx, c.ID, "a", 2)
	require.NoError(t, err)
	_, err = f.svc.AddOrMergeItem(ctx, c.ID, "b", 2)
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveAllItems(ctx, c.ID))
	assert.Empty(t, f.carts.items)
	assert.True(t, f.cartTotal(t, c.ID).IsZero())

	require.ErrorIs(t, f.svc.RemoveAllItems(ctx, "missing"), ErrNotFound)
}

func TestTotalMatchesLinesAfterEveryMutation(t *testing.T) {
	f := newFixture(
		newProduct("a", "19.99", 50),
		newProduct("b", "0.10", 50),
		newProduct("c", "7.35", 50),
	)
	ctx := context.Background()
	cart := f.openCart(t, "alice")

	type step func() error
	var bID string
	steps := []step{
		func() error { _, err := f.svc.AddOrMergeItem(ctx, cart.ID, "a", 3); return err },
		func() error {
			it, err := f.svc.AddOrMergeItem(ctx, cart.ID, "b", 7)
			if it != nil {
				bID = it.ID
			}
			return err
		},
		func() error { _, err := f.svc.AddOrMergeItem(ctx, cart.ID, "c", 1); return err },
		func() error { _, err := f.svc.AddOrMergeItem(ctx, cart.ID, "a", 4); return err },
		func() error { _, err := f.svc.UpdateItem(ctx, bID, 13); return err },
		func() error { _, err := f.svc.RemoveItem(ctx, bID); return err },
		func() error { return f.svc.RemoveAllItems(ctx, cart.ID) },
	}

	for i, s := range steps {
		require.NoError(t, s(), "step %d", i)
		assert.True(t, f.sumOfLines(cart.ID).Equal(f.cartTotal(t, cart.ID)), "step %d", i)
	}
}

func TestLineMutationsLockCart(t *testing.T) {
	f := newFixture(newProduct("a", "1.00", 10))
	ctx := context.Background()
	c := f.openCart(t, "alice")

	it, err := f.svc.AddOrMergeItem(ctx, c.ID, "a", 1)
	require.NoError(t, err)
	_, err = f.svc.UpdateItem(ctx, it.ID, 2)
	require.NoError(t, err)
	_, err = f.svc.RemoveItem(ctx, it.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.RemoveAllItems(ctx, c.ID))

	assert.Equal(t, []string{c.ID, c.ID, c.ID, c.ID}, f.carts.locked)
}

func TestLineMutationRollsBackOnFailure(t *testing.T) {
	f := newFixture(newProduct("a", "4.00", 10))
	ctx := context.Background()
	c := f.openCart(t, "alice")
	it, err := f.svc.AddOrMergeItem(ctx, c.ID, "a", 1)
	require.NoError(t, err)

	f.carts.recomputeErr = errors.New("connection reset")

	_, err = f.svc.AddOrMergeItem(ctx, c.ID, "a", 2)
	require.Error(t, err)
	_, err = f.svc.UpdateItem(ctx, it.ID, 5)
	require.Error(t, err)
	_, err = f.svc.RemoveItem(ctx, it.ID)
	require.Error(t, err)
	require.Error(t, f.svc.RemoveAllItems(ctx, c.ID))

	stored, err := f.carts.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Quantity)
	assert.True(t, decimal.RequireFromString("4.00").Equal(f.cartTotal(t, c.ID)))
}

func TestListItems(t *testing.T) {
	f := newFixture(newProduct("a", "1.00", 5), newProduct("b", "1.00", 5))
	ctx := context.Background()
	alice := f.openCart(t, "alice")
	bob := f.openCart(t, "bob")
	_, err := f.svc.AddOrMergeItem(ctx, alice.ID, "a", 1)
	require.NoError(t, err)
	_, err = f.svc.AddOrMergeItem(ctx, bob.ID, "b", 1)
	require.NoError(t, err)

	items, err := f.svc.ListItems(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].ProductID)

	_, err = f.svc.ListItems(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	all, err := f.svc.ListAllItems(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	f.carts.ordered[bob.ID] = true
	open, err := f.svc.ListOpenItemsByCustomer(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, open)
}
