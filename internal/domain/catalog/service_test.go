package catalog

import (
	"bytes"
	"context"
	"sort"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-fulfillment/internal/domain/failure"
	"github.com/xenking/kart-fulfillment/internal/domain/product"
)

// --- Mock implementations ---

type line struct {
	cartID    string
	productID string
	total     decimal.Decimal
	ordered   bool
}

type mockStore struct {
	products map[string]*product.Product
	lines    []line
	totals   map[string]decimal.Decimal

	failRecompute bool
	failSetStock  bool
}

func newMockStore() *mockStore {
	return &mockStore{
		products: map[string]*product.Product{},
		totals:   map[string]decimal.Decimal{},
	}
}

func (m *mockStore) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockStore) Create(_ context.Context, p *product.Product) error {
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *mockStore) Update(_ context.Context, p *product.Product) error {
	stored, ok := m.products[p.ID]
	if !ok {
		return product.ErrNotFound
	}
	stored.Name = p.Name
	stored.Price = p.Price
	stored.ImageURL = p.ImageURL
	return nil
}

func (m *mockStore) SetStock(_ context.Context, id string, stock int) error {
	stored, ok := m.products[id]
	if !ok {
		return product.ErrNotFound
	}
	stored.Stock = stock
	return nil
}

func (m *mockStore) CountOrderedLines(_ context.Context, productID string) (int, error) {
	n := 0
	for _, l := range m.lines {
		if l.productID == productID && l.ordered {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	products := make(map[string]*product.Product, len(m.products))
	for id, p := range m.products {
		cp := *p
		products[id] = &cp
	}
	lines := append([]line(nil), m.lines...)
	totals := make(map[string]decimal.Decimal, len(m.totals))
	for id, t := range m.totals {
		totals[id] = t
	}

	if err := fn(ctx, mockTx{m}); err != nil {
		m.products, m.lines, m.totals = products, lines, totals
		return err
	}
	return nil
}

type mockTx struct{ m *mockStore }

func (t mockTx) RecomputeTotal(_ context.Context, cartID string) (decimal.Decimal, error) {
	if t.m.failRecompute {
		return decimal.Zero, errors.New("recompute failed")
	}
	total := decimal.Zero
	for _, l := range t.m.lines {
		if l.cartID == cartID {
			total = total.Add(l.total)
		}
	}
	t.m.totals[cartID] = total
	return total, nil
}

func (t mockTx) Update(ctx context.Context, p *product.Product) error {
	return t.m.Update(ctx, p)
}

func (t mockTx) SetStock(ctx context.Context, id string, stock int) error {
	if t.m.failSetStock {
		return errors.New("set stock failed")
	}
	return t.m.SetStock(ctx, id, stock)
}

func (t mockTx) DeleteOpenCartLines(_ context.Context, productID string) ([]string, error) {
	var (
		kept []line
		ids  []string
	)
	for _, l := range t.m.lines {
		if l.productID == productID && !l.ordered {
			ids = append(ids, l.cartID)
			continue
		}
		kept = append(kept, l)
	}
	t.m.lines = kept
	sort.Strings(ids)
	return ids, nil
}

func (t mockTx) DeleteProduct(_ context.Context, id string) error {
	if _, ok := t.m.products[id]; !ok {
		return product.ErrNotFound
	}
	delete(t.m.products, id)
	return nil
}

type mockObjectStore struct {
	folder  string
	uploads []Object
	err     error
}

func (m *mockObjectStore) Upload(_ context.Context, folder string, obj Object) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.folder = folder
	m.uploads = append(m.uploads, obj)
	return "http://minio:9000/bucket/" + folder + "/" + obj.Name, nil
}

// --- Helpers ---

func (m *mockStore) addProduct(id, price string, stock int) {
	m.products[id] = &product.Product{
		ID:    id,
		Name:  "product " + id,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
}

func (m *mockStore) addLine(cartID, productID, total string, ordered bool) {
	m.lines = append(m.lines, line{
		cartID:    cartID,
		productID: productID,
		total:     decimal.RequireFromString(total),
		ordered:   ordered,
	})
}

func image(contentType string, size int64) *Object {
	return &Object{
		Name:        "photo.png",
		ContentType: contentType,
		Size:        size,
		Body:        bytes.NewReader(make([]byte, 8)),
	}
}

// --- Tests ---

func TestCreate(t *testing.T) {
	store := newMockStore()
	images := &mockObjectStore{}
	svc := NewService(store, store, images)

	p, err := svc.Create(context.Background(), NewProduct{
		Name:  "Keyboard",
		Price: decimal.RequireFromString("49.999"),
		Stock: 3,
		Image: image("image/png", 1024),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "50", p.Price.String())
	assert.Equal(t, ImageFolder, images.folder)
	assert.Contains(t, p.ImageURL, "/bucket/products/")
	assert.Contains(t, store.products, p.ID)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		in      NewProduct
		wantErr error
	}{
		{
			name:    "empty name",
			in:      NewProduct{Price: decimal.NewFromInt(1)},
			wantErr: ErrEmptyName,
		},
		{
			name:    "negative price",
			in:      NewProduct{Name: "x", Price: decimal.NewFromInt(-1)},
			wantErr: ErrNegativePrice,
		},
		{
			name:    "negative stock",
			in:      NewProduct{Name: "x", Price: decimal.NewFromInt(1), Stock: -1},
			wantErr: ErrNegativeStock,
		},
		{
			name:    "not an image",
			in:      NewProduct{Name: "x", Price: decimal.NewFromInt(1), Image: image("application/pdf", 10)},
			wantErr: ErrInvalidImage,
		},
		{
			name:    "image too large",
			in:      NewProduct{Name: "x", Price: decimal.NewFromInt(1), Image: image("image/jpeg", MaxImageSize+1)},
			wantErr: ErrImageTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			images := &mockObjectStore{}
			svc := NewService(store, store, images)

			_, err := svc.Create(context.Background(), tt.in)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, failure.BadRequest, failure.KindOf(err))
			assert.Empty(t, store.products)
			assert.Empty(t, images.uploads)
		})
	}
}

func TestCreate_WithoutObjectStore(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, store, nil)

	_, err := svc.Create(context.Background(), NewProduct{
		Name:  "x",
		Price: decimal.NewFromInt(1),
		Image: image("image/png", 1),
	})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), NewProduct{Name: "x", Price: decimal.NewFromInt(1)})
	require.NoError(t, err)
}

func TestUpdate(t *testing.T) {
	store := newMockStore()
	store.addProduct("p1", "10.00", 5)
	svc := NewService(store, store, &mockObjectStore{})

	name := "Renamed"
	price := decimal.RequireFromString("12.50")
	stock := 9
	p, err := svc.Update(context.Background(), "p1", Patch{
		Name:  &name,
		Price: &price,
		Stock: &stock,
		Image: image("image/webp", 10),
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name)
	assert.True(t, price.Equal(p.Price))
	assert.Equal(t, 9, p.Stock)
	assert.NotEmpty(t, p.ImageURL)

	stored := store.products["p1"]
	assert.Equal(t, "Renamed", stored.Name)
	assert.Equal(t, 9, stored.Stock)
}

func TestUpdate_Errors(t *testing.T) {
	store := newMockStore()
	store.addProduct("p1", "10.00", 5)
	svc := NewService(store, store, &mockObjectStore{})
	ctx := context.Background()

	_, err := svc.Update(ctx, "missing", Patch{})
	require.ErrorIs(t, err, product.ErrNotFound)

	negative := -1
	_, err = svc.Update(ctx, "p1", Patch{Stock: &negative})
	require.ErrorIs(t, err, ErrNegativeStock)
	assert.Equal(t, 5, store.products["p1"].Stock)
}

func TestUpdate_StockFailureKeepsProduct(t *testing.T) {
	store := newMockStore()
	store.addProduct("p1", "10.00", 5)
	store.failSetStock = true
	svc := NewService(store, store, nil)

	name := "Renamed"
	price := decimal.RequireFromString("1.00")
	stock := 50
	_, err := svc.Update(context.Background(), "p1", Patch{Name: &name, Price: &price, Stock: &stock})
	require.Error(t, err)

	stored := store.products["p1"]
	assert.Equal(t, "product p1", stored.Name)
	assert.True(t, decimal.RequireFromString("10.00").Equal(stored.Price))
	assert.Equal(t, 5, stored.Stock)
}

func TestDelete_PurgesOpenCarts(t *testing.T) {
	store := newMockStore()
	store.addProduct("p1", "10.00", 5)
	store.addProduct("p2", "2.00", 5)
	store.addLine("c1", "p1", "20.00", false)
	store.addLine("c1", "p2", "4.00", false)
	store.addLine("c2", "p1", "10.00", false)
	store.addLine("c3", "p2", "2.00", true)
	svc := NewService(store, store, nil)

	require.NoError(t, svc.Delete(context.Background(), "p1"))

	assert.NotContains(t, store.products, "p1")
	assert.Len(t, store.lines, 2)
	assert.True(t, decimal.RequireFromString("4.00").Equal(store.totals["c1"]))
	assert.True(t, store.totals["c2"].IsZero())
	assert.NotContains(t, store.totals, "c3")
}

func TestDelete_ReferencedByOrder(t *testing.T) {
	store := newMockStore()
	store.addProduct("p1", "10.00", 5)
	store.addLine("c1", "p1", "10.00", false)
	store.addLine("c2", "p1", "10.00", true)
	svc := NewService(store, store, nil)

	err := svc.Delete(context.Background(), "p1")
	require.ErrorIs(t, err, ErrReferenced)
	assert.Equal(t, failure.Conflict, failure.KindOf(err))
	assert.Contains(t, store.products, "p1")
	assert.Len(t, store.lines, 2)
}

func TestDelete_NotFound(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, store, nil)

	err := svc.Delete(context.Background(), "missing")
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestDelete_RollsBackOnRecomputeFailure(t *testing.T) {
	store := newMockStore()
	store.addProduct("p1", "10.00", 5)
	store.addLine("c1", "p1", "10.00", false)
	store.failRecompute = true
	svc := NewService(store, store, nil)

	err := svc.Delete(context.Background(), "p1")
	require.Error(t, err)
	assert.Contains(t, store.products, "p1")
	assert.Len(t, store.lines, 1)
}
