//go:build integration

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/kart-fulfillment/internal/domain/access"
	"github.com/xenking/kart-fulfillment/internal/domain/customer"
	"github.com/xenking/kart-fulfillment/internal/domain/product"
	"github.com/xenking/kart-fulfillment/internal/identity"
	"github.com/xenking/kart-fulfillment/internal/storage/postgres"
	"github.com/xenking/kart-fulfillment/pkg/health"
)

const testSecret = "integration-secret-integration-secret"

var testPool *pgxpool.Pool

// Response types are local so the tests only see the wire format.

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type productResponse struct {
	ID    string `json:"id"`
	Stock int    `json:"stock"`
	Price string `json:"price"`
}

type cartResponse struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	Total      string `json:"total"`
}

type itemResponse struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
	Total    string `json:"total"`
}

type orderResponse struct {
	ID     string `json:"id"`
	CartID string `json:"cart_id"`
}

type summaryResponse struct {
	TotalOrders  int    `json:"total_orders"`
	TotalRevenue string `json:"total_revenue"`
}

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("fulfillment"),
		tcpostgres.WithUsername("fulfillment"),
		tcpostgres.WithPassword("fulfillment"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start postgres: %v\n", err)
		return 1
	}
	defer func() { _ = pgContainer.Terminate(context.Background()) }()

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "connection string: %v\n", err)
		return 1
	}

	testPool, err = postgres.NewPool(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pool: %v\n", err)
		return 1
	}
	defer testPool.Close()

	if err := postgres.RunMigrations(ctx, testPool); err != nil {
		fmt.Fprintf(os.Stderr, "migrations: %v\n", err)
		return 1
	}

	return m.Run()
}

// --- Helpers ---

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

type client struct {
	t     *testing.T
	base  string
	token string
}

// newServer seeds a fresh data set and serves the fully wired handler.
func newServer(t *testing.T) (string, *identity.Issuer) {
	t.Helper()
	ctx := zctx.Base(context.Background(), zaptest.NewLogger(t))

	_, err := testPool.Exec(ctx, `TRUNCATE orders, cart_items, carts, products, customers`)
	require.NoError(t, err)

	store := postgres.NewStore(testPool)
	for _, c := range []customer.Customer{
		{ID: "root", Name: "Root", Mail: "root@example.com", Role: customer.RoleAdmin},
		{ID: "alice", Name: "Alice", Mail: "alice@example.com", Role: customer.RoleClient},
		{ID: "bob", Name: "Bob", Mail: "bob@example.com", Role: customer.RoleClient},
	} {
		require.NoError(t, store.Customers.Upsert(ctx, &c))
	}
	for _, p := range []product.Product{
		{ID: "cake", Name: "Cake", Price: decimal.RequireFromString("4.50"), Stock: 10},
		{ID: "pie", Name: "Pie", Price: decimal.RequireFromString("3.00"), Stock: 2},
	} {
		require.NoError(t, store.Products.Upsert(ctx, &p))
	}

	cfg := &Config{
		JWT:       JWTConfig{Secret: testSecret, Issuer: serviceName, TTL: time.Hour},
		RateLimit: RateLimitConfig{Max: 1000, Window: time.Minute},
	}
	healthSvc := health.New()
	healthSvc.SetReady(true)

	handler, closeHandler, err := newHandler(ctx, zctx.From(ctx), noopTelemetry{}, cfg, testPool, healthSvc)
	require.NoError(t, err)
	t.Cleanup(closeHandler)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	issuer, err := identity.New(testSecret, serviceName, time.Hour)
	require.NoError(t, err)
	return srv.URL, issuer
}

func as(t *testing.T, base string, issuer *identity.Issuer, id string, role customer.Role) *client {
	t.Helper()
	token, err := issuer.Issue(access.Principal{ID: id, Role: role})
	require.NoError(t, err)
	return &client{t: t, base: base, token: token}
}

func (c *client) do(method, path string, body any) *http.Response {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, c.base+path, &buf)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func expect[T any](t *testing.T, resp *http.Response, status int) T {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	return decodeJSON[T](t, resp)
}

func (c *client) stock(id string) int {
	c.t.Helper()
	return expect[productResponse](c.t, c.do(http.MethodGet, "/api/product/"+id, nil), http.StatusOK).Stock
}

// --- Tests ---

func TestHealthEndpoints(t *testing.T) {
	base, _ := newServer(t)
	anon := &client{t: t, base: base}

	for _, path := range []string{"/livez", "/readyz"} {
		body := expect[healthResponse](t, anon.do(http.MethodGet, path, nil), http.StatusOK)
		assert.Equal(t, "ok", body.Status, path)
	}
}

func TestAuthentication(t *testing.T) {
	base, _ := newServer(t)

	anon := &client{t: t, base: base}
	products := expect[[]productResponse](t, anon.do(http.MethodGet, "/api/product", nil), http.StatusOK)
	assert.Len(t, products, 2)

	resp := anon.do(http.MethodPost, "/api/cart", map[string]any{"customer_id": "alice"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	bogus := &client{t: t, base: base, token: "not-a-token"}
	body := expect[errorResponse](t, bogus.do(http.MethodGet, "/api/cart", nil), http.StatusUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, body.Code)
}

func TestOrderLifecycle(t *testing.T) {
	base, issuer := newServer(t)
	alice := as(t, base, issuer, "alice", customer.RoleClient)
	root := as(t, base, issuer, "root", customer.RoleAdmin)

	c := expect[cartResponse](t, alice.do(http.MethodPost, "/api/cart", map[string]any{"customer_id": "alice"}), http.StatusCreated)
	assert.Equal(t, "alice", c.CustomerID)

	it := expect[itemResponse](t, alice.do(http.MethodPost, "/api/cart-item", map[string]any{
		"cart_id": c.ID, "product_id": "cake", "quantity": 2,
	}), http.StatusCreated)
	assert.Equal(t, "9.00", it.Total)

	merged := expect[itemResponse](t, alice.do(http.MethodPost, "/api/cart-item", map[string]any{
		"cart_id": c.ID, "product_id": "cake", "quantity": 1,
	}), http.StatusCreated)
	assert.Equal(t, it.ID, merged.ID)
	assert.Equal(t, 3, merged.Quantity)

	o := expect[orderResponse](t, alice.do(http.MethodPost, "/api/order", map[string]any{"cart_id": c.ID}), http.StatusCreated)
	assert.Equal(t, c.ID, o.CartID)
	assert.Equal(t, 7, alice.stock("cake"))

	resp := alice.do(http.MethodPost, "/api/order", map[string]any{"cart_id": c.ID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	mine := expect[[]orderResponse](t, alice.do(http.MethodGet, "/api/order/my-orders", nil), http.StatusOK)
	require.Len(t, mine, 1)

	sum := expect[summaryResponse](t, root.do(http.MethodGet, "/api/order/summary", nil), http.StatusOK)
	assert.Equal(t, 1, sum.TotalOrders)
	assert.Equal(t, "13.50", sum.TotalRevenue)

	expect[orderResponse](t, alice.do(http.MethodDelete, "/api/order/"+o.ID, nil), http.StatusOK)
	assert.Equal(t, 10, alice.stock("cake"))
}

func TestInsufficientStock(t *testing.T) {
	base, issuer := newServer(t)
	alice := as(t, base, issuer, "alice", customer.RoleClient)

	c := expect[cartResponse](t, alice.do(http.MethodPost, "/api/cart", map[string]any{"customer_id": "alice"}), http.StatusCreated)
	expect[itemResponse](t, alice.do(http.MethodPost, "/api/cart-item", map[string]any{
		"cart_id": c.ID, "product_id": "cake", "quantity": 1,
	}), http.StatusCreated)
	expect[itemResponse](t, alice.do(http.MethodPost, "/api/cart-item", map[string]any{
		"cart_id": c.ID, "product_id": "pie", "quantity": 3,
	}), http.StatusCreated)

	body := expect[errorResponse](t, alice.do(http.MethodPost, "/api/order", map[string]any{"cart_id": c.ID}), http.StatusBadRequest)
	assert.Contains(t, body.Message, "Pie")

	assert.Equal(t, 10, alice.stock("cake"))
	assert.Equal(t, 2, alice.stock("pie"))
}

func TestOwnership(t *testing.T) {
	base, issuer := newServer(t)
	alice := as(t, base, issuer, "alice", customer.RoleClient)
	bob := as(t, base, issuer, "bob", customer.RoleClient)
	root := as(t, base, issuer, "root", customer.RoleAdmin)

	c := expect[cartResponse](t, alice.do(http.MethodPost, "/api/cart", map[string]any{"customer_id": "alice"}), http.StatusCreated)

	assert.Equal(t, http.StatusForbidden, bob.do(http.MethodGet, "/api/cart/"+c.ID, nil).StatusCode)
	assert.Equal(t, http.StatusForbidden, bob.do(http.MethodPost, "/api/cart", map[string]any{"customer_id": "alice"}).StatusCode)
	assert.Equal(t, http.StatusForbidden, bob.do(http.MethodPost, "/api/cart-item", map[string]any{
		"cart_id": c.ID, "product_id": "cake", "quantity": 1,
	}).StatusCode)
	assert.Equal(t, http.StatusForbidden, alice.do(http.MethodGet, "/api/order/summary", nil).StatusCode)

	got := expect[cartResponse](t, root.do(http.MethodGet, "/api/cart/"+c.ID, nil), http.StatusOK)
	assert.Equal(t, c.ID, got.ID)
}
