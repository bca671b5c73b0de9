// Package httpapi is the HTTP transport of the fulfillment engine. It
// authenticates bearer tokens, decodes requests, calls the guarded engine
// with the caller's principal and maps domain failures to status codes.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-fulfillment/internal/domain/access"
	"github.com/xenking/kart-fulfillment/internal/domain/cart"
	"github.com/xenking/kart-fulfillment/internal/domain/catalog"
	"github.com/xenking/kart-fulfillment/internal/domain/customer"
	"github.com/xenking/kart-fulfillment/internal/domain/order"
	"github.com/xenking/kart-fulfillment/internal/domain/product"
)

// Engine is the guarded fulfillment core.
type Engine interface {
	OpenCart(ctx context.Context, p *access.Principal, customerID string) (*cart.Cart, error)
	MyOpenCart(ctx context.Context, p *access.Principal) (*cart.Cart, error)
	GetCart(ctx context.Context, p *access.Principal, id string) (*cart.Cart, error)
	ListCarts(ctx context.Context, p *access.Principal) ([]cart.Cart, error)
	DeleteCart(ctx context.Context, p *access.Principal, id string) error

	AddItem(ctx context.Context, p *access.Principal, cartID, productID string, quantity int) (*cart.Item, error)
	UpdateItem(ctx context.Context, p *access.Principal, itemID string, quantity int) (*cart.Item, error)
	RemoveItem(ctx context.Context, p *access.Principal, itemID string) (*cart.Item, error)
	RemoveAllItems(ctx context.Context, p *access.Principal, cartID string) error
	GetItem(ctx context.Context, p *access.Principal, itemID string) (*cart.Item, error)
	ListCartItems(ctx context.Context, p *access.Principal, cartID string) ([]cart.Item, error)
	MyOpenItems(ctx context.Context, p *access.Principal) ([]cart.Item, error)
	ListAllItems(ctx context.Context, p *access.Principal) ([]cart.Item, error)

	CreateOrder(ctx context.Context, p *access.Principal, cartID string) (*order.Order, error)
	CancelOrder(ctx context.Context, p *access.Principal, id string) (*order.Order, error)
	GetOrder(ctx context.Context, p *access.Principal, id string) (*order.Order, error)
	MyOrders(ctx context.Context, p *access.Principal) ([]order.Order, error)
	ListOrders(ctx context.Context, p *access.Principal) ([]order.Order, error)
	UpdateOrder(ctx context.Context, p *access.Principal, id, cartID string) (*order.Order, error)
	Summary(ctx context.Context, p *access.Principal) (order.Summary, error)

	ListProducts(ctx context.Context) ([]product.Product, error)
	GetProduct(ctx context.Context, id string) (*product.Product, error)
	CreateProduct(ctx context.Context, p *access.Principal, in catalog.NewProduct) (*product.Product, error)
	UpdateProduct(ctx context.Context, p *access.Principal, id string, patch catalog.Patch) (*product.Product, error)
	DeleteProduct(ctx context.Context, p *access.Principal, id string) error

	GetCustomer(ctx context.Context, p *access.Principal, id string) (*customer.Customer, error)
	ListCustomers(ctx context.Context, p *access.Principal) ([]customer.Customer, error)
	CreateCustomer(ctx context.Context, p *access.Principal, in customer.Customer) (*customer.Customer, error)
	UpdateCustomer(ctx context.Context, p *access.Principal, id string, patch customer.Patch) (*customer.Customer, error)
	DeleteCustomer(ctx context.Context, p *access.Principal, id string) error
}

// Option configures a Server.
type Option func(*Server)

// WithMiddleware adds middleware that runs after authentication, so it can
// read PrincipalFrom.
func WithMiddleware(mws ...func(http.Handler) http.Handler) Option {
	return func(s *Server) { s.mws = append(s.mws, mws...) }
}

// Server routes API requests to the engine.
type Server struct {
	engine Engine
	auth   Authenticator
	mws    []func(http.Handler) http.Handler
	router chi.Router
}

// New creates a Server.
func New(engine Engine, auth Authenticator, opts ...Option) *Server {
	s := &Server{engine: engine, auth: auth}
	for _, o := range opts {
		o(s)
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the API router. Mounting it instead of the Server keeps
// its routes visible to route matching in outer middleware.
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(authenticate(s.auth))
	r.Use(s.mws...)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		fail(w, r, errRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/product", func(r chi.Router) {
		r.Get("/", s.listProducts)
		r.Post("/", s.createProduct)
		r.Get("/{id}", s.getProduct)
		r.Patch("/{id}", s.updateProduct)
		r.Delete("/{id}", s.deleteProduct)
	})
	r.Route("/cart", func(r chi.Router) {
		r.Post("/", s.openCart)
		r.Get("/", s.listCarts)
		r.Get("/my-cart", s.myCart)
		r.Get("/{id}", s.getCart)
		r.Delete("/{id}", s.deleteCart)
		r.Get("/{id}/items", s.listCartItems)
		r.Delete("/{id}/items", s.removeAllItems)
	})
	r.Route("/cart-item", func(r chi.Router) {
		r.Post("/", s.addItem)
		r.Get("/", s.listAllItems)
		r.Get("/my-cart-items", s.myItems)
		r.Get("/{id}", s.getItem)
		r.Patch("/{id}", s.updateItem)
		r.Delete("/{id}", s.removeItem)
	})
	r.Route("/order", func(r chi.Router) {
		r.Post("/", s.createOrder)
		r.Get("/", s.listOrders)
		r.Get("/my-orders", s.myOrders)
		r.Get("/summary", s.summary)
		r.Get("/{id}", s.getOrder)
		r.Patch("/{id}", s.updateOrder)
		r.Delete("/{id}", s.cancelOrder)
	})
	r.Route("/customer", func(r chi.Router) {
		r.Get("/", s.listCustomers)
		r.Post("/", s.createCustomer)
		r.Get("/{id}", s.getCustomer)
		r.Patch("/{id}", s.updateCustomer)
		r.Delete("/{id}", s.deleteCustomer)
	})
	return r
}

// respond encodes the value with enc and writes it with status.
func respond[T any](w http.ResponseWriter, status int, v T, enc func(*jx.Encoder, T)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	enc(e, v)
	write(w, status, e)
}
