package order

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-fulfillment/internal/domain/cart"
	"github.com/xenking/kart-fulfillment/internal/domain/failure"
)

const instrumentationName = "github.com/xenking/kart-fulfillment/internal/domain/order"

// Option configures a Service.
type Option func(*Service)

// WithMeterProvider sets the meter provider for order counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// WithTracerProvider sets the tracer provider for order spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracerProvider = tp }
}

// WithEvents sets the post-commit event sink.
func WithEvents(e Events) Option {
	return func(s *Service) { s.events = e }
}

// Service is the order transaction coordinator. It converts carts into
// orders and back, keeping stock consistent with the set of live orders.
type Service struct {
	orders Repository
	carts  cart.Reader
	uow    UnitOfWork
	events Events

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer

	placed         metric.Int64Counter
	cancelled      metric.Int64Counter
	stockConflicts metric.Int64Counter
}

// NewService creates an order Service.
func NewService(orders Repository, carts cart.Reader, uow UnitOfWork, opts ...Option) (*Service, error) {
	s := &Service{
		orders:         orders,
		carts:          carts,
		uow:            uow,
		events:         nopEvents{},
		meterProvider:  metricnoop.NewMeterProvider(),
		tracerProvider: tracenoop.NewTracerProvider(),
	}
	for _, o := range opts {
		o(s)
	}

	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	meter := s.meterProvider.Meter(instrumentationName)

	var err error
	if s.placed, err = meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders committed"),
		metric.WithUnit("{order}"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.placed counter")
	}
	if s.cancelled, err = meter.Int64Counter("orders.cancelled",
		metric.WithDescription("Orders cancelled and restocked"),
		metric.WithUnit("{order}"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.cancelled counter")
	}
	if s.stockConflicts, err = meter.Int64Counter("orders.stock_conflicts",
		metric.WithDescription("Order creations rolled back because a conditional debit lost a race"),
		metric.WithUnit("{order}"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.stock_conflicts counter")
	}
	return s, nil
}

// CreateOrder converts a cart into an order. The order row and every stock
// debit commit together or not at all.
func (s *Service) CreateOrder(ctx context.Context, cartID string) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Create",
		trace.WithAttributes(attribute.String("cart.id", cartID)),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	c, err := s.carts.GetWithItems(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	switch _, err := s.orders.FindByCartID(ctx, cartID); {
	case err == nil:
		return nil, ErrAlreadyExists
	case !errors.Is(err, ErrNotFound):
		return nil, errors.Wrap(err, "find order by cart")
	}

	// Advisory pre-check for a friendly message. The conditional debits
	// below are what actually guard the stock.
	for _, it := range c.Items {
		if it.Product == nil {
			return nil, errors.Errorf("cart item %s has no product loaded", it.ID)
		}
		if it.Product.Stock < it.Quantity {
			return nil, &InsufficientStockError{
				ProductID:   it.ProductID,
				ProductName: it.Product.Name,
				Available:   it.Product.Stock,
				Requested:   it.Quantity,
			}
		}
	}

	o := &Order{
		ID:     uuid.New().String(),
		CartID: cartID,
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	err = s.uow.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		// Debit what the cart holds under its lock, not the read above.
		locked, err := tx.LockCart(ctx, cartID)
		if err != nil {
			return err
		}
		if len(locked.Items) == 0 {
			return ErrEmptyCart
		}
		if err := tx.Insert(ctx, o); err != nil {
			return err
		}
		for _, it := range byProduct(locked.Items) {
			ok, err := tx.TryDebit(ctx, it.ProductID, it.Quantity)
			if err != nil {
				return errors.Wrapf(err, "debit %s", it.ProductID)
			}
			if !ok {
				return errors.Wrapf(ErrStockChanged, "product %s", productName(it))
			}
		}
		c = locked
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStockChanged) {
			s.stockConflicts.Add(ctx, 1)
		}
		// Domain failures pass through unwrapped for the HTTP mapping.
		if failure.KindOf(err) != 0 {
			return nil, err
		}
		return nil, errors.Wrap(err, "create order")
	}

	s.placed.Add(ctx, 1)
	o.Cart = c
	if err := s.events.OrderPlaced(ctx, o); err != nil {
		zctx.From(ctx).Warn("Publish order placed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
	return o, nil
}

// CancelOrder deletes an order and restores the stock of every line.
// It returns the cancelled order.
func (s *Service) CancelOrder(ctx context.Context, id string) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Cancel",
		trace.WithAttributes(attribute.String("order.id", id)),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.uow.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		// Cart, then order, then products: the same lock order as checkout.
		locked, err := tx.LockCart(ctx, o.CartID)
		if err != nil {
			return err
		}
		// Deleting before crediting makes a concurrent second cancel, or a
		// reassignment away from this cart, fail here instead of crediting.
		if err := tx.Delete(ctx, id, o.CartID); err != nil {
			return err
		}
		for _, it := range byProduct(locked.Items) {
			if err := tx.Credit(ctx, it.ProductID, it.Quantity); err != nil {
				return errors.Wrapf(err, "credit %s", it.ProductID)
			}
		}
		o.Cart = locked
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, cart.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "cancel order")
	}

	s.cancelled.Add(ctx, 1)
	if err := s.events.OrderCancelled(ctx, o); err != nil {
		zctx.From(ctx).Warn("Publish order cancelled",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
	return o, nil
}

// UpdateOrder rebinds an order to another cart. Stock is not moved.
func (s *Service) UpdateOrder(ctx context.Context, id, cartID string) (*Order, error) {
	if _, err := s.orders.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if _, err := s.carts.GetByID(ctx, cartID); err != nil {
		return nil, err
	}

	switch existing, err := s.orders.FindByCartID(ctx, cartID); {
	case err == nil && existing.ID != id:
		return nil, ErrAlreadyExists
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, errors.Wrap(err, "find order by cart")
	}

	if err := s.orders.Reassign(ctx, id, cartID); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, id)
}

// Get returns an order with its cart and items.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// List returns every order.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.orders.List(ctx)
}

// ListByCustomer returns the orders placed from the customer's carts.
func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	return s.orders.ListByCustomer(ctx, customerID)
}

// Summary returns the number of orders and the sum of their cart totals.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	sum, err := s.orders.Summary(ctx)
	if err != nil {
		return Summary{}, errors.Wrap(err, "summary")
	}
	sum.TotalRevenue = sum.TotalRevenue.Round(2)
	return sum, nil
}

// byProduct returns a copy of items sorted by product, so concurrent units
// lock product rows in the same order.
func byProduct(items []cart.Item) []cart.Item {
	out := make([]cart.Item, len(items))
	copy(out, items)
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func productName(it cart.Item) string {
	if it.Product != nil {
		return it.Product.Name
	}
	return it.ProductID
}
