package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/kart-fulfillment/internal/domain/access"
	"github.com/xenking/kart-fulfillment/internal/domain/cart"
	"github.com/xenking/kart-fulfillment/internal/domain/catalog"
	"github.com/xenking/kart-fulfillment/internal/domain/fulfillment"
	"github.com/xenking/kart-fulfillment/internal/domain/order"
	"github.com/xenking/kart-fulfillment/internal/events"
	"github.com/xenking/kart-fulfillment/internal/httpapi"
	"github.com/xenking/kart-fulfillment/internal/identity"
	"github.com/xenking/kart-fulfillment/internal/objectstore"
	"github.com/xenking/kart-fulfillment/internal/storage/postgres"
	"github.com/xenking/kart-fulfillment/pkg/health"
	"github.com/xenking/kart-fulfillment/pkg/httpmiddleware"
)

const serviceName = "kart-fulfillment"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	handler, closeHandler, err := newHandler(ctx, lg, m, cfg, pool, healthSvc)
	if err != nil {
		return err
	}
	defer closeHandler()

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           handler,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newHandler wires storage, domain services and the HTTP surface over pool.
// The returned func releases the event publisher.
func newHandler(
	ctx context.Context,
	lg *zap.Logger,
	tel httpmiddleware.Telemetry,
	cfg *Config,
	pool *pgxpool.Pool,
	healthSvc *health.Health,
) (http.Handler, func(), error) {
	issuer, err := identity.New(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create token issuer")
	}

	// Left as a nil interface when disabled so image uploads fail cleanly.
	var images catalog.ObjectStore
	if cfg.ObjectStore.Enabled() {
		s, err := objectstore.New(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create object store")
		}
		images = s
	} else {
		lg.Info("Object store not configured, image uploads disabled")
	}

	publisher := events.New(cfg.Kafka)
	closePublisher := func() {
		if err := publisher.Close(); err != nil {
			lg.Warn("Close event publisher", zap.Error(err))
		}
	}
	if !publisher.Enabled() {
		lg.Info("Kafka brokers not configured, order events disabled")
	}

	store := postgres.NewStore(pool)

	carts := cart.NewService(store.Carts, store.CartUnit(), store.Products, store.Customers)
	orders, err := order.NewService(store.Orders, store.Carts, store.OrderUnit(),
		order.WithMeterProvider(tel.MeterProvider()),
		order.WithTracerProvider(tel.TracerProvider()),
		order.WithEvents(publisher),
	)
	if err != nil {
		closePublisher()
		return nil, nil, errors.Wrap(err, "create order service")
	}
	products := catalog.NewService(store.Products, store.CatalogUnit(), images)

	engine := fulfillment.NewEngine(carts, orders, products, store.Customers, access.NewResolver(store.Graph()))

	api := httpapi.New(engine, issuer,
		httpapi.WithMiddleware(httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:     cfg.RateLimit.Max,
			Window:  cfg.RateLimit.Window,
			KeyFunc: httpapi.RateLimitKey,
		})),
	)

	// Health endpoints and the API share one router so route patterns are
	// known to the telemetry middleware.
	root := chi.NewRouter()
	root.Get("/livez", healthSvc.LiveEndpoint)
	root.Get("/readyz", healthSvc.ReadyEndpoint)
	root.Mount("/api", api.Router())

	routeFinder := httpmiddleware.MakeRouteFinder(root)

	handler := httpmiddleware.Wrap(root,
		httpmiddleware.Recovery(),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument(serviceName, routeFinder, tel),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	)
	return handler, closePublisher, nil
}
