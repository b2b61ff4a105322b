package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ordersaga/internal/config"
	"ordersaga/internal/customer"
	"ordersaga/internal/db"
	"ordersaga/internal/events"
	"ordersaga/internal/handler"
	"ordersaga/internal/inventory"
	"ordersaga/internal/logger"
	"ordersaga/internal/metrics"
	"ordersaga/internal/middleware"
	"ordersaga/internal/notification"
	"ordersaga/internal/order"
	"ordersaga/internal/pricing"
	"ordersaga/internal/saga"
	"ordersaga/internal/tracing"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// run starts the service and blocks until a shutdown signal or a listener
// failure. Either way it drains through the same path so deferred closes run.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.L().Fatal("failed to load config", zap.Error(err))
	}
	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.OtelEndpoint)
	if err != nil {
		log.Fatal("failed to setup tracing", zap.Error(err))
	}

	database := db.InitDB(cfg)
	defer database.Close()

	reg := metrics.NewRegistry()

	var cache order.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		cache = order.NewRedisCache(rdb, cfg.OrderCacheTTL)
		log.Info("order cache enabled", zap.String("redis_addr", cfg.RedisAddr))
	}
	orders := order.NewService(order.NewRepository(database), cache)

	var publisher saga.EventPublisher
	if cfg.KafkaBroker != "" {
		p := events.NewKafkaPublisher(cfg.KafkaBroker, cfg.OrderEventsTopic)
		defer p.Close()
		publisher = p
		log.Info("order events enabled",
			zap.String("broker", cfg.KafkaBroker),
			zap.String("topic", cfg.OrderEventsTopic),
		)
	}

	dispatcher := saga.NewDispatcher(
		saga.DispatcherConfig{
			Workers:             cfg.SideEffectWorkers,
			QueueSize:           cfg.SideEffectQueue,
			LoyaltyTimeout:      cfg.LoyaltyTimeout,
			NotificationTimeout: cfg.NotificationTimeout,
			EventTimeout:        cfg.EventTimeout,
		},
		customer.NewClient(cfg.CustomerURL, cfg.LoyaltyTimeout),
		notification.NewClient(cfg.NotificationURL, cfg.NotificationTimeout),
		publisher,
		reg,
	)

	s := saga.New(
		inventory.NewReserver(inventory.NewClient(cfg.InventoryURL, cfg.InventoryTimeout)),
		pricing.NewClient(cfg.PricingURL, cfg.PricingTimeout, cfg.DefaultRegion),
		orders,
		dispatcher,
		reg,
	)

	limiter := middleware.NewRateLimiter(cfg.InternalSecretKey)
	go limiter.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           setupRouter(handler.NewOrderHandler(s, orders), reg, cfg, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("order service listening", zap.String("addr", srv.Addr))
	runErr := serve(ctx, srv)
	if runErr != nil {
		log.Error("server failed, shutting down", zap.Error(runErr))
	} else {
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn("side effects still pending at shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown", zap.Error(err))
	}
	return runErr
}

// serve runs srv until ctx is done or the listener fails, and reports the
// listener error. Shutting the server down is left to the caller.
func serve(ctx context.Context, srv *http.Server) error {
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErr:
		return err
	}
}

// setupRouter wires the order API behind request id, access log, optional
// caller auth and rate limiting, in that order. CORS sits outside the router,
// and otelhttp outside everything so the caller's trace context is extracted
// before any span starts.
func setupRouter(orders *handler.OrderHandler, reg *metrics.Registry, cfg *config.Config, limiter *middleware.RateLimiter) http.Handler {
	r := mux.NewRouter()
	r.Use(
		logger.RequestIDMiddleware,
		middleware.LoggingMiddleware,
		middleware.Auth(cfg.SecretKey),
		limiter.Middleware,
	)
	handler.Routes(r, orders, reg)
	return otelhttp.NewHandler(middleware.CORS(cfg.CORSAllowedOrigins)(r), tracing.ServiceName,
		otelhttp.WithMeterProvider(otel.GetMeterProvider()),
		otelhttp.WithTracerProvider(otel.GetTracerProvider()),
	)
}
