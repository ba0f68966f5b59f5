// Package app wires configuration, storage, messaging, and HTTP transport
// into a runnable server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/tably/order-engine/internal/domain/auth"
	"github.com/tably/order-engine/internal/domain/coupon"
	"github.com/tably/order-engine/internal/domain/loyalty"
	"github.com/tably/order-engine/internal/domain/order"
	"github.com/tably/order-engine/internal/handler"
	"github.com/tably/order-engine/internal/notify"
	"github.com/tably/order-engine/internal/repository"
	"github.com/tably/order-engine/pkg/health"
	"github.com/tably/order-engine/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc-pause", time.Second, health.GCMaxPauseCheck(10*time.Second))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	tenantRepo := repository.NewTenantRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool)
	tableRepo := repository.NewTableRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	loyaltyRepo := repository.NewLoyaltyRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)

	// Notification sink: AMQP when configured, logging otherwise.
	var sink order.NotificationSink
	if cfg.AMQPURL != "" {
		amqpSink, err := notify.NewAMQPSink(cfg.AMQPURL, lg.Named("notify"))
		if err != nil {
			return errors.Wrap(err, "create amqp sink")
		}
		defer amqpSink.Close()
		sink = amqpSink
	} else {
		sink = notify.NewLogSink(lg.Named("notify"))
	}

	// Domain services.
	couponValidator := coupon.NewStoreValidator(couponRepo)
	accruer := loyalty.NewProcessor(loyaltyRepo)
	orderService := order.NewService(order.Dependencies{
		Tenants:   tenantRepo,
		Catalog:   catalogRepo,
		Customers: customerRepo,
		Tables:    tableRepo,
		Coupons:   couponValidator,
		Orders:    orderRepo,
		Accruer:   accruer,
		Notifier:  sink,
	}, lg.Named("order"), cfg.CallTimeout)

	// HTTP handlers.
	verifier := auth.NewVerifier(apikeyRepo, []byte(cfg.APIKeyPepper))
	h := handler.NewHandler(orderService, tenantRepo, catalogRepo, lg.Named("http"))

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux, handler.APIKeyAuth(verifier))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-API-Key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("order-engine", m),
			httpmiddleware.Metrics(m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
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
