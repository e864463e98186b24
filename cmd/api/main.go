package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-order-system/internal/config"
	"github.com/fairyhunter13/scalable-order-system/internal/gateway"
	"github.com/fairyhunter13/scalable-order-system/internal/handler"
	"github.com/fairyhunter13/scalable-order-system/internal/model"
	"github.com/fairyhunter13/scalable-order-system/internal/repository"
	"github.com/fairyhunter13/scalable-order-system/internal/service"
	"github.com/fairyhunter13/scalable-order-system/internal/validator"
	"github.com/fairyhunter13/scalable-order-system/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)

	// Create context for startup
	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Scalable Order System",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit (explicit, prevents large payloads)
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	// Initialize validator with custom rules (notblank, cardno)
	validate := validator.New()

	// PG adapter
	pg := gateway.NewHTTPClient(gateway.Options{
		BaseURL:                 cfg.Gateway.BaseURL,
		CallbackBaseURL:         cfg.Gateway.CallbackBaseURL,
		RequestTimeout:          cfg.Gateway.RequestTimeout,
		StatusRetryMax:          cfg.Gateway.StatusRetryMax,
		BreakerFailureThreshold: cfg.Gateway.BreakerFailureThreshold,
		BreakerCooldown:         cfg.Gateway.BreakerCooldown,
	})

	// Repositories (layered architecture)
	userRepo := repository.NewUserRepository(pool)
	productRepo := repository.NewProductRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	outboxRepo := repository.NewOutboxRepository(pool)

	// Services
	bridge := service.NewOutboxBridge(outboxRepo)
	resv := service.NewReservation(userRepo, productRepo)
	couponSvc := service.NewCouponService(couponRepo)
	paymentSvc := service.NewPaymentService(pool, paymentRepo, orderRepo, bridge)
	orderSvc := service.NewOrderService(
		pool,
		userRepo,
		orderRepo,
		paymentRepo,
		resv,
		couponSvc,
		paymentSvc,
		bridge,
		pg,
		cfg.Gateway.TimeoutRecoveryDelay,
	)

	// Background workers share a cancelable context so shutdown stops them
	// after the HTTP server drains.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	dispatcher := service.NewDispatcher(outboxRepo, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize)
	paymentAudit := service.NewPaymentAuditHandler()
	orderAudit := service.NewOrderAuditHandler()
	dispatcher.Register(model.EventPaymentCompleted, paymentAudit.Handle)
	dispatcher.Register(model.EventPaymentFailed, paymentAudit.Handle)
	dispatcher.Register(model.EventOrderCreated, orderAudit.Handle)
	dispatcher.Register(model.EventOrderCompleted, orderAudit.Handle)
	dispatcher.Register(model.EventOrderCanceled, orderAudit.Handle)
	go dispatcher.Run(workerCtx)

	reconciler := service.NewReconciler(
		pool,
		paymentRepo,
		userRepo,
		pg,
		paymentSvc,
		orderSvc,
		cfg.Reconcile.Interval,
		cfg.Reconcile.PendingAge,
		cfg.Reconcile.BatchSize,
	)
	go reconciler.Run(workerCtx)

	// Health handler
	healthHandler := handler.NewHealthHandler(pool)
	healthHandler.AddProbe("workers", func() bool { return workerCtx.Err() == nil })
	app.Get("/health", healthHandler.Check)

	// Order routes
	orderHandler := handler.NewOrderHandler(orderSvc, validate)
	app.Post("/api/v1/orders", orderHandler.CreateOrder)
	app.Get("/api/v1/orders", orderHandler.ListOrders)
	app.Get("/api/v1/orders/:id", orderHandler.GetOrder)
	app.Post("/api/v1/orders/:id/callback", orderHandler.Callback)

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Stop background workers, then close the pool they depend on
	stopWorkers()

	// Close database pool AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
