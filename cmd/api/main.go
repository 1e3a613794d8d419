package main

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/sdiallo/kalpe/internal/config"
	"github.com/sdiallo/kalpe/internal/gateway"
	"github.com/sdiallo/kalpe/internal/handler"
	"github.com/sdiallo/kalpe/internal/logging"
	"github.com/sdiallo/kalpe/internal/middleware"
	"github.com/sdiallo/kalpe/internal/repository"
	"github.com/sdiallo/kalpe/internal/service"
)

//go:embed openapi.yaml
var openapiSpec []byte

func main() {
	// Local development reads .env; deployed environments inject real vars.
	if os.Getenv("APP_ENV") == "development" {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("kalpe-api", cfg.LogLevel, cfg.AppEnv)

	if cfg.WebhookSecret == "" {
		slog.Warn("WEBHOOK_SECRET is not set: webhook deliveries will be accepted unverified (reduced-trust mode)")
	}

	db, err := connectDB(cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	invoices := repository.NewInvoiceRepository(db)
	intents := repository.NewPaymentIntentRepository(db)
	stats := repository.NewStatisticsRepository(db)
	webhookEvents := repository.NewWebhookEventRepository(db)
	idempotency := repository.NewIdempotencyRepository(db)

	gatewayClient := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.WebhookCallbackURL, cfg.GatewayTimeout())

	// Source order is the precedence rule: webhook > poll > temporal.
	reconciler := service.NewReconciler(invoices, intents, stats, []service.ConfirmationSource{
		service.WebhookSource{},
		service.NewPollSource(gatewayClient),
		service.NewTemporalSource(cfg.AutoConfirmDwell()),
	})
	initiation := service.NewInitiation(invoices, intents, gatewayClient)
	sweeper := service.NewSweeper(invoices, reconciler, slog.Default(), cfg.SweepInterval(), cfg.AutoConfirmDwell(), cfg.SweepBatchSize)

	healthHandler := handler.NewHealthHandler(db)
	webhookHandler := handler.NewWebhookHandler(reconciler, webhookEvents, cfg.WebhookSecret)
	paymentHandler := handler.NewPaymentHandler(initiation, reconciler, intents, invoices)

	authn := middleware.Auth(cfg.JWTSecret)
	idem := middleware.Idempotency(idempotency)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)
	mux.HandleFunc("GET /docs", handler.ServeDocs())
	mux.HandleFunc("GET /docs/openapi.yaml", handler.ServeSpec(openapiSpec))

	mux.Handle("POST /webhook", http.HandlerFunc(webhookHandler.Receive))
	mux.Handle("POST /api/v1/payments/initiate", authn(idem(http.HandlerFunc(paymentHandler.Initiate))))
	mux.Handle("GET /api/v1/payments/{externalId}/status", authn(http.HandlerFunc(paymentHandler.Status)))

	root := middleware.Recovery(middleware.Tracing(middleware.Logging(mux)))

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go sweeper.Start(sweepCtx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func connectDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connectDB: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetimeS) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTimeS) * time.Second)

	for i := range 30 {
		if err = db.Ping(); err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}

	db.Close()
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}
