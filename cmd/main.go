/**
 * @description
 * This is the main entry point for the access-service. It wires together
 * configuration, the database pool, the RabbitMQ producer and consumer, the
 * payment provider client, the service layer, and the HTTP router, then runs
 * the server until a shutdown signal arrives.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/matchpass/access-service/internal/api"
	"github.com/matchpass/access-service/internal/app"
	"github.com/matchpass/access-service/internal/auth"
	"github.com/matchpass/access-service/internal/config"
	"github.com/matchpass/access-service/internal/store"
	"github.com/matchpass/access-service/pkg/rabbitmq"
	"github.com/matchpass/access-service/pkg/stripeclient"
)

// schema is applied idempotently at startup. The unique index on lower(email)
// and the partial unique index on active (user_id, league_id) pairs are what
// make signup and checkout races resolve at the database.
const schema = `
    CREATE TABLE IF NOT EXISTS users (
        id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
        email TEXT NOT NULL,
        password_hash TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );
    CREATE UNIQUE INDEX IF NOT EXISTS users_email_unique ON users (lower(email));
    CREATE TABLE IF NOT EXISTS leagues (
        id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
        name TEXT NOT NULL,
        country TEXT NOT NULL,
        is_active BOOLEAN NOT NULL DEFAULT TRUE
    );
    CREATE TABLE IF NOT EXISTS subscriptions (
        id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
        user_id UUID NOT NULL REFERENCES users(id),
        league_id UUID NOT NULL REFERENCES leagues(id),
        provider_subscription_id TEXT NOT NULL UNIQUE,
        status TEXT NOT NULL,
        current_period_end TIMESTAMPTZ NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );
    CREATE UNIQUE INDEX IF NOT EXISTS subscriptions_one_active
        ON subscriptions (user_id, league_id) WHERE status = 'active';
`

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.TokenSecret == "" {
		logger.Error("TOKEN_SECRET must be set; it is the sole trust anchor for session tokens")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Establish connection to the PostgreSQL database with pool configuration
	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	dbConfig.MaxConns = 10
	dbConfig.MinConns = 2
	dbConfig.MaxConnLifetime = 30 * time.Minute
	dbConfig.MaxConnIdleTime = 5 * time.Minute
	// Use simple protocol so the service works behind PgBouncer transaction pooling
	dbConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	// Ensure required tables exist (idempotent)
	if _, err := dbpool.Exec(ctx, schema); err != nil {
		logger.Warn("failed ensuring tables (may already exist)", "error", err)
	}

	// Set up the RabbitMQ producer; allow nil on failure so the HTTP surface
	// still comes up when the broker is down.
	var producer rabbitmq.Publisher
	if p, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
		logger.Warn("failed to connect RabbitMQ producer at startup; continuing without MQ", "error", err)
	} else {
		producer = p
		defer p.Close()
		logger.Info("rabbitmq producer connected")
	}

	repository := store.NewPostgresRepository(dbpool)
	tokens := auth.NewTokenService(cfg.TokenSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
	payments := stripeclient.NewClient(cfg.StripeAPIBaseURL, cfg.StripeAPIKey)

	service := app.NewService(repository, payments, tokens, producer, app.CheckoutConfig{
		PriceID:    cfg.StripePriceID,
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
	})

	// Consume provider subscription events to keep the ledger reconciled.
	eventConsumer := app.NewSubscriptionEventConsumer(repository)
	if consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL); err != nil {
		logger.Warn("failed to connect RabbitMQ consumer at startup; ledger reconciliation disabled", "error", err)
	} else {
		defer consumer.Close()
		bindings := map[string]func([]byte) bool{
			app.RoutingKeySubscriptionActivated: eventConsumer.HandleDelivery,
			app.RoutingKeySubscriptionUpdated:   eventConsumer.HandleDelivery,
			app.RoutingKeySubscriptionCanceled:  eventConsumer.HandleDelivery,
		}
		if err := consumer.ConsumeWithBindings(app.BillingEventsExchange, cfg.BillingEventQueue, bindings); err != nil {
			logger.Warn("failed to start billing event consumer", "error", err)
		} else {
			logger.Info("billing event consumer started", "queue", cfg.BillingEventQueue)
		}
	}

	handler := api.NewHandler(service, tokens.TTL(), cfg.IsProduction())
	router := api.NewRouter(handler, tokens)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
