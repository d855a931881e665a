package main

// GET    /health
// GET    /categories              POST /categories
// PUT    /categories/{id}         DELETE /categories/{id}
// GET    /products                POST /products
// GET    /products/{id}           PUT /products/{id}       DELETE /products/{id}
// GET    /invoices                POST /invoices
// GET    /invoices/{id}           DELETE /invoices/{id}
// PUT    /invoices/{id}/items

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Ameur-sidahmed/Stocks-backend/applog"
	"github.com/Ameur-sidahmed/Stocks-backend/cache"
	"github.com/Ameur-sidahmed/Stocks-backend/config"
	"github.com/Ameur-sidahmed/Stocks-backend/handler"
	"github.com/Ameur-sidahmed/Stocks-backend/kafka"
	"github.com/Ameur-sidahmed/Stocks-backend/migrations"
	"github.com/Ameur-sidahmed/Stocks-backend/outbox"
	"github.com/Ameur-sidahmed/Stocks-backend/service"
	"github.com/Ameur-sidahmed/Stocks-backend/store"
	"github.com/Ameur-sidahmed/Stocks-backend/telemetry"
)

const serviceName = "stocks-backend"

func main() {
	// .env is optional; real deployments use the environment
	_ = godotenv.Load()

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := applog.New(cfg.Log.Level, cfg.Env)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// --- Tracing ---
	var shutdownTracer func(context.Context) error
	if cfg.Tracing.Endpoint != "" {
		tp, err := telemetry.InitTracer(ctx, serviceName, cfg.Tracing.Endpoint, cfg.Env)
		if err != nil {
			logger.Fatal("init tracer", zap.Error(err))
		}
		shutdownTracer = tp.Shutdown
	}

	// --- Store + migrations ---
	st, err := store.Open(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("connect to postgres", zap.Error(err))
	}
	defer st.Close()

	if err := migrations.Up(st.DB.DB); err != nil {
		logger.Fatal("run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// --- Service ---
	var svc service.ServiceInterface = service.NewService(st, logger, cfg.Kafka.Topic)

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		svc = cache.New(svc, rdb, cfg.Redis.TTL, logger)
		logger.Info("redis cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	// --- Outbox relay ---
	// relayDone is closed once the relay has returned; publisher and store
	// must outlive it.
	relayDone := make(chan struct{})
	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := kafka.NewPublisher(cfg.Kafka.Brokers, logger)
		if err != nil {
			logger.Fatal("create kafka publisher", zap.Error(err))
		}
		defer pub.Close()

		relay := outbox.NewRelay(st, pub, logger, cfg.Outbox.BatchSize, cfg.Outbox.Interval)
		go func() {
			defer close(relayDone)
			relay.Start(ctx)
		}()
	} else {
		close(relayDone)
		logger.Warn("no kafka brokers configured, invoice events stay in the outbox table")
	}

	// --- HTTP ---
	h := handler.NewHandler(svc, logger, cfg.HTTP.RequestTimeout)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           h.Router(cfg.HTTP.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("server running", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}

	select {
	case <-relayDone:
	case <-shutdownCtx.Done():
		logger.Error("outbox relay did not stop before the shutdown timeout")
	}
	if shutdownTracer != nil {
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("tracer shutdown", zap.Error(err))
		}
	}
}
