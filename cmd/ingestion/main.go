// Command ingestion starts the article ingestion HTTP service.
//
// The service accepts articles via POST /api/v1/documents, validates them,
// stores them in the PostgreSQL articles table read by the postgres document
// source, and publishes them on the document-ingest topic read by the kafka
// document source.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingestion service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	store := publisher.NewPostgresStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure articles schema", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to postgres")

	var producer kafka.Publisher
	if cfg.Kafka.Enabled {
		p := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, kafka.WithCompression(kafkago.Lz4))
		defer p.Close()
		producer = p
		slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.DocumentIngest)
	}

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping, false))

	h := handler.New(publisher.New(store, producer))
	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mws := []func(http.Handler) http.Handler{middleware.RequestID, middleware.Metrics(m)}
	if cfg.Server.RateLimit > 0 {
		mws = append(mws, middleware.RateLimit(middleware.NewClientRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, 0)))
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
