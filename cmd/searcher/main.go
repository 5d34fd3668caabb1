// Command searcher serves entity queries over HTTP from the latest index
// snapshot.
//
// The snapshot is loaded at start-up and reloaded when the local snapshot
// file changes, when an index-ready event arrives on Kafka, or on
// POST /api/v1/index/reload. Results are cached in Redis when it is enabled
// and in an in-process LRU otherwise.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/redis"
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
	slog.Info("starting search service", "port", cfg.Server.Port, "snapshot", cfg.Snapshot.Store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	store, err := snapshot.NewStore(ctx, cfg.Snapshot)
	if err != nil {
		slog.Error("failed to open snapshot store", "error", err)
		os.Exit(1)
	}
	exec := executor.New(store, executor.Options{
		AllowPartial: cfg.Search.AllowPartial,
		MaxResults:   cfg.Search.MaxResults,
		Index: index.Options{
			WarnDistinct:    cfg.Indexer.WarnDistinctEntities,
			MaxPairEntities: cfg.Indexer.MaxPairEntities,
		},
	}, m)
	if err := exec.Reload(ctx); err != nil {
		// Keep serving health and reload endpoints; queries return 503
		// until a snapshot arrives.
		slog.Warn("no usable snapshot at start-up, rebuild required", "location", store.Location(), "error", err)
	}

	checker := health.NewChecker()
	checker.Register("index", exec.HealthCheck)

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, falling back to local cache", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(cache.NewRedisBackend(redisClient), cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.PingCheck(redisClient.Ping, true))
			slog.Info("search cache enabled", "backend", "redis", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	if queryCache == nil && cfg.Search.LocalCacheSize > 0 {
		queryCache = cache.New(cache.NewLRUBackend(cfg.Search.LocalCacheSize), cfg.Redis.CacheTTL, m)
		slog.Info("search cache enabled", "backend", "lru", "size", cfg.Search.LocalCacheSize)
	}

	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable", "error", err)
		} else {
			defer db.Close()
			checker.Register("postgres", health.PingCheck(db.Ping, true))
		}
	}

	if cfg.Snapshot.Store == "local" && cfg.Search.WatchSnapshot {
		go func() {
			if err := exec.WatchFile(ctx, cfg.Snapshot.Path, 0); err != nil {
				slog.Error("snapshot watcher stopped", "error", err)
			}
		}()
	}

	if cfg.Kafka.Enabled {
		host, _ := os.Hostname()
		var inv reload.Invalidator
		if queryCache != nil {
			inv = queryCache
		}
		// Every replica must see every event, so each gets its own group.
		kc := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexReady,
			reload.HandleMessage(exec, inv, cfg.Search.AllowPartial),
			kafka.WithGroup(fmt.Sprintf("%s-searcher-%s", cfg.Kafka.ConsumerGroup, host)),
		)
		consumer := reload.New(kc)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("reload consumer error", "error", err)
			}
		}()
		slog.Info("listening for index-ready events", "topic", cfg.Kafka.Topics.IndexReady)
	}

	h := handler.New(exec, queryCache, handler.Limits{
		DefaultTopK:     cfg.Search.DefaultTopK,
		DefaultRelatedK: cfg.Search.DefaultRelatedK,
		MaxResults:      cfg.Search.MaxResults,
	}, m)

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Metrics(m),
		middleware.CORS(cfg.Server.CORSOrigins),
	}
	if cfg.Server.RateLimit > 0 {
		mws = append(mws, middleware.RateLimit(middleware.NewClientRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, 0)))
	}
	mws = append(mws, middleware.Timeout(cfg.Search.RequestTimeout))

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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
