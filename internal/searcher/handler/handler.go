// Package handler exposes the query service over HTTP:
//
//	GET  /api/v1/entities/search?entity=Hanoi&limit=50
//	GET  /api/v1/entities/top?k=20
//	GET  /api/v1/entities/related?entity=Hanoi&k=10
//	GET  /api/v1/index/stats
//	POST /api/v1/index/reload
//	GET  /api/v1/cache/stats
//	POST /api/v1/cache/invalidate
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/metrics"
)

// QueryExecutor is the part of executor.Executor the handler uses.
type QueryExecutor interface {
	Execute(ctx context.Context, q executor.Query) (*executor.Result, error)
	Reload(ctx context.Context) error
	Stats() (index.Stats, error)
	Generation() uint64
	LoadedAt() time.Time
}

type Limits struct {
	DefaultTopK     int
	DefaultRelatedK int
	DefaultSearch   int
	MaxResults      int
}

type Handler struct {
	executor QueryExecutor
	cache    *cache.QueryCache
	limits   Limits
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New builds a Handler. queryCache and m may be nil.
func New(exec QueryExecutor, queryCache *cache.QueryCache, limits Limits, m *metrics.Metrics) *Handler {
	return &Handler{
		executor: exec,
		cache:    queryCache,
		limits:   limits,
		metrics:  m,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/entities/search", h.Search)
	mux.HandleFunc("GET /api/v1/entities/top", h.Top)
	mux.HandleFunc("GET /api/v1/entities/related", h.Related)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	entity := r.URL.Query().Get("entity")
	if entity == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'entity' is required")
		return
	}
	limit, err := h.parseLimit(r, "limit", h.limits.DefaultSearch)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.run(w, r, executor.Query{Kind: executor.KindSearch, Entity: entity, Limit: limit})
}

func (h *Handler) Top(w http.ResponseWriter, r *http.Request) {
	k, err := h.parseLimit(r, "k", h.limits.DefaultTopK)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.run(w, r, executor.Query{Kind: executor.KindTop, Limit: k})
}

func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	entity := r.URL.Query().Get("entity")
	if entity == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'entity' is required")
		return
	}
	k, err := h.parseLimit(r, "k", h.limits.DefaultRelatedK)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.run(w, r, executor.Query{Kind: executor.KindRelated, Entity: entity, Limit: k})
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, q executor.Query) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var (
		result   *executor.Result
		err      error
		cacheHit bool
	)
	if h.cache != nil {
		gen := h.executor.Generation()
		result, cacheHit, err = h.cache.GetOrCompute(ctx, q, gen, func(ctx context.Context) (*executor.Result, error) {
			return h.executor.Execute(ctx, q)
		})
	} else {
		result, err = h.executor.Execute(ctx, q)
	}
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("query failed", "kind", q.Kind, "entity", q.Entity, "error", err, "status_code", status)
		h.writeError(w, status, publicMessage(err))
		return
	}

	latency := time.Since(start)
	if h.metrics != nil {
		cacheStatus := "disabled"
		if h.cache != nil {
			cacheStatus = "miss"
			if cacheHit {
				cacheStatus = "hit"
			}
		}
		h.metrics.QueryLatency.WithLabelValues(string(q.Kind), cacheStatus).Observe(latency.Seconds())
	}
	log.Info("query completed",
		"kind", q.Kind,
		"entity", q.Entity,
		"matched", result.Matched,
		"total_hits", result.TotalHits,
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.executor.Stats()
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), publicMessage(err))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"stats":      stats,
		"generation": h.executor.Generation(),
		"loaded_at":  h.executor.LoadedAt().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.executor.Reload(ctx); err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), publicMessage(err))
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx); err != nil {
			logger.FromContext(ctx).Warn("cache invalidation after reload failed", "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "reloaded",
		"generation": h.executor.Generation(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) parseLimit(r *http.Request, name string, def int) (int, error) {
	limit := def
	if s := r.URL.Query().Get(name); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 1 {
			return 0, fmt.Errorf("%s must be a positive integer", name)
		}
		limit = parsed
	}
	if h.limits.MaxResults > 0 && (limit <= 0 || limit > h.limits.MaxResults) {
		limit = h.limits.MaxResults
	}
	return limit, nil
}

// publicMessage hides internal error detail from clients.
func publicMessage(err error) string {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr.Message
	case errors.Is(err, apperrors.ErrIndexNotLoaded):
		return "index not loaded"
	case errors.Is(err, apperrors.ErrRebuildRequired):
		return "snapshot unavailable, rebuild required"
	case errors.Is(err, apperrors.ErrIncompleteIndex):
		return "snapshot is from an interrupted build"
	case errors.Is(err, context.DeadlineExceeded):
		return "query timed out"
	default:
		return "query failed"
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
