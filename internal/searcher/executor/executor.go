// Package executor answers entity queries against the currently loaded
// index. The index is swapped atomically on reload, so queries never block
// on a reload and always see one consistent snapshot.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/snapshot"
	apperrors "github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/metrics"
)

type Kind string

const (
	KindSearch  Kind = "search"
	KindTop     Kind = "top"
	KindRelated Kind = "related"
)

// Query is one request to the executor. Entity is ignored for KindTop.
// Limit <= 0 means no limit.
type Query struct {
	Kind   Kind   `json:"kind"`
	Entity string `json:"entity,omitempty"`
	Limit  int    `json:"limit"`
}

// Result is the answer to a Query. Matched is the index key that answered
// it; Fallback is set when that key differs from the query only by case.
type Result struct {
	Kind      Kind                `json:"kind"`
	Query     string              `json:"query,omitempty"`
	Matched   string              `json:"matched,omitempty"`
	Fallback  bool                `json:"fallback,omitempty"`
	TotalHits int                 `json:"total_hits"`
	Documents []string            `json:"documents,omitempty"`
	Entities  []index.EntityCount `json:"entities,omitempty"`
	Partial   bool                `json:"partial,omitempty"`
}

type Options struct {
	// AllowPartial permits serving a snapshot from an interrupted build.
	AllowPartial bool
	// MaxResults caps every result list. Zero means no cap.
	MaxResults int
	Index      index.Options
}

type Executor struct {
	store      snapshot.Store
	opts       Options
	metrics    *metrics.Metrics
	logger     *slog.Logger
	current    atomic.Pointer[index.Index]
	generation atomic.Uint64
	loadedAt   atomic.Int64
	reloadMu   sync.Mutex
}

// New returns an executor with no index loaded. store may be nil when the
// index is installed with Swap. m may be nil.
func New(store snapshot.Store, opts Options, m *metrics.Metrics) *Executor {
	return &Executor{
		store:   store,
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Reload loads the snapshot from the store and swaps it in. On failure the
// previous index, if any, stays in service.
func (e *Executor) Reload(ctx context.Context) error {
	if e.store == nil {
		return fmt.Errorf("%w: no snapshot store configured", apperrors.ErrRebuildRequired)
	}
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	x, err := snapshot.Load(ctx, e.store, e.opts.Index, e.metrics)
	if err == nil {
		err = e.Swap(x)
	}
	if err != nil {
		e.reloadMetric("error")
		e.logger.Error("snapshot reload failed", "location", e.store.Location(), "error", err)
		return err
	}
	e.reloadMetric("ok")
	return nil
}

// Swap installs x as the serving index. Incomplete indexes are refused
// unless AllowPartial is set.
func (e *Executor) Swap(x *index.Index) error {
	if !x.Complete() && !e.opts.AllowPartial {
		return fmt.Errorf("%w: snapshot is from an interrupted build", apperrors.ErrIncompleteIndex)
	}
	x.Seal()
	e.current.Store(x)
	gen := e.generation.Add(1)
	e.loadedAt.Store(time.Now().Unix())
	e.logger.Info("index installed", "generation", gen, "index", x.String())
	return nil
}

// Generation increases by one on every successful swap. Caches key on it.
func (e *Executor) Generation() uint64 { return e.generation.Load() }

// LoadedAt is when the serving index was installed.
func (e *Executor) LoadedAt() time.Time { return time.Unix(e.loadedAt.Load(), 0) }

// Index returns the serving index.
func (e *Executor) Index() (*index.Index, error) {
	x := e.current.Load()
	if x == nil {
		return nil, apperrors.ErrIndexNotLoaded
	}
	return x, nil
}

// HealthCheck reports the serving index to readiness probes: down with no
// index, degraded while a partial index is served, up otherwise.
func (e *Executor) HealthCheck(context.Context) health.ComponentHealth {
	x, err := e.Index()
	if err != nil {
		return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
	}
	st := x.Stats()
	out := health.ComponentHealth{
		Status: health.StatusUp,
		Details: map[string]any{
			"generation": e.Generation(),
			"entities":   st.Entities,
			"documents":  st.Documents,
			"loaded_at":  e.LoadedAt().UTC().Format(time.RFC3339),
		},
	}
	if !st.Complete {
		out.Status = health.StatusDegraded
		out.Message = "serving a partial index"
	}
	return out
}

// Execute dispatches q by kind.
func (e *Executor) Execute(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()
	x, err := e.Index()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var res *Result
	switch q.Kind {
	case KindSearch:
		res, err = e.search(x, q)
	case KindTop:
		res = e.top(x, q)
	case KindRelated:
		res, err = e.related(x, q)
	default:
		err = apperrors.Newf(apperrors.ErrInvalidInput, 400, "unknown query kind %q", q.Kind)
	}
	if err != nil {
		return nil, err
	}
	res.Partial = !x.Complete()

	if e.metrics != nil {
		resultType := "hit"
		if res.TotalHits == 0 {
			resultType = "miss"
		} else if res.Fallback {
			resultType = "fallback"
		}
		e.metrics.QueriesTotal.WithLabelValues(string(q.Kind), resultType).Inc()
		e.metrics.QueryResultsCount.WithLabelValues(string(q.Kind)).Observe(float64(res.TotalHits))
	}
	e.logger.Debug("query executed",
		"kind", q.Kind,
		"entity", q.Entity,
		"matched", res.Matched,
		"total_hits", res.TotalHits,
		"latency_us", time.Since(start).Microseconds(),
	)
	return res, nil
}

// Search returns the documents mentioning entity.
func (e *Executor) Search(ctx context.Context, entity string, limit int) (*Result, error) {
	return e.Execute(ctx, Query{Kind: KindSearch, Entity: entity, Limit: limit})
}

// Top returns the k most frequent entities.
func (e *Executor) Top(ctx context.Context, k int) (*Result, error) {
	return e.Execute(ctx, Query{Kind: KindTop, Limit: k})
}

// Related returns the k strongest co-occurrence partners of entity.
func (e *Executor) Related(ctx context.Context, entity string, k int) (*Result, error) {
	return e.Execute(ctx, Query{Kind: KindRelated, Entity: entity, Limit: k})
}

// Stats summarises the serving index.
func (e *Executor) Stats() (index.Stats, error) {
	x, err := e.Index()
	if err != nil {
		return index.Stats{}, err
	}
	return x.Stats(), nil
}

func (e *Executor) search(x *index.Index, q Query) (*Result, error) {
	if q.Entity == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "entity is required")
	}
	res := &Result{Kind: KindSearch, Query: q.Entity}
	key, fallback, ok := resolve(x, q.Entity)
	if !ok {
		res.Documents = []string{}
		return res, nil
	}
	docs := x.Search(key)
	res.Matched, res.Fallback = key, fallback
	res.TotalHits = len(docs)
	res.Documents = docs[:e.limit(q.Limit, len(docs))]
	return res, nil
}

func (e *Executor) top(x *index.Index, q Query) *Result {
	ents := x.TopEntities(e.limit(q.Limit, x.Stats().Entities))
	return &Result{Kind: KindTop, TotalHits: len(ents), Entities: ents}
}

func (e *Executor) related(x *index.Index, q Query) (*Result, error) {
	if q.Entity == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "entity is required")
	}
	res := &Result{Kind: KindRelated, Query: q.Entity}
	key, fallback, ok := resolve(x, q.Entity)
	if !ok {
		res.Entities = []index.EntityCount{}
		return res, nil
	}
	ents := x.RelatedEntities(key, 0)
	if len(ents) == 0 {
		// An exact key with no partners defers to a case variant that has some.
		if k, found := x.FindFoldRelated(q.Entity); found && k != key {
			key, fallback = k, true
			ents = x.RelatedEntities(key, 0)
		}
	}
	res.Matched, res.Fallback = key, fallback
	res.TotalHits = len(ents)
	res.Entities = ents[:e.limit(q.Limit, len(ents))]
	return res, nil
}

// limit applies the request limit and MaxResults to a list of n items.
func (e *Executor) limit(requested, n int) int {
	if requested > 0 && requested < n {
		n = requested
	}
	if e.opts.MaxResults > 0 && e.opts.MaxResults < n {
		n = e.opts.MaxResults
	}
	return n
}

// resolve finds the index key for query: exact match first, then the
// lexically first case-insensitive match.
func resolve(x *index.Index, query string) (key string, fallback, ok bool) {
	if x.Has(query) {
		return query, false, true
	}
	if k, found := x.FindFold(query); found {
		return k, true, true
	}
	return "", false, false
}

func (e *Executor) reloadMetric(status string) {
	if e.metrics != nil {
		e.metrics.SnapshotReloadsTotal.WithLabelValues(status).Inc()
	}
}
