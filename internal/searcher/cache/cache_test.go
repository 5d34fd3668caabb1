package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/metrics"
)

type brokenBackend struct{}

func (brokenBackend) Name() string { return "broken" }
func (brokenBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (brokenBackend) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (brokenBackend) Flush(context.Context, string) (int64, error) {
	return 0, errors.New("connection refused")
}

var topQuery = executor.Query{Kind: executor.KindTop, Limit: 1}

func topResult() *executor.Result {
	return &executor.Result{
		Kind:      executor.KindTop,
		TotalHits: 1,
		Entities:  []index.EntityCount{{Entity: "Hanoi", Count: 3}},
	}
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := New(NewLRUBackend(16), time.Minute, m)
	ctx := context.Background()
	calls := 0
	compute := func(context.Context) (*executor.Result, error) {
		calls++
		return topResult(), nil
	}

	res, hit, err := c.GetOrCompute(ctx, topQuery, 1, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, topResult(), res)

	res, hit, err = c.GetOrCompute(ctx, topQuery, 1, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, topResult(), res)
	assert.Equal(t, 1, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
}

func TestGetOrCompute_GenerationChangeMisses(t *testing.T) {
	c := New(NewLRUBackend(16), time.Minute, nil)
	ctx := context.Background()
	calls := 0
	compute := func(context.Context) (*executor.Result, error) {
		calls++
		return topResult(), nil
	}

	_, _, err := c.GetOrCompute(ctx, topQuery, 1, compute)
	require.NoError(t, err)
	_, hit, err := c.GetOrCompute(ctx, topQuery, 2, compute)
	require.NoError(t, err)

	assert.False(t, hit)
	assert.Equal(t, 2, calls)
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	c := New(NewLRUBackend(16), time.Minute, nil)
	ctx := context.Background()

	_, _, err := c.GetOrCompute(ctx, topQuery, 1, func(context.Context) (*executor.Result, error) {
		return nil, errors.New("index not loaded")
	})
	require.Error(t, err)

	_, ok := c.Get(ctx, topQuery, 1)
	assert.False(t, ok)
}

func TestGetOrCompute_SharesConcurrentComputation(t *testing.T) {
	c := New(NewLRUBackend(16), time.Minute, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (*executor.Result, error) {
		calls.Add(1)
		<-release
		return topResult(), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), topQuery, 1, compute)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestGetOrCompute_LeaderCancellationDoesNotFailWaiters(t *testing.T) {
	c := New(NewLRUBackend(16), time.Minute, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	var (
		computeErr atomic.Value
		once       sync.Once
	)
	compute := func(ctx context.Context) (*executor.Result, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			computeErr.Store(err)
			return nil, err
		}
		return topResult(), nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(leaderCtx, topQuery, 1, compute)
		leaderDone <- err
	}()
	<-started

	waiterDone := make(chan *executor.Result, 1)
	go func() {
		res, _, err := c.GetOrCompute(context.Background(), topQuery, 1, compute)
		assert.NoError(t, err)
		waiterDone <- res
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leaderDone, context.Canceled)
	close(release)

	assert.Equal(t, topResult(), <-waiterDone)
	assert.Nil(t, computeErr.Load())

	res, ok := c.Get(context.Background(), topQuery, 1)
	require.True(t, ok)
	assert.Equal(t, topResult(), res)
}

func TestBrokenBackendFallsThroughToCompute(t *testing.T) {
	c := New(brokenBackend{}, time.Minute, nil)

	res, hit, err := c.GetOrCompute(context.Background(), topQuery, 1, func(context.Context) (*executor.Result, error) {
		return topResult(), nil
	})

	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, topResult(), res)
	assert.Error(t, c.Invalidate(context.Background()))
}

func TestInvalidate(t *testing.T) {
	c := New(NewLRUBackend(16), time.Minute, nil)
	ctx := context.Background()
	c.Set(ctx, topQuery, 1, topResult())

	require.NoError(t, c.Invalidate(ctx))

	_, ok := c.Get(ctx, topQuery, 1)
	assert.False(t, ok)
}

func TestLRUBackend_Expiry(t *testing.T) {
	b := NewLRUBackend(4)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "k", []byte("v"), time.Second))
	v, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	now = now.Add(2 * time.Second)
	_, ok, err = b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLRUBackend_Evicts(t *testing.T) {
	b := NewLRUBackend(2)
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, b.Set(ctx, k, []byte(k), 0))
	}

	_, ok, _ := b.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = b.Get(ctx, "c")
	assert.True(t, ok)
}

func TestBuildKey(t *testing.T) {
	a := buildKey(executor.Query{Kind: executor.KindSearch, Entity: "Hanoi", Limit: 10}, 1)
	b := buildKey(executor.Query{Kind: executor.KindSearch, Entity: "hanoi", Limit: 10}, 1)
	c := buildKey(executor.Query{Kind: executor.KindRelated, Entity: "Hanoi", Limit: 10}, 1)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, buildKey(executor.Query{Kind: executor.KindSearch, Entity: "Hanoi", Limit: 10}, 1))
	assert.Contains(t, a, keyPrefix)
}
