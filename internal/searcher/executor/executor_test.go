package executor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/snapshot"
	apperrors "github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/metrics"
)

func fixture(t *testing.T, complete bool) *index.Index {
	t.Helper()
	x := index.New(index.Options{})
	merge := func(id string, names ...string) {
		ents := make([]index.Entity, len(names))
		for i, n := range names {
			ents[i] = index.Entity{Text: n, Type: "LOCATION"}
		}
		_, err := x.Merge(id, ents)
		require.NoError(t, err)
	}
	merge("D1", "Hanoi", "Hanoi", "Mai")
	merge("D2", "Hanoi", "Minh")
	merge("D3", "Hanoi", "Mai", "Hue")
	if complete {
		x.MarkComplete()
	}
	x.Seal()
	return x
}

func loaded(t *testing.T, opts Options) *Executor {
	t.Helper()
	e := New(nil, opts, nil)
	require.NoError(t, e.Swap(fixture(t, true)))
	return e
}

func TestExecute_NotLoaded(t *testing.T) {
	e := New(nil, Options{}, nil)

	_, err := e.Search(context.Background(), "Hanoi", 10)
	assert.ErrorIs(t, err, apperrors.ErrIndexNotLoaded)
	assert.Equal(t, health.StatusDown, e.HealthCheck(context.Background()).Status)
}

func TestHealthCheck(t *testing.T) {
	e := loaded(t, Options{})
	h := e.HealthCheck(context.Background())
	assert.Equal(t, health.StatusUp, h.Status)
	assert.Equal(t, uint64(1), h.Details["generation"])
	assert.Equal(t, 4, h.Details["entities"])
	assert.Equal(t, 3, h.Details["documents"])

	partial := New(nil, Options{AllowPartial: true}, nil)
	require.NoError(t, partial.Swap(fixture(t, false)))
	h = partial.HealthCheck(context.Background())
	assert.Equal(t, health.StatusDegraded, h.Status)
	assert.Equal(t, "serving a partial index", h.Message)
}

func TestSearch(t *testing.T) {
	e := loaded(t, Options{})

	res, err := e.Search(context.Background(), "Hanoi", 0)
	require.NoError(t, err)
	assert.Equal(t, "Hanoi", res.Matched)
	assert.False(t, res.Fallback)
	assert.Equal(t, 3, res.TotalHits)
	assert.Equal(t, []string{"D1", "D2", "D3"}, res.Documents)

	res, err = e.Search(context.Background(), "Hanoi", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalHits)
	assert.Equal(t, []string{"D1", "D2"}, res.Documents)
}

func TestSearch_CaseInsensitiveFallback(t *testing.T) {
	e := loaded(t, Options{})

	res, err := e.Search(context.Background(), "hANOI", 0)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, "Hanoi", res.Matched)
	assert.Equal(t, 3, res.TotalHits)
}

func TestSearch_MissIsEmpty(t *testing.T) {
	e := loaded(t, Options{})

	res, err := e.Search(context.Background(), "Nonexistent", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalHits)
	assert.NotNil(t, res.Documents)
	assert.Empty(t, res.Documents)
	assert.Empty(t, res.Matched)
}

func TestSearch_EmptyEntity(t *testing.T) {
	e := loaded(t, Options{})

	_, err := e.Search(context.Background(), "", 10)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestTop(t *testing.T) {
	e := loaded(t, Options{})

	res, err := e.Top(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []index.EntityCount{{Entity: "Hanoi", Count: 4}}, res.Entities)

	res, err = e.Top(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []index.EntityCount{
		{Entity: "Hanoi", Count: 4},
		{Entity: "Mai", Count: 2},
		{Entity: "Hue", Count: 1},
		{Entity: "Minh", Count: 1},
	}, res.Entities)
}

func TestRelated(t *testing.T) {
	e := loaded(t, Options{})

	res, err := e.Related(context.Background(), "hanoi", 2)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, 3, res.TotalHits)
	assert.Equal(t, []index.EntityCount{
		{Entity: "Mai", Count: 2},
		{Entity: "Hue", Count: 1},
	}, res.Entities)

	res, err = e.Related(context.Background(), "Saigon", 5)
	require.NoError(t, err)
	assert.NotNil(t, res.Entities)
	assert.Empty(t, res.Entities)
}

func TestRelated_IsolatedExactKeyFallsBackToCaseVariant(t *testing.T) {
	x := index.New(index.Options{})
	_, err := x.Merge("d1", []index.Entity{{Text: "Hanoi", Type: "LOCATION"}, {Text: "Mai", Type: "PERSON"}})
	require.NoError(t, err)
	_, err = x.Merge("d2", []index.Entity{{Text: "hanoi", Type: "LOCATION"}})
	require.NoError(t, err)
	x.MarkComplete()
	x.Seal()

	e := New(nil, Options{}, nil)
	require.NoError(t, e.Swap(x))

	res, err := e.Related(context.Background(), "hanoi", 10)
	require.NoError(t, err)
	assert.Equal(t, "Hanoi", res.Matched)
	assert.True(t, res.Fallback)
	assert.Equal(t, 1, res.TotalHits)
	assert.Equal(t, []index.EntityCount{{Entity: "Mai", Count: 1}}, res.Entities)

	// Search still honours the exact key.
	res, err = e.Search(context.Background(), "hanoi", 10)
	require.NoError(t, err)
	assert.Equal(t, "hanoi", res.Matched)
	assert.False(t, res.Fallback)
}

func TestMaxResultsCaps(t *testing.T) {
	e := loaded(t, Options{MaxResults: 1})

	res, err := e.Search(context.Background(), "Hanoi", 100)
	require.NoError(t, err)
	assert.Len(t, res.Documents, 1)
	assert.Equal(t, 3, res.TotalHits)
}

func TestExecute_UnknownKind(t *testing.T) {
	e := loaded(t, Options{})

	_, err := e.Execute(context.Background(), Query{Kind: "pairs"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSwap_RefusesPartialUnlessAllowed(t *testing.T) {
	e := New(nil, Options{}, nil)
	err := e.Swap(fixture(t, false))
	assert.ErrorIs(t, err, apperrors.ErrIncompleteIndex)
	assert.Equal(t, uint64(0), e.Generation())

	e = New(nil, Options{AllowPartial: true}, nil)
	require.NoError(t, e.Swap(fixture(t, false)))
	res, err := e.Top(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, uint64(1), e.Generation())
}

func TestReload_FromStore(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewLocalStore(filepath.Join(t.TempDir(), "index.eidx"))
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e := New(store, Options{}, m)

	err := e.Reload(ctx)
	assert.ErrorIs(t, err, apperrors.ErrRebuildRequired)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotReloadsTotal.WithLabelValues("error")))

	_, err = snapshot.Save(ctx, store, fixture(t, true), snapshot.CompressionZstd, nil)
	require.NoError(t, err)
	require.NoError(t, e.Reload(ctx))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotReloadsTotal.WithLabelValues("ok")))

	res, err := e.Search(ctx, "Mai", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"D1", "D3"}, res.Documents)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("search", "hit")))
}

func TestReload_FailureKeepsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewLocalStore(filepath.Join(t.TempDir(), "index.eidx"))
	e := New(store, Options{}, nil)
	require.NoError(t, e.Swap(fixture(t, true)))

	_, err := snapshot.Save(ctx, store, fixture(t, false), snapshot.CompressionNone, nil)
	require.NoError(t, err)

	err = e.Reload(ctx)
	assert.ErrorIs(t, err, apperrors.ErrIncompleteIndex)

	res, err := e.Search(ctx, "Hanoi", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalHits)
	assert.Equal(t, uint64(1), e.Generation())
}

func TestWatchFile_ReloadsOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	path := filepath.Join(t.TempDir(), "index.eidx")
	store := snapshot.NewLocalStore(path)
	e := New(store, Options{}, nil)

	done := make(chan error, 1)
	go func() { done <- e.WatchFile(ctx, path, 20*time.Millisecond) }()
	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)

	_, err := snapshot.Save(ctx, store, fixture(t, true), snapshot.CompressionLZ4, nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return e.Generation() == 1 }, 3*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
