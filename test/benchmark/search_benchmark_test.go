package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/searcher/executor"
)

func servingExecutor(b *testing.B) *executor.Executor {
	b.Helper()
	exec := executor.New(nil, executor.Options{MaxResults: 1000}, nil)
	if err := exec.Swap(corpus(b, 10000, 10, 500)); err != nil {
		b.Fatal(err)
	}
	return exec
}

// BenchmarkExecutor compares exact lookups with the case-insensitive
// fallback path for each query kind.
func BenchmarkExecutor(b *testing.B) {
	exec := servingExecutor(b)
	ctx := context.Background()
	cases := []struct {
		name  string
		query func(i int) executor.Query
	}{
		{"search_exact", func(i int) executor.Query {
			return executor.Query{Kind: executor.KindSearch, Entity: fmt.Sprintf("Entity %d", i%500), Limit: 10}
		}},
		{"search_fallback", func(i int) executor.Query {
			return executor.Query{Kind: executor.KindSearch, Entity: fmt.Sprintf("entity %d", i%500), Limit: 10}
		}},
		{"search_miss", func(i int) executor.Query {
			return executor.Query{Kind: executor.KindSearch, Entity: "Nobody", Limit: 10}
		}},
		{"top", func(int) executor.Query {
			return executor.Query{Kind: executor.KindTop, Limit: 20}
		}},
		{"related", func(i int) executor.Query {
			return executor.Query{Kind: executor.KindRelated, Entity: fmt.Sprintf("Entity %d", i%500), Limit: 10}
		}},
	}
	for _, c := range cases {
		b.Run(c.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := exec.Execute(ctx, c.query(i)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkExecutorParallel(b *testing.B) {
	exec := servingExecutor(b)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			q := executor.Query{Kind: executor.KindRelated, Entity: fmt.Sprintf("Entity %d", i%500), Limit: 10}
			if _, err := exec.Execute(ctx, q); err != nil {
				b.Fatal(err)
			}
			i++
		}
	})
}

// BenchmarkCachedQuery measures the LRU-backed cache in front of the
// executor once it is warm.
func BenchmarkCachedQuery(b *testing.B) {
	exec := servingExecutor(b)
	qc := cache.New(cache.NewLRUBackend(4096), time.Minute, nil)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q := executor.Query{Kind: executor.KindSearch, Entity: fmt.Sprintf("Entity %d", i%500), Limit: 10}
		_, _, err := qc.GetOrCompute(ctx, q, exec.Generation(), func(ctx context.Context) (*executor.Result, error) {
			return exec.Execute(ctx, q)
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFallbackLookupWideVocabulary(b *testing.B) {
	exec := executor.New(nil, executor.Options{}, nil)
	if err := exec.Swap(corpus(b, 20000, 5, 20000)); err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q := executor.Query{Kind: executor.KindSearch, Entity: strings.ToUpper(fmt.Sprintf("Entity %d", i%20000)), Limit: 1}
		if _, err := exec.Execute(ctx, q); err != nil {
			b.Fatal(err)
		}
	}
}
