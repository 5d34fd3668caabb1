// Command loadtest drives a running searcher with a mix of entity queries
// and reports throughput and latency percentiles per query kind.
//
// The query pool is seeded from the searcher's own top entities, so the
// test exercises hits as well as the case-insensitive fallback path.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s] [-rps 0]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	RPS         float64
	Entities    []string
}

type kindStats struct {
	requests  atomic.Int64
	errors    atomic.Int64
	latencies []time.Duration
	mu        sync.Mutex
}

type Stats struct {
	byKind      map[string]*kindStats
	statusCodes map[int]int64
	mu          sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		byKind: map[string]*kindStats{
			"search":  {},
			"related": {},
			"top":     {},
		},
		statusCodes: make(map[int]int64),
	}
}

func (s *Stats) Record(kind string, d time.Duration, status int, err error) {
	ks := s.byKind[kind]
	ks.requests.Add(1)
	if err != nil || status < 200 || status >= 300 {
		ks.errors.Add(1)
	}
	if err == nil {
		ks.mu.Lock()
		ks.latencies = append(ks.latencies, d)
		ks.mu.Unlock()
	}
	s.mu.Lock()
	s.statusCodes[status]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	rps := flag.Float64("rps", 0, "overall request rate limit, 0 for unlimited")
	seed := flag.Int("seed-entities", 50, "number of top entities used as the query pool")
	flag.Parse()

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        *concurrency * 2,
			MaxIdleConnsPerHost: *concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	entities, err := seedEntities(client, *baseURL, *seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seeding query pool: %v\n", err)
		os.Exit(1)
	}
	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		RPS:         *rps,
		Entities:    entities,
	}

	fmt.Println("=== Entity Index Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Entities:    %d in pool\n", len(cfg.Entities))
	fmt.Println()

	stats := run(client, cfg)
	if printReport(stats, cfg.Duration) == 0 {
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func seedEntities(client *http.Client, baseURL string, k int) ([]string, error) {
	resp, err := client.Get(fmt.Sprintf("%s/api/v1/entities/top?k=%d", baseURL, k))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("top entities: status %d", resp.StatusCode)
	}
	var body struct {
		Entities []struct {
			Entity string `json:"entity"`
		} `json:"entities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding top entities: %w", err)
	}
	if len(body.Entities) == 0 {
		return nil, fmt.Errorf("index has no entities")
	}
	out := make([]string, len(body.Entities))
	for i, e := range body.Entities {
		out[i] = e.Entity
	}
	return out, nil
}

// requestFor cycles through search, related, lower-cased search and top.
func requestFor(cfg Config, n int) (kind, target string) {
	entity := cfg.Entities[n%len(cfg.Entities)]
	switch n % 4 {
	case 0:
		return "search", fmt.Sprintf("%s/api/v1/entities/search?entity=%s&limit=10", cfg.BaseURL, url.QueryEscape(entity))
	case 1:
		return "related", fmt.Sprintf("%s/api/v1/entities/related?entity=%s&k=10", cfg.BaseURL, url.QueryEscape(entity))
	case 2:
		return "search", fmt.Sprintf("%s/api/v1/entities/search?entity=%s&limit=10", cfg.BaseURL, url.QueryEscape(strings.ToLower(entity)))
	default:
		return "top", fmt.Sprintf("%s/api/v1/entities/top?k=20", cfg.BaseURL)
	}
}

func run(client *http.Client, cfg Config) *Stats {
	stats := NewStats()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Concurrency)
	}

	var wg sync.WaitGroup
	fmt.Print("Running")
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				kind, target := requestFor(cfg, n)
				n += cfg.Concurrency

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					return
				}
				start := time.Now()
				resp, err := client.Do(req)
				d := time.Since(start)
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					stats.Record(kind, d, 0, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.Record(kind, d, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func printReport(stats *Stats, duration time.Duration) int64 {
	var total int64
	kinds := []string{"search", "related", "top"}
	for _, kind := range kinds {
		ks := stats.byKind[kind]
		n := ks.requests.Load()
		total += n
		if n == 0 {
			continue
		}
		ks.mu.Lock()
		lat := append([]time.Duration(nil), ks.latencies...)
		ks.mu.Unlock()
		sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })

		fmt.Printf("=== %s ===\n", kind)
		fmt.Printf("Requests:  %d (%.2f/s)\n", n, float64(n)/duration.Seconds())
		fmt.Printf("Errors:    %d (%.2f%%)\n", ks.errors.Load(), float64(ks.errors.Load())/float64(n)*100)
		if len(lat) > 0 {
			fmt.Printf("P50:       %s\n", percentile(lat, 50))
			fmt.Printf("P90:       %s\n", percentile(lat, 90))
			fmt.Printf("P99:       %s\n", percentile(lat, 99))
			fmt.Printf("Max:       %s\n", lat[len(lat)-1])
		}
		fmt.Println()
	}

	fmt.Println("=== Status Codes ===")
	stats.mu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code])
	}
	stats.mu.Unlock()
	return total
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
