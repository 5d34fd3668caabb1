package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const defaultRateLimitClients = 10000

// ClientRateLimiter hands out one token bucket per client address. The least
// recently seen clients are evicted once maxClients buckets exist.
type ClientRateLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	buckets *lru.Cache[string, *rate.Limiter]
}

// NewClientRateLimiter allows perSecond requests per client with the given
// burst. maxClients <= 0 selects a default bound.
func NewClientRateLimiter(perSecond float64, burst, maxClients int) *ClientRateLimiter {
	if maxClients <= 0 {
		maxClients = defaultRateLimitClients
	}
	if burst <= 0 {
		burst = max(1, int(perSecond))
	}
	buckets, _ := lru.New[string, *rate.Limiter](maxClients)
	return &ClientRateLimiter{limit: rate.Limit(perSecond), burst: burst, buckets: buckets}
}

// Allow consumes one token for client.
func (l *ClientRateLimiter) Allow(client string) bool {
	l.mu.Lock()
	b, ok := l.buckets.Get(client)
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets.Add(client, b)
	}
	l.mu.Unlock()
	return b.Allow()
}

// RateLimit rejects requests beyond the client's budget with 429. Probe
// endpoints are never limited.
func RateLimit(l *ClientRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}
			if !l.Allow(clientAddr(r)) {
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr prefers the first X-Forwarded-For hop, then the peer address.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
