package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/resilience"
)

const healthPath = "/health"

// backendClient is the JSON-over-HTTP transport shared by every remote
// recognizer. Calls are rate limited, retried with backoff and guarded by a
// circuit breaker; 4xx answers are permanent and never trip the breaker.
type backendClient struct {
	name      string
	endpoint  string
	client    *http.Client
	transport *http.Transport
	limiter   *rate.Limiter
	breaker   *resilience.CircuitBreaker
	retry     resilience.RetryConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func newBackendClient(name string, cfg config.RecognizerConfig, o options) *backendClient {
	transport := &http.Transport{
		MaxIdleConns:        o.poolSize,
		MaxIdleConnsPerHost: o.poolSize,
		MaxConnsPerHost:     o.poolSize * 2,
		IdleConnTimeout:     30 * time.Second,
	}
	// No client-wide Timeout: every call carries its own context deadline.
	c := &backendClient{
		name:      name,
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		transport: transport,
		client:    &http.Client{Transport: transport},
		retry:     resilience.RetryConfig{MaxAttempts: cfg.RetryAttempts, InitialDelay: 200 * time.Millisecond},
		metrics:   o.metrics,
		logger:    slog.Default().With("component", "recognizer", "backend", name),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := max(1, int(cfg.RequestsPerSecond))
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	c.breaker = resilience.NewCircuitBreaker("recognizer-"+name, resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.BreakerThreshold,
		ResetTimeout:     cfg.BreakerReset,
		IsFailure:        func(err error) bool { return !resilience.IsPermanent(err) },
		OnStateChange: func(breaker string, to resilience.State) {
			if o.metrics != nil {
				o.metrics.CircuitBreakerState.WithLabelValues(breaker).Set(float64(to))
			}
		},
	})
	return c
}

// post sends in as JSON to path and decodes the JSON answer into out.
func (c *backendClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling %s request: %w", c.name, err)
	}
	return resilience.Retry(ctx, c.name+path, c.retry, func() error {
		err := c.breaker.Execute(func() error {
			return c.do(ctx, path, body, out)
		})
		switch {
		case err == nil:
			c.count("ok")
		case errors.Is(err, resilience.ErrCircuitOpen):
			c.count("rejected")
			return resilience.Permanent(err)
		default:
			c.count("error")
			c.logger.Debug("recognizer call failed", "path", path, "error", err)
		}
		return err
	})
}

func (c *backendClient) do(ctx context.Context, path string, body []byte, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return resilience.Permanent(fmt.Errorf("waiting for %s rate limiter: %w", c.name, err))
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return resilience.Permanent(fmt.Errorf("creating %s request: %w", c.name, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return resilience.Permanent(err)
		}
		return fmt.Errorf("calling %s backend: %w", c.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("%s backend returned %d: %s", c.name, resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resilience.Permanent(err)
		}
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resilience.Permanent(fmt.Errorf("decoding %s response: %w", c.name, err))
	}
	return nil
}

// ping checks that the backend answers its health endpoint.
func (c *backendClient) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+healthPath, nil)
	if err != nil {
		return fmt.Errorf("creating health request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

func (c *backendClient) count(status string) {
	if c.metrics != nil {
		c.metrics.RecognizerRequests.WithLabelValues(c.name, status).Inc()
	}
}

func (c *backendClient) close() {
	c.transport.CloseIdleConnections()
}

type textRequest struct {
	Text string `json:"text"`
}
