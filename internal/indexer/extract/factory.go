package extract

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/metrics"
)

// Backend names accepted in recognizer.backend.
const (
	BackendTagStream  = "tagstream"
	BackendProperNoun = "propernoun"
	BackendHeuristic  = "heuristic"
	BackendChunked    = "chunked"
)

const healthCheckTimeout = 10 * time.Second

type options struct {
	metrics  *metrics.Metrics
	poolSize int
}

// Option customises New.
type Option func(*options)

// WithMetrics records recognizer request counts and breaker state.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithPoolSize sizes the HTTP connection pool, normally to the worker count.
func WithPoolSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.poolSize = n
		}
	}
}

// New builds the extractor named by cfg.Backend. Remote backends are probed
// before New returns; an unreachable backend yields an error matching
// errors.ErrBackendUnavailable so that a build fails before reading any
// document.
func New(ctx context.Context, cfg config.RecognizerConfig, opts ...Option) (Extractor, error) {
	o := options{poolSize: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&o)
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == BackendHeuristic {
		return NewProperNounExtractor(BackendHeuristic, HeuristicTagger{}), nil
	}

	var client *backendClient
	switch backend {
	case BackendTagStream, BackendProperNoun, BackendChunked:
		client = newBackendClient(backend, cfg, o)
	default:
		return nil, fmt.Errorf("%w: unknown recognizer backend %q (want %s, %s, %s or %s)",
			apperrors.ErrInvalidInput, cfg.Backend, BackendTagStream, BackendProperNoun, BackendChunked, BackendHeuristic)
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
		if err := client.ping(checkCtx); err != nil {
			client.close()
			return nil, fmt.Errorf("%w: %s backend at %s: %w", apperrors.ErrBackendUnavailable, backend, cfg.Endpoint, err)
		}
	}

	switch backend {
	case BackendTagStream:
		return &TagStreamExtractor{client: client}, nil
	case BackendProperNoun:
		e := NewProperNounExtractor(BackendProperNoun, &httpPOSTagger{client: client})
		e.closer = client.close
		return e, nil
	default:
		e := NewChunkedExtractor(&httpGroupRecognizer{client: client}, cfg.MaxTokens, cfg.MinScore)
		e.closer = client.close
		return e, nil
	}
}
