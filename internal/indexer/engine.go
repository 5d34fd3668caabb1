// Package indexer runs index builds: documents from a source are extracted
// in parallel by a bounded worker pool and merged into a single index by one
// consumer goroutine.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/extract"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/resilience"
)

const maxRecordedFailures = 100

// Options configures a build.
type Options struct {
	Workers        int
	QueueSize      int
	ExtractTimeout time.Duration
	Index          index.Options
	// ProgressEvery calls OnProgress after every n finished documents.
	ProgressEvery int
	OnProgress    func(Progress)
}

// OptionsFromConfig maps the indexer config section onto build options.
func OptionsFromConfig(cfg config.IndexerConfig) Options {
	return Options{
		Workers:        cfg.Workers,
		QueueSize:      cfg.QueueSize,
		ExtractTimeout: cfg.ExtractTimeout,
		ProgressEvery:  cfg.ProgressEvery,
		Index: index.Options{
			WarnDistinct:    cfg.WarnDistinctEntities,
			MaxPairEntities: cfg.MaxPairEntities,
		},
	}
}

// Progress is a point-in-time view of a running build.
type Progress struct {
	Read    int64
	Merged  int
	Failed  int
	Elapsed time.Duration
}

// Failure records one document whose extraction failed.
type Failure struct {
	DocID string
	Err   error
}

// Report summarises a finished or interrupted build.
type Report struct {
	Backend  string
	Source   string
	Read     int
	Merged   int
	Failed   int
	Flagged  int
	Capped   int
	Mentions int
	Complete bool
	Duration time.Duration
	// Failures holds the first failures in arrival order.
	Failures []Failure
}

type result struct {
	docID    string
	entities []index.Entity
	err      error
}

// Engine coordinates builds with one extractor.
type Engine struct {
	extractor extract.Extractor
	opts      Options
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewEngine returns an Engine. m may be nil.
func NewEngine(ex extract.Extractor, opts Options, m *metrics.Metrics) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = opts.Workers * 4
	}
	return &Engine{
		extractor: ex,
		opts:      opts,
		metrics:   m,
		logger:    slog.Default().With("component", "indexer", "backend", ex.Name()),
	}
}

// Build indexes every document of src. A document whose extraction fails is
// logged, counted and left out of the index; it never aborts the build.
//
// The returned index is always sealed. It is complete only when the source
// was drained without error and ctx was not cancelled; otherwise the
// contributions merged so far are kept and the error is returned alongside.
func (e *Engine) Build(ctx context.Context, src source.Source) (*index.Index, Report, error) {
	start := time.Now()
	x := index.New(e.opts.Index)
	rep := Report{Backend: e.extractor.Name(), Source: src.Name()}

	e.logger.Info("build started",
		"source", src.Name(),
		"workers", e.opts.Workers,
		"queue_size", e.opts.QueueSize,
	)

	docs := make(chan source.Document, e.opts.QueueSize)
	results := make(chan result, e.opts.QueueSize)
	var read atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(docs)
		err := src.Walk(gctx, func(d source.Document) error {
			select {
			case docs <- d:
				read.Add(1)
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
		if err != nil {
			return fmt.Errorf("reading source %s: %w", src.Name(), err)
		}
		return nil
	})
	for i := 0; i < e.opts.Workers; i++ {
		g.Go(func() error {
			for d := range docs {
				r := e.extract(gctx, d)
				if r.err != nil && gctx.Err() != nil {
					return gctx.Err()
				}
				select {
				case results <- r:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	var werr error
	done := make(chan struct{})
	go func() {
		werr = g.Wait()
		close(results)
		close(done)
	}()

	for r := range results {
		if e.metrics != nil {
			e.metrics.MergeQueueDepth.Set(float64(len(results)))
		}
		if ctx.Err() != nil {
			continue
		}
		e.merge(x, r, &rep)
		if n := rep.Merged + rep.Failed; e.opts.ProgressEvery > 0 && n%e.opts.ProgressEvery == 0 {
			e.progress(rep, read.Load(), start)
		}
	}
	<-done

	rep.Read = int(read.Load())
	rep.Duration = time.Since(start)
	if werr == nil && ctx.Err() == nil {
		x.MarkComplete()
	}
	x.Seal()
	rep.Complete = x.Complete()

	status := "completed"
	switch {
	case ctx.Err() != nil || errors.Is(werr, context.Canceled):
		status = "cancelled"
		if werr == nil {
			werr = ctx.Err()
		}
	case werr != nil:
		status = "failed"
	}
	if e.metrics != nil {
		e.metrics.BuildsTotal.WithLabelValues(status).Inc()
		e.metrics.IndexEntities.Set(float64(x.Stats().Entities))
		e.metrics.MergeQueueDepth.Set(0)
	}
	e.logger.Info("build finished",
		"status", status,
		"read", rep.Read,
		"merged", rep.Merged,
		"failed", rep.Failed,
		"flagged", rep.Flagged,
		"entities", x.Stats().Entities,
		"duration_ms", rep.Duration.Milliseconds(),
	)
	if werr != nil {
		return x, rep, fmt.Errorf("build %s: %w", status, werr)
	}
	return x, rep, nil
}

func (e *Engine) extract(ctx context.Context, d source.Document) result {
	start := time.Now()
	var entities []index.Entity
	err := resilience.WithTimeout(ctx, e.opts.ExtractTimeout, "extract "+d.ID, func(ctx context.Context) error {
		var err error
		entities, err = e.extractor.Extract(ctx, d.Text)
		return err
	})
	if e.metrics != nil {
		e.metrics.ExtractionDuration.WithLabelValues(e.extractor.Name()).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return result{docID: d.ID, err: err}
	}
	return result{docID: d.ID, entities: entities}
}

// merge runs on the single consumer goroutine.
func (e *Engine) merge(x *index.Index, r result, rep *Report) {
	if r.err == nil {
		res, err := x.Merge(r.docID, r.entities)
		if err == nil {
			rep.Merged++
			rep.Mentions += res.Mentions
			if res.Flagged {
				rep.Flagged++
				e.logger.Warn("document has many distinct entities",
					"doc_id", r.docID,
					"distinct", res.Distinct,
					"pairs_skipped", res.Capped,
				)
			}
			if res.Capped {
				rep.Capped++
			}
			if e.metrics != nil {
				e.metrics.DocsProcessedTotal.WithLabelValues("merged").Inc()
				e.metrics.EntitiesMergedTotal.Add(float64(res.Mentions))
				if res.Flagged {
					e.metrics.FlaggedDocsTotal.Inc()
				}
			}
			return
		}
		r.err = err
	}

	rep.Failed++
	if len(rep.Failures) < maxRecordedFailures {
		rep.Failures = append(rep.Failures, Failure{DocID: r.docID, Err: r.err})
	}
	if e.metrics != nil {
		e.metrics.DocsProcessedTotal.WithLabelValues("failed").Inc()
	}
	e.logger.Warn("document extraction failed",
		"doc_id", r.docID,
		"error", r.err,
	)
}

func (e *Engine) progress(rep Report, read int64, start time.Time) {
	p := Progress{
		Read:    read,
		Merged:  rep.Merged,
		Failed:  rep.Failed,
		Elapsed: time.Since(start),
	}
	e.logger.Info("build progress",
		"read", p.Read,
		"merged", p.Merged,
		"failed", p.Failed,
		"elapsed_ms", p.Elapsed.Milliseconds(),
	)
	if e.opts.OnProgress != nil {
		e.opts.OnProgress(p)
	}
}
