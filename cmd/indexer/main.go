// Command indexer runs one index build and exits.
//
// It starts the configured recognition backend, reads every document from
// the configured source, builds the entity index and saves the snapshot to
// the configured store. With Kafka enabled the saved snapshot is announced
// on the index-ready topic so that running searchers reload it. With
// PostgreSQL enabled every build is recorded in the index_builds table.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml] [-top 20]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	top := flag.Int("top", 20, "number of top entities to print after the build")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting index build",
		"backend", cfg.Recognizer.Backend,
		"source", cfg.Source.Kind,
		"workers", cfg.Indexer.Workers,
	)

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	job := &indexer.Job{Config: cfg, Metrics: m}
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		job.DB = db.DB
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexReady)
		defer producer.Close()
		job.Announcer = producer
	}
	job.OnProgress = func(p indexer.Progress) {
		slog.Info("build progress",
			"read", p.Read,
			"merged", p.Merged,
			"failed", p.Failed,
			"elapsed", p.Elapsed.Round(time.Millisecond),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := job.Run(ctx)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrBackendUnavailable):
			slog.Error("recognition backend unavailable, nothing was indexed", "error", err)
		case res.Index == nil:
			slog.Error("build did not start", "error", err)
		default:
			slog.Error("build did not complete", "error", err, "merged", res.Report.Merged, "location", res.Location)
		}
		os.Exit(1)
	}

	for _, f := range res.Report.Failures {
		slog.Warn("document skipped", "doc_id", f.DocID, "error", f.Err)
	}
	st := res.Index.Stats()
	fmt.Printf("Indexed %d documents, %d unique entities, %d failed. Snapshot: %s\n",
		st.Documents, st.Entities, res.Report.Failed, res.Location)
	fmt.Printf("Top %d entities:\n", *top)
	for _, ec := range res.Index.TopEntities(*top) {
		fmt.Printf("%s: %d\n", ec.Entity, ec.Count)
	}
}
