package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/extract"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/ledger"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/tracing"
)

// Job is one end-to-end index build: start the recogniser, open the source,
// build, persist the snapshot and announce it. DB and Announcer are optional.
type Job struct {
	Config     *config.Config
	Metrics    *metrics.Metrics
	DB         *sql.DB
	Announcer  kafka.Publisher
	OnProgress func(Progress)
}

// JobResult is what a Job produced. Index is nil only when the build never
// started.
type JobResult struct {
	Index    *index.Index
	Report   Report
	Location string
	BuildID  int64
	TraceID  string
}

// Run executes the job. The snapshot is saved when the build completed, or
// when indexer.persistPartial is set; persistence and bookkeeping run even
// after ctx is cancelled so that an interrupted build still leaves a
// record.
func (j *Job) Run(ctx context.Context) (*JobResult, error) {
	cfg := j.Config
	log := slog.Default().With("component", "index-job")

	ctx, root := tracing.Start(ctx, "index-build")
	res := &JobResult{TraceID: root.TraceID}
	defer func() {
		root.End()
		root.Log(log)
	}()

	compression, err := snapshot.ParseCompression(cfg.Snapshot.Compression)
	if err != nil {
		root.RecordError(err)
		return res, err
	}

	var ex extract.Extractor
	err = tracing.Run(ctx, "recognizer-start", func(ctx context.Context) error {
		var err error
		ex, err = extract.New(ctx, cfg.Recognizer,
			extract.WithMetrics(j.Metrics),
			extract.WithPoolSize(cfg.Indexer.Workers),
		)
		return err
	})
	if err != nil {
		root.RecordError(err)
		return res, err
	}
	defer ex.Close()

	src, err := source.New(cfg, j.DB)
	if err != nil {
		root.RecordError(err)
		return res, err
	}
	defer src.Close()

	var book *ledger.Ledger
	if j.DB != nil {
		book = ledger.New(j.DB)
		if err := book.EnsureSchema(ctx); err != nil {
			log.Warn("build ledger unavailable", "error", err)
			book = nil
		} else if res.BuildID, err = book.Start(ctx, ex.Name(), src.Name()); err != nil {
			log.Warn("build ledger unavailable", "error", err)
			book = nil
		}
	}

	opts := OptionsFromConfig(cfg.Indexer)
	opts.OnProgress = j.OnProgress
	engine := NewEngine(ex, opts, j.Metrics)

	var buildErr error
	_ = tracing.Run(ctx, "build", func(ctx context.Context) error {
		res.Index, res.Report, buildErr = engine.Build(ctx, src)
		return buildErr
	})
	root.SetAttr("merged", res.Report.Merged)
	root.SetAttr("failed", res.Report.Failed)

	after := context.WithoutCancel(ctx)
	var saveErr error
	if res.Report.Complete || cfg.Indexer.PersistPartial {
		saveErr = tracing.Run(after, "snapshot-save", func(ctx context.Context) error {
			store, err := snapshot.NewStore(ctx, cfg.Snapshot)
			if err != nil {
				return err
			}
			res.Location, err = snapshot.Save(ctx, store, res.Index, compression, j.Metrics)
			return err
		})
	} else {
		log.Warn("build incomplete, snapshot not saved", "error", buildErr)
	}

	if res.Location != "" && j.Announcer != nil {
		_ = tracing.Run(after, "announce", func(ctx context.Context) error {
			err := j.Announcer.Publish(ctx, kafka.Event{
				Key:   res.Location,
				Type:  snapshot.ReadyEventType,
				Value: ReadyEventFor(res),
			})
			if err != nil {
				log.Warn("index-ready announcement failed", "location", res.Location, "error", err)
			}
			return err
		})
	}

	err = errors.Join(buildErr, saveErr)
	if book != nil {
		outcome := ledger.Outcome{
			Status:    ledger.StatusFor(res.Report.Complete, err),
			Documents: res.Report.Merged,
			Failed:    res.Report.Failed,
			Flagged:   res.Report.Flagged,
			Entities:  res.Index.Stats().Entities,
			Location:  res.Location,
			Err:       err,
		}
		if ferr := book.Finish(after, res.BuildID, outcome); ferr != nil {
			log.Warn("recording build outcome failed", "build_id", res.BuildID, "error", ferr)
		}
	}
	root.RecordError(err)
	if saveErr != nil {
		return res, fmt.Errorf("persisting snapshot: %w", saveErr)
	}
	return res, buildErr
}

// ReadyEventFor builds the index-ready announcement for a saved snapshot.
func ReadyEventFor(res *JobResult) snapshot.ReadyEvent {
	st := res.Index.Stats()
	return snapshot.ReadyEvent{
		Location: res.Location,
		Complete: st.Complete,
		Entities: st.Entities,
		Docs:     st.Documents,
		BuiltAt:  time.Now().UTC(),
	}
}
