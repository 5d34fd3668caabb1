package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer"
	apperrors "github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/postgres"
)

type buildOptions struct {
	root           string
	backend        string
	endpoint       string
	workers        int
	compression    string
	persistPartial bool
	top            int
}

func newBuildCmd(root *rootOptions) *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the entity index and save a snapshot",
		Long: `Build reads every document from the configured source, extracts named
entities with the configured recognition backend and saves the index.

Documents whose extraction fails are skipped and reported. An interrupted
build is only saved with --persist-partial.

Examples:
  entityctl build --root data/articles --backend heuristic
  entityctl build --backend tagstream --endpoint http://localhost:8500 -s index.eidx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg
			if opts.root != "" {
				cfg.Source.Kind = "fs"
				cfg.Source.Root = opts.root
			}
			if opts.backend != "" {
				cfg.Recognizer.Backend = opts.backend
			}
			if opts.endpoint != "" {
				cfg.Recognizer.Endpoint = opts.endpoint
			}
			if opts.workers > 0 {
				cfg.Indexer.Workers = opts.workers
				cfg.Indexer.QueueSize = opts.workers * 4
			}
			if opts.compression != "" {
				cfg.Snapshot.Compression = opts.compression
			}
			cfg.Indexer.PersistPartial = cfg.Indexer.PersistPartial || opts.persistPartial

			job := &indexer.Job{Config: cfg, OnProgress: progressPrinter(cmd.ErrOrStderr())}
			if cfg.Source.Kind == "postgres" || cfg.Postgres.Enabled {
				db, err := postgres.New(cfg.Postgres)
				if err != nil {
					return err
				}
				defer db.Close()
				job.DB = db.DB
			}

			res, err := job.Run(cmd.Context())
			if job.OnProgress != nil {
				fmt.Fprintln(cmd.ErrOrStderr())
			}
			if errors.Is(err, apperrors.ErrBackendUnavailable) {
				return fmt.Errorf("recognition backend %q is not reachable, nothing was indexed: %w", cfg.Recognizer.Backend, err)
			}
			if res != nil && res.Index != nil {
				printBuild(cmd, res, opts.top)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&opts.root, "root", "", "Index files under this directory (sets source kind fs)")
	cmd.Flags().StringVarP(&opts.backend, "backend", "b", "", "Recognition backend: tagstream, propernoun, chunked, heuristic")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "Recognition service URL")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Extraction workers (default: number of CPUs)")
	cmd.Flags().StringVar(&opts.compression, "compression", "", "Snapshot compression: none, lz4, zstd")
	cmd.Flags().BoolVar(&opts.persistPartial, "persist-partial", false, "Save the snapshot even if the build is interrupted")
	cmd.Flags().IntVar(&opts.top, "top", 20, "Top entities to print after the build")

	return cmd
}

func printBuild(cmd *cobra.Command, res *indexer.JobResult, top int) {
	out := cmd.OutOrStdout()
	st := res.Index.Stats()
	rep := res.Report
	fmt.Fprintf(out, "Indexed %d documents (%d failed, %d flagged) in %s.\n",
		rep.Merged, rep.Failed, rep.Flagged, rep.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "Unique entities: %d\n", st.Entities)
	if !st.Complete {
		fmt.Fprintln(out, "Build was interrupted; the index is partial.")
	}
	if res.Location != "" {
		fmt.Fprintf(out, "Snapshot: %s\n", res.Location)
	}
	for _, f := range rep.Failures {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", f.DocID, f.Err)
	}
	if top > 0 {
		fmt.Fprintf(out, "Top %d entities:\n", top)
		for _, ec := range res.Index.TopEntities(top) {
			fmt.Fprintf(out, "%s: %d\n", ec.Entity, ec.Count)
		}
	}
}
