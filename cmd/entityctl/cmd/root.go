// Package cmd provides the entityctl commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/logger"
)

type rootOptions struct {
	configPath   string
	snapshotPath string
	allowPartial bool
	logLevel     string
	jsonOutput   bool

	cfg *config.Config
}

// NewRootCmd creates the root command for entityctl.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "entityctl",
		Short: "Build and query named-entity indexes",
		Long: `entityctl builds an entity index from a document collection, saves it as a
snapshot and answers queries against it: which documents mention an entity,
which entities are most frequent, and which entities appear together.

Configuration comes from an optional YAML file plus EIP_* environment
variables; --snapshot overrides the snapshot location with a local file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger.SetupWriter(cmd.ErrOrStderr(), opts.logLevel, "text")
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.snapshotPath != "" {
				cfg.Snapshot.Store = "local"
				cfg.Snapshot.Path = opts.snapshotPath
			}
			if opts.allowPartial {
				cfg.Search.AllowPartial = true
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to YAML config file")
	cmd.PersistentFlags().StringVarP(&opts.snapshotPath, "snapshot", "s", "", "Local snapshot file (overrides config)")
	cmd.PersistentFlags().BoolVar(&opts.allowPartial, "allow-partial", false, "Serve snapshots from interrupted builds")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Print results as JSON")

	cmd.AddCommand(newBuildCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newTopCmd(opts))
	cmd.AddCommand(newRelatedCmd(opts))
	cmd.AddCommand(newInspectCmd(opts))
	cmd.AddCommand(newExportCmd(opts))
	cmd.AddCommand(newConsoleCmd(opts))

	return cmd
}

// Execute runs the root command until it finishes or SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// openExecutor loads the configured snapshot into a query executor.
func openExecutor(ctx context.Context, opts *rootOptions) (*executor.Executor, error) {
	store, err := snapshot.NewStore(ctx, opts.cfg.Snapshot)
	if err != nil {
		return nil, err
	}
	exec := executor.New(store, executor.Options{AllowPartial: opts.cfg.Search.AllowPartial}, nil)
	if err := exec.Reload(ctx); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrIncompleteIndex):
			return nil, fmt.Errorf("snapshot at %s is from an interrupted build, rerun 'entityctl build' or pass --allow-partial: %w", store.Location(), err)
		case errors.Is(err, apperrors.ErrRebuildRequired):
			return nil, fmt.Errorf("no usable index at %s, run 'entityctl build' first: %w", store.Location(), err)
		}
		return nil, err
	}
	return exec, nil
}
