package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/export"
)

func newExportCmd(root *rootOptions) *cobra.Command {
	var (
		dir      string
		maxPairs int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write entity and co-occurrence CSV reports",
		Long: `Export writes two CSV files into --dir: the ranked entity report (rank,
entity, frequency) and the co-occurrence edge list (source, target, weight)
limited to the strongest --max-pairs pairs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exec, err := openExecutor(cmd.Context(), root)
			if err != nil {
				return err
			}
			x, err := exec.Index()
			if err != nil {
				return err
			}
			s, err := export.WriteDir(dir, x, maxPairs)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %d entities to %s\n", s.Entities, s.EntitiesPath)
			fmt.Fprintf(out, "Wrote %d pairs to %s\n", s.Pairs, s.CoOccurrencePath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "reports", "Output directory")
	cmd.Flags().IntVar(&maxPairs, "max-pairs", export.DefaultMaxPairs, "Maximum co-occurrence pairs, 0 for all")
	return cmd
}
