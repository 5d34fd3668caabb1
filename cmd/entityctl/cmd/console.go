package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/console"
)

func newConsoleCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Query the index interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exec, err := openExecutor(cmd.Context(), root)
			if err != nil {
				return err
			}
			st, err := exec.Stats()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Index loaded. %d unique entities.\n", st.Entities)
			c := console.New(exec, cmd.InOrStdin(), out,
				console.WithDefaults(root.cfg.Search.DefaultTopK, root.cfg.Search.DefaultRelatedK))
			return c.Run(cmd.Context())
		},
	}
}
