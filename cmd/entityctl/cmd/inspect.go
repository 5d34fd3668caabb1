package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/snapshot"
	apperrors "github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/errors"
)

func newInspectCmd(root *rootOptions) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show snapshot metadata, the entity count and the top entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := snapshot.NewStore(ctx, root.cfg.Snapshot)
			if err != nil {
				return err
			}
			blob, err := store.Load(ctx)
			if err != nil {
				return apperrors.RebuildRequired(err)
			}
			h, err := snapshot.ReadHeader(blob)
			if err != nil {
				return apperrors.RebuildRequired(err)
			}
			x, err := snapshot.Decode(blob, index.Options{})
			if err != nil {
				return apperrors.RebuildRequired(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Snapshot:     %s\n", store.Location())
			fmt.Fprintf(out, "Format:       v%d, %s\n", h.Version, h.Compression)
			fmt.Fprintf(out, "Created:      %s\n", time.Unix(h.CreatedAt, 0).UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "Complete:     %t\n", h.Complete())
			fmt.Fprintf(out, "Size:         %d bytes (%d uncompressed)\n", len(blob), h.RawSize)
			st := x.Stats()
			fmt.Fprintf(out, "Documents:    %d\n", st.Documents)
			fmt.Fprintf(out, "Mentions:     %d\n", st.Mentions)
			fmt.Fprintf(out, "Pairs:        %d\n", st.Pairs)
			fmt.Fprintf(out, "Index loaded. %d unique entities.\n", st.Entities)
			if top > 0 {
				fmt.Fprintf(out, "Top %d entities:\n", top)
				for _, ec := range x.TopEntities(top) {
					fmt.Fprintf(out, "%s: %d\n", ec.Entity, ec.Count)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 20, "Top entities to print")
	return cmd
}
