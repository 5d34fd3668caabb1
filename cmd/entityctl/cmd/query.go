package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/searcher/executor"
)

func newSearchCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <entity>",
		Short: "List the documents that mention an entity",
		Long: `Search prints the documents whose extracted entities include the given
text. An exact match is tried first; otherwise the first entity that matches
ignoring case is used and reported as a suggestion.

Examples:
  entityctl search "Hà Nội"
  entityctl search "hà nội" --limit 0 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, root, executor.Query{Kind: executor.KindSearch, Entity: args[0], Limit: limit})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum documents to list, 0 for all")
	return cmd
}

func newTopCmd(root *rootOptions) *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the most frequent entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(cmd, root, executor.Query{Kind: executor.KindTop, Limit: k})
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 20, "Number of entities, 0 for all")
	return cmd
}

func newRelatedCmd(root *rootOptions) *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "related <entity>",
		Short: "Show the entities that most often appear with an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, root, executor.Query{Kind: executor.KindRelated, Entity: args[0], Limit: k})
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 10, "Number of entities, 0 for all")
	return cmd
}

func runQuery(cmd *cobra.Command, root *rootOptions, q executor.Query) error {
	exec, err := openExecutor(cmd.Context(), root)
	if err != nil {
		return err
	}
	res, err := exec.Execute(cmd.Context(), q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if root.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if res.Partial {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: answering from a partial index")
	}
	if res.Fallback {
		fmt.Fprintf(out, "Did you mean '%s'?\n", res.Matched)
	}
	switch q.Kind {
	case executor.KindSearch:
		if res.TotalHits == 0 {
			fmt.Fprintf(out, "No documents found for '%s'.\n", q.Entity)
			return nil
		}
		fmt.Fprintf(out, "Found %d documents mentioning '%s':\n", res.TotalHits, res.Matched)
		for _, doc := range res.Documents {
			fmt.Fprintf(out, " - %s\n", filepath.Base(doc))
		}
		if more := res.TotalHits - len(res.Documents); more > 0 {
			fmt.Fprintf(out, "... and %d more.\n", more)
		}
	case executor.KindTop:
		for _, ec := range res.Entities {
			fmt.Fprintf(out, "%s: %d\n", ec.Entity, ec.Count)
		}
	case executor.KindRelated:
		if res.TotalHits == 0 {
			fmt.Fprintf(out, "No related entities for '%s'.\n", q.Entity)
			return nil
		}
		for _, ec := range res.Entities {
			fmt.Fprintf(out, "%s (co-occurred %d times)\n", ec.Entity, ec.Count)
		}
	}
	return nil
}
