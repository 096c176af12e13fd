package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/repodiet/pkg/engine"
	"github.com/odvcencio/repodiet/pkg/report"
)

func newSearchCmd(g *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find paths in history by case-insensitive substring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withSnapshot(cmd, func(s *session, snap *engine.Snapshot) error {
				q := snap.Search.NewQuery()
				results := q.SetQuery(args[0])
				shown := results
				if limit > 0 && len(shown) > limit {
					shown = shown[:limit]
				}
				report.RenderSearch(cmd.OutOrStdout(), args[0], shown, g.tableOptions())
				if len(shown) < len(results) {
					fmt.Fprintf(cmd.OutOrStdout(), "%d more; use --limit 0 to list all\n", len(results)-len(shown))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "maximum matches to print (0 for all)")
	return cmd
}
