package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/repodiet/pkg/browse"
	"github.com/odvcencio/repodiet/pkg/engine"
	"github.com/odvcencio/repodiet/pkg/report"
)

func newTreeCmd(g *globalFlags) *cobra.Command {
	var deleted bool
	cmd := &cobra.Command{
		Use:   "tree [path]",
		Short: "Show history size per directory entry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withSnapshot(cmd, func(s *session, snap *engine.Snapshot) error {
				c := browse.New(snap.Tree)
				if len(args) == 1 && args[0] != "" && args[0] != "/" {
					id, ok := snap.Tree.Lookup(args[0])
					if !ok || !snap.Tree.Node(id).IsDir {
						return fmt.Errorf("no directory %q in history", args[0])
					}
					c.NavigateTo(args[0])
					if !c.Enter() {
						return fmt.Errorf("cannot open %q", args[0])
					}
				}
				if deleted {
					c.ToggleDeletedOnly()
				}
				report.RenderDirectory(cmd.OutOrStdout(), c, g.tableOptions())
				if total := snap.Tree.TotalDeleted(); total > 0 && !deleted {
					fmt.Fprintf(cmd.OutOrStdout(), "%s of history belongs to deleted files (--deleted to list)\n", report.Size(total))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&deleted, "deleted", false, "only show history of files no longer in HEAD")
	return cmd
}
