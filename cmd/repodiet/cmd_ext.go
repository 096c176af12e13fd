package main

import (
	"github.com/spf13/cobra"

	"github.com/odvcencio/repodiet/pkg/engine"
	"github.com/odvcencio/repodiet/pkg/report"
)

func newExtCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ext",
		Short: "Break history size down by file extension",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withSnapshot(cmd, func(s *session, snap *engine.Snapshot) error {
				report.RenderExtensions(cmd.OutOrStdout(), snap.Extensions, g.tableOptions())
				return nil
			})
		},
	}
}
