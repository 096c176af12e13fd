package main

import (
	"github.com/spf13/cobra"

	"github.com/odvcencio/repodiet/pkg/config"
	"github.com/odvcencio/repodiet/pkg/report"
)

func newTopCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "top",
		Short: "List the largest objects ever stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd, config.WithFlags(cmd.Flags(), map[string]string{"report.top": "limit"}))
			if err != nil {
				return err
			}
			defer s.close()
			snap, err := g.snapshot(cmd.Context(), s)
			if err != nil {
				return err
			}
			report.RenderBlobs(cmd.OutOrStdout(), snap.Blobs, g.tableOptions())
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", config.DefaultTop, "number of objects to list")
	return cmd
}
