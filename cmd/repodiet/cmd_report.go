package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/repodiet/pkg/engine"
	"github.com/odvcencio/repodiet/pkg/report"
)

func newReportCmd(g *globalFlags) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write a machine-readable size report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "table" {
				return g.withSnapshot(cmd, func(s *session, snap *engine.Snapshot) error {
					report.RenderSummary(cmd.OutOrStdout(), buildReport(s, snap))
					return nil
				})
			}
			return g.withSnapshot(cmd, func(s *session, snap *engine.Snapshot) error {
				r := buildReport(s, snap)
				if output == "" || output == "-" {
					return report.Encode(cmd.OutOrStdout(), r, format)
				}
				return writeReport(output, r, format)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: table, "+strings.Join(report.Formats, ", "))
	cmd.Flags().StringVarP(&output, "output", "o", "-", "write to file instead of stdout")
	return cmd
}

func writeReport(path string, r *report.Report, format string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close report: %w", cerr)
		}
	}()
	return report.Encode(f, r, format)
}

func buildReport(s *session, snap *engine.Snapshot) *report.Report {
	return report.Build(report.Input{
		Repository: s.engine.Name(),
		Head:       snap.Head,
		BuiltAt:    snap.BuiltAt,
		Tree:       snap.Tree,
		Blobs:      snap.Blobs,
		Extensions: snap.Extensions,
		Stats:      snap.Stats,
		Limit:      s.cfg.Report.Top,
	})
}
