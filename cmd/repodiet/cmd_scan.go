package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/odvcencio/repodiet/pkg/engine"
)

func newScanCmd(g *globalFlags) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Update the scan cache with commits not seen yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			errOut := cmd.ErrOrStderr()
			var lastPrint time.Time
			progress := func(p engine.Progress) {
				if quiet || (time.Since(lastPrint) < 200*time.Millisecond && p.Processed != p.Total) {
					return
				}
				lastPrint = time.Now()
				fmt.Fprintf(errOut, "\rscanned %s/%s commits", humanize.Comma(int64(p.Processed)), humanize.Comma(int64(p.Total)))
				if p.Processed == p.Total {
					fmt.Fprintln(errOut)
				}
			}

			sum, err := s.engine.Scan(cmd.Context(), progress)
			if err != nil {
				if sum != nil {
					fmt.Fprintf(errOut, "\nstopped after %d of %d commits; rerun to continue\n", sum.Scanned+sum.Failed, sum.Pending)
				}
				return err
			}

			out := cmd.OutOrStdout()
			if sum.UpToDate() {
				fmt.Fprintf(out, "up to date at %s\n", shortHash(string(sum.Head)))
				return nil
			}
			fmt.Fprintf(out, "scanned %d commit(s), %d new record(s) in %s\n",
				sum.Scanned, sum.Appended, sum.Elapsed.Round(time.Millisecond))
			if sum.Failed > 0 {
				fmt.Fprintf(out, "%d commit(s) failed and will be retried next run\n", sum.Failed)
			}

			st, err := s.engine.Store().Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "cache: %s records over %s paths, %s commits (%s)\n",
				humanize.Comma(st.Records), humanize.Comma(st.Paths), humanize.Comma(st.ScannedCommits),
				s.engine.DatabasePath())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	return cmd
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
