package report

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/odvcencio/repodiet/pkg/browse"
	"github.com/odvcencio/repodiet/pkg/extstat"
	"github.com/odvcencio/repodiet/pkg/rank"
	"github.com/odvcencio/repodiet/pkg/search"
)

// TableOptions controls terminal rendering.
type TableOptions struct {
	// Color highlights deleted paths.
	Color bool
}

// Size formats a byte count with binary units.
func Size(n uint64) string { return humanize.IBytes(n) }

// Date formats a unix timestamp as a UTC day, or "unknown" for zero.
func Date(ts int64) string {
	if ts == 0 {
		return "unknown"
	}
	return time.Unix(ts, 0).UTC().Format(time.DateOnly)
}

// Percent formats part as a share of total.
func Percent(part, total uint64) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(part)*100/float64(total))
}

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	return tbl
}

func deletedMark(opts TableOptions) *color.Color {
	c := color.New(color.FgRed)
	if opts.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// RenderDirectory prints the rows visible at the cursor.
func RenderDirectory(w io.Writer, c *browse.Cursor, opts TableOptions) {
	red := deletedMark(opts)
	tbl := newTable(w)
	size := "Cumulative"
	if c.DeletedOnly() {
		size = "Deleted"
	}
	tbl.SetTitle(c.Path())
	tbl.AppendHeader(table.Row{"Name", size, "Current", "Share"})
	total := c.Total()
	for _, it := range c.Items() {
		name := it.Name
		if it.IsDir {
			name += "/"
		}
		current := Size(it.CurrentSize)
		if it.Deleted {
			name = red.Sprint(name)
			current = red.Sprint("deleted")
		}
		tbl.AppendRow(table.Row{name, Size(it.DisplaySize), current, Percent(it.DisplaySize, total)})
	}
	tbl.AppendFooter(table.Row{"Total", Size(total), "", ""})
	tbl.Render()
}

// RenderBlobs prints the ranked objects.
func RenderBlobs(w io.Writer, blobs []rank.Blob, opts TableOptions) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Path", "Packed", "Logical", "Object", "Author", "Date"})
	for _, b := range blobs {
		tbl.AppendRow(table.Row{b.Path, Size(b.PackedSize), Size(b.LogicalSize), shortID(string(b.ObjectID)), b.Author, Date(b.Timestamp)})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d objects", len(blobs))})
	tbl.Render()
}

// RenderExtensions prints the extension rollup.
func RenderExtensions(w io.Writer, stats []extstat.Stat, opts TableOptions) {
	red := deletedMark(opts)
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Extension", "Cumulative", "Current", "Files", "Language"})
	for _, s := range stats {
		current := Size(s.CurrentSize)
		if s.CurrentSize == 0 {
			current = red.Sprint(current)
		}
		tbl.AppendRow(table.Row{s.Label(), Size(s.CumulativeSize), current, s.FileCount, s.Language})
	}
	tbl.Render()
}

// RenderSearch prints search matches.
func RenderSearch(w io.Writer, query string, results []search.Entry, opts TableOptions) {
	red := deletedMark(opts)
	tbl := newTable(w)
	tbl.SetTitle(fmt.Sprintf("%q: %d matches", query, len(results)))
	tbl.AppendHeader(table.Row{"Path", "Cumulative", "Current"})
	for _, e := range results {
		path, current := e.Path, Size(e.CurrentSize)
		if e.Deleted {
			path = red.Sprint(path)
			current = red.Sprint("deleted")
		}
		tbl.AppendRow(table.Row{path, Size(e.CumulativeSize), current})
	}
	tbl.Render()
}

// RenderSummary prints the report totals.
func RenderSummary(w io.Writer, r *Report) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle(r.Repository)
	tbl.AppendRows([]table.Row{
		{"Head", shortID(r.Head)},
		{"History", Size(r.Totals.CumulativeBytes)},
		{"Current", Size(r.Totals.CurrentBytes)},
		{"Deleted", Size(r.Totals.DeletedBytes)},
		{"Uncompressed", Size(r.Totals.LogicalBytes)},
		{"Paths", humanize.Comma(r.Totals.Paths)},
		{"Commits", humanize.Comma(r.Totals.ScannedCommits)},
	})
	if r.Totals.RetryCommits > 0 {
		tbl.AppendRow(table.Row{"Pending retry", humanize.Comma(r.Totals.RetryCommits)})
	}
	tbl.Render()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
