// Package report turns an aggregated snapshot into a serializable report and
// into terminal tables.
package report

import (
	"time"

	"github.com/odvcencio/repodiet/pkg/extstat"
	"github.com/odvcencio/repodiet/pkg/object"
	"github.com/odvcencio/repodiet/pkg/rank"
	"github.com/odvcencio/repodiet/pkg/sizetree"
	"github.com/odvcencio/repodiet/pkg/store"
)

// Input is everything a report is built from.
type Input struct {
	Repository string
	Head       object.Hash
	BuiltAt    time.Time
	Tree       *sizetree.Tree
	Blobs      []rank.Blob
	Extensions []extstat.Stat
	Stats      store.Stats
	// Limit bounds the directory and deleted-path sections.
	Limit int
}

// Report is the machine-readable summary.
type Report struct {
	Repository  string         `json:"repository" yaml:"repository" toml:"repository"`
	Head        string         `json:"head" yaml:"head" toml:"head"`
	GeneratedAt time.Time      `json:"generated_at" yaml:"generated_at" toml:"generated_at"`
	Totals      Totals         `json:"totals" yaml:"totals" toml:"totals"`
	Directories []PathRow      `json:"directories" yaml:"directories" toml:"directories"`
	Deleted     []PathRow      `json:"deleted" yaml:"deleted" toml:"deleted"`
	Largest     []BlobRow      `json:"largest" yaml:"largest" toml:"largest"`
	Extensions  []ExtensionRow `json:"extensions" yaml:"extensions" toml:"extensions"`
	Conflicts   []ConflictRow  `json:"conflicts,omitempty" yaml:"conflicts,omitempty" toml:"conflicts,omitempty"`
}

// Totals are repository-wide sums.
type Totals struct {
	CumulativeBytes uint64 `json:"cumulative_bytes" yaml:"cumulative_bytes" toml:"cumulative_bytes"`
	CurrentBytes    uint64 `json:"current_bytes" yaml:"current_bytes" toml:"current_bytes"`
	DeletedBytes    uint64 `json:"deleted_bytes" yaml:"deleted_bytes" toml:"deleted_bytes"`
	LogicalBytes    uint64 `json:"logical_bytes" yaml:"logical_bytes" toml:"logical_bytes"`
	Paths           int64  `json:"paths" yaml:"paths" toml:"paths"`
	Records         int64  `json:"records" yaml:"records" toml:"records"`
	ScannedCommits  int64  `json:"scanned_commits" yaml:"scanned_commits" toml:"scanned_commits"`
	RetryCommits    int64  `json:"retry_commits" yaml:"retry_commits" toml:"retry_commits"`
}

// PathRow is one file or directory.
type PathRow struct {
	Path            string `json:"path" yaml:"path" toml:"path"`
	Directory       bool   `json:"directory" yaml:"directory" toml:"directory"`
	CumulativeBytes uint64 `json:"cumulative_bytes" yaml:"cumulative_bytes" toml:"cumulative_bytes"`
	CurrentBytes    uint64 `json:"current_bytes" yaml:"current_bytes" toml:"current_bytes"`
	DeletedBytes    uint64 `json:"deleted_bytes" yaml:"deleted_bytes" toml:"deleted_bytes"`
	Versions        int    `json:"versions" yaml:"versions" toml:"versions"`
}

// BlobRow is one ranked object.
type BlobRow struct {
	Path         string    `json:"path" yaml:"path" toml:"path"`
	ObjectID     string    `json:"object_id" yaml:"object_id" toml:"object_id"`
	PackedBytes  uint64    `json:"packed_bytes" yaml:"packed_bytes" toml:"packed_bytes"`
	LogicalBytes uint64    `json:"logical_bytes" yaml:"logical_bytes" toml:"logical_bytes"`
	Commit       string    `json:"commit" yaml:"commit" toml:"commit"`
	Author       string    `json:"author" yaml:"author" toml:"author"`
	Date         time.Time `json:"date" yaml:"date" toml:"date"`
}

// ExtensionRow is one extension rollup.
type ExtensionRow struct {
	Extension       string `json:"extension" yaml:"extension" toml:"extension"`
	Language        string `json:"language,omitempty" yaml:"language,omitempty" toml:"language,omitempty"`
	Files           int    `json:"files" yaml:"files" toml:"files"`
	CumulativeBytes uint64 `json:"cumulative_bytes" yaml:"cumulative_bytes" toml:"cumulative_bytes"`
	CurrentBytes    uint64 `json:"current_bytes" yaml:"current_bytes" toml:"current_bytes"`
}

// ConflictRow is a path that was both a file and a directory.
type ConflictRow struct {
	Path        string `json:"path" yaml:"path" toml:"path"`
	Kept        string `json:"kept" yaml:"kept" toml:"kept"`
	FoldedBytes uint64 `json:"folded_bytes" yaml:"folded_bytes" toml:"folded_bytes"`
}

// Build assembles a report.
func Build(in Input) *Report {
	limit := in.Limit
	if limit <= 0 {
		limit = rank.DefaultLimit
	}
	r := &Report{
		Repository:  in.Repository,
		Head:        string(in.Head),
		GeneratedAt: in.BuiltAt.UTC(),
		Totals: Totals{
			Paths:          in.Stats.Paths,
			Records:        in.Stats.Records,
			ScannedCommits: in.Stats.ScannedCommits,
			RetryCommits:   in.Stats.RetryCommits,
		},
		Directories: []PathRow{},
		Deleted:     []PathRow{},
		Largest:     make([]BlobRow, 0, len(in.Blobs)),
		Extensions:  make([]ExtensionRow, 0, len(in.Extensions)),
	}

	if t := in.Tree; t != nil {
		root := t.Node(t.Root())
		r.Totals.CumulativeBytes = root.CumulativeSize
		r.Totals.CurrentBytes = root.CurrentSize
		r.Totals.DeletedBytes = root.DeletedSize
		r.Totals.LogicalBytes = root.CumulativeLogical

		for _, id := range t.Children(t.Root()) {
			if len(r.Directories) == limit {
				break
			}
			r.Directories = append(r.Directories, pathRow(t.Node(id)))
		}
		r.Deleted = largestDeleted(t, limit)
		for _, c := range t.Conflicts() {
			r.Conflicts = append(r.Conflicts, ConflictRow{Path: c.Path, Kept: c.Kept.String(), FoldedBytes: c.FoldedSize})
		}
	}

	for _, b := range in.Blobs {
		r.Largest = append(r.Largest, BlobRow{
			Path:         b.Path,
			ObjectID:     string(b.ObjectID),
			PackedBytes:  b.PackedSize,
			LogicalBytes: b.LogicalSize,
			Commit:       string(b.CommitID),
			Author:       b.Author,
			Date:         time.Unix(b.Timestamp, 0).UTC(),
		})
	}
	for _, e := range in.Extensions {
		r.Extensions = append(r.Extensions, ExtensionRow{
			Extension:       e.Label(),
			Language:        e.Language,
			Files:           e.FileCount,
			CumulativeBytes: e.CumulativeSize,
			CurrentBytes:    e.CurrentSize,
		})
	}
	return r
}

func pathRow(n *sizetree.Node) PathRow {
	return PathRow{
		Path:            n.Path,
		Directory:       n.IsDir,
		CumulativeBytes: n.CumulativeSize,
		CurrentBytes:    n.CurrentSize,
		DeletedBytes:    n.DeletedSize,
		Versions:        n.Versions,
	}
}

// largestDeleted lists the deleted files holding the most history.
func largestDeleted(t *sizetree.Tree, limit int) []PathRow {
	var rows []PathRow
	for n := range t.Leaves() {
		if n.Deleted() && n.CumulativeSize > 0 {
			rows = append(rows, pathRow(n))
		}
	}
	sortRows(rows)
	if len(rows) > limit {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = []PathRow{}
	}
	return rows
}
