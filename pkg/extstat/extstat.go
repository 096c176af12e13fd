// Package extstat rolls stored history up by file extension.
package extstat

import (
	"cmp"
	"path"
	"slices"
	"strings"

	"github.com/src-d/enry/v2"

	"github.com/odvcencio/repodiet/pkg/record"
)

// maxExtLen is the longest suffix still treated as an extension.
const maxExtLen = 10

// Stat is the rollup for one extension.
type Stat struct {
	Extension      string
	Language       string
	FileCount      int
	CumulativeSize uint64
	CurrentSize    uint64
}

// Label renders the extension for display.
func (s Stat) Label() string {
	if s.Extension == "" {
		return "(no ext)"
	}
	return "." + s.Extension
}

// Extension returns the lowercased text after the final dot of the last path
// component, or "" when there is none or it is implausibly long.
func Extension(p string) string {
	base := path.Base(p)
	i := strings.LastIndexByte(base, '.')
	if i < 0 || i == len(base)-1 {
		return ""
	}
	ext := base[i+1:]
	if len(ext) > maxExtLen {
		return ""
	}
	return strings.ToLower(ext)
}

// Aggregator accumulates records for Result.
type Aggregator struct {
	versions map[record.Version]uint64
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{versions: make(map[record.Version]uint64)}
}

// Add folds one record in. Repeated versions of a path count once.
func (a *Aggregator) Add(rec record.BlobRecord) {
	v := rec.Version()
	if _, ok := a.versions[v]; !ok {
		a.versions[v] = rec.PackedSize
	}
}

// Result returns the stats ordered by cumulative size descending, then
// extension.
func (a *Aggregator) Result(membership record.Membership) []Stat {
	byExt := make(map[string]*Stat)
	paths := make(map[string]struct{})
	for v, size := range a.versions {
		ext := Extension(v.Path)
		st := byExt[ext]
		if st == nil {
			st = &Stat{Extension: ext, Language: language(ext)}
			byExt[ext] = st
		}
		if _, ok := paths[v.Path]; !ok {
			paths[v.Path] = struct{}{}
			st.FileCount++
		}
		st.CumulativeSize += size
		if membership[v.Path] == v.ObjectID {
			st.CurrentSize += size
		}
	}

	out := make([]Stat, 0, len(byExt))
	for _, st := range byExt {
		out = append(out, *st)
	}
	slices.SortFunc(out, func(a, b Stat) int {
		if c := cmp.Compare(b.CumulativeSize, a.CumulativeSize); c != 0 {
			return c
		}
		return cmp.Compare(a.Extension, b.Extension)
	})
	return out
}

// Aggregate rolls records up in one call.
func Aggregate(records []record.BlobRecord, membership record.Membership) []Stat {
	a := NewAggregator()
	for _, r := range records {
		a.Add(r)
	}
	return a.Result(membership)
}

func language(ext string) string {
	if ext == "" {
		return ""
	}
	lang, _ := enry.GetLanguageByExtension("file." + ext)
	return lang
}
