// Package search filters the stored path set by case-insensitive substring,
// narrowing incrementally as a query grows.
package search

import (
	"cmp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/odvcencio/repodiet/pkg/sizetree"
)

// Entry is one searchable file path with its sizes.
type Entry struct {
	Path           string
	CumulativeSize uint64
	CurrentSize    uint64
	// Deleted is set when the head tree does not hold the path.
	Deleted bool
}

// Index is an immutable, ordered path set. It is safe for concurrent use;
// per-view state lives in Query.
type Index struct {
	entries []Entry
	lower   []string
}

// New builds an index ordered by cumulative size descending, then path.
func New(entries []Entry) *Index {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b Entry) int {
		if c := cmp.Compare(b.CumulativeSize, a.CumulativeSize); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
	lower := make([]string, len(sorted))
	for i, e := range sorted {
		lower[i] = strings.ToLower(e.Path)
	}
	return &Index{entries: sorted, lower: lower}
}

// FromTree indexes every file path in tree's history, including paths a
// file/directory conflict folded into their parent.
func FromTree(tree *sizetree.Tree) *Index {
	shadowed := tree.Shadowed()
	entries := make([]Entry, 0, tree.Len()+len(shadowed))
	for n := range tree.Leaves() {
		entries = append(entries, Entry{
			Path:           n.Path,
			CumulativeSize: n.CumulativeSize,
			CurrentSize:    n.CurrentSize,
			Deleted:        n.Deleted(),
		})
	}
	for _, s := range shadowed {
		entries = append(entries, Entry{Path: s.Path, CumulativeSize: s.CumulativeSize, Deleted: true})
	}
	return New(entries)
}

// Len returns the number of indexed paths.
func (ix *Index) Len() int { return len(ix.entries) }

// Entry returns the i-th entry in index order.
func (ix *Index) Entry(i int) Entry { return ix.entries[i] }

// Find returns every entry matching q in index order.
func (ix *Index) Find(q string) []Entry {
	return ix.collect(ix.scan(strings.ToLower(q)))
}

// NewQuery starts an empty query, which matches every path.
func (ix *Index) NewQuery() *Query {
	q := &Query{ix: ix}
	q.hits = ix.scan("")
	return q
}

func (ix *Index) scan(lower string) []int {
	hits := make([]int, 0, len(ix.entries))
	for i, p := range ix.lower {
		if strings.Contains(p, lower) {
			hits = append(hits, i)
		}
	}
	return hits
}

func (ix *Index) collect(hits []int) []Entry {
	out := make([]Entry, len(hits))
	for i, h := range hits {
		out[i] = ix.entries[h]
	}
	return out
}

// Query is one view's search state over an Index.
type Query struct {
	ix       *Index
	text     string
	hits     []int
	selected int
}

// Text returns the current query string.
func (q *Query) Text() string { return q.text }

// Results returns the current matches in index order.
func (q *Query) Results() []Entry { return q.ix.collect(q.hits) }

// Len returns the number of current matches.
func (q *Query) Len() int { return len(q.hits) }

// AddChar appends r and filters the previous matches. Every path matching
// the longer query also matched the shorter one, so the full set is not
// rescanned.
func (q *Query) AddChar(r rune) []Entry {
	q.text += string(r)
	lower := strings.ToLower(q.text)
	kept := q.hits[:0:0]
	for _, h := range q.hits {
		if strings.Contains(q.ix.lower[h], lower) {
			kept = append(kept, h)
		}
	}
	q.hits = kept
	q.selected = 0
	return q.Results()
}

// RemoveLastChar drops the final character and rescans the full set.
func (q *Query) RemoveLastChar() []Entry {
	if q.text != "" {
		_, size := utf8.DecodeLastRuneInString(q.text)
		q.text = q.text[:len(q.text)-size]
	}
	return q.rescan()
}

// SetQuery replaces the query and rescans the full set.
func (q *Query) SetQuery(text string) []Entry {
	q.text = text
	return q.rescan()
}

func (q *Query) rescan() []Entry {
	q.hits = q.ix.scan(strings.ToLower(q.text))
	q.selected = 0
	return q.Results()
}

// MoveUp moves the selection up, wrapping to the last match.
func (q *Query) MoveUp() {
	if n := len(q.hits); n > 0 {
		q.selected = (q.selected + n - 1) % n
	}
}

// MoveDown moves the selection down, wrapping to the first match.
func (q *Query) MoveDown() {
	if n := len(q.hits); n > 0 {
		q.selected = (q.selected + 1) % n
	}
}

// Selected returns the selected match.
func (q *Query) Selected() (Entry, bool) {
	if q.selected >= len(q.hits) {
		return Entry{}, false
	}
	return q.ix.entries[q.hits[q.selected]], true
}
