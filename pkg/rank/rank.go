// Package rank selects the largest stored objects across history.
package rank

import (
	"container/heap"
	"slices"

	"github.com/odvcencio/repodiet/pkg/object"
	"github.com/odvcencio/repodiet/pkg/record"
)

// DefaultLimit is the number of blobs reported when no limit is given.
const DefaultLimit = 50

// Blob is one ranked object version with the record that introduced it.
type Blob struct {
	Path        string
	ObjectID    object.Hash
	PackedSize  uint64
	LogicalSize uint64
	CommitID    object.Hash
	Author      string
	Timestamp   int64
}

func fromRecord(r record.BlobRecord) Blob {
	return Blob{
		Path:        r.Path,
		ObjectID:    r.ObjectID,
		PackedSize:  r.PackedSize,
		LogicalSize: r.LogicalSize,
		CommitID:    r.CommitID,
		Author:      r.Author,
		Timestamp:   r.Timestamp,
	}
}

// before reports whether a ranks ahead of b: larger first, then path, then
// object id.
func before(a, b Blob) bool {
	if a.PackedSize != b.PackedSize {
		return a.PackedSize > b.PackedSize
	}
	if a.Path != b.Path {
		return a.Path < b.Path
	}
	return a.ObjectID < b.ObjectID
}

// Ranker collects one candidate per (path, object id), keeping the earliest
// record, and reports the top entries.
type Ranker struct {
	seen map[record.Version]int
	all  []Blob
}

// NewRanker returns an empty Ranker.
func NewRanker() *Ranker {
	return &Ranker{seen: make(map[record.Version]int)}
}

// Add offers a record. A later record for the same version only replaces the
// kept one when it is older.
func (r *Ranker) Add(rec record.BlobRecord) {
	v := rec.Version()
	if i, ok := r.seen[v]; ok {
		if rec.Timestamp < r.all[i].Timestamp {
			r.all[i] = fromRecord(rec)
		}
		return
	}
	r.seen[v] = len(r.all)
	r.all = append(r.all, fromRecord(rec))
}

// Len returns the number of distinct candidates.
func (r *Ranker) Len() int { return len(r.all) }

// Top returns at most n blobs in rank order. n <= 0 uses DefaultLimit.
func (r *Ranker) Top(n int) []Blob {
	if n <= 0 {
		n = DefaultLimit
	}
	h := make(minHeap, 0, min(n, len(r.all))+1)
	for _, b := range r.all {
		if len(h) < n {
			heap.Push(&h, b)
			continue
		}
		if before(b, h[0]) {
			h[0] = b
			heap.Fix(&h, 0)
		}
	}
	out := []Blob(h)
	slices.SortFunc(out, func(a, b Blob) int {
		switch {
		case before(a, b):
			return -1
		case before(b, a):
			return 1
		}
		return 0
	})
	return out
}

// Top ranks records in one call.
func Top(records []record.BlobRecord, n int) []Blob {
	r := NewRanker()
	for _, rec := range records {
		r.Add(rec)
	}
	return r.Top(n)
}

// minHeap keeps the weakest of the current top entries at the root.
type minHeap []Blob

func (h minHeap) Len() int { return len(h) }

func (h minHeap) Less(i, j int) bool { return before(h[j], h[i]) }

func (h minHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *minHeap) Push(x any) {
	*h = append(*h, x.(Blob))
}

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
