package engine

import (
	"context"
	"path/filepath"
	"time"

	"github.com/odvcencio/repodiet/pkg/extstat"
	"github.com/odvcencio/repodiet/pkg/object"
	"github.com/odvcencio/repodiet/pkg/rank"
	"github.com/odvcencio/repodiet/pkg/record"
	"github.com/odvcencio/repodiet/pkg/search"
	"github.com/odvcencio/repodiet/pkg/sizetree"
	"github.com/odvcencio/repodiet/pkg/store"
)

// Snapshot is one consistent, immutable view of the scanned history. A new
// scan never changes a published snapshot; Rebuild replaces it.
type Snapshot struct {
	Head       object.Hash
	Tree       *sizetree.Tree
	Blobs      []rank.Blob
	Extensions []extstat.Stat
	Search     *search.Index
	Stats      store.Stats
	BuiltAt    time.Time
}

// Snapshot returns the latest published snapshot, or nil before the first
// Rebuild.
func (e *Engine) Snapshot() *Snapshot { return e.snap.Load() }

// Rebuild aggregates everything stored, inside one read transaction, and
// publishes the result.
func (e *Engine) Rebuild(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	tx, err := e.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Close()

	head, membership, err := tx.HeadMembership(ctx)
	if err != nil {
		return nil, err
	}
	if head == "" {
		head, membership = e.liveHead()
	}
	stats, err := tx.Stats(ctx)
	if err != nil {
		return nil, err
	}

	tree := sizetree.NewBuilder()
	ranker := rank.NewRanker()
	exts := extstat.NewAggregator()
	for rec, err := range tx.Records(ctx) {
		if err != nil {
			return nil, err
		}
		tree.Add(rec)
		ranker.Add(rec)
		exts.Add(rec)
	}
	if err := tx.Close(); err != nil {
		return nil, err
	}
	e.phase("load records", start)

	aggStart := time.Now()
	snap := &Snapshot{
		Head:       head,
		Tree:       tree.Build(membership),
		Blobs:      ranker.Top(e.cfg.Report.Top),
		Extensions: exts.Result(membership),
		Stats:      stats,
		BuiltAt:    time.Now(),
	}
	snap.Search = search.FromTree(snap.Tree)
	for _, c := range snap.Tree.Conflicts() {
		e.log.Warn("path was both file and directory",
			"path", c.Path,
			"kept", c.Kept,
			"folded", c.FoldedSize)
	}
	e.phase("aggregate", aggStart)

	e.snap.Store(snap)
	return snap, nil
}

func baseName(p string) string {
	return filepath.Base(filepath.Clean(p))
}

// liveHead lists the repository's current head for a store that has no
// completed scan yet, so partial history is still measured against a head.
func (e *Engine) liveHead() (object.Hash, record.Membership) {
	head, err := e.repo.HeadCommit()
	if err != nil {
		e.log.Warn("no head to measure against", "err", err)
		return "", nil
	}
	m, err := e.repo.HeadTree(head)
	if err != nil {
		e.log.Warn("cannot list head tree", "head", head, "err", err)
		return "", nil
	}
	return head, m
}
