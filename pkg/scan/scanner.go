package scan

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/repodiet/pkg/object"
	"github.com/odvcencio/repodiet/pkg/record"
)

// Source is the repository surface the scanner reads.
type Source interface {
	CommitReader
	TreeReader
}

// SizeResolver reports object sizes.
type SizeResolver interface {
	Resolve(h object.Hash) (object.Sizes, error)
}

// CommitError reports a commit whose diff step was skipped. Path and Object
// are set when a single object failed to resolve.
type CommitError struct {
	Commit object.Hash
	Path   string
	Object object.Hash
	Err    error
}

func (e *CommitError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Path != "" {
		return fmt.Sprintf("scan commit %s: %s (%s): %v", e.Commit, e.Path, e.Object, e.Err)
	}
	return fmt.Sprintf("scan commit %s: %v", e.Commit, e.Err)
}

func (e *CommitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CommitScan is the outcome of scanning one commit. When Err is set, Records
// is empty and the commit must not join the frontier.
type CommitScan struct {
	Commit  record.CommitRef
	Records []record.BlobRecord
	Err     *CommitError
}

// Options tunes a Scanner.
type Options struct {
	// Workers bounds concurrent size lookups within one commit. Zero uses
	// GOMAXPROCS.
	Workers int
}

// Scanner turns commits into blob records.
type Scanner struct {
	src     Source
	sizes   SizeResolver
	workers int
}

// New returns a Scanner reading history from src and sizes from sizes.
func New(src Source, sizes SizeResolver, opts Options) *Scanner {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Scanner{src: src, sizes: sizes, workers: workers}
}

// Commits scans the given commits in order. The sequence is lazy and stops
// early when ctx is cancelled; cancellation is only checked between commits,
// so every yielded CommitScan is complete.
func (s *Scanner) Commits(ctx context.Context, commits []record.CommitRef) iter.Seq[CommitScan] {
	return func(yield func(CommitScan) bool) {
		for _, c := range commits {
			if ctx.Err() != nil {
				return
			}
			if !yield(s.ScanCommit(ctx, c)) {
				return
			}
		}
	}
}

// Scan yields the records of every commit reachable from head that frontier
// has not covered. Commits that fail are skipped. The only error yielded is a
// failure to walk the commit graph.
func (s *Scanner) Scan(ctx context.Context, head object.Hash, frontier record.Frontier) iter.Seq2[record.BlobRecord, error] {
	return func(yield func(record.BlobRecord, error) bool) {
		commits, err := Unscanned(ctx, s.src, head, frontier)
		if err != nil {
			yield(record.BlobRecord{}, err)
			return
		}
		for cs := range s.Commits(ctx, commits) {
			for _, rec := range cs.Records {
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}

// ScanCommit diffs one commit against its first parent, or against the empty
// tree for a root commit, and resolves the size of every blob it introduces.
func (s *Scanner) ScanCommit(_ context.Context, c record.CommitRef) CommitScan {
	out := CommitScan{Commit: c}
	fail := func(path string, obj object.Hash, err error) CommitScan {
		out.Err = &CommitError{Commit: c.ID, Path: path, Object: obj, Err: err}
		return out
	}

	commit, err := s.src.ReadCommit(c.ID)
	if err != nil {
		return fail("", "", err)
	}
	var parentTree object.Hash
	if len(commit.Parents) > 0 {
		parent, err := s.src.ReadCommit(commit.Parents[0])
		if err != nil {
			return fail("", "", fmt.Errorf("primary parent: %w", err))
		}
		parentTree = parent.TreeHash
	}
	changes, err := DiffTrees(s.src, parentTree, commit.TreeHash)
	if err != nil {
		return fail("", "", err)
	}

	records := make([]record.BlobRecord, len(changes))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, ch := range changes {
		g.Go(func() error {
			sizes, err := s.sizes.Resolve(ch.ID)
			if err != nil {
				return &CommitError{Commit: c.ID, Path: ch.Path, Object: ch.ID, Err: err}
			}
			records[i] = record.BlobRecord{
				Path:        ch.Path,
				ObjectID:    ch.ID,
				LogicalSize: sizes.Logical,
				PackedSize:  sizes.Packed,
				CommitID:    c.ID,
				Author:      commit.Author,
				Timestamp:   commit.Timestamp,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var ce *CommitError
		if errors.As(err, &ce) {
			out.Err = ce
			return out
		}
		return fail("", "", err)
	}
	out.Records = records
	return out
}
