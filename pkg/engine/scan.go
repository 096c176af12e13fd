package engine

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/odvcencio/repodiet/pkg/object"
	"github.com/odvcencio/repodiet/pkg/observability"
	"github.com/odvcencio/repodiet/pkg/record"
	"github.com/odvcencio/repodiet/pkg/scan"
	"github.com/odvcencio/repodiet/pkg/store"
)

// Progress is reported after every scanned commit.
type Progress struct {
	Processed int
	Total     int
	Records   int
	Failed    int
	Commit    object.Hash
}

// Summary describes one scan run.
type Summary struct {
	Head object.Hash
	// Pending is how many commits needed scanning when the run started.
	Pending  int
	Scanned  int
	Failed   int
	Appended int64
	Warnings []*scan.CommitError
	Elapsed  time.Duration
}

// UpToDate reports whether the run found nothing to scan.
func (s *Summary) UpToDate() bool { return s.Pending == 0 }

// Scan brings the database up to date with HEAD. Records of each batch of
// commits are written in the same transaction that adds the commits to the
// frontier. A commit that fails to scan is logged, counted and queued for
// retry; it never aborts the run. When ctx is cancelled, completed commits
// are kept and ctx.Err() is returned with the partial summary.
func (e *Engine) Scan(ctx context.Context, onProgress func(Progress)) (*Summary, error) {
	e.scanMu.Lock()
	defer e.scanMu.Unlock()

	start := time.Now()
	head, err := e.repo.HeadCommit()
	if err != nil {
		return nil, err
	}
	sum := &Summary{Head: head}

	membership, err := e.headMembership(ctx, head)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		frontier, err := e.store.Frontier(ctx)
		if err != nil {
			return nil, err
		}
		if frontier.UpToDate(head) {
			sum.Elapsed = time.Since(start)
			e.log.Info("scan up to date", "head", head)
			return sum, nil
		}
	}

	walkStart := time.Now()
	commits, err := e.store.UnscannedCommits(ctx, e.repo, head)
	if err != nil {
		return nil, err
	}
	e.phase("walk history", walkStart)
	sum.Pending = len(commits)
	e.log.Info("scan started", "head", head, "pending", len(commits))

	scanner := scan.New(e.repo, timedResolver{sizes: e.repo, metrics: e.metrics}, scan.Options{Workers: e.cfg.Scan.Workers})
	batch := store.Batch{Failed: make(map[object.Hash]string)}
	inBatch := 0
	flush := func(ctx context.Context, final bool) error {
		if final {
			batch.Head = head
			batch.Membership = membership
		}
		if inBatch == 0 && !final {
			return nil
		}
		n, err := e.store.ApplyBatch(ctx, batch)
		if err != nil {
			return err
		}
		sum.Appended += n
		e.metrics.RecordsAppended.Add(float64(n))
		batch = store.Batch{Failed: make(map[object.Hash]string)}
		inBatch = 0
		return nil
	}

	scanStart := time.Now()
	var p Progress
	p.Total = len(commits)
	for cs := range scanner.Commits(ctx, commits) {
		inBatch++
		p.Processed++
		p.Commit = cs.Commit.ID
		if cs.Err != nil {
			sum.Failed++
			p.Failed++
			sum.Warnings = append(sum.Warnings, cs.Err)
			batch.Failed[cs.Commit.ID] = cs.Err.Error()
			e.metrics.CommitFailures.Inc()
			e.log.Warn("commit skipped",
				"commit", cs.Err.Commit,
				"path", cs.Err.Path,
				"object", cs.Err.Object,
				"err", cs.Err.Err)
		} else {
			sum.Scanned++
			p.Records += len(cs.Records)
			batch.Records = append(batch.Records, cs.Records...)
			batch.Scanned = append(batch.Scanned, cs.Commit.ID)
			e.metrics.CommitsScanned.Inc()
		}
		if onProgress != nil {
			onProgress(p)
		}
		if inBatch >= e.cfg.Scan.BatchCommits {
			if err := flush(ctx, false); err != nil {
				return sum, err
			}
		}
	}
	e.phase("scan commits", scanStart)

	if ctxErr := ctx.Err(); ctxErr != nil {
		// Keep what finished; the frontier head stays at the last
		// completed run so the next run resumes here.
		if err := flush(context.WithoutCancel(ctx), false); err != nil {
			return sum, errors.Join(ctxErr, err)
		}
		sum.Elapsed = time.Since(start)
		e.log.Info("scan cancelled", "scanned", sum.Scanned, "pending", sum.Pending-p.Processed)
		return sum, ctxErr
	}
	if err := flush(ctx, true); err != nil {
		return sum, err
	}

	if st, err := e.store.Stats(ctx); err == nil {
		e.metrics.FrontierCommits.Set(float64(st.ScannedCommits))
	}
	if path := e.cfg.Metrics.Textfile; path != "" {
		if err := e.metrics.WriteTextfile(filepath.Clean(path)); err != nil {
			e.log.Warn("metrics not written", "path", path, "err", err)
		}
	}
	sum.Elapsed = time.Since(start)
	e.phase("scan", start)
	e.log.Info("scan finished",
		"head", head,
		"scanned", sum.Scanned,
		"failed", sum.Failed,
		"records", sum.Appended,
		"elapsed", sum.Elapsed)
	return sum, nil
}

// headMembership lists the head tree when the stored listing belongs to
// another head, and returns nil when the stored one is current. The listing
// is only stored by the final batch of a completed scan.
func (e *Engine) headMembership(ctx context.Context, head object.Hash) (record.Membership, error) {
	_, err := e.store.HeadMembership(ctx, head)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, store.ErrHeadNotIndexed) {
		return nil, err
	}
	start := time.Now()
	m, err := e.repo.HeadTree(head)
	if err != nil {
		return nil, err
	}
	e.phase("index head tree", start)
	return m, nil
}

// timedResolver counts and times object size lookups.
type timedResolver struct {
	sizes   scan.SizeResolver
	metrics *observability.Metrics
}

func (t timedResolver) Resolve(h object.Hash) (object.Sizes, error) {
	start := time.Now()
	s, err := t.sizes.Resolve(h)
	t.metrics.ObjectsResolved.Inc()
	t.metrics.ResolveSeconds.Observe(time.Since(start).Seconds())
	return s, err
}
