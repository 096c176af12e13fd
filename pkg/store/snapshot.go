package store

import (
	"context"
	"database/sql"
	"iter"

	"github.com/odvcencio/repodiet/pkg/object"
	"github.com/odvcencio/repodiet/pkg/record"
)

// Stats summarizes the cache contents.
type Stats struct {
	Records        int64
	Paths          int64
	ScannedCommits int64
	RetryCommits   int64
	Head           object.Hash
}

// AllRecords yields every stored record in insertion order. Each range over
// the sequence runs a fresh query, so it can be iterated again.
func (s *Store) AllRecords(ctx context.Context) iter.Seq2[record.BlobRecord, error] {
	return recordSeq(ctx, s.db)
}

// Stats counts records, distinct paths and frontier sizes.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	return loadStats(ctx, s.db)
}

// Snapshot is a read transaction: everything read through it reflects one
// consistent state even while a scan keeps writing.
type Snapshot struct {
	tx *sql.Tx
}

// Snapshot begins a read transaction. Callers must Close it.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, ioErr("begin snapshot", err)
	}
	// The first read pins the transaction's view of the database.
	if _, err := getMeta(ctx, tx, keySchemaVersion); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return &Snapshot{tx: tx}, nil
}

// Records yields every record visible to the snapshot. It can be ranged over
// more than once.
func (sn *Snapshot) Records(ctx context.Context) iter.Seq2[record.BlobRecord, error] {
	return recordSeq(ctx, sn.tx)
}

// HeadMembership returns the head the stored membership was computed for and
// the membership itself.
func (sn *Snapshot) HeadMembership(ctx context.Context) (object.Hash, record.Membership, error) {
	return loadMembership(ctx, sn.tx)
}

// Frontier returns the frontier visible to the snapshot.
func (sn *Snapshot) Frontier(ctx context.Context) (record.Frontier, error) {
	return loadFrontier(ctx, sn.tx)
}

// Stats returns counts visible to the snapshot.
func (sn *Snapshot) Stats(ctx context.Context) (Stats, error) {
	return loadStats(ctx, sn.tx)
}

// Close ends the read transaction.
func (sn *Snapshot) Close() error {
	if err := sn.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return ioErr("close snapshot", err)
	}
	return nil
}

func recordSeq(ctx context.Context, q querier) iter.Seq2[record.BlobRecord, error] {
	return func(yield func(record.BlobRecord, error) bool) {
		rows, err := q.QueryContext(ctx, `
		SELECT path, object_id, logical_size, packed_size, commit_id, author, timestamp
		FROM blobs ORDER BY rowid`)
		if err != nil {
			yield(record.BlobRecord{}, ioErr("read records", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				r                record.BlobRecord
				objectID, commit string
				logical, packed  int64
			)
			if err := rows.Scan(&r.Path, &objectID, &logical, &packed, &commit, &r.Author, &r.Timestamp); err != nil {
				yield(record.BlobRecord{}, ioErr("read records", err))
				return
			}
			r.ObjectID = object.Hash(objectID)
			r.CommitID = object.Hash(commit)
			r.LogicalSize = uint64(logical)
			r.PackedSize = uint64(packed)
			if !yield(r, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(record.BlobRecord{}, ioErr("read records", err))
		}
	}
}

func loadStats(ctx context.Context, q querier) (Stats, error) {
	var st Stats
	err := q.QueryRowContext(ctx, `
	SELECT
		(SELECT COUNT(*) FROM blobs),
		(SELECT COUNT(DISTINCT path) FROM blobs),
		(SELECT COUNT(*) FROM scanned_commits),
		(SELECT COUNT(*) FROM retry_commits)`).Scan(&st.Records, &st.Paths, &st.ScannedCommits, &st.RetryCommits)
	if err != nil {
		return st, ioErr("stats", err)
	}
	head, err := getMeta(ctx, q, keyHead)
	if err != nil {
		return st, err
	}
	st.Head = object.Hash(head)
	return st, nil
}
