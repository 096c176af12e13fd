package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/odvcencio/repodiet/pkg/object"
	"github.com/odvcencio/repodiet/pkg/record"
)

// Batch is one atomic unit of scan progress: the records of a run of
// commits together with the frontier change they justify.
type Batch struct {
	Records []record.BlobRecord
	// Scanned commits join the frontier and leave the retry set.
	Scanned []object.Hash
	// Failed commits enter the retry set with a reason.
	Failed map[object.Hash]string
	// Head, when set, becomes the recorded head.
	Head object.Hash
	// Membership, when non-nil, replaces the head tree listing and is
	// recorded as belonging to Head. It is written with the records so a
	// reader never pairs a new head's listing with an older head's history.
	Membership record.Membership
}

// Append stores records, ignoring any already present. It returns how many
// rows were new.
func (s *Store) Append(ctx context.Context, records []record.BlobRecord) (int64, error) {
	var n int64
	err := s.withTx(ctx, "append", func(tx *sql.Tx) error {
		var err error
		n, err = appendRecords(ctx, tx, records)
		return err
	})
	return n, err
}

// AdvanceFrontier marks commits as scanned and records head. Callers must
// have appended the commits' records first.
func (s *Store) AdvanceFrontier(ctx context.Context, commits []object.Hash, head object.Hash) error {
	return s.withTx(ctx, "advance frontier", func(tx *sql.Tx) error {
		return advance(ctx, tx, commits, nil, head)
	})
}

// ApplyBatch appends the batch's records and advances the frontier in one
// transaction, so a crash can never leave a scanned commit without records.
func (s *Store) ApplyBatch(ctx context.Context, b Batch) (int64, error) {
	var n int64
	err := s.withTx(ctx, "apply batch", func(tx *sql.Tx) error {
		var err error
		if n, err = appendRecords(ctx, tx, b.Records); err != nil {
			return err
		}
		if b.Membership != nil {
			if b.Head == "" {
				return fmt.Errorf("apply batch: head membership without a head")
			}
			if err := writeMembership(ctx, tx, b.Head, b.Membership); err != nil {
				return err
			}
		}
		return advance(ctx, tx, b.Scanned, b.Failed, b.Head)
	})
	return n, err
}

func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ioErr(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return ioErr(op, err)
	}
	return nil
}

func appendRecords(ctx context.Context, tx *sql.Tx, records []record.BlobRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR IGNORE INTO blobs (path, object_id, logical_size, packed_size, commit_id, author, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, ioErr("append", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, r := range records {
		res, err := stmt.ExecContext(ctx,
			r.Path,
			string(r.ObjectID),
			int64(r.LogicalSize),
			int64(r.PackedSize),
			string(r.CommitID),
			r.Author,
			r.Timestamp,
		)
		if err != nil {
			return 0, ioErr(fmt.Sprintf("append %s@%s", r.Path, r.CommitID), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, ioErr("append", err)
		}
		inserted += n
	}
	return inserted, nil
}

func advance(ctx context.Context, tx *sql.Tx, scanned []object.Hash, failed map[object.Hash]string, head object.Hash) error {
	for _, id := range scanned {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO scanned_commits (commit_id) VALUES (?)`, string(id)); err != nil {
			return ioErr("advance frontier", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM retry_commits WHERE commit_id = ?`, string(id)); err != nil {
			return ioErr("advance frontier", err)
		}
	}
	for id, reason := range failed {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO retry_commits (commit_id, reason) VALUES (?, ?)
		ON CONFLICT(commit_id) DO UPDATE SET reason = excluded.reason`, string(id), reason)
		if err != nil {
			return ioErr("record failed commit", err)
		}
	}
	if head != "" {
		return setMeta(ctx, tx, keyHead, string(head))
	}
	return nil
}

// SetHeadMembership replaces the stored head tree listing.
func (s *Store) SetHeadMembership(ctx context.Context, head object.Hash, m record.Membership) error {
	return s.withTx(ctx, "set head membership", func(tx *sql.Tx) error {
		return writeMembership(ctx, tx, head, m)
	})
}

func writeMembership(ctx context.Context, tx *sql.Tx, head object.Hash, m record.Membership) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM head_entries`); err != nil {
		return ioErr("set head membership", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO head_entries (path, object_id) VALUES (?, ?)`)
	if err != nil {
		return ioErr("set head membership", err)
	}
	defer stmt.Close()
	for path, id := range m {
		if _, err := stmt.ExecContext(ctx, path, string(id)); err != nil {
			return ioErr("set head membership", err)
		}
	}
	return setMeta(ctx, tx, keyMembershipHead, string(head))
}

// HeadMembership returns the stored head tree listing if it was computed for
// head, and ErrHeadNotIndexed otherwise.
func (s *Store) HeadMembership(ctx context.Context, head object.Hash) (record.Membership, error) {
	indexed, m, err := loadMembership(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if indexed != head {
		return nil, fmt.Errorf("%w: have %q, want %s", ErrHeadNotIndexed, indexed, head)
	}
	return m, nil
}

func loadMembership(ctx context.Context, q querier) (object.Hash, record.Membership, error) {
	head, err := getMeta(ctx, q, keyMembershipHead)
	if err != nil {
		return "", nil, err
	}
	rows, err := q.QueryContext(ctx, `SELECT path, object_id FROM head_entries`)
	if err != nil {
		return "", nil, ioErr("load head membership", err)
	}
	defer rows.Close()

	m := make(record.Membership)
	for rows.Next() {
		var path, id string
		if err := rows.Scan(&path, &id); err != nil {
			return "", nil, ioErr("load head membership", err)
		}
		m[path] = object.Hash(id)
	}
	if err := rows.Err(); err != nil {
		return "", nil, ioErr("load head membership", err)
	}
	return object.Hash(head), m, nil
}
