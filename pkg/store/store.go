// Package store persists blob records and scan progress in SQLite so later
// runs only scan history they have not seen.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/odvcencio/repodiet/pkg/object"
	"github.com/odvcencio/repodiet/pkg/record"
	"github.com/odvcencio/repodiet/pkg/scan"
)

// SchemaVersion is bumped whenever the layout changes; a database carrying
// another version is dropped and rebuilt.
const SchemaVersion = "5"

const (
	keySchemaVersion  = "schema_version"
	keyHead           = "head_oid"
	keyMembershipHead = "membership_head"
)

var (
	// ErrStoreIO wraps every failure of the underlying database.
	ErrStoreIO = errors.New("store i/o")
	// ErrHeadNotIndexed means the stored head membership belongs to another
	// commit.
	ErrHeadNotIndexed = errors.New("head membership not indexed")
)

func ioErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreIO, err)
}

// querier is the query surface shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the scan cache for one repository.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ioErr("open", err)
	}
	dsn := "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, ioErr("open", err)
	}
	s := &Store{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

const schema = `
CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS blobs (
	path TEXT NOT NULL,
	object_id TEXT NOT NULL,
	logical_size INTEGER NOT NULL,
	packed_size INTEGER NOT NULL,
	commit_id TEXT NOT NULL,
	author TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	UNIQUE(path, object_id, commit_id)
);
CREATE INDEX IF NOT EXISTS idx_blobs_path ON blobs(path);
CREATE TABLE IF NOT EXISTS scanned_commits (
	commit_id TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS retry_commits (
	commit_id TEXT PRIMARY KEY,
	reason TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS head_entries (
	path TEXT PRIMARY KEY,
	object_id TEXT NOT NULL
);
`

var dropSchema = []string{
	"DROP TABLE IF EXISTS blobs",
	"DROP TABLE IF EXISTS scanned_commits",
	"DROP TABLE IF EXISTS retry_commits",
	"DROP TABLE IF EXISTS head_entries",
	"DROP TABLE IF EXISTS metadata",
}

func (s *Store) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ioErr("init schema", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return ioErr("init schema", err)
	}
	version, err := getMeta(ctx, tx, keySchemaVersion)
	if err != nil {
		return err
	}
	if version != "" && version != SchemaVersion {
		for _, stmt := range dropSchema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return ioErr("drop stale schema", err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return ioErr("init schema", err)
	}
	if err := setMeta(ctx, tx, keySchemaVersion, SchemaVersion); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return ioErr("init schema", err)
	}
	return nil
}

func getMeta(ctx context.Context, q querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", ioErr("read metadata "+key, err)
	}
	return value, nil
}

func setMeta(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx, `
	INSERT INTO metadata (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return ioErr("write metadata "+key, err)
	}
	return nil
}

// Frontier loads the scanned commit set, the last head and the retry set.
func (s *Store) Frontier(ctx context.Context) (record.Frontier, error) {
	return loadFrontier(ctx, s.db)
}

func loadFrontier(ctx context.Context, q querier) (record.Frontier, error) {
	f := record.NewFrontier()
	head, err := getMeta(ctx, q, keyHead)
	if err != nil {
		return f, err
	}
	f.Head = object.Hash(head)

	rows, err := q.QueryContext(ctx, `SELECT commit_id FROM scanned_commits`)
	if err != nil {
		return f, ioErr("load frontier", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return f, ioErr("load frontier", err)
		}
		f.Scanned[object.Hash(id)] = struct{}{}
	}
	if err := rows.Close(); err != nil {
		return f, ioErr("load frontier", err)
	}
	if err := rows.Err(); err != nil {
		return f, ioErr("load frontier", err)
	}

	rows, err = q.QueryContext(ctx, `SELECT commit_id, reason FROM retry_commits`)
	if err != nil {
		return f, ioErr("load retry set", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, reason string
		if err := rows.Scan(&id, &reason); err != nil {
			return f, ioErr("load retry set", err)
		}
		f.Retry[object.Hash(id)] = reason
	}
	if err := rows.Err(); err != nil {
		return f, ioErr("load retry set", err)
	}
	return f, nil
}

// UnscannedCommits returns the commits reachable from head (or pending retry)
// that are not in the stored frontier, parents first.
func (s *Store) UnscannedCommits(ctx context.Context, commits scan.CommitReader, head object.Hash) ([]record.CommitRef, error) {
	f, err := s.Frontier(ctx)
	if err != nil {
		return nil, err
	}
	return scan.Unscanned(ctx, commits, head, f)
}
