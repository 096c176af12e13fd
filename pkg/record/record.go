// Package record holds the value types shared by the scanner, the store and
// the aggregators.
package record

import "github.com/odvcencio/repodiet/pkg/object"

// BlobRecord is one observation of a blob at a path, introduced by a commit.
// Records are append-only; (Path, ObjectID, CommitID) identifies one.
type BlobRecord struct {
	Path        string
	ObjectID    object.Hash
	LogicalSize uint64
	PackedSize  uint64
	CommitID    object.Hash
	Author      string
	Timestamp   int64
}

// Key is the identity of a record.
type Key struct {
	Path     string
	ObjectID object.Hash
	CommitID object.Hash
}

// Key returns the record's identity.
func (r BlobRecord) Key() Key {
	return Key{Path: r.Path, ObjectID: r.ObjectID, CommitID: r.CommitID}
}

// Version identifies one stored version of a path: the same content at the
// same path counts once no matter how many commits reintroduce it.
type Version struct {
	Path     string
	ObjectID object.Hash
}

// Version returns the (path, object id) pair of the record.
func (r BlobRecord) Version() Version {
	return Version{Path: r.Path, ObjectID: r.ObjectID}
}

// CommitRef is a commit id plus its parent ids in commit order.
type CommitRef struct {
	ID      object.Hash
	Parents []object.Hash
}

// Frontier is the persisted boundary between scanned and unscanned history.
type Frontier struct {
	// Scanned holds every commit whose records are durably stored.
	Scanned map[object.Hash]struct{}
	// Head is the HEAD commit at the end of the last completed scan.
	Head object.Hash
	// Retry holds commits that failed on an earlier run and must be
	// scanned again even though their descendants are in Scanned.
	Retry map[object.Hash]string
}

// NewFrontier returns an empty frontier.
func NewFrontier() Frontier {
	return Frontier{
		Scanned: make(map[object.Hash]struct{}),
		Retry:   make(map[object.Hash]string),
	}
}

// Contains reports whether id has been scanned.
func (f Frontier) Contains(id object.Hash) bool {
	_, ok := f.Scanned[id]
	return ok
}

// UpToDate reports whether nothing needs scanning for head.
func (f Frontier) UpToDate(head object.Hash) bool {
	return f.Head == head && len(f.Retry) == 0 && f.Contains(head)
}

// Membership maps every blob path in the head tree to its object id.
type Membership map[string]object.Hash

// Current reports whether rec is the version present in the head tree.
func (m Membership) Current(rec BlobRecord) bool {
	id, ok := m[rec.Path]
	return ok && id == rec.ObjectID
}
