package repo

import (
	"errors"
	"fmt"

	"github.com/odvcencio/repodiet/pkg/object"
)

// ErrRepositoryUnavailable means the path is not a Git repository or its HEAD
// cannot be resolved to a commit.
var ErrRepositoryUnavailable = errors.New("repository unavailable")

// Repo represents an opened Git repository.
type Repo struct {
	RootDir   string // working tree root, empty for bare repositories
	GitDir    string // per-worktree git directory (holds HEAD)
	CommonDir string // shared git directory (holds objects and refs)

	Objects  *object.Store
	Resolver *object.Resolver
}

// Close releases the object store's open pack files.
func (r *Repo) Close() error {
	if r == nil || r.Objects == nil {
		return nil
	}
	return r.Objects.Close()
}

// ReadCommit reads and parses a commit.
func (r *Repo) ReadCommit(h object.Hash) (*object.CommitObj, error) {
	c, err := r.Resolver.ReadCommit(h)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", h, err)
	}
	return c, nil
}

// ReadTree reads and parses a tree.
func (r *Repo) ReadTree(h object.Hash) (*object.TreeObj, error) {
	t, err := r.Resolver.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("read tree %s: %w", h, err)
	}
	return t, nil
}

// Resolve reports the logical and packed sizes of an object.
func (r *Repo) Resolve(h object.Hash) (object.Sizes, error) {
	return r.Resolver.Resolve(h)
}
