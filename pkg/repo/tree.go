package repo

import (
	"fmt"
	"path"

	"github.com/odvcencio/repodiet/pkg/object"
)

// FlattenTree walks a tree recursively and returns every blob it holds keyed
// by slash-separated path. Submodule links are skipped.
func (r *Repo) FlattenTree(h object.Hash) (map[string]object.Hash, error) {
	out := make(map[string]object.Hash)
	if err := r.flattenTreeRec(h, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) flattenTreeRec(h object.Hash, prefix string, out map[string]object.Hash) error {
	tree, err := r.ReadTree(h)
	if err != nil {
		return fmt.Errorf("flatten tree %q: %w", prefix, err)
	}
	for _, e := range tree.Entries {
		full := e.Name
		if prefix != "" {
			full = path.Join(prefix, e.Name)
		}
		switch {
		case e.IsDir():
			if err := r.flattenTreeRec(e.Hash, full, out); err != nil {
				return err
			}
		case e.IsBlob():
			out[full] = e.Hash
		}
	}
	return nil
}

// HeadTree flattens the tree of the given commit.
func (r *Repo) HeadTree(commit object.Hash) (map[string]object.Hash, error) {
	c, err := r.ReadCommit(commit)
	if err != nil {
		return nil, err
	}
	return r.FlattenTree(c.TreeHash)
}
