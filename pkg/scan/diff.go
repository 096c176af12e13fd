package scan

import (
	"fmt"
	"sort"

	"github.com/odvcencio/repodiet/pkg/object"
)

// TreeReader reads trees.
type TreeReader interface {
	ReadTree(h object.Hash) (*object.TreeObj, error)
}

// Change is a blob that is new at Path, or differs from the parent's blob
// there.
type Change struct {
	Path string
	ID   object.Hash
}

// DiffTrees lists the blobs of newTree that oldTree does not hold at the same
// path. An empty oldTree means every blob is new. Subtrees with identical ids
// are skipped without being read. Deletions produce no change.
func DiffTrees(trees TreeReader, oldTree, newTree object.Hash) ([]Change, error) {
	var out []Change
	if err := diffDir(trees, oldTree, newTree, "", &out); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func diffDir(trees TreeReader, oldTree, newTree object.Hash, prefix string, out *[]Change) error {
	if oldTree == newTree {
		return nil
	}
	newEntries, err := readEntries(trees, newTree, prefix)
	if err != nil {
		return err
	}
	oldEntries, err := readEntries(trees, oldTree, prefix)
	if err != nil {
		return err
	}
	old := make(map[string]object.TreeEntry, len(oldEntries))
	for _, e := range oldEntries {
		old[e.Name] = e
	}

	for _, e := range newEntries {
		full := e.Name
		if prefix != "" {
			full = prefix + "/" + e.Name
		}
		prev, existed := old[e.Name]
		switch {
		case e.IsDir():
			base := object.Hash("")
			if existed && prev.IsDir() {
				base = prev.Hash
			}
			if err := diffDir(trees, base, e.Hash, full, out); err != nil {
				return err
			}
		case e.IsBlob():
			if existed && prev.IsBlob() && prev.Hash == e.Hash {
				continue
			}
			*out = append(*out, Change{Path: full, ID: e.Hash})
		}
	}
	return nil
}

func readEntries(trees TreeReader, h object.Hash, prefix string) ([]object.TreeEntry, error) {
	if h == "" {
		return nil, nil
	}
	t, err := trees.ReadTree(h)
	if err != nil {
		if prefix == "" {
			prefix = "/"
		}
		return nil, fmt.Errorf("read tree %s at %s: %w", h, prefix, err)
	}
	return t.Entries, nil
}
