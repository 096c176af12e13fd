package sizetree

import (
	"cmp"
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/odvcencio/repodiet/pkg/object"
	"github.com/odvcencio/repodiet/pkg/record"
)

// Kind is the structural type a conflicting path kept.
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

func (k Kind) String() string {
	if k == KindDir {
		return "directory"
	}
	return "file"
}

// ShadowedPath is a file path whose history a conflict folded into its
// parent directory. It has no node of its own.
type ShadowedPath struct {
	Path           string
	CumulativeSize uint64
	Versions       int
}

// Conflict records a path that was a file in some commits and a directory in
// others. The losing side's history moved into the parent's FoldedSize.
type Conflict struct {
	Path       string
	Kept       Kind
	FoldedSize uint64
}

type version struct {
	packed  uint64
	logical uint64
}

type pathHistory struct {
	versions map[object.Hash]version
	latest   int64
}

type folded struct {
	packed   uint64
	logical  uint64
	versions int
}

// Builder accumulates records for Build. The zero value is not usable; call
// NewBuilder.
type Builder struct {
	paths map[string]*pathHistory
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{paths: make(map[string]*pathHistory)}
}

// Add folds one record into the builder. A version already seen at the same
// path is counted once.
func (b *Builder) Add(rec record.BlobRecord) {
	p := strings.Trim(rec.Path, "/")
	if p == "" {
		return
	}
	h := b.paths[p]
	if h == nil {
		h = &pathHistory{versions: make(map[object.Hash]version, 1)}
		b.paths[p] = h
	}
	if _, ok := h.versions[rec.ObjectID]; !ok {
		h.versions[rec.ObjectID] = version{packed: rec.PackedSize, logical: rec.LogicalSize}
	}
	h.latest = max(h.latest, rec.Timestamp)
}

// Build aggregates records against the head tree listing in one pass.
func Build(records []record.BlobRecord, membership record.Membership) *Tree {
	b := NewBuilder()
	for _, r := range records {
		b.Add(r)
	}
	return b.Build(membership)
}

// Build produces the tree. The builder can keep accepting records and build
// again.
func (b *Builder) Build(membership record.Membership) *Tree {
	paths := make([]string, 0, len(b.paths))
	for p := range b.paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	dropped := make([]bool, len(paths))
	foldInto := make(map[string]*folded)
	var conflicts []Conflict

	fold := func(dir string, h *pathHistory) uint64 {
		f := foldInto[dir]
		if f == nil {
			f = &folded{}
			foldInto[dir] = f
		}
		var total uint64
		for _, v := range h.versions {
			f.packed += v.packed
			f.logical += v.logical
			total += v.packed
		}
		f.versions += len(h.versions)
		return total
	}

	for i, p := range paths {
		if dropped[i] {
			continue
		}
		prefix := p + "/"
		lo := sort.SearchStrings(paths, prefix)
		hi := lo
		for hi < len(paths) && strings.HasPrefix(paths[hi], prefix) {
			hi++
		}
		if lo == hi {
			continue
		}

		_, fileInHead := membership[p]
		dirInHead := false
		var dirLatest int64
		live := 0
		for j := lo; j < hi; j++ {
			if dropped[j] {
				continue
			}
			live++
			dirLatest = max(dirLatest, b.paths[paths[j]].latest)
			if _, ok := membership[paths[j]]; ok {
				dirInHead = true
			}
		}
		if live == 0 {
			continue
		}

		keepFile := fileInHead || (!dirInHead && b.paths[p].latest > dirLatest)
		parent := parentDir(p)
		c := Conflict{Path: p, Kept: KindDir}
		if keepFile {
			c.Kept = KindFile
			for j := lo; j < hi; j++ {
				if !dropped[j] {
					c.FoldedSize += fold(parent, b.paths[paths[j]])
					dropped[j] = true
				}
			}
		} else {
			c.FoldedSize = fold(parent, b.paths[p])
			dropped[i] = true
		}
		conflicts = append(conflicts, c)
	}

	t := &Tree{
		nodes:     []Node{{IsDir: true, Parent: NoNode}},
		byPath:    map[string]NodeID{"": 0},
		conflicts: conflicts,
	}
	for i, p := range paths {
		if dropped[i] {
			t.shadowed = append(t.shadowed, shadowedPath(p, b.paths[p]))
			continue
		}
		t.addFile(p, b.paths[p], membership)
	}
	for dir, f := range foldInto {
		n := t.Node(t.ensureDir(dir))
		n.FoldedSize += f.packed
		n.CumulativeSize += f.packed
		n.CumulativeLogical += f.logical
		n.DeletedSize += f.packed
		n.Versions += f.versions
		if f.packed > 0 {
			n.HasDeleted = true
		}
	}
	t.propagate()
	return t
}

func shadowedPath(p string, h *pathHistory) ShadowedPath {
	s := ShadowedPath{Path: p, Versions: len(h.versions)}
	for _, v := range h.versions {
		s.CumulativeSize += v.packed
	}
	return s
}

func parentDir(p string) string {
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

func (t *Tree) ensureDir(p string) NodeID {
	if id, ok := t.byPath[p]; ok {
		return id
	}
	parent := t.ensureDir(parentDir(p))
	return t.appendNode(Node{Name: path.Base(p), Path: p, IsDir: true, Parent: parent})
}

func (t *Tree) appendNode(n Node) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, n)
	t.byPath[n.Path] = id
	parent := &t.nodes[n.Parent]
	parent.Children = append(parent.Children, id)
	return id
}

func (t *Tree) addFile(p string, h *pathHistory, membership record.Membership) {
	n := Node{
		Name:     path.Base(p),
		Path:     p,
		Parent:   t.ensureDir(parentDir(p)),
		Versions: len(h.versions),
	}
	for _, v := range h.versions {
		n.CumulativeSize += v.packed
		n.CumulativeLogical += v.logical
	}
	if head, ok := membership[p]; ok {
		n.InHead = true
		if v, ok := h.versions[head]; ok {
			n.CurrentSize = v.packed
		}
	} else {
		n.DeletedSize = n.CumulativeSize
		n.HasDeleted = true
	}
	t.appendNode(n)
}

// propagate sums children into parents. Parents always precede their
// children in the arena, so one reverse pass suffices.
func (t *Tree) propagate() {
	for i := len(t.nodes) - 1; i > 0; i-- {
		n := &t.nodes[i]
		p := &t.nodes[n.Parent]
		p.CumulativeSize += n.CumulativeSize
		p.CumulativeLogical += n.CumulativeLogical
		p.CurrentSize += n.CurrentSize
		p.DeletedSize += n.DeletedSize
		p.Versions += n.Versions
		p.HasDeleted = p.HasDeleted || n.HasDeleted
	}
	for i := range t.nodes {
		n := &t.nodes[i]
		if len(n.Children) < 2 {
			continue
		}
		slices.SortFunc(n.Children, func(a, b NodeID) int {
			na, nb := &t.nodes[a], &t.nodes[b]
			if c := cmp.Compare(nb.CumulativeSize, na.CumulativeSize); c != 0 {
				return c
			}
			return cmp.Compare(na.Name, nb.Name)
		})
	}
}
