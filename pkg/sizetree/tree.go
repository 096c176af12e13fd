// Package sizetree folds blob records into a directory tree carrying the
// historical and current on-disk size of every path.
package sizetree

import (
	"iter"
	"strings"
)

// NodeID indexes a node in its Tree's arena.
type NodeID int32

// NoNode is the parent of the root.
const NoNode NodeID = -1

// Node is one path component. Nodes are owned by their Tree and must not be
// modified after Build returns.
type Node struct {
	Name  string
	Path  string
	IsDir bool

	// CumulativeSize is the packed size of every version ever stored at or
	// under this path.
	CumulativeSize    uint64
	CumulativeLogical uint64
	// CurrentSize is the packed size of what the head tree holds here.
	CurrentSize uint64
	// InHead is set on files the head tree lists.
	InHead bool
	// DeletedSize counts versions of files absent from the head tree.
	DeletedSize uint64
	HasDeleted  bool
	// Versions counts distinct object ids; directories sum their children.
	Versions int
	// FoldedSize is history shadowed by a file/directory conflict on one of
	// this directory's children.
	FoldedSize uint64

	Parent   NodeID
	Children []NodeID
}

// Deleted reports whether a file is absent from the head tree. A file the
// head lists is never deleted, even before its head version is recorded.
func (n *Node) Deleted() bool {
	return !n.IsDir && !n.InHead
}

// Tree is an immutable arena of nodes rooted at Root.
type Tree struct {
	nodes     []Node
	byPath    map[string]NodeID
	conflicts []Conflict
	shadowed  []ShadowedPath
}

// Shadowed lists, in path order, the file paths conflicts folded away.
func (t *Tree) Shadowed() []ShadowedPath { return t.shadowed }

// Root returns the root node's id. The root has an empty name and path.
func (t *Tree) Root() NodeID { return 0 }

// Node returns the node for id.
func (t *Tree) Node(id NodeID) *Node { return &t.nodes[id] }

// Children returns id's children ordered by cumulative size descending, then
// name.
func (t *Tree) Children(id NodeID) []NodeID { return t.nodes[id].Children }

// Parent returns id's parent, or NoNode for the root.
func (t *Tree) Parent(id NodeID) NodeID { return t.nodes[id].Parent }

// Len returns the number of nodes, root included.
func (t *Tree) Len() int { return len(t.nodes) }

// Lookup finds the node at a slash-separated path. The empty path and "/"
// name the root.
func (t *Tree) Lookup(path string) (NodeID, bool) {
	path = strings.Trim(path, "/")
	id, ok := t.byPath[path]
	return id, ok
}

// Conflicts lists the file/directory conflicts resolved while building.
func (t *Tree) Conflicts() []Conflict { return t.conflicts }

// TotalDeleted is the packed size of all history no longer in the head tree.
func (t *Tree) TotalDeleted() uint64 { return t.nodes[0].DeletedSize }

// Leaves yields every file node in depth-first display order.
func (t *Tree) Leaves() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		stack := []NodeID{t.Root()}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			n := &t.nodes[id]
			if !n.IsDir {
				if !yield(n) {
					return
				}
				continue
			}
			for i := len(n.Children) - 1; i >= 0; i-- {
				stack = append(stack, n.Children[i])
			}
		}
	}
}

// Walk calls fn for id and every descendant, parents before children. It
// stops descending below a node when fn returns false.
func (t *Tree) Walk(id NodeID, fn func(*Node) bool) {
	n := &t.nodes[id]
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		t.Walk(c, fn)
	}
}
