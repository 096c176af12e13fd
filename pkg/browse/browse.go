// Package browse keeps one view's position in a size tree. The tree itself is
// never modified; a new scan hands the cursor a new tree via Rebase.
package browse

import (
	"cmp"
	"slices"
	"strings"

	"github.com/odvcencio/repodiet/pkg/sizetree"
)

// Item is one visible row under the current directory.
type Item struct {
	ID          sizetree.NodeID
	Name        string
	Path        string
	IsDir       bool
	DisplaySize uint64
	CurrentSize uint64
	Deleted     bool
}

// Cursor is a directory stack plus a selection over an immutable tree.
type Cursor struct {
	tree        *sizetree.Tree
	stack       []sizetree.NodeID
	selected    int
	deletedOnly bool
}

// New places a cursor at the root of tree.
func New(tree *sizetree.Tree) *Cursor {
	return &Cursor{tree: tree}
}

// Tree returns the tree the cursor reads.
func (c *Cursor) Tree() *sizetree.Tree { return c.tree }

// Dir returns the current directory node.
func (c *Cursor) Dir() sizetree.NodeID {
	if len(c.stack) == 0 {
		return c.tree.Root()
	}
	return c.stack[len(c.stack)-1]
}

// Path returns the current directory as "/" or "/a/b".
func (c *Cursor) Path() string {
	return "/" + c.tree.Node(c.Dir()).Path
}

// AtRoot reports whether the cursor is at the top level.
func (c *Cursor) AtRoot() bool { return len(c.stack) == 0 }

// DeletedOnly reports whether the deleted-only filter is on.
func (c *Cursor) DeletedOnly() bool { return c.deletedOnly }

// Selected returns the index of the selected row.
func (c *Cursor) Selected() int { return c.selected }

// Total is the size percentages are computed against: all history, or only
// deleted history when the filter is on.
func (c *Cursor) Total() uint64 {
	root := c.tree.Node(c.tree.Root())
	if c.deletedOnly {
		return root.DeletedSize
	}
	return root.CumulativeSize
}

// Items lists the visible children of the current directory ordered by the
// size they display. With the deleted-only filter, only subtrees holding
// deleted history are shown, sized by that history.
func (c *Cursor) Items() []Item {
	children := c.tree.Children(c.Dir())
	items := make([]Item, 0, len(children))
	for _, id := range children {
		n := c.tree.Node(id)
		size := n.CumulativeSize
		if c.deletedOnly {
			if !n.HasDeleted {
				continue
			}
			size = n.DeletedSize
		}
		items = append(items, Item{
			ID:          id,
			Name:        n.Name,
			Path:        n.Path,
			IsDir:       n.IsDir,
			DisplaySize: size,
			CurrentSize: n.CurrentSize,
			Deleted:     n.Deleted(),
		})
	}
	if c.deletedOnly {
		slices.SortStableFunc(items, func(a, b Item) int { return cmp.Compare(b.DisplaySize, a.DisplaySize) })
	}
	return items
}

// SelectedItem returns the selected row.
func (c *Cursor) SelectedItem() (Item, bool) {
	items := c.Items()
	if c.selected >= len(items) {
		return Item{}, false
	}
	return items[c.selected], true
}

// MoveUp selects the previous row, wrapping to the last.
func (c *Cursor) MoveUp() {
	if n := len(c.Items()); n > 0 {
		c.selected = (c.selected + n - 1) % n
	}
}

// MoveDown selects the next row, wrapping to the first.
func (c *Cursor) MoveDown() {
	if n := len(c.Items()); n > 0 {
		c.selected = (c.selected + 1) % n
	}
}

// Enter descends into the selected directory. It reports false when the
// selection is a file or there is nothing selected.
func (c *Cursor) Enter() bool {
	item, ok := c.SelectedItem()
	if !ok || !item.IsDir {
		return false
	}
	c.stack = append(c.stack, item.ID)
	c.selected = 0
	return true
}

// Back returns to the parent directory, reporting false at the root.
func (c *Cursor) Back() bool {
	if len(c.stack) == 0 {
		return false
	}
	child := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	c.selectID(child)
	return true
}

// ToggleDeletedOnly flips the deleted-only filter and resets the selection.
func (c *Cursor) ToggleDeletedOnly() {
	c.deletedOnly = !c.deletedOnly
	c.selected = 0
}

// NavigateTo opens the directory holding path and selects path in it,
// turning the deleted-only filter off if it would hide path. When path is
// missing the cursor stops at its deepest existing ancestor and NavigateTo
// reports false.
func (c *Cursor) NavigateTo(path string) bool {
	path = strings.Trim(path, "/")
	c.stack = c.stack[:0]
	c.selected = 0
	if path == "" {
		return true
	}

	parts := strings.Split(path, "/")
	prefix := ""
	for i, part := range parts {
		if prefix == "" {
			prefix = part
		} else {
			prefix += "/" + part
		}
		id, ok := c.tree.Lookup(prefix)
		if !ok {
			return false
		}
		if i == len(parts)-1 {
			if !c.selectID(id) && c.deletedOnly {
				c.deletedOnly = false
				c.selectID(id)
			}
			return true
		}
		if !c.tree.Node(id).IsDir {
			return false
		}
		c.stack = append(c.stack, id)
	}
	return true
}

// Rebase moves the cursor onto a new tree, keeping the current directory and
// selected path when they still exist.
func (c *Cursor) Rebase(tree *sizetree.Tree) {
	var selectedPath string
	if item, ok := c.SelectedItem(); ok {
		selectedPath = item.Path
	}
	dir := c.tree.Node(c.Dir()).Path

	c.tree = tree
	if selectedPath != "" && c.NavigateTo(selectedPath) {
		return
	}
	c.NavigateTo(dir)
	if id, ok := tree.Lookup(dir); ok && tree.Node(id).IsDir && dir != "" {
		c.stack = append(c.stack, id)
		c.selected = 0
	}
}

func (c *Cursor) selectID(id sizetree.NodeID) bool {
	for i, item := range c.Items() {
		if item.ID == id {
			c.selected = i
			return true
		}
	}
	c.selected = 0
	return false
}
