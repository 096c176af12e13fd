// Package scan walks commit history and turns every blob a commit introduces
// into a BlobRecord with its resolved sizes.
package scan

import (
	"context"
	"fmt"
	"slices"

	"github.com/odvcencio/repodiet/pkg/object"
	"github.com/odvcencio/repodiet/pkg/record"
)

// CommitReader reads commits.
type CommitReader interface {
	ReadCommit(h object.Hash) (*object.CommitObj, error)
}

type walkFrame struct {
	id      object.Hash
	parents []object.Hash
	next    int
	loaded  bool
}

// Unscanned returns the commits reachable from head, or from any commit in
// frontier.Retry, that are not yet in frontier.Scanned. The walk stops at
// scanned commits, so only the new part of history is read. Commits come back
// parents-first: every commit appears after all of its unscanned parents.
func Unscanned(ctx context.Context, commits CommitReader, head object.Hash, frontier record.Frontier) ([]record.CommitRef, error) {
	roots := []object.Hash{head}
	retry := make([]object.Hash, 0, len(frontier.Retry))
	for id := range frontier.Retry {
		retry = append(retry, id)
	}
	slices.Sort(retry)
	roots = append(roots, retry...)

	var out []record.CommitRef
	visited := make(map[object.Hash]struct{})
	for _, root := range roots {
		if _, seen := visited[root]; seen || frontier.Contains(root) {
			continue
		}
		visited[root] = struct{}{}

		stack := []*walkFrame{{id: root}}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if !top.loaded {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				c, err := commits.ReadCommit(top.id)
				if err != nil {
					return nil, fmt.Errorf("walk history at %s: %w", top.id, err)
				}
				top.parents = c.Parents
				top.loaded = true
			}
			if top.next < len(top.parents) {
				p := top.parents[top.next]
				top.next++
				if _, seen := visited[p]; seen || frontier.Contains(p) {
					continue
				}
				visited[p] = struct{}{}
				stack = append(stack, &walkFrame{id: p})
				continue
			}
			stack = stack[:len(stack)-1]
			out = append(out, record.CommitRef{ID: top.id, Parents: top.parents})
		}
	}
	return out, nil
}
