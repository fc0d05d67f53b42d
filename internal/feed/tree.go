package feed

import (
	"fmt"
	"slices"

	"github.com/ibeckermayer/deepfeed/internal/types"
)

// Tree is an arena of nodes addressed by NodeID. The ordered root list is the
// backing sequence the pager windows over.
type Tree struct {
	nodes map[NodeID]*Node
	roots []NodeID
}

// NewTree returns an empty tree
func NewTree() *Tree {
	return &Tree{nodes: make(map[NodeID]*Node)}
}

// Node looks up a node by ID
func (t *Tree) Node(id NodeID) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Len is the number of nodes in the arena, placeholders included.
func (t *Tree) Len() int { return len(t.nodes) }

// RootCount is the length of the backing sequence.
func (t *Tree) RootCount() int { return len(t.roots) }

// Roots returns the root IDs in feed order
func (t *Tree) Roots() []NodeID { return slices.Clone(t.roots) }

// Children returns the children of id in order
func (t *Tree) Children(id NodeID) []*Node {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := make([]*Node, 0, len(n.children))
	for _, cid := range n.children {
		out = append(out, t.nodes[cid])
	}
	return out
}

func (t *Tree) appendRoot(d types.Draft) *Node {
	n := newNode(d, 0, nil)
	t.nodes[n.id] = n
	t.roots = append(t.roots, n.id)
	return n
}

func (t *Tree) appendChild(parent *Node, d types.Draft) *Node {
	pid := parent.id
	n := newNode(d, parent.depth+1, &pid)
	t.nodes[n.id] = n
	parent.children = append(parent.children, n.id)
	return n
}

// dropPlaceholders removes the placeholder children of n from the arena.
// Real children are never touched.
func (t *Tree) dropPlaceholders(n *Node) {
	kept := n.children[:0]
	for _, cid := range n.children {
		if c := t.nodes[cid]; c != nil && c.placeholder {
			delete(t.nodes, cid)
			continue
		}
		kept = append(kept, cid)
	}
	n.children = kept
}

// walkFrom visits n and its descendants depth-first, parents before children.
func (t *Tree) walkFrom(n *Node, fn func(*Node)) {
	fn(n)
	for _, cid := range n.children {
		if c, ok := t.nodes[cid]; ok {
			t.walkFrom(c, fn)
		}
	}
}

// Walk visits every node reachable from the roots, depth-first in feed order.
func (t *Tree) Walk(fn func(*Node)) {
	for _, rid := range t.roots {
		if r, ok := t.nodes[rid]; ok {
			t.walkFrom(r, fn)
		}
	}
}

// appendVisible adds n and its expanded descendants to out.
func (t *Tree) appendVisible(out []*Node, n *Node) []*Node {
	out = append(out, n)
	if !n.expanded {
		return out
	}
	for _, cid := range n.children {
		if c, ok := t.nodes[cid]; ok {
			out = t.appendVisible(out, c)
		}
	}
	return out
}

// Validate checks the structural invariants of the arena and returns the
// first violation found.
func (t *Tree) Validate() error {
	reachable := make(map[NodeID]bool, len(t.nodes))
	var check func(n *Node, wantDepth int, parent *NodeID) error
	check = func(n *Node, wantDepth int, parent *NodeID) error {
		if reachable[n.id] {
			return fmt.Errorf("node %s reachable twice", n.id)
		}
		reachable[n.id] = true
		if n.depth != wantDepth {
			return fmt.Errorf("node %s has depth %d, want %d", n.id, n.depth, wantDepth)
		}
		if (parent == nil) != (n.parent == nil) || (parent != nil && *parent != *n.parent) {
			return fmt.Errorf("node %s has wrong parent link", n.id)
		}
		if n.confidence != nil && !n.source.Is(types.SourceAIGenerated) {
			return fmt.Errorf("node %s has confidence on %s content", n.id, n.source)
		}
		if c := n.confidence; c != nil && !(*c >= 0 && *c <= 1) {
			return fmt.Errorf("node %s has confidence outside [0,1]: %v", n.id, *c)
		}
		if n.childState == ChildrenReady {
			for _, cid := range n.children {
				if c := t.nodes[cid]; c != nil && c.placeholder {
					return fmt.Errorf("node %s is ready but still holds placeholder %s", n.id, cid)
				}
			}
		}
		if n.childState == ChildrenNone && len(n.children) > 0 {
			return fmt.Errorf("node %s has children without a fetch", n.id)
		}
		id := n.id
		for _, cid := range n.children {
			c, ok := t.nodes[cid]
			if !ok {
				return fmt.Errorf("node %s references missing child %s", n.id, cid)
			}
			if err := check(c, n.depth+1, &id); err != nil {
				return err
			}
		}
		return nil
	}
	for _, rid := range t.roots {
		r, ok := t.nodes[rid]
		if !ok {
			return fmt.Errorf("missing root %s", rid)
		}
		if err := check(r, 0, nil); err != nil {
			return err
		}
	}
	if len(reachable) != len(t.nodes) {
		return fmt.Errorf("%d nodes unreachable from roots", len(t.nodes)-len(reachable))
	}
	return nil
}
