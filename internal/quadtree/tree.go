package quadtree

import (
	"github.com/hupe1980/qix/model"
)

// DefaultMinDepth is the depth floor applied by EstimateDepth.
const DefaultMinDepth = 10

// EstimateDepth returns the number of levels needed to spread count records
// into leaves of leafCapacity, never less than minDepth.
func EstimateDepth(count, leafCapacity, minDepth int) int {
	if leafCapacity < 1 {
		leafCapacity = 1
	}
	depth, nodes := 1, 1
	for nodes*leafCapacity < count {
		depth++
		nodes *= 4
	}
	if depth < minDepth {
		depth = minDepth
	}
	return depth
}

// ExtraLevels returns how many levels a re-split of count records needs at
// leafCapacity. The result is at least 2.
func ExtraLevels(count, leafCapacity int) int {
	if leafCapacity < 1 {
		leafCapacity = 1
	}
	levels, nodes := 2, 4
	for nodes*leafCapacity < count {
		levels++
		nodes *= 4
	}
	return levels
}

// Tree is a quadtree together with its build parameters.
type Tree struct {
	root         *Node
	maxDepth     int
	leafCapacity int
	recordCount  int

	// allocated counts every node created through the tree, the root included.
	allocated int
}

// New creates a tree whose root covers extent.
func New(extent model.Envelope, recordCount, maxDepth, leafCapacity int) *Tree {
	return &Tree{
		root:         &Node{bounds: extent},
		maxDepth:     maxDepth,
		leafCapacity: leafCapacity,
		recordCount:  recordCount,
		allocated:    1,
	}
}

// FromRoot wraps an existing node graph, for example one decoded from disk.
func FromRoot(root *Node, recordCount, maxDepth, leafCapacity int) *Tree {
	return &Tree{
		root:         root,
		maxDepth:     maxDepth,
		leafCapacity: leafCapacity,
		recordCount:  recordCount,
		allocated:    root.Count(),
	}
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// MaxDepth returns the depth estimated for the record count.
func (t *Tree) MaxDepth() int { return t.maxDepth }

// HardMaxDepth is the deepest level optimization may split to.
func (t *Tree) HardMaxDepth() int { return 2 * t.maxDepth }

// LeafCapacity returns the record count above which a leaf is split.
func (t *Tree) LeafCapacity() int { return t.leafCapacity }

// RecordCount returns the record count the tree was sized for.
func (t *Tree) RecordCount() int { return t.recordCount }

// Allocated returns the number of nodes created over the tree's lifetime,
// including nodes that were later pruned or collapsed.
func (t *Tree) Allocated() int { return t.allocated }

// Insert adds id below the root using the tree's depth budget.
func (t *Tree) Insert(id model.RecordID, env model.Envelope) {
	t.InsertAt(t.root, id, env, t.maxDepth)
}

// InsertAt adds id below n. levels is the number of levels, n included,
// the record may descend through; with levels <= 1 it stays at n.
func (t *Tree) InsertAt(n *Node, id model.RecordID, env model.Envelope, levels int) {
	for levels > 1 {
		next := t.descend(n, env)
		if next == nil {
			break
		}
		n = next
		levels--
	}
	n.AddID(id)
}

// descend returns the child of n that fully contains env, creating it from
// the matching quadrant if needed. It returns nil when env straddles a
// split line.
func (t *Tree) descend(n *Node, env model.Envelope) *Node {
	for _, c := range n.children {
		if c.bounds.Contains(env) {
			return c
		}
	}
	if len(n.children) >= MaxChildren {
		return nil
	}
	for q := 0; q < MaxChildren; q++ {
		qb := n.bounds.Quadrant(q)
		if qb.Contains(env) {
			c := &Node{bounds: qb}
			n.children = append(n.children, c)
			t.allocated++
			return c
		}
	}
	return nil
}

// Depth returns the number of levels of the tree (1 for a lone root).
func (t *Tree) Depth() int {
	return t.root.Depth()
}

// NodeCount returns the number of nodes currently reachable from the root.
func (t *Tree) NodeCount() int {
	return t.root.Count()
}

// Depth returns the number of levels below and including n.
func (n *Node) Depth() int {
	deepest := 0
	for _, c := range n.children {
		if d := c.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// Count returns the number of nodes below and including n.
func (n *Node) Count() int {
	total := 1
	for _, c := range n.children {
		total += c.Count()
	}
	return total
}

// Walk calls fn for n and every descendant in pre-order, passing the level
// (0 for n). Returning false from fn skips the node's subtree.
func (n *Node) Walk(fn func(node *Node, level int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, level int) {
	if !fn(n, level) {
		return
	}
	for _, c := range n.children {
		c.walk(fn, level+1)
	}
}
