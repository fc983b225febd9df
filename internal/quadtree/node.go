package quadtree

import (
	"github.com/hupe1980/qix/model"
)

// MaxChildren is the fan-out of a quadtree node.
const MaxChildren = 4

// NodeReader is read-only access to one node.
//
// Implementations backed by encoded bytes may fail while decoding a child;
// such failures are returned from Child.
type NodeReader interface {
	Bounds() model.Envelope
	NumIDs() int
	ID(i int) model.RecordID
	NumChildren() int
	Child(i int) (NodeReader, error)
}

// Node is a materialized quadtree node. Children are owned by their parent.
type Node struct {
	bounds   model.Envelope
	ids      []model.RecordID
	children []*Node
}

var _ NodeReader = (*Node)(nil)

// NewNode creates a detached node with the given content.
func NewNode(bounds model.Envelope, ids []model.RecordID, children []*Node) *Node {
	return &Node{bounds: bounds, ids: ids, children: children}
}

// Bounds returns the envelope covering every record below n.
func (n *Node) Bounds() model.Envelope { return n.bounds }

// SetBounds replaces the envelope of n.
func (n *Node) SetBounds(b model.Envelope) { n.bounds = b }

// NumIDs returns the number of records stored directly at n.
func (n *Node) NumIDs() int { return len(n.ids) }

// ID returns the i-th record stored directly at n.
func (n *Node) ID(i int) model.RecordID { return n.ids[i] }

// NumChildren returns the number of child nodes.
func (n *Node) NumChildren() int { return len(n.children) }

// ChildNode returns the i-th child.
func (n *Node) ChildNode(i int) *Node { return n.children[i] }

// Child implements NodeReader. It never fails for materialized nodes.
func (n *Node) Child(i int) (NodeReader, error) { return n.children[i], nil }

// IDs returns the ids stored directly at n. The slice aliases the node.
func (n *Node) IDs() []model.RecordID { return n.ids }

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool { return len(n.children) == 0 }

// IsEmpty reports whether n holds neither ids nor children.
func (n *Node) IsEmpty() bool { return len(n.ids) == 0 && len(n.children) == 0 }

// AddID appends id to the ids stored at n.
func (n *Node) AddID(id model.RecordID) {
	n.ids = append(n.ids, id)
}

// TakeIDs detaches and returns the ids stored at n.
func (n *Node) TakeIDs() []model.RecordID {
	ids := n.ids
	n.ids = nil
	return ids
}

// Pack shrinks the id storage to its exact length.
func (n *Node) Pack() {
	if len(n.ids) == 0 {
		n.ids = nil
		return
	}
	if cap(n.ids) == len(n.ids) {
		return
	}
	packed := make([]model.RecordID, len(n.ids))
	copy(packed, n.ids)
	n.ids = packed
}

// PruneEmptyChildren removes children without ids and without children.
// It returns the number of removed children.
func (n *Node) PruneEmptyChildren() int {
	kept := n.children[:0]
	for _, c := range n.children {
		if !c.IsEmpty() {
			kept = append(kept, c)
		}
	}
	removed := len(n.children) - len(kept)
	clear(n.children[len(kept):])
	n.children = kept
	if len(n.children) == 0 {
		n.children = nil
	}
	return removed
}

// CollapseSingleChild absorbs the only child of an id-less node: its ids,
// bounds and children move up into n. It reports whether a collapse happened.
func (n *Node) CollapseSingleChild() bool {
	if len(n.children) != 1 || len(n.ids) != 0 {
		return false
	}
	c := n.children[0]
	n.bounds = c.bounds
	n.ids = c.ids
	n.children = c.children
	return true
}

// MergeChildren moves the ids of all children into n and drops them.
// Children must be leaves.
func (n *Node) MergeChildren() {
	total := len(n.ids)
	for _, c := range n.children {
		total += len(c.ids)
	}
	ids := make([]model.RecordID, 0, total)
	ids = append(ids, n.ids...)
	for _, c := range n.children {
		ids = append(ids, c.ids...)
	}
	n.ids = ids
	n.children = nil
}

// ChildLoad returns the number of ids held directly by the children of n,
// and false if any child has children of its own.
func (n *Node) ChildLoad() (int, bool) {
	total := 0
	for _, c := range n.children {
		if !c.IsLeaf() {
			return 0, false
		}
		total += len(c.ids)
	}
	return total, true
}
