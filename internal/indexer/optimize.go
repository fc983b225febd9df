package indexer

import (
	"errors"
	"fmt"

	"github.com/hupe1980/qix/internal/boundscache"
	"github.com/hupe1980/qix/internal/quadtree"
	"github.com/hupe1980/qix/model"
)

// ErrRunaway is returned when optimize visits more nodes than were ever
// allocated, which would mean the pass no longer terminates.
var ErrRunaway = errors.New("indexer: optimize exceeded its recursion budget")

// Bounds is the read side of a bounds cache.
type Bounds interface {
	Get(id model.RecordID) (model.Envelope, error)
	Expand(id model.RecordID, acc *model.Envelope) error
}

var _ Bounds = (boundscache.Cache)(nil)

type optimizer struct {
	tree   *quadtree.Tree
	bounds Bounds
	calls  int
}

// Optimize rebalances tree in place and returns the number of recursive
// calls it made. The tree must not be used if an error is returned.
func Optimize(tree *quadtree.Tree, bounds Bounds) (int, error) {
	o := &optimizer{tree: tree, bounds: bounds}
	if err := o.optimize(tree.Root(), 0); err != nil {
		return o.calls, err
	}
	return o.calls, nil
}

func (o *optimizer) optimize(n *quadtree.Node, level int) error {
	o.calls++
	if o.calls > o.tree.Allocated() {
		return fmt.Errorf("%w: %d calls for %d nodes", ErrRunaway, o.calls, o.tree.Allocated())
	}

	leafCap := o.tree.LeafCapacity()
	hardMax := o.tree.HardMaxDepth()

	if n.IsLeaf() && n.NumIDs() > leafCap && level < hardMax {
		if err := o.split(n, level, hardMax); err != nil {
			return err
		}
	}

	n.Pack()

	for i := 0; i < n.NumChildren(); i++ {
		if err := o.optimize(n.ChildNode(i), level+1); err != nil {
			return err
		}
	}

	n.PruneEmptyChildren()

	if n.CollapseSingleChild() {
		return nil
	}

	env := model.NullEnvelope()
	for _, id := range n.IDs() {
		if err := o.bounds.Expand(id, &env); err != nil {
			return err
		}
	}
	for i := 0; i < n.NumChildren(); i++ {
		env.ExpandToInclude(n.ChildNode(i).Bounds())
	}
	n.SetBounds(env)

	if n.NumChildren() > 0 {
		if load, ok := n.ChildLoad(); ok && load+n.NumIDs() < leafCap {
			n.MergeChildren()
		}
	}

	return nil
}

// split re-inserts the ids of an overflowing leaf into a fresh subtree
// rooted at n. The subtree never reaches below hardMax levels.
func (o *optimizer) split(n *quadtree.Node, level, hardMax int) error {
	ids := n.TakeIDs()

	extra := quadtree.ExtraLevels(len(ids), o.tree.LeafCapacity())
	if level+extra > hardMax {
		extra = hardMax - level
	}

	for _, id := range ids {
		env, err := o.bounds.Get(id)
		if err != nil {
			return err
		}
		o.tree.InsertAt(n, id, env, extra)
	}
	return nil
}
