package quadtree

import (
	"github.com/hupe1980/qix/model"
)

// Search visits the id of every record stored in a node whose bounds
// intersect q. Records at intermediate nodes are visited as well as those
// in leaves. Returning false from visit stops the search early.
func Search(root NodeReader, q model.Envelope, visit func(model.RecordID) bool) error {
	if root == nil || q.IsNull() {
		return nil
	}

	stack := make([]NodeReader, 1, 64)
	stack[0] = root

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !n.Bounds().Intersects(q) {
			continue
		}

		for i, cnt := 0, n.NumIDs(); i < cnt; i++ {
			if !visit(n.ID(i)) {
				return nil
			}
		}

		for i := n.NumChildren() - 1; i >= 0; i-- {
			c, err := n.Child(i)
			if err != nil {
				return err
			}
			stack = append(stack, c)
		}
	}

	return nil
}

// Collect returns the ids found by Search in visit order.
func Collect(root NodeReader, q model.Envelope) ([]model.RecordID, error) {
	var out []model.RecordID
	err := Search(root, q, func(id model.RecordID) bool {
		out = append(out, id)
		return true
	})
	return out, err
}
