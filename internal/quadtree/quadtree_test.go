package quadtree

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/hupe1980/qix/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateDepth(t *testing.T) {
	assert.Equal(t, 10, EstimateDepth(0, 16, 10))
	assert.Equal(t, 10, EstimateDepth(100_000, 16, 10))
	assert.Equal(t, 8, EstimateDepth(100_000, 16, 1))
	assert.Equal(t, 11, EstimateDepth(16<<20, 16, 10))
	assert.Equal(t, 3, EstimateDepth(5, 0, 3))
}

func TestExtraLevels(t *testing.T) {
	assert.Equal(t, 2, ExtraLevels(17, 16))
	assert.Equal(t, 2, ExtraLevels(64, 16))
	assert.Equal(t, 3, ExtraLevels(65, 16))
	assert.Equal(t, 4, ExtraLevels(1000, 16))
	assert.Equal(t, 4, ExtraLevels(1024, 16))
	assert.Equal(t, 5, ExtraLevels(1025, 16))
	assert.Equal(t, 6, ExtraLevels(5000, 16))
}

func TestInsert_QuadrantContainment(t *testing.T) {
	tr := New(model.NewEnvelope(0, 0, 100, 100), 3, 10, 16)

	// Straddles both split lines.
	tr.Insert(0, model.NewEnvelope(40, 40, 60, 60))
	// Fits the south-west quadrant, then its north-east sub-quadrant.
	tr.Insert(1, model.NewEnvelope(30, 30, 40, 40))
	// Fits the north-east quadrant only down to depth 2.
	tr.Insert(2, model.NewEnvelope(55, 55, 95, 95))

	root := tr.Root()
	assert.Equal(t, []model.RecordID{0}, root.IDs())
	require.Equal(t, 2, root.NumChildren())

	sw := root.ChildNode(0)
	assert.Equal(t, model.NewEnvelope(0, 0, 50, 50), sw.Bounds())
	assert.Empty(t, sw.IDs())
	require.Equal(t, 1, sw.NumChildren())
	assert.Equal(t, model.NewEnvelope(25, 25, 50, 50), sw.ChildNode(0).Bounds())

	ne := root.ChildNode(1)
	assert.Equal(t, model.NewEnvelope(50, 50, 100, 100), ne.Bounds())
	assert.Equal(t, []model.RecordID{2}, ne.IDs())

	assert.Equal(t, 4, tr.Allocated())
	assert.Equal(t, 4, tr.NodeCount())
}

func TestInsert_DepthBudget(t *testing.T) {
	tr := New(model.NewEnvelope(0, 0, 1, 1), 1, 3, 16)
	tr.Insert(7, model.PointEnvelope(0.01, 0.01))

	assert.Equal(t, 3, tr.Depth())

	tr.InsertAt(tr.Root(), 8, model.PointEnvelope(0.01, 0.01), 1)
	assert.Equal(t, []model.RecordID{8}, tr.Root().IDs())
}

func TestInsert_DegenerateBoundsStopAtBudget(t *testing.T) {
	tr := New(model.PointEnvelope(5, 5), 100, 6, 4)
	for i := 0; i < 100; i++ {
		tr.Insert(model.RecordID(i), model.PointEnvelope(5, 5))
	}
	assert.Equal(t, 6, tr.Depth())
	assert.Equal(t, 6, tr.NodeCount())
}

func TestNode_Mutations(t *testing.T) {
	n := NewNode(model.NewEnvelope(0, 0, 10, 10), make([]model.RecordID, 0, 32), nil)
	n.AddID(1)
	n.AddID(2)
	n.Pack()
	assert.Equal(t, 2, cap(n.IDs()))

	ids := n.TakeIDs()
	assert.Equal(t, []model.RecordID{1, 2}, ids)
	assert.True(t, n.IsEmpty())

	empty := NewNode(model.NewEnvelope(0, 0, 1, 1), nil, nil)
	full := NewNode(model.NewEnvelope(5, 5, 6, 6), []model.RecordID{3}, nil)
	n.children = []*Node{empty, full, NewNode(model.NewEnvelope(1, 1, 2, 2), nil, nil)}
	assert.Equal(t, 2, n.PruneEmptyChildren())
	require.Equal(t, 1, n.NumChildren())

	assert.True(t, n.CollapseSingleChild())
	assert.Equal(t, model.NewEnvelope(5, 5, 6, 6), n.Bounds())
	assert.Equal(t, []model.RecordID{3}, n.IDs())
	assert.False(t, n.CollapseSingleChild())

	n.children = []*Node{
		NewNode(model.NewEnvelope(5, 5, 5.5, 5.5), []model.RecordID{4, 5}, nil),
		NewNode(model.NewEnvelope(5.5, 5.5, 6, 6), []model.RecordID{6}, nil),
	}
	load, ok := n.ChildLoad()
	require.True(t, ok)
	assert.Equal(t, 3, load)

	n.MergeChildren()
	assert.True(t, n.IsLeaf())
	assert.Equal(t, []model.RecordID{3, 4, 5, 6}, n.IDs())

	n.children = []*Node{NewNode(model.Envelope{}, nil, []*Node{NewNode(model.Envelope{}, nil, nil)})}
	_, ok = n.ChildLoad()
	assert.False(t, ok)
}

func randomEnvelope(r *rand.Rand, size float64) model.Envelope {
	x, y := r.Float64()*1000, r.Float64()*1000
	return model.NewEnvelope(x, y, x+r.Float64()*size, y+r.Float64()*size)
}

func TestSearch_CompleteAgainstBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	const n = 5000

	envs := make([]model.Envelope, n)
	extent := model.NullEnvelope()
	for i := range envs {
		envs[i] = randomEnvelope(r, 20)
		extent.ExpandToInclude(envs[i])
	}

	tr := New(extent, n, EstimateDepth(n, 8, DefaultMinDepth), 8)
	for i, e := range envs {
		tr.Insert(model.RecordID(i), e)
	}

	for q := 0; q < 200; q++ {
		query := randomEnvelope(r, 150)

		got, err := Collect(tr.Root(), query)
		require.NoError(t, err)
		set := make(map[model.RecordID]struct{}, len(got))
		for _, id := range got {
			set[id] = struct{}{}
		}
		assert.Len(t, set, len(got), "duplicate ids")

		for i, e := range envs {
			if e.Intersects(query) {
				_, ok := set[model.RecordID(i)]
				require.True(t, ok, "record %d missing for %s", i, query)
			}
		}
	}

	all, err := Collect(tr.Root(), extent)
	require.NoError(t, err)
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	require.Len(t, all, n)
	for i, id := range all {
		assert.Equal(t, model.RecordID(i), id)
	}
}

func TestSearch_ContainmentInvariant(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	const n = 2000

	envs := make([]model.Envelope, n)
	extent := model.NullEnvelope()
	for i := range envs {
		envs[i] = randomEnvelope(r, 50)
		extent.ExpandToInclude(envs[i])
	}
	tr := New(extent, n, 10, 4)
	for i, e := range envs {
		tr.Insert(model.RecordID(i), e)
	}

	var check func(n *Node, ancestors []model.Envelope)
	check = func(n *Node, ancestors []model.Envelope) {
		ancestors = append(ancestors, n.Bounds())
		for _, id := range n.IDs() {
			for _, a := range ancestors {
				require.True(t, a.Contains(envs[id]))
			}
		}
		for _, c := range n.children {
			check(c, ancestors)
		}
	}
	check(tr.Root(), nil)
}

func TestSearch_EarlyStopAndNull(t *testing.T) {
	tr := New(model.NewEnvelope(0, 0, 10, 10), 3, 10, 1)
	for i := 0; i < 3; i++ {
		tr.Insert(model.RecordID(i), model.PointEnvelope(float64(i), float64(i)))
	}

	calls := 0
	require.NoError(t, Search(tr.Root(), model.NewEnvelope(0, 0, 10, 10), func(model.RecordID) bool {
		calls++
		return false
	}))
	assert.Equal(t, 1, calls)

	got, err := Collect(tr.Root(), model.NullEnvelope())
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Collect(nil, model.NewEnvelope(0, 0, 1, 1))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWalk_Levels(t *testing.T) {
	tr := New(model.NewEnvelope(0, 0, 8, 8), 1, 4, 1)
	tr.Insert(0, model.PointEnvelope(0.5, 0.5))

	var levels []int
	tr.Root().Walk(func(_ *Node, level int) bool {
		levels = append(levels, level)
		return true
	})
	assert.Equal(t, []int{0, 1, 2, 3}, levels)

	visited := 0
	tr.Root().Walk(func(_ *Node, level int) bool {
		visited++
		return level < 1
	})
	assert.Equal(t, 2, visited)
}
