package boundscache

import (
	"github.com/hupe1980/qix/internal/resource"
	"github.com/hupe1980/qix/model"
)

type heapCache struct {
	ords   []float64
	stride int
	kind   model.ShapeKind
	bytes  int64
	rc     *resource.Controller
}

func newHeap(count int, kind model.ShapeKind, bytes int64, rc *resource.Controller) *heapCache {
	stride := kind.Ordinates()
	return &heapCache{
		ords:   make([]float64, count*stride),
		stride: stride,
		kind:   kind,
		bytes:  bytes,
		rc:     rc,
	}
}

func (c *heapCache) Strategy() Strategy { return StrategyHeap }

func (c *heapCache) slot(id model.RecordID) ([]float64, error) {
	if c.ords == nil {
		return nil, ErrClosed
	}
	pos := int(id) * c.stride
	if pos+c.stride > len(c.ords) {
		return nil, ErrOutOfRange
	}
	return c.ords[pos : pos+c.stride], nil
}

func (c *heapCache) Put(id model.RecordID, env model.Envelope) error {
	s, err := c.slot(id)
	if err != nil {
		return err
	}
	s[0], s[1] = env.MinX, env.MinY
	if c.stride == 4 {
		s[2], s[3] = env.MaxX, env.MaxY
	}
	return nil
}

func (c *heapCache) Get(id model.RecordID) (model.Envelope, error) {
	s, err := c.slot(id)
	if err != nil {
		return model.Envelope{}, err
	}
	if c.stride == 2 {
		return model.PointEnvelope(s[0], s[1]), nil
	}
	return model.Envelope{MinX: s[0], MinY: s[1], MaxX: s[2], MaxY: s[3]}, nil
}

func (c *heapCache) Expand(id model.RecordID, acc *model.Envelope) error {
	env, err := c.Get(id)
	if err != nil {
		return err
	}
	acc.ExpandToInclude(env)
	return nil
}

func (c *heapCache) Close() error {
	if c.ords == nil {
		return nil
	}
	c.ords = nil
	c.rc.ReleaseMemory(c.bytes)
	return nil
}
