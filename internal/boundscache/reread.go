package boundscache

import (
	"github.com/hupe1980/qix/model"
	"github.com/hupe1980/qix/source"
)

// rereadCache stores nothing and resolves every lookup through the offset
// table and a positioned read of the data file.
type rereadCache struct {
	count   int
	reader  source.Reader
	offsets source.OffsetIndex
	closed  bool
}

func newReread(count int, r source.Reader, o source.OffsetIndex) *rereadCache {
	return &rereadCache{count: count, reader: r, offsets: o}
}

func (c *rereadCache) Strategy() Strategy { return StrategyReread }

func (c *rereadCache) Put(id model.RecordID, _ model.Envelope) error {
	if c.closed {
		return ErrClosed
	}
	if int(id) >= c.count {
		return ErrOutOfRange
	}
	return nil
}

func (c *rereadCache) Get(id model.RecordID) (model.Envelope, error) {
	if c.closed {
		return model.Envelope{}, ErrClosed
	}
	if int(id) >= c.count {
		return model.Envelope{}, ErrOutOfRange
	}
	off, err := c.offsets.OffsetOf(id)
	if err != nil {
		return model.Envelope{}, err
	}
	return c.reader.EnvelopeAt(off)
}

func (c *rereadCache) Expand(id model.RecordID, acc *model.Envelope) error {
	env, err := c.Get(id)
	if err != nil {
		return err
	}
	acc.ExpandToInclude(env)
	return nil
}

func (c *rereadCache) Close() error {
	c.closed = true
	return nil
}
