package source

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/qix/model"
)

// memoryStride is the synthetic on-"disk" size of one record.
const memoryStride = 64

// Memory is an in-memory Dataset for tests and embedded use.
// Offsets are synthetic: record i lives at i*64.
type Memory struct {
	kind      model.ShapeKind
	envelopes []model.Envelope
	extent    model.Envelope

	// FailAfter makes Scan fail once this many records were delivered.
	// Negative disables the fault.
	FailAfter int
	// ReadErr, when set, is returned by every EnvelopeAt call.
	ReadErr error

	reads atomic.Int64
}

// NewMemory builds a dataset over envelopes.
func NewMemory(kind model.ShapeKind, envelopes []model.Envelope) *Memory {
	extent := model.NullEnvelope()
	for _, e := range envelopes {
		extent.ExpandToInclude(e)
	}
	return &Memory{kind: kind, envelopes: envelopes, extent: extent, FailAfter: -1}
}

func (m *Memory) Kind() model.ShapeKind  { return m.kind }
func (m *Memory) Count() int             { return len(m.envelopes) }
func (m *Memory) Extent() model.Envelope { return m.extent }
func (m *Memory) Close() error           { return nil }

// RandomReads returns the number of EnvelopeAt calls served so far.
func (m *Memory) RandomReads() int { return int(m.reads.Load()) }

func (m *Memory) Scan(ctx context.Context, fn func(Record) error) error {
	for i, e := range m.envelopes {
		if m.FailAfter >= 0 && i >= m.FailAfter {
			return fmt.Errorf("source: injected scan failure at record %d", i)
		}
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		rec := Record{
			ID:       model.RecordID(i),
			Offset:   int64(i) * memoryStride,
			Size:     memoryStride,
			Envelope: e,
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) EnvelopeAt(offset int64) (model.Envelope, error) {
	m.reads.Add(1)
	if m.ReadErr != nil {
		return model.NullEnvelope(), m.ReadErr
	}
	if offset < 0 || offset%memoryStride != 0 || offset/memoryStride >= int64(len(m.envelopes)) {
		return model.NullEnvelope(), fmt.Errorf("%w: offset %d", ErrOutOfRange, offset)
	}
	return m.envelopes[offset/memoryStride], nil
}

func (m *Memory) OffsetOf(id model.RecordID) (int64, error) {
	if int(id) >= len(m.envelopes) {
		return 0, fmt.Errorf("%w: id %d", ErrOutOfRange, id)
	}
	return int64(id) * memoryStride, nil
}
