package mmap

// Region is a window [offset, offset+size) of a Mapping. It borrows the
// parent's memory and becomes unusable when the parent is closed.
type Region struct {
	parent *Mapping
	offset int
	size   int
}

// Region returns the window of m starting at offset.
func (m *Mapping) Region(offset, size int) (*Region, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if offset < 0 || size < 0 || offset > m.size-size {
		return nil, ErrOutOfBounds
	}
	return &Region{parent: m, offset: offset, size: size}, nil
}

// Len returns the window size in bytes.
func (r *Region) Len() int { return r.size }

// Bytes returns the window, or nil once the parent is closed.
func (r *Region) Bytes() []byte {
	if r.parent.closed.Load() {
		return nil
	}
	return r.parent.data[r.offset : r.offset+r.size]
}

// Advise applies pattern to the window only.
func (r *Region) Advise(pattern AccessPattern) error {
	b := r.Bytes()
	if b == nil {
		if r.parent.closed.Load() {
			return ErrClosed
		}
		return nil
	}
	return osAdvise(b, pattern)
}
