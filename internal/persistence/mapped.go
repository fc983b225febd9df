package persistence

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/hupe1980/qix/internal/fs"
	"github.com/hupe1980/qix/internal/mmap"
	"github.com/hupe1980/qix/internal/quadtree"
	"github.com/hupe1980/qix/model"
)

// Mapped is an index file decoded on demand from a read-only memory map.
// The body checksum is not verified. Nodes obtained from a Mapped must not
// be used after Close.
type Mapped struct {
	m      *mmap.Mapping
	header Header
	order  binary.ByteOrder
	body   []byte
}

// OpenMapped maps the index at path, opened through fsys, and validates
// its header. A nil fsys means the local file system.
func OpenMapped(fsys fs.FileSystem, path string) (*Mapped, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() < HeaderSize {
		return nil, fmt.Errorf("%w: header truncated to %d bytes", ErrNotIndexFile, fi.Size())
	}
	if int64(int(fi.Size())) != fi.Size() {
		return nil, mmap.ErrInvalidSize
	}

	m, err := mmap.Map(f, int(fi.Size()))
	if err != nil {
		return nil, err
	}

	hdr := make([]byte, HeaderSize)
	if _, err := m.ReadAt(hdr, 0); err != nil {
		_ = m.Close()
		return nil, err
	}
	h, err := DecodeHeader(hdr)
	if err != nil {
		_ = m.Close()
		return nil, err
	}

	body, err := m.Region(HeaderSize, m.Size()-HeaderSize)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	_ = body.Advise(mmap.AccessRandom)

	return &Mapped{
		m:      m,
		header: h,
		order:  h.ByteOrder,
		body:   body.Bytes(),
	}, nil
}

// Header returns the decoded file header.
func (mp *Mapped) Header() Header { return mp.header }

// Size returns the mapped file size.
func (mp *Mapped) Size() int { return mp.m.Size() }

// Root decodes the root node.
func (mp *Mapped) Root() (quadtree.NodeReader, error) {
	if mp.body == nil {
		return nil, mmap.ErrClosed
	}
	return mp.node(0, len(mp.body))
}

// Close unmaps the file. It is idempotent.
func (mp *Mapped) Close() error {
	mp.body = nil
	return mp.m.Close()
}

// node decodes the node starting at off, which must end at or before limit.
func (mp *Mapped) node(off, limit int) (*lazyNode, error) {
	body := mp.body
	if off < 0 || off+nodeFixedSize > limit || limit > len(body) {
		return nil, fmt.Errorf("%w: node at %d exceeds %d", ErrCorrupt, off, limit)
	}

	sub := mp.order.Uint64(body[off:])
	idCount := uint64(mp.order.Uint32(body[off+40:]))
	own := uint64(nodeFixedSize) + 4*idCount

	if idCount > mp.header.RecordCount || sub > uint64(limit-off) || own > uint64(limit-off)-sub {
		return nil, fmt.Errorf("%w: node at %d overruns its parent", ErrCorrupt, off)
	}

	idsOff := off + 44
	idsEnd := idsOff + int(4*idCount)
	childCount := int(mp.order.Uint32(body[idsEnd:]))
	if childCount > maxChildren {
		return nil, fmt.Errorf("%w: %d children at %d", ErrCorrupt, childCount, off)
	}

	return &lazyNode{
		mp: mp,
		bounds: model.Envelope{
			MinX: float64frombits(mp.order, body[off+8:]),
			MinY: float64frombits(mp.order, body[off+16:]),
			MaxX: float64frombits(mp.order, body[off+24:]),
			MaxY: float64frombits(mp.order, body[off+32:]),
		},
		ids:        body[idsOff:idsEnd],
		childCount: childCount,
		childOff:   off + int(own),
		end:        off + int(own+sub),
	}, nil
}

type lazyNode struct {
	mp         *Mapped
	bounds     model.Envelope
	ids        []byte
	childCount int
	childOff   int
	end        int
}

var _ quadtree.NodeReader = (*lazyNode)(nil)

func (n *lazyNode) Bounds() model.Envelope { return n.bounds }
func (n *lazyNode) NumIDs() int            { return len(n.ids) / 4 }
func (n *lazyNode) NumChildren() int       { return n.childCount }

func (n *lazyNode) ID(i int) model.RecordID {
	return model.RecordID(n.mp.order.Uint32(n.ids[i*4:]))
}

// Child walks over the preceding siblings using their subtree sizes.
func (n *lazyNode) Child(i int) (quadtree.NodeReader, error) {
	if n.mp.body == nil {
		return nil, mmap.ErrClosed
	}
	off := n.childOff
	for j := 0; j < i; j++ {
		c, err := n.mp.node(off, n.end)
		if err != nil {
			return nil, err
		}
		off = c.end
	}
	return n.mp.node(off, n.end)
}
