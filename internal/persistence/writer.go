package persistence

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/hupe1980/qix/internal/conv"
	"github.com/hupe1980/qix/internal/quadtree"
)

// Store writes tree to w in the index format using order for every
// multi-byte value. A nil order means little endian.
func Store(w io.Writer, tree *quadtree.Tree, order binary.ByteOrder) error {
	flag, err := orderFlag(order)
	if err != nil {
		return err
	}

	enc := &encoder{
		order: byteOrderFor(flag),
		sizes: make(map[*quadtree.Node]uint64),
	}
	nodes := enc.measure(tree.Root())

	// The checksum goes into the header, so the body is encoded twice.
	sum := newChecksumWriter(io.Discard)
	if err := enc.writeNode(sum, tree.Root()); err != nil {
		return err
	}

	h := Header{ByteOrder: order, Checksum: sum.Sum()}
	if h.RecordCount, err = conv.IntToUint64(tree.RecordCount()); err != nil {
		return err
	}
	if h.NodeCount, err = conv.IntToUint32(nodes); err != nil {
		return err
	}
	if h.MaxDepth, err = conv.IntToUint32(tree.MaxDepth()); err != nil {
		return err
	}
	if h.LeafCapacity, err = conv.IntToUint32(tree.LeafCapacity()); err != nil {
		return err
	}
	hdr, err := h.encode()
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(w, 256*1024)
	if _, err := bw.Write(hdr); err != nil {
		return err
	}
	if err := enc.writeNode(bw, tree.Root()); err != nil {
		return err
	}
	return bw.Flush()
}

// EncodedSize returns the number of bytes Store writes for tree.
func EncodedSize(tree *quadtree.Tree) int64 {
	enc := &encoder{sizes: make(map[*quadtree.Node]uint64)}
	enc.measure(tree.Root())
	return HeaderSize + int64(ownSize(tree.Root())+enc.sizes[tree.Root()])
}

type encoder struct {
	order   binary.ByteOrder
	sizes   map[*quadtree.Node]uint64 // encoded bytes of all descendants
	scratch [nodeFixedSize]byte
}

func ownSize(n *quadtree.Node) uint64 {
	return nodeFixedSize + 4*uint64(n.NumIDs())
}

// measure fills sizes in post-order and returns the node count.
func (e *encoder) measure(n *quadtree.Node) int {
	count := 1
	var sub uint64
	for i := 0; i < n.NumChildren(); i++ {
		c := n.ChildNode(i)
		count += e.measure(c)
		sub += ownSize(c) + e.sizes[c]
	}
	e.sizes[n] = sub
	return count
}

func (e *encoder) writeNode(w io.Writer, n *quadtree.Node) error {
	b := e.scratch[:]
	bounds := n.Bounds()

	e.order.PutUint64(b[0:], e.sizes[n])
	e.order.PutUint64(b[8:], math.Float64bits(bounds.MinX))
	e.order.PutUint64(b[16:], math.Float64bits(bounds.MinY))
	e.order.PutUint64(b[24:], math.Float64bits(bounds.MaxX))
	e.order.PutUint64(b[32:], math.Float64bits(bounds.MaxY))
	ids, err := conv.IntToUint32(n.NumIDs())
	if err != nil {
		return err
	}
	e.order.PutUint32(b[40:], ids)
	if _, err := w.Write(b[:44]); err != nil {
		return err
	}

	if err := e.writeIDs(w, n); err != nil {
		return err
	}

	e.order.PutUint32(b[:4], uint32(n.NumChildren()))
	if _, err := w.Write(b[:4]); err != nil {
		return err
	}

	for i := 0; i < n.NumChildren(); i++ {
		if err := e.writeNode(w, n.ChildNode(i)); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) writeIDs(w io.Writer, n *quadtree.Node) error {
	const batch = 256
	var buf [batch * 4]byte

	ids := n.IDs()
	for len(ids) > 0 {
		k := min(len(ids), batch)
		for i := 0; i < k; i++ {
			e.order.PutUint32(buf[i*4:], uint32(ids[i]))
		}
		if _, err := w.Write(buf[:k*4]); err != nil {
			return err
		}
		ids = ids[k:]
	}
	return nil
}
