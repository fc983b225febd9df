package persistence

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/hupe1980/qix/internal/conv"
	"github.com/hupe1980/qix/internal/fs"
	"github.com/hupe1980/qix/internal/quadtree"
	"github.com/hupe1980/qix/model"
)

// Load reads a complete index from r and verifies the body checksum.
func Load(r io.Reader) (*quadtree.Tree, Header, error) {
	br := bufio.NewReaderSize(r, 256*1024)

	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(br, hdr); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, Header{}, fmt.Errorf("%w: %w", ErrNotIndexFile, err)
		}
		return nil, Header{}, err
	}
	h, err := DecodeHeader(hdr)
	if err != nil {
		return nil, Header{}, err
	}

	cr := newChecksumReader(br)
	d := &decoder{r: cr, order: h.ByteOrder, header: h}

	root, err := d.readNode(0)
	if err != nil {
		return nil, Header{}, err
	}
	if d.nodes != int(h.NodeCount) {
		return nil, Header{}, fmt.Errorf("%w: decoded %d nodes, header says %d", ErrCorrupt, d.nodes, h.NodeCount)
	}
	if err := cr.verify(h.Checksum); err != nil {
		return nil, Header{}, err
	}

	records, err := conv.Uint64ToInt(h.RecordCount)
	if err != nil {
		return nil, Header{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	tree := quadtree.FromRoot(root, records, int(h.MaxDepth), int(h.LeafCapacity))
	return tree, h, nil
}

// LoadFile fully loads the index stored at path.
func LoadFile(fsys fs.FileSystem, path string) (*quadtree.Tree, Header, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, Header{}, err
	}
	defer f.Close()
	return Load(f)
}

type decoder struct {
	r       io.Reader
	order   binary.ByteOrder
	header  Header
	nodes   int
	scratch [nodeFixedSize]byte
	idBuf   []byte
}

func (d *decoder) read(p []byte) error {
	if _, err := io.ReadFull(d.r, p); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: truncated after %d nodes", ErrCorrupt, d.nodes)
		}
		return err
	}
	return nil
}

func (d *decoder) readNode(level int) (*quadtree.Node, error) {
	d.nodes++
	if d.nodes > int(d.header.NodeCount) {
		return nil, fmt.Errorf("%w: more nodes than the header's %d", ErrCorrupt, d.header.NodeCount)
	}
	if level > maxDecodeDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrCorrupt, maxDecodeDepth)
	}

	b := d.scratch[:44]
	if err := d.read(b); err != nil {
		return nil, err
	}
	bounds := model.Envelope{
		MinX: math.Float64frombits(d.order.Uint64(b[8:])),
		MinY: math.Float64frombits(d.order.Uint64(b[16:])),
		MaxX: math.Float64frombits(d.order.Uint64(b[24:])),
		MaxY: math.Float64frombits(d.order.Uint64(b[32:])),
	}

	idCount := d.order.Uint32(b[40:])
	if uint64(idCount) > d.header.RecordCount {
		return nil, fmt.Errorf("%w: node holds %d ids of %d records", ErrCorrupt, idCount, d.header.RecordCount)
	}
	ids, err := d.readIDs(int(idCount))
	if err != nil {
		return nil, err
	}

	if err := d.read(b[:4]); err != nil {
		return nil, err
	}
	childCount := int(d.order.Uint32(b[:4]))
	if childCount > maxChildren {
		return nil, fmt.Errorf("%w: %d children", ErrCorrupt, childCount)
	}

	var children []*quadtree.Node
	if childCount > 0 {
		children = make([]*quadtree.Node, childCount)
		for i := range children {
			if children[i], err = d.readNode(level + 1); err != nil {
				return nil, err
			}
		}
	}

	return quadtree.NewNode(bounds, ids, children), nil
}

func (d *decoder) readIDs(n int) ([]model.RecordID, error) {
	if n == 0 {
		return nil, nil
	}
	ids := make([]model.RecordID, n)
	const batch = 1024
	if d.idBuf == nil {
		d.idBuf = make([]byte, batch*4)
	}
	for done := 0; done < n; {
		k := min(n-done, batch)
		buf := d.idBuf[:k*4]
		if err := d.read(buf); err != nil {
			return nil, err
		}
		for i := 0; i < k; i++ {
			id := d.order.Uint32(buf[i*4:])
			if uint64(id) >= d.header.RecordCount {
				return nil, fmt.Errorf("%w: record id %d out of range", ErrCorrupt, id)
			}
			ids[done+i] = model.RecordID(id)
		}
		done += k
	}
	return ids, nil
}
