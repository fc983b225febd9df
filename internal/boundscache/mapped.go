package boundscache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/hupe1980/qix/internal/fs"
	"github.com/hupe1980/qix/internal/mmap"
	"github.com/hupe1980/qix/model"
)

// mappedCache keeps envelopes in a temporary file mapped read-write. The
// file never outlives the build, so ordinates use the native byte order.
type mappedCache struct {
	fsys   fs.FileSystem
	file   fs.File
	path   string
	m      *mmap.Mapping
	data   []byte
	stride int // bytes per record
}

func newMapped(cfg Config, need int64) (_ *mappedCache, err error) {
	dir := cfg.TempDir
	if dir == "" {
		dir = os.TempDir()
	}

	if avail, aerr := cfg.FS.Available(dir); aerr == nil && avail < uint64(need)+spaceMargin {
		return nil, fmt.Errorf("%w: need %d bytes in %s, %d available", ErrInsufficientSpace, need, dir, avail)
	}

	f, err := cfg.FS.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return nil, err
	}

	path := f.Name()
	defer func() {
		if err != nil {
			err = errors.Join(err, f.Close(), cfg.FS.Remove(path))
		}
	}()

	if need == 0 {
		return &mappedCache{fsys: cfg.FS, file: f, path: path, stride: cfg.Kind.Ordinates() * 8}, nil
	}
	if int64(int(need)) != need {
		return nil, mmap.ErrInvalidSize
	}

	if err = f.Truncate(need); err != nil {
		return nil, err
	}

	m, err := mmap.MapWritable(f, int(need))
	if err != nil {
		return nil, err
	}
	_ = m.Advise(mmap.AccessRandom)

	return &mappedCache{
		fsys:   cfg.FS,
		file:   f,
		path:   path,
		m:      m,
		data:   m.Bytes(),
		stride: cfg.Kind.Ordinates() * 8,
	}, nil
}

func (c *mappedCache) Strategy() Strategy { return StrategyMapped }

// Path returns the location of the backing temp file.
func (c *mappedCache) Path() string { return c.path }

func (c *mappedCache) slot(id model.RecordID) ([]byte, error) {
	if c.file == nil {
		return nil, ErrClosed
	}
	pos := int(id) * c.stride
	if pos+c.stride > len(c.data) {
		return nil, ErrOutOfRange
	}
	return c.data[pos : pos+c.stride], nil
}

func (c *mappedCache) Put(id model.RecordID, env model.Envelope) error {
	b, err := c.slot(id)
	if err != nil {
		return err
	}
	binary.NativeEndian.PutUint64(b[0:], math.Float64bits(env.MinX))
	binary.NativeEndian.PutUint64(b[8:], math.Float64bits(env.MinY))
	if c.stride == 32 {
		binary.NativeEndian.PutUint64(b[16:], math.Float64bits(env.MaxX))
		binary.NativeEndian.PutUint64(b[24:], math.Float64bits(env.MaxY))
	}
	return nil
}

func (c *mappedCache) Get(id model.RecordID) (model.Envelope, error) {
	b, err := c.slot(id)
	if err != nil {
		return model.Envelope{}, err
	}
	x := math.Float64frombits(binary.NativeEndian.Uint64(b[0:]))
	y := math.Float64frombits(binary.NativeEndian.Uint64(b[8:]))
	if c.stride == 16 {
		return model.PointEnvelope(x, y), nil
	}
	return model.Envelope{
		MinX: x,
		MinY: y,
		MaxX: math.Float64frombits(binary.NativeEndian.Uint64(b[16:])),
		MaxY: math.Float64frombits(binary.NativeEndian.Uint64(b[24:])),
	}, nil
}

func (c *mappedCache) Expand(id model.RecordID, acc *model.Envelope) error {
	env, err := c.Get(id)
	if err != nil {
		return err
	}
	acc.ExpandToInclude(env)
	return nil
}

// Close unmaps and deletes the temp file.
func (c *mappedCache) Close() error {
	if c.file == nil {
		return nil
	}
	var errs []error
	if c.m != nil {
		errs = append(errs, c.m.Close())
	}
	errs = append(errs, c.file.Close(), c.fsys.Remove(c.path))
	c.file, c.m, c.data = nil, nil, nil
	return errors.Join(errs...)
}
