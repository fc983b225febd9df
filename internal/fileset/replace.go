package fileset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/qix/internal/fs"
)

// TempPrefix prefixes every temporary file created by a FileSet.
const TempPrefix = "qix-"

// StorageFile is a private temporary file destined to replace one kind.
// Call Replace to install it or Discard to drop it; both delete the
// temporary file.
type StorageFile struct {
	fs.File
	set  *FileSet
	kind Kind
	path string
	done bool
}

// Path returns the temporary file location.
func (sf *StorageFile) Path() string { return sf.path }

// StorageFile creates a temporary file next to the destination of kind so
// the final rename stays on one volume.
func (s *FileSet) StorageFile(kind Kind) (*StorageFile, error) {
	if err := s.check(kind); err != nil {
		return nil, err
	}
	dest := s.paths[kind]
	f, err := s.fsys.CreateTemp(filepath.Dir(dest), TempPrefix+"*"+filepath.Ext(dest))
	if err != nil {
		return nil, err
	}
	return &StorageFile{File: f, set: s, kind: kind, path: f.Name()}, nil
}

// Replace syncs and closes the temporary file, then installs it over the
// destination under a write ticket held by req. A timeout > 0 bounds the
// wait for the ticket.
func (sf *StorageFile) Replace(ctx context.Context, req Requestor, timeout time.Duration) error {
	if sf.done {
		return fmt.Errorf("fileset: storage file %s already consumed", sf.path)
	}
	sf.done = true

	err := sf.File.Sync()
	if cerr := sf.File.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = sf.set.fsys.Remove(sf.path)
		return err
	}
	return sf.set.Replace(ctx, sf.kind, sf.path, req, timeout)
}

// Discard closes and deletes the temporary file.
func (sf *StorageFile) Discard() error {
	if sf.done {
		return nil
	}
	sf.done = true
	return errors.Join(sf.File.Close(), sf.set.fsys.Remove(sf.path))
}

// Replace installs the complete file at tmp as the new content of kind.
// tmp is deleted whether or not the replacement succeeds.
//
// The destination is overwritten by rename. If the rename fails the
// destination is deleted and the bytes are copied instead; a destination
// that cannot be deleted is reported as lock contention.
func (s *FileSet) Replace(ctx context.Context, kind Kind, tmp string, req Requestor, timeout time.Duration) error {
	defer func() {
		if _, err := s.fsys.Stat(tmp); err == nil {
			_ = s.fsys.Remove(tmp)
		}
	}()

	if err := s.check(kind); err != nil {
		return err
	}
	dest := s.paths[kind]

	wctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t, err := s.AcquireWrite(wctx, kind, req)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		cerr := &ContentionError{Kind: kind, Path: dest, Requestor: req, Holders: s.Holders(kind), Err: err}
		s.logContention(cerr)
		return cerr
	}
	defer t.Release()

	err = s.fsys.Rename(tmp, dest)
	if err == nil {
		syncDir(filepath.Dir(dest))
		return nil
	}
	s.logger.Warn("rename failed, falling back to copy", "from", tmp, "to", dest, "error", err)

	if err := s.fsys.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		cerr := &ContentionError{Kind: kind, Path: dest, Requestor: req, Holders: s.Holders(kind), Err: err}
		s.logContention(cerr)
		return cerr
	}

	if err := s.copyInto(tmp, dest); err != nil {
		return fmt.Errorf("fileset: replace %s: %w", dest, err)
	}
	syncDir(filepath.Dir(dest))
	return nil
}

// copyInto stages a copy next to dest and renames it into place. When
// that rename fails as well the bytes go straight into dest; the write
// ticket keeps tracked readers away meanwhile.
func (s *FileSet) copyInto(src, dest string) error {
	if filepath.Dir(src) != filepath.Dir(dest) {
		staged, err := s.fsys.CreateTemp(filepath.Dir(dest), TempPrefix+"*")
		if err == nil {
			stagedPath := staged.Name()
			err = copyFile(s.fsys, src, staged)
			if err == nil {
				err = s.fsys.Rename(stagedPath, dest)
			}
			if err == nil {
				return nil
			}
			_ = s.fsys.Remove(stagedPath)
		}
	}

	out, err := s.fsys.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	return copyFile(s.fsys, src, out)
}

// copyFile copies src into dst, syncs and closes dst.
func copyFile(fsys fs.FileSystem, src string, dst fs.File) error {
	in, err := fsys.OpenFile(src, os.O_RDONLY, 0)
	if err != nil {
		_ = dst.Close()
		return err
	}
	defer in.Close()

	if _, err := io.Copy(dst, in); err != nil {
		_ = dst.Close()
		return err
	}
	if err := dst.Sync(); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

func (s *FileSet) logContention(err *ContentionError) {
	holders := make([]string, len(err.Holders))
	for i, h := range err.Holders {
		holders[i] = h.String()
	}
	s.logger.Error("cannot replace file, locks likely not released by some reader/writer",
		"kind", err.Kind.String(),
		"path", err.Path,
		"requestor", err.Requestor.String(),
		"holders", holders,
		"error", err.Err,
	)
}

// syncDir makes a rename durable on POSIX. Best effort.
func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
}
