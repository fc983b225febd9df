package fileset

import (
	"context"
	"os"
	"sync"

	"github.com/hupe1980/qix/internal/fs"
)

// LockedFile is an open file whose ticket is released by Close.
type LockedFile struct {
	fs.File
	ticket *Ticket
	once   sync.Once
	err    error
}

// Ticket returns the ticket backing f.
func (f *LockedFile) Ticket() *Ticket { return f.ticket }

// Close closes the file, then releases the ticket.
func (f *LockedFile) Close() error {
	f.once.Do(func() {
		f.err = f.File.Close()
		f.ticket.Release()
	})
	return f.err
}

// OpenRead takes a read ticket on kind and opens the file read-only.
func (s *FileSet) OpenRead(ctx context.Context, kind Kind, req Requestor) (*LockedFile, error) {
	t, err := s.AcquireRead(ctx, kind, req)
	if err != nil {
		return nil, err
	}
	f, err := s.fsys.OpenFile(s.paths[kind], os.O_RDONLY, 0)
	if err != nil {
		t.Release()
		return nil, err
	}
	return &LockedFile{File: f, ticket: t}, nil
}

// OpenWrite takes a write ticket on kind and opens the file for writing
// in place, creating it if needed. Prefer StorageFile and Replace for
// rewrites that readers must not observe half-done.
func (s *FileSet) OpenWrite(ctx context.Context, kind Kind, req Requestor) (*LockedFile, error) {
	t, err := s.AcquireWrite(ctx, kind, req)
	if err != nil {
		return nil, err
	}
	f, err := s.fsys.OpenFile(s.paths[kind], os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		t.Release()
		return nil, err
	}
	return &LockedFile{File: f, ticket: t}, nil
}
