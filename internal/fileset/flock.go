package fileset

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// ProcessLock guards a rebuild of kind against other processes through an
// OS file lock on "<path>.lock". Tickets only coordinate within one process.
type ProcessLock struct {
	fl *flock.Flock
}

// LockProcess blocks, polling every retry, until the OS lock is held or
// ctx is done.
func (s *FileSet) LockProcess(ctx context.Context, kind Kind, retry time.Duration) (*ProcessLock, error) {
	if err := s.check(kind); err != nil {
		return nil, err
	}
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}

	fl := flock.New(s.paths[kind] + ".lock")
	ok, err := fl.TryLockContext(ctx, retry)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s held by another process", ErrLocked, fl.Path())
	}
	return &ProcessLock{fl: fl}, nil
}

// Path returns the lock file location.
func (l *ProcessLock) Path() string { return l.fl.Path() }

// Unlock releases the OS lock. The lock file is left in place.
func (l *ProcessLock) Unlock() error { return l.fl.Unlock() }
