package fileset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/qix/internal/fs"
)

// capacity is the semaphore weight of one file kind. A read ticket takes 1,
// a write ticket takes whatever the requestor does not already hold.
const capacity = 1 << 30

var (
	// ErrLocked is returned by the TryAcquire variants when the ticket cannot
	// be granted immediately.
	ErrLocked = errors.New("fileset: file is locked")
	// ErrUntracked is returned for a kind without a path.
	ErrUntracked = errors.New("fileset: file kind not tracked")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("fileset: closed")
)

// ContentionError reports a write ticket that could not be granted in time.
type ContentionError struct {
	Kind      Kind
	Path      string
	Requestor Requestor
	Holders   []Holder
	Err       error
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("fileset: %s could not lock %s (%s) for writing, %d lock(s) held; locks likely not released by some reader/writer: %v",
		e.Requestor, e.Kind, e.Path, len(e.Holders), e.Err)
}

func (e *ContentionError) Unwrap() error { return e.Err }

// Config configures a FileSet.
type Config struct {
	FS     fs.FileSystem
	Logger *slog.Logger
}

type kindLock struct {
	sem     *semaphore.Weighted
	tickets map[uuid.UUID]*Ticket
	writer  *Ticket
}

// FileSet tracks tickets for the files of one dataset.
type FileSet struct {
	paths  Paths
	fsys   fs.FileSystem
	logger *slog.Logger

	mu     sync.Mutex
	locks  [numKinds]kindLock
	closed bool
}

// New creates a FileSet over paths.
func New(paths Paths, cfg Config) *FileSet {
	if cfg.FS == nil {
		cfg.FS = fs.Default
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	s := &FileSet{
		paths:  make(Paths, len(paths)),
		fsys:   cfg.FS,
		logger: cfg.Logger,
	}
	for k, p := range paths {
		if p != "" {
			s.paths[k] = filepath.Clean(p)
		}
	}
	for i := range s.locks {
		s.locks[i] = kindLock{
			sem:     semaphore.NewWeighted(capacity),
			tickets: make(map[uuid.UUID]*Ticket),
		}
	}
	return s
}

// Path returns the location of kind, or "" if untracked.
func (s *FileSet) Path(kind Kind) string { return s.paths[kind] }

// FS returns the file system the set operates on.
func (s *FileSet) FS() fs.FileSystem { return s.fsys }

// Exists reports whether the file of kind is present.
func (s *FileSet) Exists(kind Kind) bool {
	p := s.paths[kind]
	if p == "" {
		return false
	}
	_, err := s.fsys.Stat(p)
	return err == nil
}

// Stat returns file info for kind.
func (s *FileSet) Stat(kind Kind) (os.FileInfo, error) {
	p := s.paths[kind]
	if p == "" {
		return nil, fmt.Errorf("%w: %s", ErrUntracked, kind)
	}
	return s.fsys.Stat(p)
}

func (s *FileSet) check(kind Kind) error {
	if !kind.valid() {
		return fmt.Errorf("fileset: invalid kind %d", int(kind))
	}
	if s.paths[kind] == "" {
		return fmt.Errorf("%w: %s", ErrUntracked, kind)
	}
	return nil
}

// AcquireRead blocks until a read ticket on kind is granted. A requestor
// that holds the write ticket on kind is granted reads immediately.
func (s *FileSet) AcquireRead(ctx context.Context, kind Kind, req Requestor) (*Ticket, error) {
	return s.acquire(ctx, kind, req, ModeRead, true)
}

// AcquireWrite blocks until every other ticket on kind is released. Read
// tickets held by req itself are relinquished for the duration of the write
// and regained when it is released. Two requestors upgrading at the same
// time wait for each other; bound the wait with ctx.
func (s *FileSet) AcquireWrite(ctx context.Context, kind Kind, req Requestor) (*Ticket, error) {
	return s.acquire(ctx, kind, req, ModeWrite, true)
}

// TryAcquireRead is AcquireRead without blocking. It returns ErrLocked when
// a writer holds kind.
func (s *FileSet) TryAcquireRead(kind Kind, req Requestor) (*Ticket, error) {
	return s.acquire(context.Background(), kind, req, ModeRead, false)
}

// TryAcquireWrite is AcquireWrite without blocking.
func (s *FileSet) TryAcquireWrite(kind Kind, req Requestor) (*Ticket, error) {
	return s.acquire(context.Background(), kind, req, ModeWrite, false)
}

func (s *FileSet) acquire(ctx context.Context, kind Kind, req Requestor, mode Mode, block bool) (*Ticket, error) {
	if err := s.check(kind); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	kl := &s.locks[kind]

	var weight int64
	switch mode {
	case ModeRead:
		if kl.writer != nil && kl.writer.requestor.ID == req.ID {
			t := s.register(kl, kind, req, mode, 0)
			s.mu.Unlock()
			return t, nil
		}
		weight = 1
	case ModeWrite:
		if kl.writer != nil && kl.writer.requestor.ID == req.ID {
			s.mu.Unlock()
			return nil, fmt.Errorf("fileset: %s already holds the %s write lock", req, kind)
		}
		weight = capacity - s.ownWeight(kl, req)
	}
	s.mu.Unlock()

	if err := take(ctx, kl.sem, weight, block); err != nil {
		return nil, s.acquireError(err, kind, mode, req)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if mode == ModeWrite {
		// Reads req released while the write waited went back to the
		// semaphore. Top up until the write covers everything req does
		// not hold itself.
		for {
			need := capacity - s.ownWeight(kl, req)
			if weight >= need {
				if weight > need {
					kl.sem.Release(weight - need)
					weight = need
				}
				break
			}
			extra := need - weight
			s.mu.Unlock()
			err := take(ctx, kl.sem, extra, block)
			s.mu.Lock()
			if err != nil {
				kl.sem.Release(weight)
				return nil, s.acquireError(err, kind, mode, req)
			}
			weight += extra
		}
	}

	t := s.register(kl, kind, req, mode, weight)
	if mode == ModeWrite {
		kl.writer = t
	}
	return t, nil
}

func take(ctx context.Context, sem *semaphore.Weighted, n int64, block bool) error {
	if block {
		return sem.Acquire(ctx, n)
	}
	if !sem.TryAcquire(n) {
		return ErrLocked
	}
	return nil
}

func (s *FileSet) acquireError(err error, kind Kind, mode Mode, req Requestor) error {
	if errors.Is(err, ErrLocked) {
		return fmt.Errorf("%w: %s %s by %s", ErrLocked, kind, mode, req)
	}
	return err
}

// ownWeight is the read weight req already holds on kl. Callers hold mu.
func (s *FileSet) ownWeight(kl *kindLock, req Requestor) int64 {
	var w int64
	for _, t := range kl.tickets {
		if t.requestor.ID == req.ID {
			w += t.weight
		}
	}
	return w
}

func (s *FileSet) register(kl *kindLock, kind Kind, req Requestor, mode Mode, weight int64) *Ticket {
	t := &Ticket{
		id:        uuid.New(),
		kind:      kind,
		requestor: req,
		mode:      mode,
		acquired:  time.Now(),
		weight:    weight,
		set:       s,
	}
	kl.tickets[t.id] = t
	return t
}

func (s *FileSet) release(t *Ticket) {
	if t.released.Swap(true) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kl := &s.locks[t.kind]
	delete(kl.tickets, t.id)

	w := kl.writer
	switch {
	case t == w:
		kl.writer = nil
		// Regain the requestor's reads: tickets granted under the write
		// hold no weight yet.
		var keep int64
		for _, other := range kl.tickets {
			if other.requestor.ID == t.requestor.ID && other.weight == 0 {
				other.weight = 1
				keep++
			}
		}
		kl.sem.Release(t.weight - keep)
	case w != nil && w.requestor.ID == t.requestor.ID:
		// The write is still held; its weight must keep covering the
		// whole kind.
		w.weight += t.weight
	case t.weight > 0:
		kl.sem.Release(t.weight)
	}
}

// Holders returns the live tickets on kind, oldest first.
func (s *FileSet) Holders(kind Kind) []Holder {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !kind.valid() {
		return nil
	}
	return holdersLocked(&s.locks[kind])
}

func holdersLocked(kl *kindLock) []Holder {
	out := make([]Holder, 0, len(kl.tickets))
	for _, t := range kl.tickets {
		out = append(out, t.holder())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Since.Before(out[j].Since) })
	return out
}

// NumLocks returns the number of live tickets across all kinds.
func (s *FileSet) NumLocks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.locks {
		n += len(s.locks[i].tickets)
	}
	return n
}

// Close rejects further acquisitions and logs tickets that were never
// released. It returns the number of such tickets.
func (s *FileSet) Close() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	s.closed = true

	leaked := 0
	for k := range s.locks {
		for _, h := range holdersLocked(&s.locks[k]) {
			leaked++
			s.logger.Error("lock not released before close",
				"kind", h.Kind.String(),
				"path", s.paths[h.Kind],
				"requestor", h.Requestor.String(),
				"mode", h.Mode.String(),
				"since", h.Since,
			)
		}
	}
	return leaked
}
