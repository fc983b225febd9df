package qix

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/hupe1980/qix/internal/boundscache"
	"github.com/hupe1980/qix/internal/fileset"
	"github.com/hupe1980/qix/internal/mmap"
	"github.com/hupe1980/qix/internal/persistence"
	"github.com/hupe1980/qix/internal/resource"
	"github.com/hupe1980/qix/source"
	"github.com/hupe1980/qix/source/recfile"
)

var (
	// ErrIOFailure wraps read, write and mmap errors.
	ErrIOFailure = errors.New("qix: I/O failure")

	// ErrFormat reports an index file that cannot be used. It is always
	// recoverable by treating the index as absent.
	ErrFormat = errors.New("qix: invalid index format")

	// ErrNotIndexFile is returned for a missing, truncated or foreign header.
	ErrNotIndexFile = fmt.Errorf("%w: not an index file", ErrFormat)

	// ErrUnsupportedVersion is returned for a valid magic with an unknown
	// version or byte order.
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported version", ErrFormat)

	// ErrResourceExhausted reports insufficient disk space or memory budget.
	ErrResourceExhausted = errors.New("qix: resource exhausted")

	// ErrClosed is returned by operations on a closed Index.
	ErrClosed = errors.New("qix: index closed")

	// ErrNotLocal is returned when building or installing an index for a
	// dataset that is not backed by local files.
	ErrNotLocal = errors.New("qix: dataset is not backed by local files")

	// ErrInvalidEnvelope is returned for a query box with min > max.
	ErrInvalidEnvelope = errors.New("qix: invalid envelope")

	// ErrLocked is returned when a lock cannot be taken without waiting.
	ErrLocked = errors.New("qix: locked")
)

// LockContentionError reports a file that could not be exclusively locked
// in time, with the holders at the moment of failure.
type LockContentionError struct {
	Kind      string
	Path      string
	Requestor string
	Holders   []string
	cause     error
}

func (e *LockContentionError) Error() string {
	return fmt.Sprintf("qix: %s could not lock %s file %s for writing; locks likely not released by some reader/writer (holders: %s)",
		e.Requestor, e.Kind, e.Path, strings.Join(e.Holders, ", "))
}

func (e *LockContentionError) Unwrap() error { return e.cause }

// BuildAbortedError reports a build that failed before installing anything.
// The previously installed index, if any, is untouched.
type BuildAbortedError struct {
	Path  string
	Cause error
}

func (e *BuildAbortedError) Error() string {
	return fmt.Sprintf("qix: index build for %s aborted: %v", e.Path, e.Cause)
}

func (e *BuildAbortedError) Unwrap() error { return e.Cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var ce *fileset.ContentionError
	if errors.As(err, &ce) {
		holders := make([]string, len(ce.Holders))
		for i, h := range ce.Holders {
			holders[i] = h.String()
		}
		return &LockContentionError{
			Kind:      ce.Kind.String(),
			Path:      ce.Path,
			Requestor: ce.Requestor.String(),
			Holders:   holders,
			cause:     err,
		}
	}

	switch {
	case errors.Is(err, persistence.ErrNotIndexFile):
		return fmt.Errorf("%w: %w", ErrNotIndexFile, err)
	case errors.Is(err, persistence.ErrUnsupportedVersion):
		return fmt.Errorf("%w: %w", ErrUnsupportedVersion, err)
	case errors.Is(err, persistence.ErrCorrupt), errors.Is(err, persistence.ErrByteOrder):
		return fmt.Errorf("%w: %w", ErrFormat, err)
	case errors.Is(err, boundscache.ErrInsufficientSpace), errors.Is(err, boundscache.ErrNoFallback),
		errors.Is(err, resource.ErrMemoryLimitExceeded):
		return fmt.Errorf("%w: %w", ErrResourceExhausted, err)
	case errors.Is(err, fileset.ErrLocked):
		return fmt.Errorf("%w: %w", ErrLocked, err)
	case errors.Is(err, fileset.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	case errors.Is(err, recfile.ErrBadMagic), errors.Is(err, recfile.ErrTruncated),
		errors.Is(err, recfile.ErrKindMismatch), errors.Is(err, source.ErrOutOfRange),
		errors.Is(err, mmap.ErrClosed), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	var pe *fs.PathError
	if errors.As(err, &pe) {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	var le *os.LinkError
	if errors.As(err, &le) {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return err
}
