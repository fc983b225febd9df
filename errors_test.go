package qix

import (
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/qix/internal/boundscache"
	"github.com/hupe1980/qix/internal/fileset"
	"github.com/hupe1980/qix/internal/persistence"
	"github.com/hupe1980/qix/source/recfile"
)

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"not index", persistence.ErrNotIndexFile, ErrNotIndexFile},
		{"version", persistence.ErrUnsupportedVersion, ErrUnsupportedVersion},
		{"corrupt", &persistence.ChecksumMismatchError{}, ErrFormat},
		{"disk space", fmt.Errorf("wrap: %w", boundscache.ErrInsufficientSpace), ErrResourceExhausted},
		{"no fallback", boundscache.ErrNoFallback, ErrResourceExhausted},
		{"locked", fileset.ErrLocked, ErrLocked},
		{"closed", fileset.ErrClosed, ErrClosed},
		{"truncated", recfile.ErrTruncated, ErrIOFailure},
		{"unexpected eof", io.ErrUnexpectedEOF, ErrIOFailure},
		{"path", &os.PathError{Op: "open", Path: "x", Err: os.ErrPermission}, ErrIOFailure},
		{"link", &os.LinkError{Op: "rename", Old: "a", New: "b", Err: os.ErrPermission}, ErrIOFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.in)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.in)
		})
	}

	// Format errors are one family.
	assert.ErrorIs(t, translateError(persistence.ErrNotIndexFile), ErrFormat)

	other := errors.New("other")
	assert.Same(t, other, translateError(other))
}

func TestTranslateError_Contention(t *testing.T) {
	req := fileset.NewRequestor("builder")
	ce := &fileset.ContentionError{
		Kind:      fileset.KindIndex,
		Path:      "/data/roads.qix",
		Requestor: req,
		Err:       os.ErrPermission,
	}

	err := translateError(fmt.Errorf("replace: %w", ce))
	var lce *LockContentionError
	require.ErrorAs(t, err, &lce)
	assert.Equal(t, "index", lce.Kind)
	assert.Equal(t, "/data/roads.qix", lce.Path)
	assert.Equal(t, req.String(), lce.Requestor)
	assert.Contains(t, err.Error(), "locks likely not released")
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestBuildAbortedError(t *testing.T) {
	err := &BuildAbortedError{Path: "roads.rec", Cause: ErrResourceExhausted}
	assert.ErrorIs(t, err, ErrResourceExhausted)
	assert.Contains(t, err.Error(), "roads.rec")
}
