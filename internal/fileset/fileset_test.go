package fileset

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSet(t *testing.T) (*FileSet, string) {
	t.Helper()
	dir := t.TempDir()
	paths := Paths{
		KindData:    filepath.Join(dir, "roads.rec"),
		KindOffsets: filepath.Join(dir, "roads.rdx"),
		KindIndex:   filepath.Join(dir, "roads.qix"),
	}
	for _, k := range []Kind{KindData, KindOffsets, KindIndex} {
		require.NoError(t, os.WriteFile(paths[k], []byte(k.String()), 0o644))
	}
	return New(paths, Config{}), dir
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "data", KindData.String())
	assert.Equal(t, "attributes", KindAttributes.String())
	assert.Equal(t, "kind(7)", Kind(7).String())
	assert.Len(t, Kinds(), 4)
}

func TestReadersCoexist_WriterExcluded(t *testing.T) {
	s, _ := newTestSet(t)
	a, b, w := NewRequestor("a"), NewRequestor("b"), NewRequestor("writer")

	ra, err := s.TryAcquireRead(KindIndex, a)
	require.NoError(t, err)
	rb, err := s.TryAcquireRead(KindIndex, b)
	require.NoError(t, err)
	assert.Equal(t, 2, s.NumLocks())

	_, err = s.TryAcquireWrite(KindIndex, w)
	assert.ErrorIs(t, err, ErrLocked)

	// Other kinds are independent.
	wd, err := s.TryAcquireWrite(KindData, w)
	require.NoError(t, err)
	wd.Release()

	ra.Release()
	ra.Release()
	_, err = s.TryAcquireWrite(KindIndex, w)
	assert.ErrorIs(t, err, ErrLocked)

	rb.Release()
	wt, err := s.TryAcquireWrite(KindIndex, w)
	require.NoError(t, err)
	assert.Equal(t, ModeWrite, wt.Mode())

	_, err = s.TryAcquireRead(KindIndex, a)
	assert.ErrorIs(t, err, ErrLocked)

	wt.Release()
	assert.Equal(t, 0, s.NumLocks())
}

func TestAcquireWrite_WaitsForReaders(t *testing.T) {
	s, _ := newTestSet(t)
	r, w := NewRequestor("reader"), NewRequestor("writer")

	rt, err := s.AcquireRead(context.Background(), KindIndex, r)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = s.AcquireWrite(ctx, KindIndex, w)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	done := make(chan *Ticket)
	go func() {
		wt, err := s.AcquireWrite(context.Background(), KindIndex, w)
		assert.NoError(t, err)
		done <- wt
	}()

	time.Sleep(20 * time.Millisecond)
	rt.Release()

	select {
	case wt := <-done:
		wt.Release()
	case <-time.After(2 * time.Second):
		t.Fatal("writer not granted after reader released")
	}
}

func TestUpgrade_RelinquishAndRegainReads(t *testing.T) {
	s, _ := newTestSet(t)
	owner, other := NewRequestor("owner"), NewRequestor("other")

	r1, err := s.TryAcquireRead(KindIndex, owner)
	require.NoError(t, err)

	w, err := s.TryAcquireWrite(KindIndex, owner)
	require.NoError(t, err)

	_, err = s.TryAcquireWrite(KindIndex, owner)
	assert.Error(t, err)

	_, err = s.TryAcquireRead(KindIndex, other)
	assert.ErrorIs(t, err, ErrLocked)

	// Reads nested under the owner's write are granted.
	r2, err := s.TryAcquireRead(KindIndex, owner)
	require.NoError(t, err)

	w.Release()

	// Both reads are live again and still exclude writers.
	_, err = s.TryAcquireWrite(KindIndex, other)
	assert.ErrorIs(t, err, ErrLocked)
	or, err := s.TryAcquireRead(KindIndex, other)
	require.NoError(t, err)
	or.Release()

	r1.Release()
	_, err = s.TryAcquireWrite(KindIndex, other)
	assert.ErrorIs(t, err, ErrLocked)

	r2.Release()
	ow, err := s.TryAcquireWrite(KindIndex, other)
	require.NoError(t, err)
	ow.Release()
}

func TestUpgrade_ReadReleasedDuringWrite(t *testing.T) {
	s, _ := newTestSet(t)
	owner, other := NewRequestor("owner"), NewRequestor("other")

	r, err := s.TryAcquireRead(KindIndex, owner)
	require.NoError(t, err)
	w, err := s.TryAcquireWrite(KindIndex, owner)
	require.NoError(t, err)

	r.Release()
	_, err = s.TryAcquireRead(KindIndex, other)
	assert.ErrorIs(t, err, ErrLocked, "write must stay exclusive")

	w.Release()
	ow, err := s.TryAcquireWrite(KindIndex, other)
	require.NoError(t, err)
	ow.Release()
	assert.Equal(t, 0, s.NumLocks())
}

func TestUpgrade_OwnReadReleasedWhileWaiting(t *testing.T) {
	s, _ := newTestSet(t)
	owner, other := NewRequestor("owner"), NewRequestor("other")

	or, err := s.TryAcquireRead(KindIndex, other)
	require.NoError(t, err)
	r, err := s.TryAcquireRead(KindIndex, owner)
	require.NoError(t, err)

	granted := make(chan *Ticket, 1)
	go func() {
		w, err := s.AcquireWrite(context.Background(), KindIndex, owner)
		if err == nil {
			granted <- w
		}
		close(granted)
	}()

	// Let the write start waiting, then drop the owner's own read.
	time.Sleep(50 * time.Millisecond)
	r.Release()

	select {
	case <-granted:
		t.Fatal("write granted while another requestor still holds a read")
	case <-time.After(100 * time.Millisecond):
	}

	or.Release()

	select {
	case w, ok := <-granted:
		require.True(t, ok)
		_, err := s.TryAcquireRead(KindIndex, other)
		assert.ErrorIs(t, err, ErrLocked)
		w.Release()
	case <-time.After(2 * time.Second):
		t.Fatal("write not granted after the last read was released")
	}
	assert.Equal(t, 0, s.NumLocks())
}

func TestHolders_AndClose(t *testing.T) {
	var logs bytes.Buffer
	dir := t.TempDir()
	s := New(Paths{KindIndex: filepath.Join(dir, "x.qix")}, Config{Logger: slog.New(slog.NewTextHandler(&logs, nil))})

	leaky := NewRequestor("leaky-reader")
	_, err := s.TryAcquireRead(KindIndex, leaky)
	require.NoError(t, err)

	holders := s.Holders(KindIndex)
	require.Len(t, holders, 1)
	assert.Equal(t, leaky, holders[0].Requestor)
	assert.Equal(t, ModeRead, holders[0].Mode)
	assert.Contains(t, holders[0].String(), "leaky-reader")

	assert.Equal(t, 1, s.Close())
	assert.Equal(t, 0, s.Close())
	assert.Contains(t, logs.String(), "lock not released before close")
	assert.Contains(t, logs.String(), "level=ERROR")

	_, err = s.TryAcquireRead(KindIndex, leaky)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestUntrackedKind(t *testing.T) {
	s, _ := newTestSet(t)
	_, err := s.TryAcquireRead(KindAttributes, NewRequestor(""))
	assert.ErrorIs(t, err, ErrUntracked)
	assert.False(t, s.Exists(KindAttributes))
	assert.True(t, s.Exists(KindData))

	_, err = s.Stat(KindAttributes)
	assert.ErrorIs(t, err, ErrUntracked)
}

func TestOpenRead_ReleasesOnClose(t *testing.T) {
	s, _ := newTestSet(t)
	req := NewRequestor("query")

	f, err := s.OpenRead(context.Background(), KindIndex, req)
	require.NoError(t, err)
	assert.Equal(t, 1, s.NumLocks())

	buf := make([]byte, 5)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "index", string(buf[:n]))

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.True(t, f.Ticket().Released())
	assert.Equal(t, 0, s.NumLocks())
}

func TestOpenWrite_ExcludesReaders(t *testing.T) {
	s, _ := newTestSet(t)

	f, err := s.OpenWrite(context.Background(), KindAttributes, NewRequestor("w"))
	assert.ErrorIs(t, err, ErrUntracked)
	assert.Nil(t, f)

	f, err = s.OpenWrite(context.Background(), KindOffsets, NewRequestor("w"))
	require.NoError(t, err)
	_, err = s.TryAcquireRead(KindOffsets, NewRequestor("r"))
	assert.ErrorIs(t, err, ErrLocked)
	require.NoError(t, f.Close())
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	dir := t.TempDir()
	paths := Paths{KindData: filepath.Join(dir, "a.rec"), KindIndex: filepath.Join(dir, "a.qix")}

	s1 := reg.Get(paths, Config{})
	s2 := reg.Get(Paths{KindData: filepath.Join(dir, ".", "a.rec")}, Config{})
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, reg.Len())

	tk, err := s1.TryAcquireRead(KindIndex, NewRequestor("r"))
	require.NoError(t, err)

	assert.Equal(t, 0, reg.Release(paths))
	assert.Equal(t, 1, reg.Len())

	// The last release closes the set and reports the leaked ticket.
	assert.Equal(t, 1, reg.Release(paths))
	assert.Equal(t, 0, reg.Len())
	tk.Release()

	_, err = s1.TryAcquireRead(KindIndex, NewRequestor("late"))
	assert.ErrorIs(t, err, ErrClosed)

	s3 := reg.Get(paths, Config{})
	assert.NotSame(t, s1, s3)
	assert.Equal(t, 0, reg.Release(paths))
	assert.Equal(t, 0, reg.Release(paths))
}

func TestLockProcess(t *testing.T) {
	s, _ := newTestSet(t)

	l, err := s.LockProcess(context.Background(), KindIndex, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, s.Path(KindIndex)+".lock", l.Path())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = s.LockProcess(ctx, KindIndex, 5*time.Millisecond)
	assert.Error(t, err)

	require.NoError(t, l.Unlock())

	l2, err := s.LockProcess(context.Background(), KindIndex, 5*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, l2.Unlock())
}
