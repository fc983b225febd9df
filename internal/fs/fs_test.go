package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	tmp := t.TempDir()
	lfs := LocalFS{}

	// Test MkdirAll
	dir := filepath.Join(tmp, "subdir")
	assert.NoError(t, lfs.MkdirAll(dir, 0755))

	// Test OpenFile (Create)
	fpath := filepath.Join(dir, "test.txt")
	f, err := lfs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)

	_, err = f.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.NoError(t, f.Sync())

	info, err := f.Stat()
	assert.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())
	assert.NoError(t, f.Close())

	// Rename
	newPath := filepath.Join(dir, "renamed.txt")
	assert.NoError(t, lfs.Rename(fpath, newPath))

	// Truncate
	assert.NoError(t, lfs.Truncate(newPath, 3))
	info3, err := lfs.Stat(newPath)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), info3.Size())

	// Remove
	assert.NoError(t, lfs.Remove(newPath))
	_, err = lfs.Stat(newPath)
	assert.True(t, os.IsNotExist(err))
}

func TestLocalFS_CreateTempAndAvailable(t *testing.T) {
	tmp := t.TempDir()
	lfs := LocalFS{}

	f, err := lfs.CreateTemp(tmp, "qix-test-*")
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, filepath.Base(f.Name()), "qix-test-")
	assert.NotZero(t, f.Fd())

	avail, err := lfs.Available(tmp)
	require.NoError(t, err)
	assert.Greater(t, avail, uint64(0))
}

func TestFaultyFS(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(LocalFS{})

	ffs.SetLimit(5) // Fail after 5 bytes

	fpath := filepath.Join(tmp, "faulty.txt")
	f, err := ffs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)

	n, err := f.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = f.Write([]byte("!"))
	assert.Error(t, err)
	assert.Equal(t, 0, n)

	_, err = f.WriteAt([]byte("!"), 0)
	assert.Error(t, err)

	assert.Equal(t, int64(5), ffs.GetWritten())
	f.Close()

	assert.NoError(t, ffs.Rename(fpath, fpath+".renamed"))
	_, err = ffs.Stat(fpath + ".renamed")
	assert.NoError(t, err)
}

func TestFaultyFS_Rules(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(nil)

	ffs.AddRule("qix-bounds-", Fault{FailOnOpen: true})
	_, err := ffs.CreateTemp(tmp, "qix-bounds-*")
	assert.Error(t, err)

	ffs.AddRule("moving", Fault{FailOnRename: true})
	src := filepath.Join(tmp, "moving.tmp")
	f, err := ffs.OpenFile(src, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte("payload"))
	require.NoError(t, err, "flag-only rules must not limit writes")
	require.NoError(t, f.Close())
	assert.Error(t, ffs.Rename(src, filepath.Join(tmp, "dest")))
}

func TestFaultyFS_Available(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(nil)

	ffs.SetAvailable(0)
	avail, err := ffs.Available(tmp)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), avail)

	ffs.SetAvailable(-1)
	avail, err = ffs.Available(tmp)
	require.NoError(t, err)
	assert.Greater(t, avail, uint64(0))
}

func TestFaultyFS_Delegation(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(LocalFS{})

	dir := filepath.Join(tmp, "subdir")
	assert.NoError(t, ffs.MkdirAll(dir, 0755))

	fpath := filepath.Join(dir, "test.txt")
	f, err := LocalFS{}.OpenFile(fpath, os.O_CREATE, 0644)
	require.NoError(t, err)
	f.Close()
	assert.NoError(t, ffs.Truncate(fpath, 10))

	assert.NoError(t, ffs.Remove(fpath))
}
