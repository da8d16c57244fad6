package fsops

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeFileSystemReadDirSorted(t *testing.T) {
	f := NewFakeFileSystem()
	f.AddFile("/root/b.txt", 2)
	f.AddFile("/root/a.txt", 1)
	f.AddDir("/root/c")
	f.AddSymlink("/root/link")

	children, err := f.ReadDir("/root")
	require.NoError(t, err)

	assert.Equal(t, []Info{
		{Path: "/root/a.txt", Kind: KindFile, Size: 1},
		{Path: "/root/b.txt", Kind: KindFile, Size: 2},
		{Path: "/root/c", Kind: KindDir},
		{Path: "/root/link", Kind: KindSymlink},
	}, children)
}

func TestFakeFileSystemReadOnly(t *testing.T) {
	f := NewFakeFileSystem()
	f.AddFile("/root/locked", 3)
	f.SetReadOnly("/root/locked", true)

	err := f.RemoveFile("/root/locked")
	assert.True(t, errors.Is(err, fs.ErrPermission))
	assert.True(t, f.Exists("/root/locked"))

	require.NoError(t, f.ClearReadOnly("/root/locked", false))
	assert.False(t, f.IsReadOnly("/root/locked"))
	require.NoError(t, f.RemoveFile("/root/locked"))
	assert.False(t, f.Exists("/root/locked"))
}

func TestFakeFileSystemClearReadOnlyParent(t *testing.T) {
	f := NewFakeFileSystem()
	f.AddFile("/root/dir/f", 1)
	f.SetReadOnly("/root/dir", true)
	f.SetReadOnly("/root/dir/f", true)

	require.NoError(t, f.ClearReadOnly("/root/dir/f", false))
	assert.True(t, f.IsReadOnly("/root/dir"))
	assert.Equal(t, []string{"chmod:/root/dir/f"}, f.Calls())

	f.SetReadOnly("/root/dir/f", true)
	require.NoError(t, f.ClearReadOnly("/root/dir/f", true))
	assert.False(t, f.IsReadOnly("/root/dir"))
	assert.Equal(t, []string{"chmod:/root/dir/f", "chmod:/root/dir/f", "chmod:/root/dir"}, f.Calls())
}

func TestFakeFileSystemRemoveDirNotEmpty(t *testing.T) {
	f := NewFakeFileSystem()
	f.AddFile("/root/file", 1)

	err := f.RemoveDir("/root")
	assert.True(t, errors.Is(err, ErrDirNotEmpty))

	require.NoError(t, f.RemoveFile("/root/file"))
	require.NoError(t, f.RemoveDir("/root"))
	assert.False(t, f.Exists("/root"))
}

func TestFakeFileSystemInjectedFailureAndCalls(t *testing.T) {
	f := NewFakeFileSystem()
	f.AddFile("/root/file", 1)
	boom := errors.New("boom")
	f.Fail("rm", "/root/file", boom)

	_, err := f.Stat("/root")
	require.NoError(t, err)
	assert.ErrorIs(t, f.RemoveFile("/root/file"), boom)
	assert.True(t, f.Exists("/root/file"))

	assert.Equal(t, []string{"stat:/root", "rm:/root/file"}, f.Calls())
}

func TestFakeFileSystemStatMissing(t *testing.T) {
	f := NewFakeFileSystem()
	_, err := f.Stat("/nope")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
