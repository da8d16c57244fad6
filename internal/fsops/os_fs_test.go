package fsops

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystemStatAndReadDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "b"), []byte("12345"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "a"), 0o755))

	var osfs OSFileSystem

	info, err := osfs.Stat(root)
	require.NoError(t, err)
	assert.Equal(t, KindDir, info.Kind)

	children, err := osfs.ReadDir(root)
	require.NoError(t, err)
	assert.Equal(t, []Info{
		{Path: filepath.Join(root, "a"), Kind: KindDir},
		{Path: filepath.Join(root, "b"), Kind: KindFile, Size: 5},
	}, children)

	_, err = osfs.Stat(filepath.Join(root, "missing"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestOSFileSystemSymlinkNotFollowed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	target := t.TempDir()
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(target, link))

	var osfs OSFileSystem
	info, err := osfs.Stat(link)
	require.NoError(t, err)
	assert.Equal(t, KindSymlink, info.Kind)

	require.NoError(t, osfs.RemoveFile(link))
	_, err = os.Stat(target)
	assert.NoError(t, err, "link target must survive")
}

func TestOSFileSystemRemoveDirNotEmpty(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "d")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), nil, 0o644))

	var osfs OSFileSystem
	assert.Error(t, osfs.RemoveDir(dir))

	require.NoError(t, osfs.RemoveFile(filepath.Join(dir, "f")))
	require.NoError(t, osfs.RemoveDir(dir))
	_, err := os.Lstat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestOSFileSystemClearReadOnly(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX permission semantics")
	}
	root := t.TempDir()
	dir := filepath.Join(root, "locked")
	require.NoError(t, os.Mkdir(dir, 0o755))
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o444))
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	var osfs OSFileSystem
	require.NoError(t, osfs.ClearReadOnly(file, false))

	fi, err := os.Stat(file)
	require.NoError(t, err)
	assert.NotZero(t, fi.Mode().Perm()&0o200)

	// Without parent the containing directory keeps its mode
	di, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o555), di.Mode().Perm())

	require.NoError(t, osfs.ClearReadOnly(file, true))
	di, err = os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o755), di.Mode().Perm())
}
