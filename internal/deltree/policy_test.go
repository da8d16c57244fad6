package deltree

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirsweep/internal/fsops"
)

func overrideOpts(t *testing.T) DeleteOptions {
	t.Helper()
	opts, err := NewDeleteOptions(OverrideReadOnly)
	require.NoError(t, err)
	return opts
}

func TestDeleteEntryPlain(t *testing.T) {
	f := fsops.NewFakeFileSystem()
	f.AddFile("/d/f", 1)

	err := DeleteEntry(f, fsops.Info{Path: "/d/f", Kind: fsops.KindFile, Size: 1}, DeleteOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"rm:/d/f"}, f.Calls())
}

func TestDeleteEntryNonEmptyDirectory(t *testing.T) {
	f := fsops.NewFakeFileSystem()
	f.AddFile("/d/f", 1)

	err := DeleteEntry(f, fsops.Info{Path: "/d", Kind: fsops.KindDir}, overrideOpts(t))
	assert.ErrorIs(t, err, ErrIOFailure)
	assert.ErrorIs(t, err, fsops.ErrDirNotEmpty)
	// Not a permission failure, so no retry
	assert.Equal(t, []string{"rmdir:/d"}, f.Calls())
}

func TestDeleteEntryOverrideRetriesOnce(t *testing.T) {
	f := fsops.NewFakeFileSystem()
	f.AddFile("/d/f", 1)
	f.SetReadOnly("/d/f", true)

	err := DeleteEntry(f, fsops.Info{Path: "/d/f", Kind: fsops.KindFile}, overrideOpts(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"rm:/d/f", "chmod:/d/f", "rm:/d/f"}, f.Calls())
	assert.False(t, f.Exists("/d/f"))
}

func TestDeleteEntryOverrideLeavesParent(t *testing.T) {
	f := fsops.NewFakeFileSystem()
	f.AddFile("/d/f", 1)
	f.SetReadOnly("/d", true)
	f.SetReadOnly("/d/f", true)

	err := DeleteEntry(f, fsops.Info{Path: "/d/f", Kind: fsops.KindFile}, overrideOpts(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"rm:/d/f", "chmod:/d/f", "rm:/d/f"}, f.Calls())
	assert.True(t, f.IsReadOnly("/d"))
}

func TestDeleteEntryOverrideRetryFails(t *testing.T) {
	f := fsops.NewFakeFileSystem()
	f.AddFile("/d/f", 1)
	denied := &fs.PathError{Op: "unlink", Path: "/d/f", Err: fs.ErrPermission}
	f.Fail("rm", "/d/f", denied)

	err := DeleteEntry(f, fsops.Info{Path: "/d/f", Kind: fsops.KindFile}, overrideOpts(t))

	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, []string{"rm:/d/f", "chmod:/d/f", "rm:/d/f"}, f.Calls())
	assert.True(t, f.Exists("/d/f"))
}

func TestDeleteEntryClearFails(t *testing.T) {
	f := fsops.NewFakeFileSystem()
	f.AddFile("/d/f", 1)
	f.SetReadOnly("/d/f", true)
	chmodErr := errors.New("operation not supported")
	f.Fail("chmod", "/d/f", chmodErr)

	err := DeleteEntry(f, fsops.Info{Path: "/d/f", Kind: fsops.KindFile}, overrideOpts(t))

	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.ErrorIs(t, err, chmodErr)
	assert.Equal(t, []string{"rm:/d/f", "chmod:/d/f"}, f.Calls())
}

func TestDeleteEntryOtherFailureNotRetried(t *testing.T) {
	f := fsops.NewFakeFileSystem()
	f.AddFile("/d/f", 1)
	busy := errors.New("device or resource busy")
	f.Fail("rm", "/d/f", busy)

	err := DeleteEntry(f, fsops.Info{Path: "/d/f", Kind: fsops.KindFile}, overrideOpts(t))

	assert.ErrorIs(t, err, ErrIOFailure)
	assert.Equal(t, []string{"rm:/d/f"}, f.Calls())
}

func TestDeleteEntrySymlinkIsLeaf(t *testing.T) {
	f := fsops.NewFakeFileSystem()
	f.AddSymlink("/d/link")

	require.NoError(t, DeleteEntry(f, fsops.Info{Path: "/d/link", Kind: fsops.KindSymlink}, DeleteOptions{}))
	assert.Equal(t, []string{"rm:/d/link"}, f.Calls())
}
