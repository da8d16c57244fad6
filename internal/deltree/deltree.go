// Package deltree deletes directory trees and reports how many directories,
// files and bytes were removed.
//
// A walk is depth-first and post-order: a directory is removed only after all
// of its entries were. Symbolic links are removed, never followed. The first
// failure aborts the walk and leaves the tree partially deleted; counts are
// only returned for a walk that finished.
package deltree

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"dirsweep/internal/fsops"
)

// DeleteDirectoryTree deletes path and everything below it on the host
// filesystem. A missing path fails with ErrNotFound.
func DeleteDirectoryTree(ctx context.Context, path string, opts ...DeleteOption) (Counters, error) {
	options, err := NewDeleteOptions(opts...)
	if err != nil {
		return Counters{}, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Counters{}, wrap("abs", path, err)
	}
	return NewWalker(fsops.OSFileSystem{}, options).Walk(ctx, abs)
}

// WalkAndRemoveRoot walks root and then removes root itself if something
// recreated it in the meantime. Failing that last step is reported as a
// *RootRemovalError.
func (w *Walker) WalkAndRemoveRoot(ctx context.Context, root string) (Counters, error) {
	counters, err := w.Walk(ctx, root)
	if err != nil {
		return Counters{}, err
	}
	if err := w.fs.RemoveDir(root); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Counters{}, &RootRemovalError{Path: root, Err: wrap("rmdir", root, err)}
	}
	return counters, nil
}
