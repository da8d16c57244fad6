//go:build unix

package fsops

import (
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

func removeFile(path string) error {
	if err := unix.Unlink(path); err != nil {
		return &fs.PathError{Op: "unlink", Path: path, Err: err}
	}
	return nil
}

func removeDir(path string) error {
	if err := unix.Rmdir(path); err != nil {
		return &fs.PathError{Op: "rmdir", Path: path, Err: err}
	}
	return nil
}

// clearReadOnly grants the owner write access to the entry and, with parent
// set, write+search access to its parent, since unlinking is governed by the
// parent's mode.
func clearReadOnly(path string, parent bool) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if fi.Mode()&fs.ModeSymlink == 0 {
		if err := os.Chmod(path, fi.Mode().Perm()|0o200); err != nil {
			return err
		}
	}

	if !parent {
		return nil
	}
	dir := filepath.Dir(path)
	pfi, err := os.Stat(dir)
	if err != nil {
		return err
	}
	return os.Chmod(dir, pfi.Mode().Perm()|0o300)
}
