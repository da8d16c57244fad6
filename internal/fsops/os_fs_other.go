//go:build !unix

package fsops

import (
	"io/fs"
	"os"
)

func removeFile(path string) error {
	return os.Remove(path)
}

func removeDir(path string) error {
	return os.Remove(path)
}

// clearReadOnly drops the read-only attribute; on Windows Chmod only toggles
// that bit. The parent's attribute does not restrict removal there.
func clearReadOnly(path string, _ bool) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if fi.Mode()&fs.ModeSymlink != 0 {
		return nil
	}
	return os.Chmod(path, fi.Mode().Perm()|0o200)
}
