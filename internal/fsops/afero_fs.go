package fsops

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// AferoFileSystem adapts an afero.Fs so trees can live in memory or behind
// any other afero backend
type AferoFileSystem struct {
	Fs afero.Fs
}

// NewAferoFileSystem wraps fsys
func NewAferoFileSystem(fsys afero.Fs) *AferoFileSystem {
	return &AferoFileSystem{Fs: fsys}
}

func (a *AferoFileSystem) Stat(path string) (Info, error) {
	fi, err := a.lstat(path)
	if err != nil {
		return Info{}, err
	}
	return infoFromFileInfo(path, fi), nil
}

func (a *AferoFileSystem) ReadDir(path string) ([]Info, error) {
	// afero.ReadDir sorts by name
	fis, err := afero.ReadDir(a.Fs, path)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(fis))
	for _, fi := range fis {
		out = append(out, infoFromFileInfo(filepath.Join(path, fi.Name()), fi))
	}
	return out, nil
}

func (a *AferoFileSystem) RemoveFile(path string) error {
	fi, err := a.lstat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return &fs.PathError{Op: "unlink", Path: path, Err: errors.New("is a directory")}
	}
	return a.Fs.Remove(path)
}

func (a *AferoFileSystem) RemoveDir(path string) error {
	fis, err := afero.ReadDir(a.Fs, path)
	if err != nil {
		return err
	}
	// Some backends remove populated directories on Remove
	if len(fis) > 0 {
		return &fs.PathError{Op: "rmdir", Path: path, Err: ErrDirNotEmpty}
	}
	return a.Fs.Remove(path)
}

func (a *AferoFileSystem) ClearReadOnly(path string, parent bool) error {
	fi, err := a.lstat(path)
	if err != nil {
		return err
	}
	if fi.Mode()&fs.ModeSymlink == 0 {
		if err := a.Fs.Chmod(path, fi.Mode().Perm()|0o200); err != nil {
			return err
		}
	}
	if !parent {
		return nil
	}
	dir := filepath.Dir(path)
	di, err := a.Fs.Stat(dir)
	if err != nil {
		return err
	}
	return a.Fs.Chmod(dir, di.Mode().Perm()|0o300)
}

func (a *AferoFileSystem) lstat(path string) (fs.FileInfo, error) {
	if l, ok := a.Fs.(afero.Lstater); ok {
		fi, _, err := l.LstatIfPossible(path)
		return fi, err
	}
	return a.Fs.Stat(path)
}
