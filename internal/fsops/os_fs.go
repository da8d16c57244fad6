package fsops

import (
	"io/fs"
	"os"
	"path/filepath"
)

// OSFileSystem implements FileSystem using real os package calls
type OSFileSystem struct{}

func (OSFileSystem) Stat(path string) (Info, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return Info{}, err
	}
	return infoFromFileInfo(path, fi), nil
}

func (OSFileSystem) ReadDir(path string) ([]Info, error) {
	// os.ReadDir returns entries sorted by filename
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	out := make([]Info, 0, len(entries))
	for _, entry := range entries {
		child := filepath.Join(path, entry.Name())
		if entry.Type().IsRegular() {
			// Size needs the full stat; other kinds are known from the dirent type
			fi, err := entry.Info()
			if err != nil {
				return nil, err
			}
			out = append(out, infoFromFileInfo(child, fi))
			continue
		}
		out = append(out, Info{Path: child, Kind: kindFromMode(entry.Type())})
	}
	return out, nil
}

func (OSFileSystem) RemoveFile(path string) error {
	return removeFile(path)
}

func (OSFileSystem) RemoveDir(path string) error {
	return removeDir(path)
}

func (OSFileSystem) ClearReadOnly(path string, parent bool) error {
	return clearReadOnly(path, parent)
}

func infoFromFileInfo(path string, fi fs.FileInfo) Info {
	info := Info{Path: path, Kind: kindFromMode(fi.Mode())}
	if info.Kind == KindFile {
		info.Size = fi.Size()
	}
	return info
}

func kindFromMode(mode fs.FileMode) Kind {
	switch {
	case mode.IsRegular():
		return KindFile
	case mode.IsDir():
		return KindDir
	case mode&fs.ModeSymlink != 0:
		return KindSymlink
	default:
		return KindOther
	}
}
