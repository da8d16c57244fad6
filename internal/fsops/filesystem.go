package fsops

import "fmt"

// Kind classifies a filesystem entry without following symbolic links
type Kind int

const (
	KindFile    Kind = iota + 1 // regular file
	KindDir                     // directory
	KindSymlink                 // symbolic link, never dereferenced
	KindOther                   // sockets, fifos, devices
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "directory"
	case KindSymlink:
		return "symlink"
	case KindOther:
		return "other"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Info describes one entry as observed at the moment it was stat'ed or listed.
// Size is only meaningful for KindFile.
type Info struct {
	Path string
	Kind Kind
	Size int64
}

// FileSystem abstracts the operations a tree delete needs
// Enables fake trees in tests to prove ordering and failure handling
type FileSystem interface {
	// Stat describes path with lstat semantics.
	Stat(path string) (Info, error)
	// ReadDir lists the children of a directory sorted by name.
	ReadDir(path string) ([]Info, error)
	// RemoveFile unlinks a non-directory entry.
	RemoveFile(path string) error
	// RemoveDir removes an empty directory.
	RemoveDir(path string) error
	// ClearReadOnly lifts the restriction on path itself. With parent set it
	// also lifts the one its containing directory puts on removing path.
	ClearReadOnly(path string, parent bool) error
}
