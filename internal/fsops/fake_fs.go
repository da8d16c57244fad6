package fsops

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
)

// ErrDirNotEmpty is returned by FakeFileSystem.RemoveDir on a populated directory
var ErrDirNotEmpty = errors.New("directory not empty")

type fakeNode struct {
	kind     Kind
	size     int64
	readOnly bool
	children map[string]struct{}
}

// FakeFileSystem implements FileSystem for testing
// Keeps an in-memory tree and records every call made against it
type FakeFileSystem struct {
	mu    sync.Mutex
	nodes map[string]*fakeNode
	fail  map[string]error
	calls []string
}

// NewFakeFileSystem returns an empty tree containing only "/"
func NewFakeFileSystem() *FakeFileSystem {
	return &FakeFileSystem{
		nodes: map[string]*fakeNode{
			"/": {kind: KindDir, children: map[string]struct{}{}},
		},
		fail: make(map[string]error),
	}
}

// AddDir creates a directory and any missing parents
func (f *FakeFileSystem) AddDir(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mkdirAll(filepath.Clean(path))
}

// AddFile creates a regular file of the given size, creating parents
func (f *FakeFileSystem) AddFile(path string, size int64) {
	f.add(path, &fakeNode{kind: KindFile, size: size})
}

// AddSymlink creates a symbolic link entry; the fake never resolves it
func (f *FakeFileSystem) AddSymlink(path string) {
	f.add(path, &fakeNode{kind: KindSymlink})
}

// AddSpecial creates a non-regular, non-directory entry (fifo, socket, device)
func (f *FakeFileSystem) AddSpecial(path string) {
	f.add(path, &fakeNode{kind: KindOther})
}

// SetReadOnly marks path so that removing it fails with a permission error
func (f *FakeFileSystem) SetReadOnly(path string, readOnly bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.nodes[filepath.Clean(path)]; ok {
		n.readOnly = readOnly
	}
}

// IsReadOnly reports the read-only flag of path
func (f *FakeFileSystem) IsReadOnly(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[filepath.Clean(path)]
	return ok && n.readOnly
}

// Fail makes the given operation on path return err. Ops are the call log
// prefixes: "stat", "ls", "rm", "rmdir", "chmod".
func (f *FakeFileSystem) Fail(op, path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op+":"+filepath.Clean(path)] = err
}

// Exists reports whether path is still present
func (f *FakeFileSystem) Exists(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nodes[filepath.Clean(path)]
	return ok
}

// Calls returns a copy of the call log
func (f *FakeFileSystem) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeFileSystem) Stat(path string) (Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path = filepath.Clean(path)
	if err := f.record("stat", path); err != nil {
		return Info{}, err
	}
	n, ok := f.nodes[path]
	if !ok {
		return Info{}, &fs.PathError{Op: "lstat", Path: path, Err: fs.ErrNotExist}
	}
	return Info{Path: path, Kind: n.kind, Size: n.size}, nil
}

func (f *FakeFileSystem) ReadDir(path string) ([]Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path = filepath.Clean(path)
	if err := f.record("ls", path); err != nil {
		return nil, err
	}
	n, ok := f.nodes[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	if n.kind != KindDir {
		return nil, &fs.PathError{Op: "readdirent", Path: path, Err: errors.New("not a directory")}
	}

	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Info, 0, len(names))
	for _, name := range names {
		child := filepath.Join(path, name)
		cn := f.nodes[child]
		out = append(out, Info{Path: child, Kind: cn.kind, Size: cn.size})
	}
	return out, nil
}

func (f *FakeFileSystem) RemoveFile(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	path = filepath.Clean(path)
	if err := f.record("rm", path); err != nil {
		return err
	}
	n, ok := f.nodes[path]
	if !ok {
		return &fs.PathError{Op: "unlink", Path: path, Err: fs.ErrNotExist}
	}
	if n.kind == KindDir {
		return &fs.PathError{Op: "unlink", Path: path, Err: errors.New("is a directory")}
	}
	if n.readOnly {
		return &fs.PathError{Op: "unlink", Path: path, Err: fs.ErrPermission}
	}
	f.unlink(path)
	return nil
}

func (f *FakeFileSystem) RemoveDir(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	path = filepath.Clean(path)
	if err := f.record("rmdir", path); err != nil {
		return err
	}
	n, ok := f.nodes[path]
	if !ok {
		return &fs.PathError{Op: "rmdir", Path: path, Err: fs.ErrNotExist}
	}
	if n.kind != KindDir {
		return &fs.PathError{Op: "rmdir", Path: path, Err: errors.New("not a directory")}
	}
	if n.readOnly {
		return &fs.PathError{Op: "rmdir", Path: path, Err: fs.ErrPermission}
	}
	if len(n.children) > 0 {
		return &fs.PathError{Op: "rmdir", Path: path, Err: ErrDirNotEmpty}
	}
	f.unlink(path)
	return nil
}

// ClearReadOnly clears the flag on path and, with parent set, on its parent
// directory; each one shows up as a chmod call.
func (f *FakeFileSystem) ClearReadOnly(path string, parent bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	path = filepath.Clean(path)
	if err := f.chmod(path); err != nil {
		return err
	}
	if parent && path != "/" {
		return f.chmod(filepath.Dir(path))
	}
	return nil
}

// chmod clears one read-only flag. Callers hold f.mu.
func (f *FakeFileSystem) chmod(path string) error {
	if err := f.record("chmod", path); err != nil {
		return err
	}
	n, ok := f.nodes[path]
	if !ok {
		return &fs.PathError{Op: "chmod", Path: path, Err: fs.ErrNotExist}
	}
	n.readOnly = false
	return nil
}

// record appends to the call log and returns any injected failure.
// Callers hold f.mu.
func (f *FakeFileSystem) record(op, path string) error {
	key := op + ":" + path
	f.calls = append(f.calls, key)
	return f.fail[key]
}

func (f *FakeFileSystem) add(path string, node *fakeNode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path = filepath.Clean(path)
	parent := f.mkdirAll(filepath.Dir(path))
	parent.children[filepath.Base(path)] = struct{}{}
	f.nodes[path] = node
}

func (f *FakeFileSystem) mkdirAll(path string) *fakeNode {
	if n, ok := f.nodes[path]; ok {
		return n
	}
	parent := f.mkdirAll(filepath.Dir(path))
	parent.children[filepath.Base(path)] = struct{}{}
	n := &fakeNode{kind: KindDir, children: map[string]struct{}{}}
	f.nodes[path] = n
	return n
}

func (f *FakeFileSystem) unlink(path string) {
	delete(f.nodes, path)
	if parent, ok := f.nodes[filepath.Dir(path)]; ok {
		delete(parent.children, filepath.Base(path))
	}
}
