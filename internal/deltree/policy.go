package deltree

import (
	"errors"
	"io/fs"

	"dirsweep/internal/fsops"
)

// DeleteEntry removes a single entry: a file, link or special file is
// unlinked, a directory must already be empty. With OverrideReadOnly set, an
// access-restricted failure clears the restriction and retries exactly once.
// Only the entry's own restriction is cleared, never its parent's.
func DeleteEntry(fsys fsops.FileSystem, entry fsops.Info, opts DeleteOptions) error {
	return policy{fs: fsys, opts: opts, root: entry.Path}.remove(entry)
}

type policy struct {
	fs   fsops.FileSystem
	opts DeleteOptions
	// root is the top of the deleted tree; its parent is left untouched.
	root string
	// cleared is told about every restriction lifted by the override.
	cleared func(path string)
}

func (p policy) remove(entry fsops.Info) error {
	err := p.removeOnce(entry)
	if err == nil {
		return nil
	}
	if !p.opts.OverrideReadOnly() || !errors.Is(err, fs.ErrPermission) {
		return wrap("remove", entry.Path, err)
	}

	if cerr := p.fs.ClearReadOnly(entry.Path, entry.Path != p.root); cerr != nil {
		return wrap("remove", entry.Path, errors.Join(err, cerr))
	}
	if p.cleared != nil {
		p.cleared(entry.Path)
	}

	if err := p.removeOnce(entry); err != nil {
		return wrap("remove", entry.Path, err)
	}
	return nil
}

func (p policy) removeOnce(entry fsops.Info) error {
	if entry.Kind == fsops.KindDir {
		return p.fs.RemoveDir(entry.Path)
	}
	return p.fs.RemoveFile(entry.Path)
}
