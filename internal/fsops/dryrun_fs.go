package fsops

// DryRunFileSystem reads through to Base but turns every mutation into a
// no-op, so a walk over it counts a tree without touching it.
type DryRunFileSystem struct {
	Base FileSystem
}

// NewDryRunFileSystem wraps base
func NewDryRunFileSystem(base FileSystem) *DryRunFileSystem {
	return &DryRunFileSystem{Base: base}
}

func (d *DryRunFileSystem) Stat(path string) (Info, error) {
	return d.Base.Stat(path)
}

func (d *DryRunFileSystem) ReadDir(path string) ([]Info, error) {
	return d.Base.ReadDir(path)
}

func (d *DryRunFileSystem) RemoveFile(string) error { return nil }

func (d *DryRunFileSystem) RemoveDir(string) error { return nil }

func (d *DryRunFileSystem) ClearReadOnly(string, bool) error { return nil }
