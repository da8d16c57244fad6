package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath       = errors.New("invalid path")
	ErrProtectedPath     = errors.New("protected path")
	ErrContainsProtected = errors.New("tree contains a protected path")
	ErrOutsideAllowed    = errors.New("outside allowed roots")
	ErrTraversal         = errors.New("path traversal detected")
	ErrSymlinkEscape     = errors.New("symlink escape detected")
)

// Violation is returned when a delete target fails validation. Reason is one
// of the sentinel errors above.
type Violation struct {
	Path   string
	Reason error
}

func (v *Violation) Error() string {
	return fmt.Sprintf("refusing to delete %s: %v", v.Path, v.Reason)
}

func (v *Violation) Unwrap() error {
	return v.Reason
}

// Validator decides whether a directory tree may be swept
type Validator struct {
	AllowedRoots   []string
	ProtectedPaths []string
}

// NewValidator creates a validator with allowed roots and optional additional protected paths
func NewValidator(allowed []string, extraProtected []string) *Validator {
	return &Validator{
		AllowedRoots:   normalizeRoots(allowed),
		ProtectedPaths: defaultProtected(normalizeRoots(extraProtected)),
	}
}

// ValidateDeleteTarget authorizes deleting path and everything below it.
// Failures are *Violation values wrapping one of the sentinel errors.
func (v *Validator) ValidateDeleteTarget(path string) error {
	p, err := NormalizePath(path)
	if err != nil {
		return &Violation{Path: path, Reason: err}
	}

	if IsProtectedPath(p, v.ProtectedPaths) {
		return &Violation{Path: p, Reason: ErrProtectedPath}
	}

	// A recursive delete also takes out everything below the target
	if ContainsProtectedPath(p, v.ProtectedPaths) {
		return &Violation{Path: p, Reason: ErrContainsProtected}
	}

	if !IsWithinAllowedRoots(p, v.AllowedRoots) {
		return &Violation{Path: p, Reason: ErrOutsideAllowed}
	}

	if DetectTraversal(path) {
		return &Violation{Path: p, Reason: ErrTraversal}
	}

	escaped, err := DetectSymlinkEscape(p, v.AllowedRoots)
	if err != nil {
		// A missing target is reported by the walk itself
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if escaped {
		return &Violation{Path: p, Reason: ErrSymlinkEscape}
	}

	return nil
}

// NormalizePath converts path to absolute, cleaned form
func NormalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ErrInvalidPath
	}
	return filepath.Clean(abs), nil
}

// DetectTraversal blocks any ".." segment in raw input
func DetectTraversal(raw string) bool {
	for _, p := range strings.Split(filepath.ToSlash(raw), "/") {
		if p == ".." {
			return true
		}
	}
	return false
}

// IsWithinAllowedRoots checks if path is within any allowed root
func IsWithinAllowedRoots(path string, allowedRoots []string) bool {
	p := filepath.Clean(path)
	for _, r := range allowedRoots {
		if hasPathPrefix(p, r) {
			return true
		}
	}
	return false
}

// DetectSymlinkEscape resolves symlinks and checks if resolved path escapes allowed roots
func DetectSymlinkEscape(cleanAbs string, allowedRoots []string) (bool, error) {
	resolved, err := filepath.EvalSymlinks(cleanAbs)
	if err != nil {
		return false, err
	}
	resolvedAbs, err := filepath.Abs(resolved)
	if err != nil {
		return false, err
	}
	return !IsWithinAllowedRoots(filepath.Clean(resolvedAbs), allowedRoots), nil
}

// IsProtectedPath checks if path is, or lies below, a protected path.
// A protected "/" only blocks the filesystem root itself.
func IsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)

	if p == string(os.PathSeparator) {
		return true
	}

	for _, prot := range protected {
		prot = filepath.Clean(prot)
		if prot == string(os.PathSeparator) {
			continue
		}
		if hasPathPrefix(p, prot) {
			return true
		}
	}
	return false
}

// ContainsProtectedPath checks if a protected path lies below path
func ContainsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)
	for _, prot := range protected {
		prot = filepath.Clean(prot)
		if prot != p && hasPathPrefix(prot, p) {
			return true
		}
	}
	return false
}

// hasPathPrefix reports whether path is prefix or lies below it
func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	if prefix == string(os.PathSeparator) {
		return strings.HasPrefix(path, prefix)
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

// normalizeRoots converts slice of roots to absolute, cleaned paths
func normalizeRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		out = append(out, filepath.Clean(abs))
	}
	return out
}

// defaultProtected returns the base set of protected paths plus any extras
func defaultProtected(extra []string) []string {
	base := []string{
		"/",
		"/etc",
		"/bin",
		"/usr",
		"/boot",
		"/lib",
		"/lib64",
		"/sbin",
		"/proc",
		"/sys",
		"/dev",
		"/var/lib/dirsweep",
		"/etc/dirsweep",
	}
	return append(base, extra...)
}
