package deltree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// Error kinds surfaced by a walk. Every walk failure matches exactly one of
// ErrNotFound, ErrAccessDenied or ErrIOFailure via errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrAccessDenied   = errors.New("access denied")
	ErrIOFailure      = errors.New("i/o failure")
	ErrInvalidOptions = errors.New("invalid delete option")
	ErrTooDeep        = errors.New("maximum walk depth exceeded")
)

// PathError records the failing operation, the entry it failed on, the error
// kind and the underlying platform error.
type PathError struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *PathError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// RootRemovalError reports that the final removal of a walked root failed,
// as opposed to a failure part way through the walk.
type RootRemovalError struct {
	Path string
	Err  error
}

func (e *RootRemovalError) Error() string {
	return fmt.Sprintf("remove root %s: %v", e.Path, e.Err)
}

func (e *RootRemovalError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind sentinel carried by err, or nil.
func KindOf(err error) error {
	for _, kind := range []error{ErrInvalidOptions, ErrNotFound, ErrAccessDenied, ErrIOFailure} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// KindName is KindOf as a short label for logs and metrics.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrNotFound:
		return "not_found"
	case ErrAccessDenied:
		return "access_denied"
	case ErrIOFailure:
		return "io_failure"
	case ErrInvalidOptions:
		return "invalid_options"
	}
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	default:
		return "unknown"
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrAccessDenied
	default:
		return ErrIOFailure
	}
}

// wrap turns a platform error into a *PathError. Errors that already carry a
// kind pass through untouched.
func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PathError
	if errors.As(err, &pe) {
		return err
	}
	return &PathError{Op: op, Path: path, Kind: classify(err), Err: err}
}
