package deltree

import (
	"fmt"
	"strings"
)

// DeleteOption alters how individual delete attempts behave
type DeleteOption int

const (
	// OverrideReadOnly clears a read-only or access restriction and retries
	// the delete once. Inside the tree this may widen a directory's mode so
	// its entries can be unlinked; the directory holding the root is never
	// changed.
	OverrideReadOnly DeleteOption = iota + 1
)

var optionNames = map[DeleteOption]string{
	OverrideReadOnly: "override-read-only",
}

func (o DeleteOption) String() string {
	if name, ok := optionNames[o]; ok {
		return name
	}
	return fmt.Sprintf("option(%d)", int(o))
}

// ParseDeleteOption maps a name such as "override-read-only" to its option.
func ParseDeleteOption(name string) (DeleteOption, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	for opt, n := range optionNames {
		if n == normalized {
			return opt, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOptions, name)
}

// DeleteOptions is an immutable set of options. The zero value is the empty set.
type DeleteOptions struct {
	bits uint32
}

// NewDeleteOptions builds a set, rejecting options it does not know.
func NewDeleteOptions(opts ...DeleteOption) (DeleteOptions, error) {
	var set DeleteOptions
	for _, o := range opts {
		if _, ok := optionNames[o]; !ok {
			return DeleteOptions{}, fmt.Errorf("%w: %d", ErrInvalidOptions, int(o))
		}
		set.bits |= 1 << uint(o-1)
	}
	return set, nil
}

// ParseDeleteOptions builds a set from option names.
func ParseDeleteOptions(names []string) (DeleteOptions, error) {
	opts := make([]DeleteOption, 0, len(names))
	for _, name := range names {
		o, err := ParseDeleteOption(name)
		if err != nil {
			return DeleteOptions{}, err
		}
		opts = append(opts, o)
	}
	return NewDeleteOptions(opts...)
}

func (s DeleteOptions) Has(o DeleteOption) bool {
	if o < 1 || o > 32 {
		return false
	}
	return s.bits&(1<<uint(o-1)) != 0
}

func (s DeleteOptions) OverrideReadOnly() bool {
	return s.Has(OverrideReadOnly)
}

func (s DeleteOptions) IsEmpty() bool {
	return s.bits == 0
}

// List returns the options in declaration order.
func (s DeleteOptions) List() []DeleteOption {
	var out []DeleteOption
	for o := OverrideReadOnly; o <= OverrideReadOnly; o++ {
		if s.Has(o) {
			out = append(out, o)
		}
	}
	return out
}

func (s DeleteOptions) String() string {
	opts := s.List()
	if len(opts) == 0 {
		return "none"
	}
	names := make([]string, len(opts))
	for i, o := range opts {
		names[i] = o.String()
	}
	return strings.Join(names, ",")
}
