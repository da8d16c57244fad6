package deltree

import "fmt"

// Counters tallies what a walk deleted. Values are merged with Add, which is
// associative and commutative, so sibling subtrees can be summed in any order.
type Counters struct {
	Directories int64 `json:"directories"`
	Files       int64 `json:"files"`
	Bytes       int64 `json:"bytes"`
}

// Add returns the field-wise sum of c and o.
func (c Counters) Add(o Counters) Counters {
	return Counters{
		Directories: c.Directories + o.Directories,
		Files:       c.Files + o.Files,
		Bytes:       c.Bytes + o.Bytes,
	}
}

// Sum adds any number of Counters.
func Sum(cs ...Counters) Counters {
	var total Counters
	for _, c := range cs {
		total = total.Add(c)
	}
	return total
}

func (c Counters) String() string {
	return fmt.Sprintf("directories=%d files=%d bytes=%d", c.Directories, c.Files, c.Bytes)
}
