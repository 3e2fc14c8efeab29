package seq

import "slices"

// Iterator is a restartable forward-only view of the NewSequenceAtLeast
// order. Next returns copies, so callers may keep them.
type Iterator struct {
	start   []int
	current []int
	max     int
	min     int
	inc     Incrementor
	hasNext bool
}

// NewIterator starts at start. An empty start yields nothing.
func NewIterator(start []int, max, min int) *Iterator {
	it := &Iterator{start: slices.Clone(start), max: max, min: min}
	it.Reset()
	return it
}

// Reset rewinds to the start tuple.
func (it *Iterator) Reset() {
	it.current = slices.Clone(it.start)
	it.inc = NewSequenceAtLeast(it.current, it.max, it.min)
	it.hasNext = len(it.current) > 0
}

// HasNext reports whether Next will return a tuple.
func (it *Iterator) HasNext() bool { return it.hasNext }

// Next returns the current tuple and advances.
func (it *Iterator) Next() []int {
	out := slices.Clone(it.current)
	it.hasNext = it.inc.Increment()
	return out
}
