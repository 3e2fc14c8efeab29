package ir

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// Key is the structural hash of an element: a compact, prefix-free
// encoding of its coordinates. Two elements are equal iff their keys are.
type Key string

// KeyOf computes the key of a raw coordinate array.
func KeyOf(raw []int) Key {
	buf := make([]byte, 0, len(raw)*2+1)
	buf = binary.AppendUvarint(buf, uint64(len(raw)))
	for _, x := range raw {
		buf = binary.AppendVarint(buf, int64(x))
	}
	return Key(buf)
}

// Element is an immutable fixed-length tuple of non-negative integers.
// The zero Element is the empty tuple.
type Element struct {
	coords []int
}

// NewElement copies coords into a new Element.
func NewElement(coords ...int) Element {
	c := make([]int, len(coords))
	copy(c, coords)
	return Element{coords: c}
}

// Wrap builds an Element that takes ownership of raw. The caller must not
// modify raw afterwards.
func Wrap(raw []int) Element {
	return Element{coords: raw}
}

// Raw returns the backing coordinate array. It must not be modified.
func (e Element) Raw() []int { return e.coords }

// Len returns the number of coordinates.
func (e Element) Len() int { return len(e.coords) }

// At returns coordinate i.
func (e Element) At(i int) int { return e.coords[i] }

// Key returns the structural hash of e.
func (e Element) Key() Key { return KeyOf(e.coords) }

// Equal reports structural equality.
func (e Element) Equal(o Element) bool {
	if len(e.coords) != len(o.coords) {
		return false
	}
	for i, x := range e.coords {
		if o.coords[i] != x {
			return false
		}
	}
	return true
}

// String renders the element as "[a,b,c]".
func (e Element) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, x := range e.coords {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(x))
	}
	sb.WriteByte(']')
	return sb.String()
}

// CompareElements orders elements by length, then lexicographically.
func CompareElements(a, b Element) int {
	if a.Len() != b.Len() {
		return a.Len() - b.Len()
	}
	for i := range a.coords {
		if a.coords[i] != b.coords[i] {
			if a.coords[i] < b.coords[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
