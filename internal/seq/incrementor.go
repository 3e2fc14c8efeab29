package seq

// Incrementor advances a tuple in place.
type Incrementor interface {
	Increment() bool
}

// IncrementorFunc adapts a function to Incrementor.
type IncrementorFunc func() bool

// Increment calls f.
func (f IncrementorFunc) Increment() bool { return f() }

// Advance calls inc.Increment n times, stopping early on exhaustion.
func Advance(inc Incrementor, n int) bool {
	for i := 0; i < n; i++ {
		if !inc.Increment() {
			return false
		}
	}
	return true
}

// NewSequence enumerates every tuple in [0,max]^len(a).
func NewSequence(a []int, max int) Incrementor {
	return IncrementorFunc(func() bool {
		for i := len(a) - 1; i >= 0; i-- {
			if a[i] < max {
				a[i]++
				clear(a[i+1:])
				return true
			}
		}
		return false
	})
}

// NewSequenceAtLeast enumerates tuples in [0,max]^len(a) with at least one
// entry >= min. Seed a with the first such tuple, [0,…,0,min].
func NewSequenceAtLeast(a []int, max, min int) Incrementor {
	return IncrementorFunc(func() bool {
		return incrementAtLeast(a, max, min)
	})
}

func incrementAtLeast(a []int, max, min int) bool {
	for i := len(a) - 1; i >= 0; i-- {
		if a[i] < max {
			a[i]++
			clear(a[i+1:])
			if !anyAtLeast(a[:i+1], min) {
				a[len(a)-1] = min
			}
			return true
		}
	}
	return false
}

// NewStrided visits every jump-th tuple of the NewSequenceAtLeast order.
// Workers seeded at offsets 0…jump-1 partition the sequence disjointly.
func NewStrided(a []int, max, min, jump int) Incrementor {
	return IncrementorFunc(func() bool {
		for k := 0; k < jump; k++ {
			if !incrementAtLeast(a, max, min) {
				return false
			}
		}
		return true
	})
}

// NewBlock adds jump to the tuple read as a base max+1 numeral, then skips
// forward to the next tuple with an entry >= min. Worker i of w starts
// with a = [0,…,0,i-w]; its first Increment lands on rank i, so the w
// workers partition the qualifying tuples by rank mod w.
func NewBlock(a []int, max, min, jump int) Incrementor {
	base := max + 1
	last := len(a) - 1
	step := func() bool {
		a[last] += jump
		for i := last; i > 0; i-- {
			if a[i] > max {
				a[i-1] += a[i] / base
				a[i] %= base
			}
		}
		return a[0] <= max
	}
	return IncrementorFunc(func() bool {
		ok := step()
		for ok && !anyAtLeast(a, min) {
			ok = step()
		}
		return ok
	})
}

// NewNondecreasing enumerates nondecreasing tuples in [0,max]^len(a).
func NewNondecreasing(a []int, max int) Incrementor {
	return NewNondecreasingFrom(a, max, 0)
}

// NewNondecreasingFrom enumerates nondecreasing tuples whose last entry is
// at least lastMin.
func NewNondecreasingFrom(a []int, max, lastMin int) Incrementor {
	return IncrementorFunc(func() bool {
		if len(a) == 0 || a[0] >= max {
			return false
		}
		for i := len(a) - 1; i >= 0; i-- {
			if a[i] < max {
				k := a[i] + 1
				for j := i; j < len(a); j++ {
					a[j] = k
				}
				if a[len(a)-1] < lastMin {
					a[len(a)-1] = lastMin
				}
				break
			}
		}
		return true
	})
}

// NewIncreasing enumerates strictly increasing tuples in [0,max]^len(a).
// Seed a with [0,1,…,len(a)-1].
func NewIncreasing(a []int, max int) Incrementor {
	shadow := make([]int, len(a))
	nondec := NewNondecreasing(shadow, max+1-len(a))
	return IncrementorFunc(func() bool {
		if !nondec.Increment() {
			return false
		}
		for i := range a {
			a[i] = shadow[i] + i
		}
		return true
	})
}

// NewLeft enumerates [0,max]^len(a) with the leftmost position fastest.
func NewLeft(a []int, max int) Incrementor {
	return IncrementorFunc(func() bool {
		for i := range a {
			if a[i] < max {
				a[i]++
				clear(a[:i])
				return true
			}
		}
		return false
	})
}

func anyAtLeast(a []int, min int) bool {
	for _, x := range a {
		if x >= min {
			return true
		}
	}
	return false
}
