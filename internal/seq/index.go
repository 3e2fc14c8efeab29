package seq

import (
	"fmt"

	"github.com/roach88/closer/internal/alg"
)

// CountAtLeast returns the number of k-tuples over [0,n) with some entry
// >= m, that is n^k - m^k.
func CountAtLeast(n, m, k int) (int, error) {
	nk, ok := alg.IntPow(n, k)
	if !ok {
		return 0, fmt.Errorf("count %d^%d overflows", n, k)
	}
	mk, _ := alg.IntPow(m, k)
	return nk - mk, nil
}

// IndexTuple returns the i-th k-tuple over [0,n) having an entry >= m.
// Tuples are ranked by their last coordinate first: all tuples whose last
// entry is below m come before those whose last entry is m or more.
func IndexTuple(n, m, k, i int) ([]int, error) {
	total, err := CountAtLeast(n, m, k)
	if err != nil {
		return nil, err
	}
	if k < 1 || i < 0 || i >= total {
		return nil, fmt.Errorf("index %d out of range [0,%d) for n=%d m=%d k=%d", i, total, n, m, k)
	}
	out := make([]int, k)
	indexTuple(n, m, k, i, out)
	return out, nil
}

func indexTuple(n, m, k, i int, out []int) {
	if k == 1 {
		out[0] = i + m
		return
	}
	nk1, _ := alg.IntPow(n, k-1)
	mk1, _ := alg.IntPow(m, k-1)
	ell := nk1 - mk1
	if i < ell*m {
		out[k-1] = i / ell
		indexTuple(n, m, k-1, i%ell, out)
		return
	}
	p := i - ell*m
	out[k-1] = m + p/nk1
	copy(out, alg.HornerInv(p%nk1, n, k-1))
}
