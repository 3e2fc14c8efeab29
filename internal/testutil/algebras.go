package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/closer/internal/alg"
	"github.com/roach88/closer/internal/ir"
)

// Semilattice returns the 3-element join semilattice with 0 and 1
// incomparable below 2.
func Semilattice(t testing.TB) *alg.SmallAlgebra {
	t.Helper()
	join, err := alg.NewTableOperation("join", 2, 3, []int{
		0, 2, 2,
		2, 1, 2,
		2, 2, 2,
	})
	require.NoError(t, err)
	a, err := alg.NewSmallAlgebra("V", 3, join)
	require.NoError(t, err)
	return a
}

// Z3 returns the integers mod 3 with, in order, binary addition ("plus"),
// the Mal'cev term m(x,y,z) = x-y+z and the constant 0 ("zero").
func Z3(t testing.TB) *alg.SmallAlgebra {
	t.Helper()
	return cyclic(t, "Z3", 3)
}

// Z3Plus returns Z3 reduced to its addition.
func Z3Plus(t testing.TB) *alg.SmallAlgebra {
	t.Helper()
	plus := table(t, alg.NewFuncOperation("plus", 2, 3, func(a []int) int { return (a[0] + a[1]) % 3 }))
	a, err := alg.NewSmallAlgebra("Z3+", 3, plus)
	require.NoError(t, err)
	return a
}

func cyclic(t testing.TB, name string, n int) *alg.SmallAlgebra {
	t.Helper()
	plus := table(t, alg.NewFuncOperation("plus", 2, n, func(a []int) int { return (a[0] + a[1]) % n }))
	m := table(t, alg.NewFuncOperation("m", 3, n, func(a []int) int { return ((a[0]-a[1]+a[2])%n + n) % n }))
	zero := table(t, alg.NewFuncOperation("zero", 0, n, func([]int) int { return 0 }))
	a, err := alg.NewSmallAlgebra(name, n, plus, m, zero)
	require.NoError(t, err)
	return a
}

func table(t testing.TB, op alg.IntOperation) *alg.TableOperation {
	t.Helper()
	tab, err := alg.MakeTable(op)
	require.NoError(t, err)
	return tab
}

// Power returns root^k.
func Power(t testing.TB, root *alg.SmallAlgebra, k int) *alg.Power {
	t.Helper()
	p, err := alg.NewPower(root, k)
	require.NoError(t, err)
	return p
}

// Projections returns the n projection generators of A^(size^n): generator
// i has, at coordinate j, the i-th argument of the j-th tuple in Horner
// order. Closing them in a power of A yields the n-ary term operations.
func Projections(size, n int) []ir.Element {
	width, _ := alg.IntPow(size, n)
	gens := make([]ir.Element, n)
	for i := range gens {
		coords := make([]int, width)
		for j := range coords {
			coords[j] = alg.HornerInv(j, size, n)[i]
		}
		gens[i] = ir.NewElement(coords...)
	}
	return gens
}

// Elements builds elements from coordinate lists.
func Elements(coords ...[]int) []ir.Element {
	out := make([]ir.Element, len(coords))
	for i, c := range coords {
		out[i] = ir.NewElement(c...)
	}
	return out
}
