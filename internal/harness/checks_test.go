package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/closer/internal/engine"
	"github.com/roach88/closer/internal/ir"
	"github.com/roach88/closer/internal/testutil"
)

func TestInvariantErrors_CleanRun(t *testing.T) {
	p, err := LoadProblem("testdata/problems/z3_subgroup.cue")
	require.NoError(t, err)

	a, err := p.Algebra()
	require.NoError(t, err)
	c, err := engine.New(a, p.Generators, append(p.Options(), engine.WithThreads(3))...)
	require.NoError(t, err)
	_, err = c.Run(t.Context())
	require.NoError(t, err)

	assert.Empty(t, invariantErrors(c, p))
}

func TestClosedness(t *testing.T) {
	a := testutil.Semilattice(t)

	assert.Empty(t, closedness(a, testutil.Elements([]int{0}, []int{1}, []int{2})))

	errs := closedness(a, testutil.Elements([]int{0}, []int{1}))
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "not closed: join[0 1] = [2]")
}

func TestWitness(t *testing.T) {
	p, err := LoadProblem("testdata/problems/z3_hom_fails.cue")
	require.NoError(t, err)
	a, err := p.Algebra()
	require.NoError(t, err)

	plus := ir.OperationSymbol{Name: "plus", Arity: 2}
	x, y := ir.Variable{Name: "x"}, ir.Variable{Name: "y"}
	binding := map[string][]int{"x": {1, 0}, "y": {2, 0}}
	images := map[string]int{"x": 1, "y": 1}

	t.Run("real witness", func(t *testing.T) {
		eq := ir.Equation{Left: y, Right: ir.NewNonVariable(plus, x, x)}
		assert.NoError(t, witness(a, p.Homomorphism, eq, binding, images))
	})

	t.Run("does not hold", func(t *testing.T) {
		eq := ir.Equation{Left: x, Right: y}
		assert.ErrorContains(t, witness(a, p.Homomorphism, eq, binding, images), "does not hold")
	})

	t.Run("holds in target", func(t *testing.T) {
		eq := ir.Equation{Left: x, Right: x}
		assert.EqualError(t, witness(a, p.Homomorphism, eq, binding, images), "failing equation x = x holds in the target")
	})

	t.Run("no homomorphism", func(t *testing.T) {
		eq := ir.Equation{Left: x, Right: x}
		assert.EqualError(t, witness(a, nil, eq, binding, images), "failing equation x = x without a homomorphism")
	})
}
