package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/closer/internal/alg"
	"github.com/roach88/closer/internal/ir"
	"github.com/roach88/closer/internal/testutil"
)

type strategyCase struct {
	name string
	opts []Option
}

func strategyCases() []strategyCase {
	return []strategyCase{
		{"serial", []Option{WithStrategy(StrategySerial)}},
		{"parallel", []Option{WithStrategy(StrategyParallel), WithThreads(4)}},
		{"parallel_one_thread", []Option{WithStrategy(StrategyParallel), WithThreads(1)}},
		{"parallel_split_feeder", []Option{WithStrategy(StrategyParallel), WithThreads(4), WithSplitFeeder(true)}},
		{"parallel_chunk_size_2", []Option{WithStrategy(StrategyParallel), WithThreads(3), WithChunkSize(2)}},
		{"parallel_chunk_size_5", []Option{WithStrategy(StrategyParallel), WithThreads(3), WithChunkSize(5)}},
		{"parallel_tiny_queues", []Option{WithStrategy(StrategyParallel), WithThreads(3), WithQueueCapacity(1, 1), WithPollBatch(1), WithIdleBackoff(1, 0)}},
		{"parallel_generic", []Option{WithStrategy(StrategyParallel), WithThreads(3), WithForceGeneric()}},
		{"equal_workload", []Option{WithStrategy(StrategyEqualWorkload), WithThreads(3)}},
		{"equal_workload_one_thread", []Option{WithStrategy(StrategyEqualWorkload), WithThreads(1)}},
		{"auto", []Option{WithThreads(2)}},
	}
}

func TestStrategies_AgreeWithSerial(t *testing.T) {
	p := testutil.Power(t, testutil.Z3(t), 4)
	ref := newCloser(t, p, z3Power4Gens(), WithStrategy(StrategySerial), WithTerms())
	run(t, ref)

	for _, tc := range strategyCases() {
		t.Run(tc.name, func(t *testing.T) {
			c := newCloser(t, p, z3Power4Gens(), append(tc.opts, WithTerms())...)

			out := run(t, c)

			assert.Len(t, out, 27)
			assert.Equal(t, StopFixedPoint, c.StopReason())
			assert.False(t, c.Degraded())
			assert.NoError(t, c.CompareRuns(ref))
			assert.NoError(t, ref.CompareRuns(c))
		})
	}
}

func TestStrategies_Universe(t *testing.T) {
	for _, tc := range strategyCases() {
		t.Run(tc.name, func(t *testing.T) {
			c := newCloser(t, testutil.Semilattice(t), testutil.Elements([]int{0}, []int{1}), tc.opts...)

			out := run(t, c)

			assert.ElementsMatch(t, testutil.Elements([]int{0}, []int{1}, []int{2}), out)
			assert.Equal(t, StopUniverse, c.StopReason())
			assert.Equal(t, 1, c.Pass())
		})
	}
}

func TestStrategies_Constraint(t *testing.T) {
	p := testutil.Power(t, testutil.Z3(t), 3)
	gens := testutil.Elements([]int{1, 0, 0}, []int{0, 1, 1})

	for _, tc := range strategyCases() {
		t.Run(tc.name, func(t *testing.T) {
			c := newCloser(t, p, gens, append(tc.opts, WithConstraint([][]int{{0, 1}}, [][]int{{2, 1}}))...)

			out := run(t, c)

			assert.Equal(t, StopConstraint, c.StopReason())
			require.GreaterOrEqual(t, c.TargetIndex(), 0)
			assert.Equal(t, ir.NewElement(1, 1, 1), out[c.TargetIndex()])
		})
	}
}

func TestStrategies_HomomorphismExtends(t *testing.T) {
	z3 := testutil.Z3(t)
	p := testutil.Power(t, z3, 2)
	gens := testutil.Elements([]int{1, 0}, []int{0, 1})

	for _, tc := range strategyCases() {
		t.Run(tc.name, func(t *testing.T) {
			c := newCloser(t, p, gens, append(tc.opts, WithHomomorphism(z3, []int{1, 0}))...)

			out := run(t, c)

			assert.Len(t, out, 9)
			assert.Equal(t, StopFixedPoint, c.StopReason())
			assert.Nil(t, c.FailingEquation())
			hom := c.Homomorphism()
			for _, e := range out {
				assert.Equal(t, e.At(0), hom[e.Key()], "image of %s", e)
			}
		})
	}
}

func TestStrategies_HomomorphismFails(t *testing.T) {
	z3 := testutil.Z3(t)
	p := testutil.Power(t, z3, 2)
	gens := testutil.Elements([]int{1, 0}, []int{2, 0})

	for _, tc := range strategyCases() {
		t.Run(tc.name, func(t *testing.T) {
			c := newCloser(t, p, gens, append(tc.opts, WithHomomorphism(z3, []int{1, 1}))...)

			run(t, c)

			assert.Equal(t, StopHomomorphism, c.StopReason())
			assert.True(t, c.Completed())
			eq := c.FailingEquation()
			require.NotNil(t, eq)

			// Both sides name the same element but have different images.
			ev := alg.NewTupleEvaluator(p)
			left, err := ev.Eval(eq.Left, c.binding())
			require.NoError(t, err)
			right, err := ev.Eval(eq.Right, c.binding())
			require.NoError(t, err)
			assert.Equal(t, left, right)

			images := map[string]int{"x": 1, "y": 1}
			l, err := alg.Eval(eq.Left, z3, images)
			require.NoError(t, err)
			r, err := alg.Eval(eq.Right, z3, images)
			require.NoError(t, err)
			assert.NotEqual(t, l, r)
		})
	}
}

func TestSerial_FailingEquationIsFirstDisagreement(t *testing.T) {
	z3 := testutil.Z3(t)
	p := testutil.Power(t, z3, 2)
	gens := testutil.Elements([]int{1, 0}, []int{2, 0})
	c := newCloser(t, p, gens, WithStrategy(StrategySerial), WithHomomorphism(z3, []int{1, 1}))

	run(t, c)

	require.NotNil(t, c.FailingEquation())
	assert.Equal(t, "y = plus(x,x)", c.FailingEquation().String())
}

func TestStrategies_CloneMembership(t *testing.T) {
	root := testutil.Z3Plus(t)
	p := testutil.Power(t, root, 9)
	gens := testutil.Projections(3, 2)
	f, err := alg.MakeTable(alg.NewFuncOperation("f", 2, 3, func(a []int) int { return (a[0] + 2*a[1]) % 3 }))
	require.NoError(t, err)

	for _, tc := range strategyCases() {
		t.Run(tc.name, func(t *testing.T) {
			c := newCloser(t, p, gens, append(tc.opts, WithCloneOperations(nil, f))...)

			run(t, c)

			assert.Equal(t, StopCloneFound, c.StopReason())
			term, ok := c.CloneTerms()["f"]
			require.True(t, ok)
			interp, err := alg.Interpretation(term, root, c.Variables())
			require.NoError(t, err)
			assert.True(t, alg.EqualValues(f, interp), "term %s", term)
		})
	}
}

func TestClone_OperationOutsideClone(t *testing.T) {
	root := testutil.Z3Plus(t)
	p := testutil.Power(t, root, 9)
	one, err := alg.MakeTable(alg.NewFuncOperation("one", 2, 3, func([]int) int { return 1 }))
	require.NoError(t, err)
	c := newCloser(t, p, testutil.Projections(3, 2), WithCloneOperations(root, one))

	out := run(t, c)

	assert.Len(t, out, 9)
	assert.Equal(t, StopFixedPoint, c.StopReason())
	assert.Empty(t, c.CloneTerms())
}

func TestParallel_WorkerFaultRetried(t *testing.T) {
	plus := testutil.Z3Plus(t).Operations()[0]
	bothTwo := func(args [][]int) bool { return args[0][0] == 2 && args[1][0] == 2 }

	tests := []struct {
		name     string
		once     bool
		degraded bool
	}{
		{"transient", true, false},
		{"persistent", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := testutil.PanicOn(plus, tt.once, bothTwo)
			a := alg.NewAlgebra("Z3+", 0, op)
			c := newCloser(t, a, testutil.Elements([]int{1}), WithStrategy(StrategyParallel), WithThreads(3))

			out := run(t, c)

			assert.ElementsMatch(t, testutil.Elements([]int{0}, []int{1}, []int{2}), out)
			assert.Equal(t, tt.degraded, c.Degraded())
			assert.Equal(t, StopFixedPoint, c.StopReason())
		})
	}
}
