package engine

import (
	"sync"

	"github.com/roach88/closer/internal/alg"
)

// evaluator applies operation i of the algebra to raw arguments. It is
// safe for concurrent use and always returns a fresh slice.
type evaluator interface {
	apply(op int, args [][]int) []int
}

// genericEvaluator calls Operation.ValueAt. Operations are not assumed to
// be safe for concurrent use, so each one is serialized by its own mutex.
type genericEvaluator struct {
	ops   []alg.Operation
	locks []sync.Mutex
}

func newGenericEvaluator(ops []alg.Operation) *genericEvaluator {
	return &genericEvaluator{ops: ops, locks: make([]sync.Mutex, len(ops))}
}

func (e *genericEvaluator) apply(op int, args [][]int) []int {
	e.locks[op].Lock()
	defer e.locks[op].Unlock()
	return e.ops[op].ValueAt(args)
}

// powerEvaluator evaluates a power algebra coordinatewise through the
// root operation tables. Operations without a table fall back to
// IntValueAt under a per-operation mutex.
type powerEvaluator struct {
	power  int
	size   int
	root   []alg.IntOperation
	tables [][]int
	locks  []sync.Mutex
}

func newPowerEvaluator(p alg.PowerAlgebra) *powerEvaluator {
	root := p.Root()
	ops := root.IntOperations()
	e := &powerEvaluator{
		power:  p.Power(),
		size:   root.Size(),
		root:   ops,
		tables: make([][]int, len(ops)),
		locks:  make([]sync.Mutex, len(ops)),
	}
	for i, op := range ops {
		e.tables[i] = op.Table()
	}
	return e
}

func (e *powerEvaluator) apply(op int, args [][]int) []int {
	out := make([]int, e.power)
	table := e.tables[op]
	if table == nil {
		return e.applyFunc(op, args, out)
	}
	for j := range out {
		k := 0
		for r := len(args) - 1; r >= 0; r-- {
			k = k*e.size + args[r][j]
		}
		out[j] = table[k]
	}
	return out
}

func (e *powerEvaluator) applyFunc(op int, args [][]int, out []int) []int {
	e.locks[op].Lock()
	defer e.locks[op].Unlock()
	col := make([]int, len(args))
	for j := range out {
		for r, a := range args {
			col[r] = a[j]
		}
		out[j] = e.root[op].IntValueAt(col)
	}
	return out
}
