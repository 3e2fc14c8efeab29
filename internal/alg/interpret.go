package alg

import (
	"fmt"

	"github.com/roach88/closer/internal/ir"
)

// Eval evaluates a term in a SmallAlgebra under a variable binding.
func Eval(t ir.Term, a *SmallAlgebra, binding map[string]int) (int, error) {
	if t.IsVariable() {
		v, ok := binding[t.String()]
		if !ok {
			return 0, fmt.Errorf("eval: unbound variable %s", t)
		}
		return v, nil
	}
	sym := t.Symbol()
	op, ok := a.Operation(sym.Name)
	if !ok || op.Arity() != sym.Arity {
		return 0, fmt.Errorf("eval: %s has no operation %s", a.Name(), sym)
	}
	args := make([]int, len(t.Children()))
	for i, c := range t.Children() {
		v, err := Eval(c, a, binding)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	return op.IntValueAt(args), nil
}

// Interpretation returns the term operation of t over a, with vars as
// its arguments in order.
func Interpretation(t ir.Term, a *SmallAlgebra, vars []ir.Variable) (*TableOperation, error) {
	n, ok := IntPow(a.Size(), len(vars))
	if !ok {
		return nil, fmt.Errorf("interpretation of %s: table too large", t)
	}
	binding := make(map[string]int, len(vars))
	table := make([]int, n)
	for k := range table {
		args := HornerInv(k, a.Size(), len(vars))
		for i, v := range vars {
			binding[v.Name] = args[i]
		}
		val, err := Eval(t, a, binding)
		if err != nil {
			return nil, fmt.Errorf("interpretation of %s: %w", t, err)
		}
		table[k] = val
	}
	return NewTableOperation(t.String(), len(vars), a.Size(), table)
}

// TupleEvaluator evaluates terms over an arbitrary Algebra.
type TupleEvaluator struct {
	ops map[string]Operation
}

// NewTupleEvaluator indexes the operations of a by symbol name.
func NewTupleEvaluator(a Algebra) *TupleEvaluator {
	ev := &TupleEvaluator{ops: make(map[string]Operation)}
	for _, op := range a.Operations() {
		ev.ops[op.Symbol().Name] = op
	}
	return ev
}

// Eval evaluates t with variables bound to raw elements.
func (ev *TupleEvaluator) Eval(t ir.Term, binding map[string][]int) ([]int, error) {
	if t.IsVariable() {
		v, ok := binding[t.String()]
		if !ok {
			return nil, fmt.Errorf("eval: unbound variable %s", t)
		}
		return v, nil
	}
	sym := t.Symbol()
	op, ok := ev.ops[sym.Name]
	if !ok || op.Arity() != sym.Arity {
		return nil, fmt.Errorf("eval: no operation %s", sym)
	}
	args := make([][]int, len(t.Children()))
	for i, c := range t.Children() {
		v, err := ev.Eval(c, binding)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return op.ValueAt(args), nil
}
