package alg

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/closer/internal/ir"
)

// Algebra is a finite algebra whose elements are raw coordinate arrays.
type Algebra interface {
	Name() string
	Operations() []Operation
	// Cardinality returns the universe size, or 0 when it is unknown or
	// does not fit in an int.
	Cardinality() int
}

// PowerAlgebra is an Algebra of k-tuples over a root SmallAlgebra with
// operations applied coordinatewise. Operations()[i] must be the lift of
// Root().IntOperations()[i]. Implementations enable the engine's
// table-driven fast path.
type PowerAlgebra interface {
	Algebra
	Root() *SmallAlgebra
	Power() int
}

// SmallAlgebra has universe {0..size-1}. As an Algebra its elements are
// 1-tuples.
type SmallAlgebra struct {
	name  string
	size  int
	ops   []IntOperation
	index map[string]int
}

// NewSmallAlgebra checks that every operation acts on the same universe
// and that symbol names are unique.
func NewSmallAlgebra(name string, size int, ops ...IntOperation) (*SmallAlgebra, error) {
	if size < 1 {
		return nil, fmt.Errorf("algebra %s: size must be positive, got %d", name, size)
	}
	a := &SmallAlgebra{name: name, size: size, ops: slices.Clone(ops), index: make(map[string]int, len(ops))}
	for i, op := range ops {
		sym := op.Symbol()
		if op.SetSize() != size {
			return nil, fmt.Errorf("algebra %s: operation %s acts on %d elements, want %d", name, sym.Name, op.SetSize(), size)
		}
		if _, dup := a.index[sym.Name]; dup {
			return nil, fmt.Errorf("algebra %s: duplicate operation %s", name, sym.Name)
		}
		a.index[sym.Name] = i
	}
	return a, nil
}

func (a *SmallAlgebra) Name() string                  { return a.name }
func (a *SmallAlgebra) Size() int                     { return a.size }
func (a *SmallAlgebra) Cardinality() int              { return a.size }
func (a *SmallAlgebra) IntOperations() []IntOperation { return a.ops }

// Operation looks up an operation by symbol name.
func (a *SmallAlgebra) Operation(name string) (IntOperation, bool) {
	i, ok := a.index[name]
	if !ok {
		return nil, false
	}
	return a.ops[i], true
}

// Operations lifts the int operations to 1-tuples.
func (a *SmallAlgebra) Operations() []Operation {
	out := make([]Operation, len(a.ops))
	for i, op := range a.ops {
		out[i] = &coordinateOperation{op: op, power: 1}
	}
	return out
}

// SimilarityType returns the operation symbols sorted by name.
func (a *SmallAlgebra) SimilarityType() []ir.OperationSymbol {
	return similarityType(a.ops)
}

func similarityType[O interface{ Symbol() ir.OperationSymbol }](ops []O) []ir.OperationSymbol {
	syms := make([]ir.OperationSymbol, len(ops))
	for i, op := range ops {
		syms[i] = op.Symbol()
	}
	slices.SortFunc(syms, func(x, y ir.OperationSymbol) int { return strings.Compare(x.Name, y.Name) })
	return syms
}

// Similar reports whether two algebras have the same similarity type.
func Similar(a Algebra, b *SmallAlgebra) bool {
	return slices.Equal(similarityType(a.Operations()), b.SimilarityType())
}

// Power is the k-th direct power of a SmallAlgebra.
type Power struct {
	root  *SmallAlgebra
	power int
	ops   []Operation
}

// NewPower builds root^power.
func NewPower(root *SmallAlgebra, power int) (*Power, error) {
	if power < 1 {
		return nil, fmt.Errorf("power of %s: exponent must be positive, got %d", root.Name(), power)
	}
	p := &Power{root: root, power: power, ops: make([]Operation, len(root.ops))}
	for i, op := range root.ops {
		p.ops[i] = &coordinateOperation{op: op, power: power}
	}
	return p, nil
}

func (p *Power) Name() string            { return fmt.Sprintf("%s^%d", p.root.Name(), p.power) }
func (p *Power) Operations() []Operation { return p.ops }
func (p *Power) Root() *SmallAlgebra     { return p.root }
func (p *Power) Power() int              { return p.power }

func (p *Power) Cardinality() int {
	n, ok := IntPow(p.root.Size(), p.power)
	if !ok {
		return 0
	}
	return n
}

// coordinateOperation applies an IntOperation independently at every coordinate.
type coordinateOperation struct {
	op    IntOperation
	power int
}

func (o *coordinateOperation) Symbol() ir.OperationSymbol { return o.op.Symbol() }
func (o *coordinateOperation) Arity() int                 { return o.op.Arity() }

func (o *coordinateOperation) ValueAt(args [][]int) []int {
	out := make([]int, o.power)
	col := make([]int, len(args))
	for j := range out {
		for r, a := range args {
			col[r] = a[j]
		}
		out[j] = o.op.IntValueAt(col)
	}
	return out
}

// BasicAlgebra is an Algebra given directly by generic operations.
// The engine never takes the power fast path for it.
type BasicAlgebra struct {
	name        string
	cardinality int
	ops         []Operation
}

// NewAlgebra builds a BasicAlgebra. Pass cardinality 0 when unknown.
func NewAlgebra(name string, cardinality int, ops ...Operation) *BasicAlgebra {
	return &BasicAlgebra{name: name, cardinality: cardinality, ops: slices.Clone(ops)}
}

func (a *BasicAlgebra) Name() string            { return a.name }
func (a *BasicAlgebra) Operations() []Operation { return a.ops }
func (a *BasicAlgebra) Cardinality() int        { return a.cardinality }
