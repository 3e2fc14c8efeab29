package alg

import (
	"fmt"

	"github.com/roach88/closer/internal/ir"
)

// Operation is a named fixed-arity function on raw coordinate arrays.
// ValueAt must not retain or modify its arguments.
type Operation interface {
	Symbol() ir.OperationSymbol
	Arity() int
	ValueAt(args [][]int) []int
}

// IntOperation is an operation on the universe {0..SetSize()-1}.
type IntOperation interface {
	Symbol() ir.OperationSymbol
	Arity() int
	SetSize() int
	IntValueAt(args []int) int
	// Table returns the Horner-ordered value table, or nil when the
	// operation is not materialized.
	Table() []int
}

// TableOperation is an IntOperation backed by a value table.
type TableOperation struct {
	sym   ir.OperationSymbol
	size  int
	table []int
}

// NewTableOperation validates the table: size^arity entries, each in range.
func NewTableOperation(name string, arity, size int, table []int) (*TableOperation, error) {
	if arity < 0 {
		return nil, fmt.Errorf("operation %s: negative arity %d", name, arity)
	}
	if size < 1 {
		return nil, fmt.Errorf("operation %s: universe size must be positive, got %d", name, size)
	}
	want, ok := IntPow(size, arity)
	if !ok {
		return nil, fmt.Errorf("operation %s: table for arity %d over %d elements is too large", name, arity, size)
	}
	if len(table) != want {
		return nil, fmt.Errorf("operation %s: table has %d entries, want %d", name, len(table), want)
	}
	for i, v := range table {
		if v < 0 || v >= size {
			return nil, fmt.Errorf("operation %s: table[%d]=%d outside universe of size %d", name, i, v, size)
		}
	}
	t := make([]int, len(table))
	copy(t, table)
	return &TableOperation{sym: ir.OperationSymbol{Name: name, Arity: arity}, size: size, table: t}, nil
}

func (o *TableOperation) Symbol() ir.OperationSymbol { return o.sym }
func (o *TableOperation) Arity() int                 { return o.sym.Arity }
func (o *TableOperation) SetSize() int               { return o.size }
func (o *TableOperation) Table() []int               { return o.table }

func (o *TableOperation) IntValueAt(args []int) int {
	return o.table[Horner(args, o.size)]
}

// FuncOperation is an IntOperation computed by a function on demand.
// It carries no table; the engine falls back to IntValueAt for it.
type FuncOperation struct {
	sym  ir.OperationSymbol
	size int
	fn   func(args []int) int
}

// NewFuncOperation wraps fn as an operation of the given arity.
func NewFuncOperation(name string, arity, size int, fn func(args []int) int) *FuncOperation {
	return &FuncOperation{sym: ir.OperationSymbol{Name: name, Arity: arity}, size: size, fn: fn}
}

func (o *FuncOperation) Symbol() ir.OperationSymbol { return o.sym }
func (o *FuncOperation) Arity() int                 { return o.sym.Arity }
func (o *FuncOperation) SetSize() int               { return o.size }
func (o *FuncOperation) Table() []int               { return nil }
func (o *FuncOperation) IntValueAt(args []int) int  { return o.fn(args) }

// MakeTable materializes op into a TableOperation.
func MakeTable(op IntOperation) (*TableOperation, error) {
	if t := op.Table(); t != nil {
		return NewTableOperation(op.Symbol().Name, op.Arity(), op.SetSize(), t)
	}
	n, ok := IntPow(op.SetSize(), op.Arity())
	if !ok {
		return nil, fmt.Errorf("operation %s: table too large", op.Symbol().Name)
	}
	table := make([]int, n)
	for k := range table {
		table[k] = op.IntValueAt(HornerInv(k, op.SetSize(), op.Arity()))
	}
	return NewTableOperation(op.Symbol().Name, op.Arity(), op.SetSize(), table)
}

// EqualValues reports whether two operations have the same arity, universe
// and values everywhere. Symbols are not compared.
func EqualValues(a, b IntOperation) bool {
	if a.Arity() != b.Arity() || a.SetSize() != b.SetSize() {
		return false
	}
	ta, tb := a.Table(), b.Table()
	if ta != nil && tb != nil {
		if len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if ta[i] != tb[i] {
				return false
			}
		}
		return true
	}
	n, ok := IntPow(a.SetSize(), a.Arity())
	if !ok {
		return false
	}
	for k := 0; k < n; k++ {
		args := HornerInv(k, a.SetSize(), a.Arity())
		if a.IntValueAt(args) != b.IntValueAt(args) {
			return false
		}
	}
	return true
}

// funcOperation adapts a function on raw arrays to Operation.
type funcOperation struct {
	sym ir.OperationSymbol
	fn  func(args [][]int) []int
}

// NewOperation wraps fn as a generic Operation on raw coordinate arrays.
func NewOperation(name string, arity int, fn func(args [][]int) []int) Operation {
	return &funcOperation{sym: ir.OperationSymbol{Name: name, Arity: arity}, fn: fn}
}

func (o *funcOperation) Symbol() ir.OperationSymbol { return o.sym }
func (o *funcOperation) Arity() int                 { return o.sym.Arity }
func (o *funcOperation) ValueAt(args [][]int) []int { return o.fn(args) }
