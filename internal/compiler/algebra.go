package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/closer/internal/alg"
)

// CompileAlgebra parses a CUE value into a SmallAlgebra.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the algebra struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`algebra: lat3: { size: 3, operations: ... }`)
//	a, err := CompileAlgebra(v.LookupPath(cue.ParsePath("algebra.lat3")))
//
// Operations keep their declaration order. Tables are Horner-ordered with
// the first argument least significant.
func CompileAlgebra(v cue.Value) (*alg.SmallAlgebra, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	name := label(v)

	sizeVal := v.LookupPath(cue.ParsePath("size"))
	if !sizeVal.Exists() {
		return nil, &CompileError{
			Field:   "size",
			Message: "size is required",
			Pos:     v.Pos(),
		}
	}
	size, err := intValue(sizeVal, "size")
	if err != nil {
		return nil, err
	}
	if size < 1 {
		return nil, &CompileError{
			Field:   "size",
			Message: fmt.Sprintf("size must be positive, got %d", size),
			Pos:     sizeVal.Pos(),
		}
	}

	ops, err := compileOperations(v.LookupPath(cue.ParsePath("operations")), size, "operations")
	if err != nil {
		return nil, err
	}

	a, err := alg.NewSmallAlgebra(name, size, ops...)
	if err != nil {
		return nil, &CompileError{Field: "operations", Message: err.Error(), Pos: v.Pos()}
	}
	return a, nil
}

// compileOperations parses a struct of operations over {0..size-1}.
// A missing struct yields no operations.
func compileOperations(v cue.Value, size int, field string) ([]alg.IntOperation, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var ops []alg.IntOperation
	for iter.Next() {
		op, err := compileOperation(iter.Label(), iter.Value(), size, field+"."+iter.Label())
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func compileOperation(name string, v cue.Value, size int, field string) (alg.IntOperation, error) {
	arityVal := v.LookupPath(cue.ParsePath("arity"))
	if !arityVal.Exists() {
		return nil, &CompileError{
			Field:   field + ".arity",
			Message: "arity is required",
			Pos:     v.Pos(),
		}
	}
	arity, err := intValue(arityVal, field+".arity")
	if err != nil {
		return nil, err
	}

	tableVal := v.LookupPath(cue.ParsePath("table"))
	if !tableVal.Exists() {
		return nil, &CompileError{
			Field:   field + ".table",
			Message: "table is required",
			Pos:     v.Pos(),
		}
	}
	table, err := intList(tableVal, field+".table")
	if err != nil {
		return nil, err
	}

	op, err := alg.NewTableOperation(name, arity, size, table)
	if err != nil {
		return nil, &CompileError{Field: field + ".table", Message: err.Error(), Pos: tableVal.Pos()}
	}
	return op, nil
}

// label returns the last path selector of v, which names the struct.
func label(v cue.Value) string {
	sels := v.Path().Selectors()
	if len(sels) == 0 {
		return ""
	}
	return sels[len(sels)-1].String()
}

// intValue extracts an int. Floats are forbidden: every quantity in a
// closure problem is an index or a count.
func intValue(v cue.Value, field string) (int, error) {
	switch v.IncompleteKind() {
	case cue.IntKind:
	case cue.FloatKind, cue.NumberKind:
		return 0, &CompileError{
			Field:   field,
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("expected int, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
	n, err := v.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(n), nil
}

func intList(v cue.Value, field string) ([]int, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "expected a list of ints", Pos: v.Pos()}
	}
	out := []int{}
	for i := 0; iter.Next(); i++ {
		n, err := intValue(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func intMatrix(v cue.Value, field string) ([][]int, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "expected a list of int lists", Pos: v.Pos()}
	}
	out := [][]int{}
	for i := 0; iter.Next(); i++ {
		row, err := intList(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
