package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileAlgebraString(t *testing.T, src, path string) (*CompileError, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())

	_, err := CompileAlgebra(v.LookupPath(cue.ParsePath(path)))
	var ce *CompileError
	if err != nil {
		require.ErrorAs(t, err, &ce)
	}
	return ce, err
}

func TestCompileAlgebraBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		algebra: lat3: {
			size: 3
			operations: {
				join: {arity: 2, table: [0, 1, 2, 1, 1, 2, 2, 2, 2]}
				top: {arity: 0, table: [2]}
			}
		}
	`)
	require.NoError(t, v.Err())

	a, err := CompileAlgebra(v.LookupPath(cue.ParsePath("algebra.lat3")))
	require.NoError(t, err)

	assert.Equal(t, "lat3", a.Name())
	assert.Equal(t, 3, a.Size())
	require.Len(t, a.IntOperations(), 2)
	assert.Equal(t, "join", a.IntOperations()[0].Symbol().Name, "declaration order is kept")
	assert.Equal(t, 2, a.IntOperations()[0].IntValueAt([]int{1, 2}))
	assert.Equal(t, 0, a.IntOperations()[1].Arity())
}

func TestCompileAlgebraHornerOrder(t *testing.T) {
	ctx := cuecontext.New()
	// left projection: f(a0, a1) = a0 lives at index a0 + 2*a1
	v := ctx.CompileString(`
		algebra: two: {
			size: 2
			operations: left: {arity: 2, table: [0, 1, 0, 1]}
		}
	`)
	require.NoError(t, v.Err())

	a, err := CompileAlgebra(v.LookupPath(cue.ParsePath("algebra.two")))
	require.NoError(t, err)
	op, ok := a.Operation("left")
	require.True(t, ok)
	assert.Equal(t, 1, op.IntValueAt([]int{1, 0}))
	assert.Equal(t, 0, op.IntValueAt([]int{0, 1}))
}

func TestCompileAlgebraErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
		msg   string
	}{
		{"missing size", `a: {operations: {}}`, "size", "required"},
		{"zero size", `a: {size: 0}`, "size", "positive"},
		{"float size", `a: {size: 2.5}`, "size", "float"},
		{"missing arity", `a: {size: 2, operations: f: {table: [0, 1]}}`, "operations.f.arity", "required"},
		{"missing table", `a: {size: 2, operations: f: {arity: 1}}`, "operations.f.table", "required"},
		{"short table", `a: {size: 2, operations: f: {arity: 2, table: [0, 1]}}`, "operations.f.table", "2 entries, want 4"},
		{"value out of range", `a: {size: 2, operations: f: {arity: 1, table: [0, 2]}}`, "operations.f.table", "outside universe"},
		{"table not a list", `a: {size: 2, operations: f: {arity: 1, table: "x"}}`, "operations.f.table", "list"},
		{"string entry", `a: {size: 2, operations: f: {arity: 1, table: [0, "x"]}}`, "operations.f.table[1]", "expected int"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce, err := compileAlgebraString(t, tt.src, "a")

			require.Error(t, err)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, ce.Message, tt.msg)
		})
	}
}

func TestCompileAlgebraNoOperations(t *testing.T) {
	_, err := compileAlgebraString(t, `a: {size: 4}`, "a")
	assert.NoError(t, err)
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "size", Message: "size is required"}
	assert.Equal(t, "size: size is required", err.Error())
}
