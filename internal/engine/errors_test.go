package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/closer/internal/alg"
	"github.com/roach88/closer/internal/ir"
	"github.com/roach88/closer/internal/testutil"
)

func TestNew_ConfigErrors(t *testing.T) {
	z3 := testutil.Z3(t)
	p2 := testutil.Power(t, z3, 2)
	gens := testutil.Elements([]int{1, 0}, []int{0, 1})
	lat := testutil.Semilattice(t)
	latGens := testutil.Elements([]int{0}, []int{1})

	tests := []struct {
		name string
		a    alg.Algebra
		gens []ir.Element
		opts []Option
		code ConfigErrorCode
	}{
		{"dissimilar target", p2, gens, []Option{WithHomomorphism(testutil.Semilattice(t), []int{0, 1})}, ErrCodeDissimilar},
		{"image count", p2, gens, []Option{WithHomomorphism(z3, []int{0})}, ErrCodeGeneratorCount},
		{"image out of range", p2, gens, []Option{WithHomomorphism(z3, []int{0, 3})}, ErrCodeBadOption},
		{"duplicate generator images", p2, testutil.Elements([]int{1, 0}, []int{1, 0}), []Option{WithHomomorphism(z3, []int{0, 1})}, ErrCodeBadOption},
		{"generator length", p2, testutil.Elements([]int{1, 0, 0}), nil, ErrCodeBadGenerator},
		{"generator coordinate", p2, testutil.Elements([]int{1, 3}), nil, ErrCodeBadGenerator},
		{"small algebra generator range", lat, testutil.Elements([]int{0}, []int{7}), nil, ErrCodeBadGenerator},
		{"small algebra generator negative", lat, testutil.Elements([]int{-1}), nil, ErrCodeBadGenerator},
		{"small algebra generator length", lat, testutil.Elements([]int{0, 1}), nil, ErrCodeBadGenerator},
		{"small algebra constraint index", lat, latGens, []Option{WithConstraint([][]int{{0, 1}}, nil)}, ErrCodeBadOption},
		{"chunk size", p2, gens, []Option{WithChunkSize(0)}, ErrCodeBadOption},
		{"threads", p2, gens, []Option{WithThreads(-1)}, ErrCodeBadOption},
		{"max size", p2, gens, []Option{WithMaxSize(-1)}, ErrCodeBadOption},
		{"strategy", p2, gens, []Option{WithStrategy(Strategy(42))}, ErrCodeBadOption},
		{"constraint pair", p2, gens, []Option{WithConstraint(nil, [][]int{{0}})}, ErrCodeBadOption},
		{"constraint block index", p2, gens, []Option{WithConstraint([][]int{{0, 2}}, nil)}, ErrCodeBadOption},
		{"constraint value index", p2, gens, []Option{WithConstraint(nil, [][]int{{5, 0}})}, ErrCodeBadOption},
		{"clone without root", alg.NewAlgebra("basic", 0, p2.Operations()...), gens, []Option{WithCloneOperations(nil)}, ErrCodeNoRoot},
		{"clone arity", p2, gens, []Option{WithCloneOperations(nil, z3.IntOperations()[1])}, ErrCodeBadOption},
		{"checkpoint marks", p2, gens, []Option{WithCheckpoint(ir.Checkpoint{ClosedMark: 2, CurrentMark: 1, Elements: gens})}, ErrCodeBadCheckpoint},
		{"checkpoint generators", p2, gens, []Option{WithCheckpoint(ir.Checkpoint{Elements: testutil.Elements([]int{0, 1}, []int{1, 0})})}, ErrCodeBadCheckpoint},
		{"checkpoint terms", p2, gens, []Option{WithTerms(), WithCheckpoint(ir.Checkpoint{Elements: gens})}, ErrCodeBadCheckpoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.a, tt.gens, tt.opts...)

			require.Error(t, err)
			assert.True(t, IsConfigError(err, tt.code), "got %v", err)
			assert.True(t, IsConfigError(err, ""))
		})
	}
}

func TestNew_NilAlgebra(t *testing.T) {
	_, err := New(nil, nil)
	assert.True(t, IsConfigError(err, ErrCodeBadOption))
}

func TestConfigError_Message(t *testing.T) {
	err := configError(ErrCodeBadGenerator, "generator %d is bad", 3)
	assert.Equal(t, "BAD_GENERATOR: generator 3 is bad", err.Error())

	wrapped := fmt.Errorf("loading: %w", err)
	assert.True(t, IsConfigError(wrapped, ErrCodeBadGenerator))
	assert.False(t, IsConfigError(wrapped, ErrCodeNoRoot))
	assert.False(t, IsConfigError(fmt.Errorf("plain"), ""))
}

func TestWorkerFault_Message(t *testing.T) {
	err := &WorkerFault{Worker: 2, Chunk: &Chunk{Op: 1, Prefix: []int{0, 3}}, Value: "boom"}
	assert.Equal(t, "worker 2 panicked on chunk(op=1, prefix=[0 3]): boom", err.Error())
	assert.True(t, IsWorkerFault(fmt.Errorf("pass: %w", err)))

	bare := &WorkerFault{Worker: 0, Value: "boom"}
	assert.Equal(t, "worker 0 panicked: boom", bare.Error())
}

func TestStrategy_Names(t *testing.T) {
	for s, name := range strategyNames {
		got, ok := ParseStrategy(name)
		assert.True(t, ok)
		assert.Equal(t, s, got)
		assert.Equal(t, name, s.String())
	}
	_, ok := ParseStrategy("bogus")
	assert.False(t, ok)
	assert.Equal(t, "unknown", Strategy(9).String())
}
