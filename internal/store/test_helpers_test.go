package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/closer/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates run metadata with minimal required fields.
func createTestRun(id, fingerprint string) Run {
	return Run{
		ID:          id,
		Fingerprint: fingerprint,
		Problem:     "test",
		StopReason:  "paused",
	}
}

var (
	plus = ir.OperationSymbol{Name: "plus", Arity: 2}
	neg  = ir.OperationSymbol{Name: "neg", Arity: 1}
	zero = ir.OperationSymbol{Name: "zero", Arity: 0}
)

// createTestCheckpoint builds a small checkpoint whose terms share
// children the way the engine builds them:
//
//	0: x               (1,0)
//	1: y               (0,1)
//	2: zero            (0,0)
//	3: neg(x)          (2,0)
//	4: plus(y,neg(x))  (2,1)
func createTestCheckpoint() ir.Checkpoint {
	x := ir.Variable{Name: "x"}
	y := ir.Variable{Name: "y"}
	z := ir.Constant(zero)
	nx := ir.NewNonVariable(neg, x)
	sum := ir.NewNonVariable(plus, y, nx)
	return ir.Checkpoint{
		Pass:        2,
		ClosedMark:  3,
		CurrentMark: 5,
		Elements: []ir.Element{
			ir.NewElement(1, 0), ir.NewElement(0, 1), ir.NewElement(0, 0),
			ir.NewElement(2, 0), ir.NewElement(2, 1),
		},
		Terms: []ir.Term{x, y, z, nx, sum},
	}
}
