package engine

import (
	"fmt"

	"github.com/roach88/closer/internal/ir"
)

// Chunk is a unit of parallel work: operation Op with its leading argument
// indices fixed to Prefix. The worker enumerates the remaining positions.
type Chunk struct {
	Op     int
	Prefix []int
}

func (ch *Chunk) String() string {
	return fmt.Sprintf("chunk(op=%d, prefix=%v)", ch.Op, ch.Prefix)
}

// Entry is an element a worker found that was not in the pass snapshot.
type Entry struct {
	Elem  []int
	Term  ir.Term // nil unless terms are tracked
	Image int     // -1 without a homomorphism
}

// Result is what a worker publishes. A worker sends any number of results
// carrying entries, then exactly one with Finished set.
type Result struct {
	Worker       int
	Entries      []Entry
	Failing      *ir.Equation
	Applications int64

	Finished bool
	Fault    *WorkerFault // non-nil when the worker died
}
