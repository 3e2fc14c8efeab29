package engine

import (
	"context"
	"slices"

	"github.com/roach88/closer/internal/alg"
	"github.com/roach88/closer/internal/seq"
)

// feeder produces the chunks of one pass in operation order. For an
// operation of arity r it fixes the first max(r-chunkSize, 0) argument
// indices, ranging over all of [0,currentMark).
type feeder struct {
	ops         []alg.Operation
	currentMark int
	chunkSize   int

	op      int
	prefix  []int
	inc     seq.Incrementor
	pending *Chunk
	done    bool
}

func newFeeder(ops []alg.Operation, currentMark, chunkSize int) *feeder {
	return &feeder{ops: ops, currentMark: currentMark, chunkSize: chunkSize}
}

// next returns the next chunk, or false once every operation is exhausted.
func (f *feeder) next() (Chunk, bool) {
	for f.op < len(f.ops) {
		r := f.ops[f.op].Arity()
		if r == 0 {
			f.op++
			continue
		}
		if f.inc == nil {
			f.prefix = make([]int, r-min(f.chunkSize, r))
			f.inc = seq.NewSequence(f.prefix, f.currentMark-1)
			return Chunk{Op: f.op, Prefix: slices.Clone(f.prefix)}, true
		}
		if f.inc.Increment() {
			return Chunk{Op: f.op, Prefix: slices.Clone(f.prefix)}, true
		}
		f.inc = nil
		f.op++
	}
	return Chunk{}, false
}

// fill pushes chunks without blocking until the channel is full. When the
// feeder is exhausted it closes the channel, which stops every worker once
// the queue drains.
func (f *feeder) fill(chunks chan<- Chunk) {
	for !f.done {
		if f.pending == nil {
			ch, ok := f.next()
			if !ok {
				f.done = true
				close(chunks)
				return
			}
			f.pending = &ch
		}
		select {
		case chunks <- *f.pending:
			f.pending = nil
		default:
			return
		}
	}
}

// run pushes every chunk, blocking while the channel is full, then closes it.
func (f *feeder) run(ctx context.Context, chunks chan<- Chunk) {
	defer close(chunks)
	for {
		ch, ok := f.next()
		if !ok {
			return
		}
		select {
		case chunks <- ch:
		case <-ctx.Done():
			return
		}
	}
}
