package engine

import (
	"context"

	"github.com/roach88/closer/internal/ir"
	"github.com/roach88/closer/internal/seq"
)

// serialPass applies every operation to every tuple over [0,currentMark)
// that uses at least one element of the new window, on the calling
// goroutine. Cancellation is polled at every tuple.
func (c *Closer) serialPass(ctx context.Context) (bool, error) {
	hi := c.currentMark - 1
	for i, op := range c.ops {
		r := op.Arity()
		if r == 0 {
			continue
		}
		argIdx := make([]int, r)
		argIdx[r-1] = c.closedMark
		inc := seq.NewSequenceAtLeast(argIdx, hi, c.closedMark)
		args := make([][]int, r)

		for {
			if ctx.Err() != nil {
				return false, cancelled(ctx)
			}
			for j, idx := range argIdx {
				args[j] = c.raw[idx]
			}
			v := c.eval.apply(i, args)
			c.apps.Next()
			if c.consider(i, argIdx, v, ir.KeyOf(v)) {
				return true, nil
			}
			if !inc.Increment() {
				break
			}
		}
	}
	return false, nil
}
