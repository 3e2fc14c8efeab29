package engine

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/closer/internal/ir"
	"github.com/roach88/closer/internal/seq"
)

// errStop unwinds the equal-workload tasks once a stop condition fires.
var errStop = errors.New("stop condition reached")

// equalPass splits the tuples of a pass into threads strided partitions
// that update the shared state live. Task 0 runs on the calling goroutine.
//
// A single RWMutex guards the shared state: tasks read arguments and test
// membership under the read lock and admit new elements under the write
// lock, so every check sees a consistent answer.
func (c *Closer) equalPass(ctx context.Context) (bool, error) {
	n := c.cfg.threads
	var mu sync.RWMutex

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(taskCtx)
	for i := 1; i < n; i++ {
		g.Go(func() error {
			return c.equalTask(gctx, &mu, i, n)
		})
	}
	err0 := c.equalTask(gctx, &mu, 0, n)
	if err0 != nil {
		cancel()
	}
	err := g.Wait()
	if err == nil {
		err = err0
	}

	switch {
	case c.stop != StopNone:
		return true, nil
	case ctx.Err() != nil:
		return false, cancelled(ctx)
	case err != nil && !errors.Is(err, errStop):
		return false, err
	}
	return false, nil
}

// equalTask enumerates partition i of n for every operation.
func (c *Closer) equalTask(ctx context.Context, mu *sync.RWMutex, i, n int) error {
	hi := c.currentMark - 1
	var apps int64
	defer func() { c.apps.Add(apps) }()

	for opIdx, op := range c.ops {
		r := op.Arity()
		if r == 0 {
			continue
		}
		argIdx := make([]int, r)
		argIdx[r-1] = i - n
		inc := seq.NewBlock(argIdx, hi, c.closedMark, n)
		args := make([][]int, r)

		for inc.Increment() {
			if err := ctx.Err(); err != nil {
				return err
			}
			mu.RLock()
			for j, idx := range argIdx {
				args[j] = c.raw[idx]
			}
			mu.RUnlock()

			v := c.eval.apply(opIdx, args)
			apps++
			key := ir.KeyOf(v)

			if c.hom == nil {
				mu.RLock()
				_, seen := c.members[key]
				mu.RUnlock()
				if seen {
					continue
				}
			}

			mu.Lock()
			stop := c.stop != StopNone || c.consider(opIdx, argIdx, v, key)
			mu.Unlock()
			if stop {
				return errStop
			}
		}
	}
	return nil
}
