package engine

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/closer/internal/alg"
	"github.com/roach88/closer/internal/ir"
)

// parallelPass runs one pass with a feeder, a pool of workers and the
// calling goroutine as orchestrator.
//
// Workers see a snapshot of the state as of the start of the pass and
// never touch the authoritative state. The orchestrator merges their
// results, re-running the success checks against the authoritative state,
// so discovery order is merge order. On a stop condition the pass context
// is cancelled and every goroutine is joined before returning.
func (c *Closer) parallelPass(ctx context.Context) (bool, error) {
	split := c.cfg.splitFeeder
	numWorkers := max(c.cfg.threads-1, 1)
	if split {
		numWorkers = max(c.cfg.threads-2, 1)
	}

	pv := c.snapshot()
	c.fresh = make(map[ir.Key]int)
	defer c.foldFresh()

	passCtx, cancel := context.WithCancel(ctx)
	chunks := make(chan Chunk, c.cfg.chunkCapacity)
	results := make(chan Result, c.cfg.resultCapacity)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			pv.worker(passCtx, id, chunks, results)
		}(w)
	}
	f := newFeeder(c.ops, c.currentMark, c.cfg.chunkSize)
	if split {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.run(passCtx, chunks)
		}()
	}

	c.logger.Debug("parallel pass starting",
		"pass", c.pass,
		"workers", numWorkers,
		"split_feeder", split,
		"closed_mark", c.closedMark,
		"current_mark", c.currentMark,
	)

	est := newPassEstimator(passWork(c.ops, c.closedMark, c.currentMark), time.Now())
	var passApps int64
	finished := 0

	handle := func(r Result) (bool, error) {
		c.apps.Add(r.Applications)
		passApps += r.Applications
		if r.Fault != nil {
			finished++
			return c.retry(ctx, pv, r.Fault)
		}
		if r.Finished {
			finished++
			return false, nil
		}
		return c.mergeResult(r), nil
	}

	idle := 0
	for finished < numWorkers {
		if ctx.Err() != nil {
			return false, cancelled(ctx)
		}
		if !split {
			f.fill(chunks)
		}

		processed := 0
	poll:
		for processed < c.cfg.pollBatch {
			select {
			case r := <-results:
				processed++
				if stop, err := handle(r); stop || err != nil {
					return stop, err
				}
			default:
				break poll
			}
		}

		if now := time.Now(); est.due(now) {
			c.reporter.SetTimeLeft(est.timeLeft(passApps, now))
		}

		if processed > 0 {
			idle = 0
			continue
		}
		if split || f.done {
			select {
			case r := <-results:
				if stop, err := handle(r); stop || err != nil {
					return stop, err
				}
			case <-ctx.Done():
				return false, cancelled(ctx)
			}
			continue
		}
		idle++
		if idle >= c.cfg.idlePolls {
			idle = 0
			select {
			case <-time.After(c.cfg.idleBackoff):
			case <-ctx.Done():
				return false, cancelled(ctx)
			}
		}
	}

	return c.drain(ctx, pv, f, chunks)
}

// drain expands, on the orchestrator, any chunks left after every worker
// has finished. This only happens when workers died.
func (c *Closer) drain(ctx context.Context, pv *passView, f *feeder, chunks chan Chunk) (bool, error) {
	for {
		if !c.cfg.splitFeeder {
			f.fill(chunks)
		}
		select {
		case ch, ok := <-chunks:
			if !ok {
				return false, nil
			}
			res, err := pv.expandSafely(ctx, -1, ch)
			if ctx.Err() != nil {
				return false, cancelled(ctx)
			}
			c.apps.Add(res.Applications)
			if err != nil {
				c.dropChunk(err)
				continue
			}
			if c.mergeResult(res) {
				return true, nil
			}
		case <-ctx.Done():
			return false, cancelled(ctx)
		}
	}
}

// retry re-expands the chunk a dead worker was holding. A second failure
// drops the chunk and marks the run degraded.
func (c *Closer) retry(ctx context.Context, pv *passView, fault *WorkerFault) (bool, error) {
	c.logger.Error("worker died", "worker", fault.Worker, "error", fault.Error())
	if fault.Chunk == nil {
		return false, nil
	}
	res, err := pv.expandSafely(ctx, fault.Worker, *fault.Chunk)
	if ctx.Err() != nil {
		return false, cancelled(ctx)
	}
	c.apps.Add(res.Applications)
	if err != nil {
		c.dropChunk(err)
		return false, nil
	}
	return c.mergeResult(res), nil
}

func (c *Closer) dropChunk(err error) {
	c.degraded = true
	c.logger.Error("chunk dropped after repeated fault", "error", err)
}

// mergeResult folds a worker result into the authoritative state.
func (c *Closer) mergeResult(r Result) bool {
	if r.Failing != nil {
		c.fail(r.Failing.Left, r.Failing.Right)
		return true
	}
	for _, e := range r.Entries {
		key := ir.KeyOf(e.Elem)
		if idx, ok := c.lookup(key); ok {
			if c.hom != nil && c.imageList[idx] != e.Image {
				c.fail(c.termList[idx], e.Term)
				return true
			}
			continue
		}
		if c.admit(e.Elem, key, e.Term, e.Image) {
			return true
		}
	}
	return false
}

// snapshot captures the read-only view workers use during a pass. The
// slices keep every element known so far: a cancelled pass can leave
// elements past currentMark, and members already indexes them.
func (c *Closer) snapshot() *passView {
	n := len(c.raw)
	pv := &passView{
		ops:         c.ops,
		eval:        c.eval,
		raw:         c.raw[:n:n],
		members:     c.members,
		hom:         c.hom,
		closedMark:  c.closedMark,
		currentMark: c.currentMark,
	}
	if c.termList != nil {
		pv.terms = c.termList[:n:n]
	}
	if c.imageList != nil {
		pv.images = c.imageList[:n:n]
	}
	return pv
}

// foldFresh moves pass-local membership into the main index.
func (c *Closer) foldFresh() {
	for k, v := range c.fresh {
		c.members[k] = v
	}
	c.fresh = nil
}

// passWork counts the tuples a pass will evaluate, or 0 if that overflows.
func passWork(ops []alg.Operation, closedMark, currentMark int) int64 {
	var total int64
	for _, op := range ops {
		if op.Arity() == 0 {
			continue
		}
		all, ok := alg.IntPow(currentMark, op.Arity())
		if !ok {
			return 0
		}
		old, _ := alg.IntPow(closedMark, op.Arity())
		total += int64(all - old)
	}
	return total
}
