package engine

import (
	"context"
	"errors"

	"github.com/roach88/closer/internal/alg"
	"github.com/roach88/closer/internal/ir"
	"github.com/roach88/closer/internal/seq"
)

// passView is the read-only state every worker of a pass shares. Nothing
// in it is written until the pass ends.
type passView struct {
	ops         []alg.Operation
	eval        evaluator
	raw         [][]int
	members     map[ir.Key]int
	terms       []ir.Term
	images      []int
	hom         *homomorphism
	closedMark  int
	currentMark int
}

// expand enumerates the tuples of a chunk. When the prefix already uses an
// element of the new window every suffix is visited; otherwise only
// suffixes with an index >= closedMark. Elements absent from the snapshot
// are returned once each, in discovery order, with their terms and images.
func (pv *passView) expand(ctx context.Context, ch Chunk) (Result, error) {
	op := pv.ops[ch.Op]
	r := op.Arity()
	argIdx := make([]int, r)
	copy(argIdx, ch.Prefix)
	suffix := argIdx[len(ch.Prefix):]

	hi := pv.currentMark - 1
	var inc seq.Incrementor
	if anyAtLeast(ch.Prefix, pv.closedMark) {
		inc = seq.NewSequence(suffix, hi)
	} else {
		suffix[len(suffix)-1] = pv.closedMark
		inc = seq.NewSequenceAtLeast(suffix, hi, pv.closedMark)
	}

	var res Result
	local := make(map[ir.Key]int)
	args := make([][]int, r)
	for {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		for j, idx := range argIdx {
			args[j] = pv.raw[idx]
		}
		v := pv.eval.apply(ch.Op, args)
		res.Applications++
		key := ir.KeyOf(v)

		img := -1
		if pv.hom != nil {
			img = pv.hom.image(ch.Op, argIdx, pv.images)
		}
		if idx, ok := pv.members[key]; ok {
			if pv.hom != nil && img != pv.images[idx] {
				res.Failing = &ir.Equation{Left: pv.terms[idx], Right: buildTerm(op.Symbol(), argIdx, pv.terms)}
				return res, nil
			}
		} else if li, ok := local[key]; ok {
			if pv.hom != nil && img != res.Entries[li].Image {
				res.Failing = &ir.Equation{Left: res.Entries[li].Term, Right: buildTerm(op.Symbol(), argIdx, pv.terms)}
				return res, nil
			}
		} else {
			e := Entry{Elem: v, Image: img}
			if pv.terms != nil {
				e.Term = buildTerm(op.Symbol(), argIdx, pv.terms)
			}
			local[key] = len(res.Entries)
			res.Entries = append(res.Entries, e)
		}

		if !inc.Increment() {
			return res, nil
		}
	}
}

// expandSafely is expand with panics turned into a WorkerFault.
func (pv *passView) expandSafely(ctx context.Context, worker int, ch Chunk) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &WorkerFault{Worker: worker, Chunk: &ch, Value: p}
		}
	}()
	return pv.expand(ctx, ch)
}

// worker consumes chunks until the channel closes or ctx is cancelled.
// A panic while expanding a chunk ends the worker; the fault carries the
// chunk so the orchestrator can retry it.
func (pv *passView) worker(ctx context.Context, id int, chunks <-chan Chunk, results chan<- Result) {
	send := func(r Result) bool {
		select {
		case results <- r:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		var ch Chunk
		var ok bool
		select {
		case ch, ok = <-chunks:
		case <-ctx.Done():
			return
		}
		if !ok {
			send(Result{Worker: id, Finished: true})
			return
		}

		res, err := pv.expandSafely(ctx, id, ch)
		if err != nil {
			var wf *WorkerFault
			if errors.As(err, &wf) {
				send(Result{Worker: id, Finished: true, Fault: wf})
			}
			return
		}
		res.Worker = id
		if !send(res) {
			return
		}
	}
}

func anyAtLeast(a []int, min int) bool {
	for _, x := range a {
		if x >= min {
			return true
		}
	}
	return false
}
