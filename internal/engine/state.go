package engine

import (
	"github.com/roach88/closer/internal/alg"
	"github.com/roach88/closer/internal/ir"
)

// homomorphism holds the target operations matched to the source
// operations by symbol name.
type homomorphism struct {
	target    *alg.SmallAlgebra
	ops       []alg.IntOperation // parallel to the source operations
	genImages []int              // parallel to the deduplicated generators
}

// image computes the image of op applied to the elements at argIdx.
func (h *homomorphism) image(op int, argIdx []int, images []int) int {
	args := make([]int, len(argIdx))
	for j, idx := range argIdx {
		args[j] = images[idx]
	}
	return h.ops[op].IntValueAt(args)
}

// buildTerm returns op applied to the terms at argIdx.
func buildTerm(sym ir.OperationSymbol, argIdx []int, terms []ir.Term) ir.Term {
	args := make([]ir.Term, len(argIdx))
	for j, idx := range argIdx {
		args[j] = terms[idx]
	}
	return ir.NewNonVariable(sym, args...)
}

// initialize seeds the answer with the generators and the constants of
// the nullary operations, or restores a checkpoint.
func (c *Closer) initialize() {
	c.initialized = true
	if c.cfg.terms {
		c.termList = []ir.Term{}
	}
	if c.hom != nil {
		c.imageList = []int{}
	}
	if cp := c.cfg.checkpoint; cp != nil {
		c.restore(*cp)
		return
	}

	for i, g := range c.gens {
		img := -1
		if c.hom != nil {
			img = c.hom.genImages[i]
		}
		c.push(g.Raw(), g.Key(), c.vars[i], img)
	}
	for i, op := range c.ops {
		if op.Arity() != 0 {
			continue
		}
		v := c.eval.apply(i, nil)
		c.apps.Next()
		key := ir.KeyOf(v)
		if _, ok := c.members[key]; ok {
			continue
		}
		var term ir.Term
		if c.termList != nil {
			term = ir.Constant(op.Symbol())
		}
		img := -1
		if c.hom != nil {
			img = c.hom.ops[i].IntValueAt(nil)
		}
		c.push(v, key, term, img)
	}
	c.closedMark = 0
	c.currentMark = len(c.answer)

	for i := range c.answer {
		if c.check(i) {
			return
		}
	}
}

// restore loads checkpoint state. Search bookkeeping is recomputed from
// the restored elements.
func (c *Closer) restore(cp ir.Checkpoint) {
	for i, e := range cp.Elements {
		var term ir.Term
		if c.termList != nil {
			term = cp.Terms[i]
		}
		img := -1
		if c.imageList != nil {
			img = cp.Images[i]
		}
		c.push(e.Raw(), e.Key(), term, img)
	}
	c.pass = cp.Pass
	c.closedMark = cp.ClosedMark
	c.currentMark = cp.CurrentMark

	for i, e := range c.answer {
		key := e.Key()
		if c.found != nil {
			if idx, ok := c.found[key]; ok && idx < 0 {
				c.found[key] = i
				c.foundCount++
			}
		}
		if c.targetIndex < 0 && c.cfg.target != nil && key == c.targetKey {
			c.targetIndex = i
		}
	}
	if cp.Completed {
		c.completed = true
		c.stop = StopFixedPoint
	}
	c.logger.Info("closure restored", "pass", cp.Pass, "size", len(c.answer), "closed_mark", cp.ClosedMark, "current_mark", cp.CurrentMark)
}

// lookup finds the index of the element with the given key.
func (c *Closer) lookup(key ir.Key) (int, bool) {
	if i, ok := c.members[key]; ok {
		return i, true
	}
	if c.fresh != nil {
		i, ok := c.fresh[key]
		return i, ok
	}
	return 0, false
}

// push appends a new element with its term and image and returns its index.
func (c *Closer) push(v []int, key ir.Key, term ir.Term, img int) int {
	idx := len(c.answer)
	c.answer = append(c.answer, ir.Wrap(v))
	c.raw = append(c.raw, v)
	if c.fresh != nil {
		c.fresh[key] = idx
	} else {
		c.members[key] = idx
	}
	if c.termList != nil {
		c.termList = append(c.termList, term)
	}
	if c.imageList != nil {
		c.imageList = append(c.imageList, img)
	}
	return idx
}

// admit appends a new element and runs the success checks on it.
// It reports whether the run must stop.
func (c *Closer) admit(v []int, key ir.Key, term ir.Term, img int) bool {
	return c.check(c.push(v, key, term, img))
}

// check runs the success checks, in order, on the element at idx:
// clone membership, single target, multiple targets, constraint,
// cardinality (only without a homomorphism), size limit.
func (c *Closer) check(idx int) bool {
	v := c.answer[idx]
	key := v.Key()

	if c.cloneTerms != nil && c.checkClone(c.termList[idx]) {
		c.halt(StopCloneFound)
		return true
	}
	if c.cfg.target != nil && key == c.targetKey {
		c.targetIndex = idx
		c.halt(StopElementFound)
		return true
	}
	if c.found != nil {
		if prev, ok := c.found[key]; ok && prev < 0 {
			c.found[key] = idx
			c.foundCount++
			if c.foundCount == len(c.found) {
				c.halt(StopAllFound)
				return true
			}
		}
	}
	if c.cfg.constrained && satisfies(v.Raw(), c.cfg.blocks, c.cfg.values) {
		c.targetIndex = idx
		c.halt(StopConstraint)
		return true
	}
	if c.hom == nil && c.card > 0 && len(c.answer) >= c.card {
		c.halt(StopUniverse)
		return true
	}
	if c.cfg.maxSize > 0 && len(c.answer) >= c.cfg.maxSize {
		c.halt(StopSizeLimit)
		return true
	}
	return false
}

// checkClone interprets term over the clone root and records it against
// every unmatched target operation it equals. It reports whether all
// targets are now matched.
func (c *Closer) checkClone(term ir.Term) bool {
	interp, err := alg.Interpretation(term, c.cloneRoot, c.vars)
	if err != nil {
		c.logger.Warn("clone interpretation failed", "term", term.String(), "error", err)
		return false
	}
	for _, op := range c.cfg.cloneOps {
		name := op.Symbol().Name
		if _, done := c.cloneTerms[name]; done {
			continue
		}
		if alg.EqualValues(op, interp) {
			c.cloneTerms[name] = term
			c.logger.Info("clone operation found", "operation", name, "term", term.String())
		}
	}
	return len(c.cloneTerms) == len(c.cfg.cloneOps)
}

// satisfies reports whether v is constant on every block and matches
// every (index, value) pair.
func satisfies(v []int, blocks, values [][]int) bool {
	for _, block := range blocks {
		if len(block) == 0 {
			continue
		}
		for _, i := range block[1:] {
			if v[i] != v[block[0]] {
				return false
			}
		}
	}
	for _, pair := range values {
		if v[pair[0]] != pair[1] {
			return false
		}
	}
	return true
}

// halt records a stop condition. Every reason except the size limit means
// the run achieved what it was asked to do.
func (c *Closer) halt(reason StopReason) {
	c.stop = reason
	c.completed = reason != StopSizeLimit
}

// consider handles the value v of op at argIdx: a new element is admitted,
// a known one is checked against the homomorphism. It reports whether the
// run must stop.
func (c *Closer) consider(op int, argIdx []int, v []int, key ir.Key) bool {
	if idx, ok := c.lookup(key); ok {
		if c.hom == nil {
			return false
		}
		if img := c.hom.image(op, argIdx, c.imageList); img != c.imageList[idx] {
			c.fail(c.termList[idx], buildTerm(c.ops[op].Symbol(), argIdx, c.termList))
			return true
		}
		return false
	}

	var term ir.Term
	if c.termList != nil {
		term = buildTerm(c.ops[op].Symbol(), argIdx, c.termList)
	}
	img := -1
	if c.hom != nil {
		img = c.hom.image(op, argIdx, c.imageList)
	}
	return c.admit(v, key, term, img)
}

// fail records a failing equation and stops the run.
func (c *Closer) fail(left, right ir.Term) {
	c.failing = &ir.Equation{Left: left, Right: right}
	c.logger.Info("homomorphism does not extend", "equation", c.failing.String())
	c.halt(StopHomomorphism)
}

// Checkpoint snapshots the closure state for a later resume.
func (c *Closer) Checkpoint() ir.Checkpoint {
	cp := ir.Checkpoint{
		Pass:        c.pass,
		ClosedMark:  c.closedMark,
		CurrentMark: c.currentMark,
		Completed:   c.stop == StopFixedPoint || c.stop == StopUniverse,
		Elements:    c.Answer(),
	}
	if c.termList != nil {
		cp.Terms = append([]ir.Term(nil), c.termList...)
	}
	if c.imageList != nil {
		cp.Images = append([]int(nil), c.imageList...)
	}
	return cp
}
