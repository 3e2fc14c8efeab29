package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"time"

	"github.com/roach88/closer/internal/alg"
	"github.com/roach88/closer/internal/ir"
)

// StopReason says why the last Run returned.
type StopReason string

const (
	StopNone         StopReason = ""
	StopFixedPoint   StopReason = "fixed_point"
	StopUniverse     StopReason = "universe"
	StopElementFound StopReason = "element_found"
	StopAllFound     StopReason = "all_found"
	StopCloneFound   StopReason = "clone_found"
	StopConstraint   StopReason = "constraint"
	StopHomomorphism StopReason = "homomorphism_failed"
	StopSizeLimit    StopReason = "size_limit"
	StopPaused       StopReason = "paused"
)

// Closer computes the subalgebra generated by a set of elements.
//
// State is append-only and survives across Run calls: a cancelled or
// paused run resumes where it stopped. Between passes the answer is split
// by two marks: elements below closedMark have had every operation applied
// to every tuple of them; elements in [closedMark, currentMark) are new in
// the current pass.
//
// Thread-safety model:
//   - Run and the accessors must not be called concurrently
//   - strategies spawn their own goroutines and join them before Run returns
type Closer struct {
	alg   alg.Algebra
	ops   []alg.Operation
	gens  []ir.Element
	vars  []ir.Variable
	card  int
	cfg   config
	eval  evaluator
	power bool

	answer      []ir.Element
	raw         [][]int
	members     map[ir.Key]int
	fresh       map[ir.Key]int // pass-local membership while workers read members
	termList    []ir.Term      // parallel to answer; nil unless terms are tracked
	imageList   []int          // parallel to answer; nil without a homomorphism
	closedMark  int
	currentMark int
	pass        int

	hom     *homomorphism
	failing *ir.Equation

	targetKey   ir.Key
	targetIndex int
	found       map[ir.Key]int
	foundCount  int

	cloneTerms map[string]ir.Term
	cloneRoot  *alg.SmallAlgebra

	initialized bool
	completed   bool
	stop        StopReason
	degraded    bool

	apps     *Counter
	logger   *slog.Logger
	reporter Reporter
}

// New validates the configuration and prepares a Closer. Duplicate
// generators are dropped, keeping the first occurrence.
func New(a alg.Algebra, gens []ir.Element, opts ...Option) (*Closer, error) {
	if a == nil {
		return nil, configError(ErrCodeBadOption, "algebra is nil")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Closer{
		alg:         a,
		ops:         a.Operations(),
		card:        a.Cardinality(),
		cfg:         cfg,
		members:     make(map[ir.Key]int),
		targetIndex: -1,
		apps:        NewCounter(),
		logger:      cfg.logger,
		reporter:    cfg.reporter,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.reporter == nil {
		c.reporter = nopReporter{}
	}
	if c.cfg.threads == 0 {
		c.cfg.threads = runtime.NumCPU()
	}

	if err := c.validateOptions(); err != nil {
		return nil, err
	}
	if err := c.setGenerators(gens); err != nil {
		return nil, err
	}
	if err := c.setHomomorphism(gens); err != nil {
		return nil, err
	}
	if err := c.setClone(); err != nil {
		return nil, err
	}
	if err := c.validateCheckpoint(); err != nil {
		return nil, err
	}

	if p, ok := a.(alg.PowerAlgebra); ok && !cfg.forceGeneric {
		c.eval = newPowerEvaluator(p)
		c.power = true
	} else {
		c.eval = newGenericEvaluator(c.ops)
	}
	if cfg.target != nil {
		c.targetKey = cfg.target.Key()
	}
	if len(cfg.targets) > 0 {
		c.found = make(map[ir.Key]int, len(cfg.targets))
		for _, e := range cfg.targets {
			c.found[e.Key()] = -1
		}
	}
	return c, nil
}

func (c *Closer) validateOptions() error {
	switch {
	case c.cfg.threads < 0:
		return configError(ErrCodeBadOption, "threads must be non-negative, got %d", c.cfg.threads)
	case c.cfg.chunkSize < 1:
		return configError(ErrCodeBadOption, "chunk size must be positive, got %d", c.cfg.chunkSize)
	case c.cfg.chunkCapacity < 1 || c.cfg.resultCapacity < 1:
		return configError(ErrCodeBadOption, "queue capacities must be positive")
	case c.cfg.pollBatch < 1:
		return configError(ErrCodeBadOption, "poll batch must be positive, got %d", c.cfg.pollBatch)
	case c.cfg.maxSize < 0:
		return configError(ErrCodeBadOption, "max size must be non-negative, got %d", c.cfg.maxSize)
	}
	if _, ok := strategyNames[c.cfg.strategy]; !ok {
		return configError(ErrCodeBadOption, "unknown strategy %d", c.cfg.strategy)
	}
	for _, pair := range c.cfg.values {
		if len(pair) != 2 {
			return configError(ErrCodeBadOption, "constraint value %v is not an (index, value) pair", pair)
		}
	}
	if coords, _, _, ok := tupleShape(c.alg); ok && c.cfg.constrained {
		for _, block := range c.cfg.blocks {
			for _, i := range block {
				if i < 0 || i >= coords {
					return configError(ErrCodeBadOption, "constraint block index %d outside %d coordinates", i, coords)
				}
			}
		}
		for _, pair := range c.cfg.values {
			if pair[0] < 0 || pair[0] >= coords {
				return configError(ErrCodeBadOption, "constraint value index %d outside %d coordinates", pair[0], coords)
			}
		}
	}
	return nil
}

func (c *Closer) setGenerators(gens []ir.Element) error {
	coords, size, root, shaped := tupleShape(c.alg)
	seen := make(map[ir.Key]bool, len(gens))
	for i, g := range gens {
		if shaped {
			if g.Len() != coords {
				return configError(ErrCodeBadGenerator, "generator %d has %d coordinates, want %d", i, g.Len(), coords)
			}
			for j, x := range g.Raw() {
				if x < 0 || x >= size {
					return configError(ErrCodeBadGenerator, "generator %d coordinate %d is %d, outside %s", i, j, x, root)
				}
			}
		}
		if seen[g.Key()] {
			continue
		}
		seen[g.Key()] = true
		c.gens = append(c.gens, g)
	}
	c.vars = ir.StandardVariables(len(c.gens))
	return nil
}

// tupleShape reports the tuple length and root size of algebras whose
// elements are tuples over a known root.
func tupleShape(a alg.Algebra) (coords, size int, root string, ok bool) {
	switch a := a.(type) {
	case alg.PowerAlgebra:
		return a.Power(), a.Root().Size(), a.Root().Name(), true
	case *alg.SmallAlgebra:
		return 1, a.Size(), a.Name(), true
	}
	return 0, 0, "", false
}

func (c *Closer) setHomomorphism(gens []ir.Element) error {
	target := c.cfg.homTarget
	if target == nil {
		if c.cfg.homImages != nil {
			return configError(ErrCodeBadOption, "homomorphism target is nil")
		}
		return nil
	}
	if !alg.Similar(c.alg, target) {
		return configError(ErrCodeDissimilar, "%s and %s have different similarity types", c.alg.Name(), target.Name())
	}
	if len(c.cfg.homImages) != len(gens) {
		return configError(ErrCodeGeneratorCount, "%d images for %d generators", len(c.cfg.homImages), len(gens))
	}

	first := make(map[ir.Key]int, len(gens))
	for i, g := range gens {
		img := c.cfg.homImages[i]
		if img < 0 || img >= target.Size() {
			return configError(ErrCodeBadOption, "image %d of generator %d is outside %s", img, i, target.Name())
		}
		if j, dup := first[g.Key()]; dup {
			if c.cfg.homImages[j] != img {
				return configError(ErrCodeBadOption, "generators %d and %d are equal but map to %d and %d", j, i, c.cfg.homImages[j], img)
			}
			continue
		}
		first[g.Key()] = i
	}

	h := &homomorphism{target: target, ops: make([]alg.IntOperation, len(c.ops))}
	for i, op := range c.ops {
		h.ops[i], _ = target.Operation(op.Symbol().Name)
	}
	h.genImages = make([]int, len(c.gens))
	for i, g := range c.gens {
		h.genImages[i] = c.cfg.homImages[first[g.Key()]]
	}
	c.hom = h
	return nil
}

func (c *Closer) setClone() error {
	if !c.cfg.cloning {
		return nil
	}
	root := c.cfg.cloneRoot
	if root == nil {
		p, ok := c.alg.(alg.PowerAlgebra)
		if !ok {
			return configError(ErrCodeNoRoot, "clone test on %s needs a root algebra", c.alg.Name())
		}
		root = p.Root()
	}
	if !alg.Similar(c.alg, root) {
		return configError(ErrCodeDissimilar, "clone root %s does not match %s", root.Name(), c.alg.Name())
	}
	for _, op := range c.cfg.cloneOps {
		if op.Arity() != len(c.gens) {
			return configError(ErrCodeBadOption, "clone operation %s has arity %d, want %d (one per generator)", op.Symbol().Name, op.Arity(), len(c.gens))
		}
		if op.SetSize() != root.Size() {
			return configError(ErrCodeBadOption, "clone operation %s acts on %d elements, want %d", op.Symbol().Name, op.SetSize(), root.Size())
		}
	}
	c.cloneRoot = root
	c.cloneTerms = make(map[string]ir.Term, len(c.cfg.cloneOps))
	return nil
}

func (c *Closer) validateCheckpoint() error {
	cp := c.cfg.checkpoint
	if cp == nil {
		return nil
	}
	n := len(cp.Elements)
	switch {
	case cp.ClosedMark < 0 || cp.ClosedMark > cp.CurrentMark || cp.CurrentMark > n:
		return configError(ErrCodeBadCheckpoint, "marks %d/%d inconsistent with %d elements", cp.ClosedMark, cp.CurrentMark, n)
	case c.cfg.terms && len(cp.Terms) != n:
		return configError(ErrCodeBadCheckpoint, "checkpoint has %d terms for %d elements", len(cp.Terms), n)
	case c.hom != nil && len(cp.Images) != n:
		return configError(ErrCodeBadCheckpoint, "checkpoint has %d images for %d elements", len(cp.Images), n)
	case n < len(c.gens):
		return configError(ErrCodeBadCheckpoint, "checkpoint has %d elements but there are %d generators", n, len(c.gens))
	}
	for i, g := range c.gens {
		if !cp.Elements[i].Equal(g) {
			return configError(ErrCodeBadCheckpoint, "checkpoint element %d is %s, want generator %s", i, cp.Elements[i], g)
		}
	}
	return nil
}

// Run closes the generators under the operations until a fixed point, a
// stop condition, or cancellation. On cancellation it returns nil and an
// error wrapping ErrCancelled; state is kept for a later Run.
func (c *Closer) Run(ctx context.Context) ([]ir.Element, error) {
	if !c.initialized {
		c.initialize()
	}
	if c.stop != StopNone && c.stop != StopPaused {
		return c.Answer(), nil
	}
	c.stop = StopNone

	start := time.Now()
	c.logger.Info("closure starting",
		"algebra", c.alg.Name(),
		"generators", len(c.gens),
		"size", len(c.answer),
		"power", c.power,
	)

	for c.closedMark < c.currentMark {
		c.pass++
		c.reporter.SetPass(c.pass, len(c.answer))

		stopped, err := c.runPass(ctx)
		if err != nil {
			c.pass--
			c.logger.Info("closure cancelled", "pass", c.pass+1, "size", len(c.answer))
			return nil, err
		}
		c.reporter.SetSize(len(c.answer))
		if stopped {
			break
		}

		c.closedMark, c.currentMark = c.currentMark, len(c.answer)
		c.logger.Debug("pass finished", "pass", c.pass, "size", c.currentMark, "new", c.currentMark-c.closedMark)

		if c.hom == nil && c.card > 0 && c.currentMark >= c.card {
			c.halt(StopUniverse)
			break
		}
		if c.cfg.stopEachPass && c.closedMark < c.currentMark {
			c.stop = StopPaused
			break
		}
	}
	if c.stop == StopNone {
		c.completed = true
		c.stop = StopFixedPoint
	}

	c.logger.Info("closure finished",
		"reason", string(c.stop),
		"completed", c.completed,
		"size", len(c.answer),
		"passes", c.pass,
		"applications", c.apps.Current(),
		"elapsed", time.Since(start),
	)
	return c.Answer(), nil
}

func (c *Closer) runPass(ctx context.Context) (bool, error) {
	switch c.strategy() {
	case StrategyParallel:
		return c.parallelPass(ctx)
	case StrategyEqualWorkload:
		return c.equalPass(ctx)
	default:
		return c.serialPass(ctx)
	}
}

func (c *Closer) strategy() Strategy {
	if c.cfg.strategy != StrategyAuto {
		return c.cfg.strategy
	}
	if c.cfg.threads > 1 {
		return StrategyParallel
	}
	return StrategySerial
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
}

// Answer returns the elements found so far, in discovery order.
func (c *Closer) Answer() []ir.Element { return slices.Clone(c.answer) }

// Size returns the number of elements found so far.
func (c *Closer) Size() int { return len(c.answer) }

// Completed reports whether the answer is the full closure, or the run
// stopped because a search target or a failing equation was found.
func (c *Closer) Completed() bool { return c.completed }

// StopReason reports why the last Run returned.
func (c *Closer) StopReason() StopReason { return c.stop }

// Pass returns the number of completed or stopped passes.
func (c *Closer) Pass() int { return c.pass }

// Marks returns closedMark and currentMark.
func (c *Closer) Marks() (closed, current int) { return c.closedMark, c.currentMark }

// Applications returns how many times an operation has been applied.
func (c *Closer) Applications() int64 { return c.apps.Current() }

// Generators returns the deduplicated generators.
func (c *Closer) Generators() []ir.Element { return slices.Clone(c.gens) }

// Variables returns the variables bound to the generators, in order.
func (c *Closer) Variables() []ir.Variable { return slices.Clone(c.vars) }

// Degraded reports whether a chunk was dropped after repeated worker faults.
func (c *Closer) Degraded() bool { return c.degraded }

// Algebra returns the algebra being closed in.
func (c *Closer) Algebra() alg.Algebra { return c.alg }

// Term returns the term recorded for e, or nil.
func (c *Closer) Term(e ir.Element) ir.Term {
	if c.termList == nil {
		return nil
	}
	if i, ok := c.members[e.Key()]; ok {
		return c.termList[i]
	}
	return nil
}

// Terms maps each element key to its term. Nil unless terms are tracked.
func (c *Closer) Terms() map[ir.Key]ir.Term {
	if c.termList == nil {
		return nil
	}
	out := make(map[ir.Key]ir.Term, len(c.answer))
	for i, e := range c.answer {
		out[e.Key()] = c.termList[i]
	}
	return out
}

// Homomorphism maps each element key to its image. Nil without a target.
func (c *Closer) Homomorphism() map[ir.Key]int {
	if c.imageList == nil {
		return nil
	}
	out := make(map[ir.Key]int, len(c.answer))
	for i, e := range c.answer {
		out[e.Key()] = c.imageList[i]
	}
	return out
}

// FailingEquation returns the witness that the homomorphism does not
// extend, or nil.
func (c *Closer) FailingEquation() *ir.Equation { return c.failing }

// TargetIndex returns the discovery index of the single target or of the
// element satisfying the constraint, or -1.
func (c *Closer) TargetIndex() int { return c.targetIndex }

// FoundIndices maps each multiple-search target to its discovery index,
// or -1 while it is missing.
func (c *Closer) FoundIndices() map[ir.Key]int {
	return maps.Clone(c.found)
}

// AllElementsFound reports whether every multiple-search target is present.
func (c *Closer) AllElementsFound() bool {
	return c.found != nil && c.foundCount == len(c.found)
}

// CloneTerms maps each clone target operation found so far to a term
// whose interpretation equals it.
func (c *Closer) CloneTerms() map[string]ir.Term {
	return maps.Clone(c.cloneTerms)
}
