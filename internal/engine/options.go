package engine

import (
	"log/slog"
	"time"

	"github.com/roach88/closer/internal/alg"
	"github.com/roach88/closer/internal/ir"
)

// Strategy selects how a pass is evaluated.
type Strategy int

const (
	// StrategyAuto runs serially with one thread and queue-based otherwise.
	StrategyAuto Strategy = iota
	// StrategySerial evaluates every tuple on the calling goroutine.
	StrategySerial
	// StrategyParallel feeds chunks to workers through bounded channels.
	StrategyParallel
	// StrategyEqualWorkload splits tuples into strided partitions over shared state.
	StrategyEqualWorkload
)

var strategyNames = map[Strategy]string{
	StrategyAuto:          "auto",
	StrategySerial:        "serial",
	StrategyParallel:      "parallel",
	StrategyEqualWorkload: "equal_workload",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseStrategy maps a strategy name back to its value.
func ParseStrategy(name string) (Strategy, bool) {
	for s, n := range strategyNames {
		if n == name {
			return s, true
		}
	}
	return StrategyAuto, false
}

// Defaults for the queue-based strategy.
const (
	DefaultChunkSize      = 1
	DefaultChunkCapacity  = 100000
	DefaultResultCapacity = 10000
	DefaultPollBatch      = 1000
	DefaultIdlePolls      = 100
	DefaultIdleBackoff    = time.Millisecond
)

type config struct {
	terms bool

	homTarget *alg.SmallAlgebra
	homImages []int

	target  *ir.Element
	targets []ir.Element

	constrained bool
	blocks      [][]int
	values      [][]int

	cloneRoot *alg.SmallAlgebra
	cloneOps  []alg.IntOperation
	cloning   bool

	threads      int
	chunkSize    int
	strategy     Strategy
	splitFeeder  bool
	stopEachPass bool
	forceGeneric bool
	maxSize      int

	chunkCapacity  int
	resultCapacity int
	pollBatch      int
	idlePolls      int
	idleBackoff    time.Duration

	checkpoint *ir.Checkpoint

	logger   *slog.Logger
	reporter Reporter
}

func defaultConfig() config {
	return config{
		chunkSize:      DefaultChunkSize,
		chunkCapacity:  DefaultChunkCapacity,
		resultCapacity: DefaultResultCapacity,
		pollBatch:      DefaultPollBatch,
		idlePolls:      DefaultIdlePolls,
		idleBackoff:    DefaultIdleBackoff,
	}
}

// Option configures a Closer.
type Option func(*config)

// WithTerms records a term for every element.
func WithTerms() Option {
	return func(c *config) { c.terms = true }
}

// WithHomomorphism checks that generator i ↦ images[i] extends to a
// homomorphism into target. Implies WithTerms, since a failure is reported
// as an equation.
func WithHomomorphism(target *alg.SmallAlgebra, images []int) Option {
	return func(c *config) {
		c.homTarget = target
		c.homImages = append([]int(nil), images...)
		c.terms = true
	}
}

// WithElementToFind stops the run as soon as e is generated.
func WithElementToFind(e ir.Element) Option {
	return func(c *config) { c.target = &e }
}

// WithElementsToFind records the discovery index of each element and
// stops once all of them are present.
func WithElementsToFind(es []ir.Element) Option {
	return func(c *config) { c.targets = append([]ir.Element(nil), es...) }
}

// WithConstraint stops at the first element whose coordinates are equal
// within every block and which has value[1] at coordinate value[0] for
// every pair in values.
func WithConstraint(blocks, values [][]int) Option {
	return func(c *config) {
		c.constrained = true
		c.blocks = blocks
		c.values = values
	}
}

// WithCloneOperations looks for term operations of root equal to ops.
// root may be nil when the algebra is a PowerAlgebra. Implies WithTerms.
func WithCloneOperations(root *alg.SmallAlgebra, ops ...alg.IntOperation) Option {
	return func(c *config) {
		c.cloning = true
		c.cloneRoot = root
		c.cloneOps = ops
		c.terms = true
	}
}

// WithThreads sets the number of threads. 0 means runtime.NumCPU().
func WithThreads(n int) Option {
	return func(c *config) { c.threads = n }
}

// WithChunkSize sets how many trailing argument positions a worker
// enumerates per chunk.
func WithChunkSize(k int) Option {
	return func(c *config) { c.chunkSize = k }
}

// WithStrategy forces a strategy instead of choosing by thread count.
func WithStrategy(s Strategy) Option {
	return func(c *config) { c.strategy = s }
}

// WithSplitFeeder runs the chunk feeder on its own goroutine instead of
// interleaving it with result merging.
func WithSplitFeeder(split bool) Option {
	return func(c *config) { c.splitFeeder = split }
}

// WithStopEachPass makes Run return after a single pass.
func WithStopEachPass() Option {
	return func(c *config) { c.stopEachPass = true }
}

// WithForceGeneric disables the power-algebra fast path.
func WithForceGeneric() Option {
	return func(c *config) { c.forceGeneric = true }
}

// WithMaxSize stops the run, incomplete, once the answer has n elements.
func WithMaxSize(n int) Option {
	return func(c *config) { c.maxSize = n }
}

// WithQueueCapacity bounds the chunk and result channels.
func WithQueueCapacity(chunks, results int) Option {
	return func(c *config) {
		c.chunkCapacity = chunks
		c.resultCapacity = results
	}
}

// WithPollBatch bounds how many results are merged per orchestrator loop.
func WithPollBatch(n int) Option {
	return func(c *config) { c.pollBatch = n }
}

// WithIdleBackoff makes the orchestrator sleep for d after polls
// consecutive empty polls.
func WithIdleBackoff(polls int, d time.Duration) Option {
	return func(c *config) {
		c.idlePolls = polls
		c.idleBackoff = d
	}
}

// WithCheckpoint resumes from a stored checkpoint instead of the generators.
func WithCheckpoint(cp ir.Checkpoint) Option {
	return func(c *config) { c.checkpoint = &cp }
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithReporter receives progress updates.
func WithReporter(r Reporter) Option {
	return func(c *config) { c.reporter = r }
}
