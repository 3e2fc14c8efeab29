// Package engine closes a set of generators under the operations of an
// algebra and answers search questions while it does.
//
// ARCHITECTURE:
//
// Worklist Passes:
// The answer is an append-only list split by two marks. A pass applies
// every operation to every tuple over [0,currentMark) that uses at least
// one element of [closedMark,currentMark), appending what is new. A pass
// that adds nothing is a fixed point.
//
// Strategies:
//   - serial: one goroutine, tuples in lexicographic order
//   - parallel: a feeder emits chunks (operation plus fixed argument
//     prefix) into a bounded channel; workers expand chunks against a
//     snapshot of the pass; the calling goroutine merges results
//   - equal_workload: threads strided partitions of the tuple space sharing
//     live state under one RWMutex
//
// Power algebras use a fast path that evaluates every coordinate through
// the root operation tables.
//
// Search:
// Each new element runs the success checks in a fixed order: clone
// membership, single target, multiple targets, constraint, cardinality,
// size limit. A homomorphism target is checked on every application; the
// first disagreement is reported as a failing equation.
//
// Cancellation:
// Run polls its context at every tuple. A cancelled Run returns an error
// wrapping ErrCancelled and keeps its state for the next Run.
package engine
