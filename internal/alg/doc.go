// Package alg models the finite algebras the closure engine runs over.
//
// A SmallAlgebra has universe {0..n-1} and IntOperations given by tables
// or functions. A Power lifts a SmallAlgebra coordinatewise to k-tuples and
// exposes its root so the engine can evaluate through the root tables.
// Any other Algebra is evaluated through its generic Operations.
//
// Operation tables are flattened in Horner order: the entry for
// (a0, a1, …, a_{r-1}) sits at a0 + n·a1 + n²·a2 + …, first argument least
// significant.
package alg
