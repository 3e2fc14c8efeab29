// Package harness provides conformance testing for closure problems.
//
// A scenario names a CUE problem file, closes it serially as a reference,
// closes it again under every other strategy, and asserts on the result.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: lat3_universe
//	description: "Both atoms generate the whole semilattice"
//	problem: problems/lat3.cue
//	strategies: [parallel, equal_workload]
//	threads: 3
//	chunk_size: 2
//	resume: true
//	assertions:
//	  - type: size
//	    count: 3
//	  - type: stop_reason
//	    reason: universe
//	  - type: term
//	    element: [2]
//	    term: "join(x,y)"
//
// # Assertion Types
//
// Assertions are evaluated against the serial reference run:
//
//   - size: the closure has exactly count elements
//   - passes: the closure took exactly count passes
//   - stop_reason: the run stopped for reason
//   - contains / excludes: listed elements are in / not in the closure
//   - term: element is recorded with the given term
//   - failing_equation: the homomorphism fails, optionally on equation
//   - clone_terms: every named clone operation was found
//
// # Cross-Strategy Checks
//
// Independently of assertions, every run is checked for:
//   - generators first, in order
//   - closure under every operation once a fixed point is reported
//   - terms that evaluate to their elements, images that agree with terms
//   - failing equations that hold in the algebra and fail in the target
//   - agreement with the reference (Closer.CompareRuns) when both completed,
//     and the same stop reason otherwise
//
// With resume set, the problem is also closed one pass at a time through
// an in-memory checkpoint store (internal/store) and compared the same way.
//
// # Golden Files
//
// RunWithGolden snapshots the reference closure as canonical JSON under
// testdata/golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
