// Package ir provides the foundational value types of the closure engine.
//
// Elements, operation symbols, terms, equations and checkpoints live here.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Elements are immutable after construction; Raw exposes the backing slice read-only
//   - Terms are trees of Variable and NonVariable nodes and are never mutated
//   - Canonical JSON (RFC 8785 subset, no floats, no null) is the only
//     serialization used for hashing and persistence
package ir
