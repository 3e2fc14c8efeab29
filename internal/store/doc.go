// Package store provides SQLite-backed durable storage for closure runs.
//
// A run is one closure computation, identified by a UUIDv7 and tied to the
// fingerprint of the problem it closes. Each save writes a checkpoint: the
// marks and pass of the run, plus any elements not yet stored.
//
// # Storage Rules
//
// Append-only elements:
//   - Elements are keyed by (run_id, idx) and inserted with ON CONFLICT DO NOTHING
//   - A later checkpoint of the same run only adds rows with a higher idx
//
// Logical ordering:
//   - Runs carry a seq INTEGER from a store-wide save counter, never timestamps
//   - Listing uses ORDER BY seq ASC, id COLLATE BINARY ASC
//
// Terms by reference:
//   - A term is stored as its operation applied to the element indices of
//     its children, so a closure of n elements stores O(n) term data
//   - Loading resolves references against already loaded terms, so children
//     are shared exactly as they were in the engine
//
// Problem guard:
//   - Loading or extending a run under a different fingerprint fails with
//     a FingerprintError
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Coordinates and terms are stored as RFC 8785 canonical JSON produced by
// internal/ir.
package store
