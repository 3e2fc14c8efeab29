// Package testutil provides algebra fixtures and fault-injecting
// operations for deterministic closure tests.
package testutil
