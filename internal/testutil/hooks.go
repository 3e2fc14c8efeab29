package testutil

import (
	"context"
	"sync"

	"github.com/roach88/closer/internal/alg"
)

// HookedOperation wraps an operation and runs a hook before every
// application. It counts applications so tests can trigger faults or
// cancellation at a deterministic point.
//
// Thread-safety: ValueAt is safe for concurrent use; the hook runs under
// the internal mutex.
type HookedOperation struct {
	alg.Operation

	mu    sync.Mutex
	calls int64
	hook  func(call int64, args [][]int)
}

// Hook wraps op. The first application is call 1.
func Hook(op alg.Operation, hook func(call int64, args [][]int)) *HookedOperation {
	return &HookedOperation{Operation: op, hook: hook}
}

// ValueAt runs the hook, then op.
func (h *HookedOperation) ValueAt(args [][]int) []int {
	h.before(args)
	return h.Operation.ValueAt(args)
}

func (h *HookedOperation) before(args [][]int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.hook != nil {
		h.hook(h.calls, args)
	}
}

// Calls returns how many times the operation was applied.
func (h *HookedOperation) Calls() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// Reset zeroes the application count.
func (h *HookedOperation) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = 0
}

// CancelAfter cancels a context once op has been applied n times.
func CancelAfter(op alg.Operation, n int64, cancel context.CancelFunc) *HookedOperation {
	return Hook(op, func(call int64, _ [][]int) {
		if call == n {
			cancel()
		}
	})
}

// PanicOn panics whenever match accepts the arguments. With once set it
// panics only the first time.
func PanicOn(op alg.Operation, once bool, match func(args [][]int) bool) *HookedOperation {
	fired := false
	return Hook(op, func(_ int64, args [][]int) {
		if !match(args) || (once && fired) {
			return
		}
		fired = true
		panic("injected operation fault")
	})
}
