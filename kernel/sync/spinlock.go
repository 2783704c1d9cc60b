// Package sync provides the spinlock used to guard the kernel's global
// singletons (frame allocator, kernel address space, PID allocator, task
// manager, kernel-stack pool). On a single-HART target a held lock is
// never actually contended by a second HART — the only way two holders
// could race is a bug that re-enters the same subsystem while already
// holding its lock, which this type turns into a livelock rather than
// silent corruption.
package sync

import "sync/atomic"

var (
	// yieldFn is called between failed acquire attempts. It is a var so
	// tests can substitute runtime.Gosched; the production value spins
	// without yielding because there is no second HART to wait on.
	yieldFn = func() {}
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	archAcquireSpinlock(&l.state, 1024)
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// archAcquireSpinlock busy-waits until it can CAS state from 0 to 1. After
// attemptsBeforeYielding failed attempts it calls yieldFn between further
// attempts instead of spinning flat out.
func archAcquireSpinlock(state *uint32, attemptsBeforeYielding uint32) {
	var attempts uint32
	for atomic.SwapUint32(state, 1) != 0 {
		attempts++
		if attempts >= attemptsBeforeYielding {
			yieldFn()
		}
	}
}
