// Package pid implements the PID allocator: a monotonic counter with
// free-list recycling, the same bump-or-recycle policy as the physical
// frame allocator.
package pid

import (
	"rvkernel/kernel"
	"rvkernel/kernel/sync"
)

// PID identifies a task. PIDs are non-negative and recycled after the
// owning task is reaped by waitpid.
type PID int64

var errDoubleRelease = &kernel.Error{Module: "pid", Message: "PID handle released more than once"}

// Allocator hands out and reclaims PIDs. The zero value is ready to use,
// starting from PID 0.
type Allocator struct {
	mu       sync.Spinlock
	current  PID
	recycled []PID
}

// Alloc returns a fresh or recycled PID.
func (a *Allocator) Alloc() PID {
	a.mu.Acquire()
	defer a.mu.Release()

	if n := len(a.recycled); n > 0 {
		p := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return p
	}
	p := a.current
	a.current++
	return p
}

// Dealloc returns id to the free list so a later Alloc can reuse it.
func (a *Allocator) Dealloc(id PID) {
	a.mu.Acquire()
	defer a.mu.Release()
	a.recycled = append(a.recycled, id)
}

// Handle is an owning wrapper around a PID: Release must be called exactly
// once, when the owning task is reaped.
type Handle struct {
	PID     PID
	alloc   *Allocator
	release bool
}

// NewHandle allocates a PID from alloc and wraps it in an owning Handle.
func NewHandle(alloc *Allocator) Handle {
	return Handle{PID: alloc.Alloc(), alloc: alloc, release: true}
}

// Release returns the PID to alloc. Calling Release more than once is a
// kernel bug; like pmm's double-free guard, it panics rather than silently
// corrupting the free list.
func (h *Handle) Release() {
	if !h.release {
		panic(errDoubleRelease)
	}
	h.release = false
	h.alloc.Dealloc(h.PID)
}
