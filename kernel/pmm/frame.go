// Package pmm implements the physical frame allocator: a bump cursor over
// [ekernel, MemoryEnd) backed by a recycled free list, handing out zeroed
// 4 KiB frames.
package pmm

import (
	"math"

	"rvkernel/kernel"
	"rvkernel/kernel/mem"
	"rvkernel/kernel/sync"
)

// Frame identifies a physical page by its page number (address >> PageShift).
type Frame mem.PPN

// InvalidFrame is returned by the allocator on exhaustion.
const InvalidFrame = Frame(math.MaxUint64)

// Valid reports whether f names a real frame.
func (f Frame) Valid() bool { return f != InvalidFrame }

// Address returns the physical address of the start of this frame.
func (f Frame) Address() mem.PhysAddr { return mem.PPN(f).Address() }

var (
	errOutOfFrames = &kernel.Error{Module: "pmm", Message: "out of physical frames"}
	errDoubleFree  = &kernel.Error{Module: "pmm", Message: "frame freed more than once"}

	// zeroFrameFn is called to clear a freshly allocated frame. It is a
	// var so tests can substitute a no-op (the host has no identity map
	// of kernel physical memory to write through).
	zeroFrameFn = zeroFrame
)

// Allocator hands out and reclaims physical frames from a fixed range.
// Allocation prefers frames on the recycled free list over bumping the
// cursor.
type Allocator struct {
	mu sync.Spinlock

	base    Frame
	current Frame
	end     Frame

	recycled []Frame
	// outstanding tracks every frame currently on loan so a second
	// Dealloc of the same frame can be rejected instead of silently
	// corrupting the free list.
	outstanding map[Frame]bool
}

// Init configures the allocator to serve frames from [base, end).
func (a *Allocator) Init(base, end Frame) {
	a.mu.Acquire()
	defer a.mu.Release()

	a.base = base
	a.current = base
	a.end = end
	a.recycled = a.recycled[:0]
	a.outstanding = make(map[Frame]bool)
}

// Alloc reserves and zeroes one frame, or returns errOutOfFrames.
func (a *Allocator) Alloc() (Frame, *kernel.Error) {
	a.mu.Acquire()
	var f Frame
	if n := len(a.recycled); n > 0 {
		f = a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
	} else if a.current < a.end {
		f = a.current
		a.current++
	} else {
		a.mu.Release()
		return InvalidFrame, errOutOfFrames
	}
	a.outstanding[f] = true
	a.mu.Release()

	zeroFrameFn(f)
	return f, nil
}

// Dealloc returns a frame previously obtained from Alloc back to the pool.
// It panics on a double free or on a frame that was never issued by this
// allocator: those are kernel bugs, not recoverable conditions.
func (a *Allocator) Dealloc(f Frame) {
	a.mu.Acquire()
	defer a.mu.Release()

	if !a.outstanding[f] {
		panic(errDoubleFree)
	}
	delete(a.outstanding, f)
	a.recycled = append(a.recycled, f)
}

// Stats reports the allocator's internal bookkeeping; used by tests to
// verify that frames are conserved across alloc/dealloc sequences.
func (a *Allocator) Stats() (allocatedSinceBase, recycledLen int) {
	a.mu.Acquire()
	defer a.mu.Release()
	return int(a.current - a.base), len(a.recycled)
}

func zeroFrame(f Frame) {
	kernel.Memset(uintptr(f.Address()), 0, uintptr(mem.PageSize))
}
