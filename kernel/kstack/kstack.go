// Package kstack implements the fixed-capacity kernel-stack pool: a
// compile-time array of config.MaxAppNum config.KernelStackPages-page
// buffers, indexed by a recycled slot cursor and keyed by PID. The array
// lives in the kernel's own .bss because there is no heap to allocate the
// stacks from at the point boot needs them.
package kstack

import (
	"unsafe"

	"rvkernel/kernel"
	"rvkernel/kernel/config"
	"rvkernel/kernel/mem"
	"rvkernel/kernel/pid"
	"rvkernel/kernel/sync"
)

// stackBytes is the size, in bytes, of a single task's kernel stack.
const stackBytes = config.KernelStackPages * config.PageSize

// stacks is the fixed pool of kernel stacks, one slot per concurrently live
// task. It lives in the kernel image's .bss, identity-mapped by
// addrspace.NewKernel like the rest of the kernel's static data.
var stacks [config.MaxAppNum][stackBytes]byte

var errPoolExhausted = &kernel.Error{Module: "kstack", Message: "kernel stack pool exhausted"}
var errUnknownPID = &kernel.Error{Module: "kstack", Message: "no kernel stack recorded for PID"}

// Pool manages allocation of slots in the fixed stacks array. The zero
// value is ready to use.
type Pool struct {
	mu       sync.Spinlock
	cursor   int
	recycled []int
	bySlot   map[pid.PID]int
}

// Alloc reserves a slot for pid and returns the virtual address range
// [bottom, top) of its kernel stack. It panics if every slot is already in
// use: kernel-stack exhaustion is a capacity limit by design, not a
// recoverable condition.
func (p *Pool) Alloc(owner pid.PID) (bottom, top mem.VirtAddr) {
	p.mu.Acquire()
	defer p.mu.Release()

	if p.bySlot == nil {
		p.bySlot = make(map[pid.PID]int)
	}

	var slot int
	if n := len(p.recycled); n > 0 {
		slot = p.recycled[n-1]
		p.recycled = p.recycled[:n-1]
	} else if p.cursor < config.MaxAppNum {
		slot = p.cursor
		p.cursor++
	} else {
		panic(errPoolExhausted)
	}

	p.bySlot[owner] = slot
	return slotRange(slot)
}

// Lookup returns the kernel-stack range previously assigned to owner.
func (p *Pool) Lookup(owner pid.PID) (bottom, top mem.VirtAddr, err *kernel.Error) {
	p.mu.Acquire()
	defer p.mu.Release()

	slot, ok := p.bySlot[owner]
	if !ok {
		return 0, 0, errUnknownPID
	}
	bottom, top = slotRange(slot)
	return bottom, top, nil
}

// Dealloc releases owner's kernel-stack slot back to the pool.
func (p *Pool) Dealloc(owner pid.PID) {
	p.mu.Acquire()
	defer p.mu.Release()

	slot, ok := p.bySlot[owner]
	if !ok {
		return
	}
	delete(p.bySlot, owner)
	p.recycled = append(p.recycled, slot)
}

func slotRange(slot int) (bottom, top mem.VirtAddr) {
	base := mem.VirtAddr(uintptr(unsafe.Pointer(&stacks[slot][0])))
	return base, base + mem.VirtAddr(stackBytes)
}
