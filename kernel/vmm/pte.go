// Package vmm implements Sv39 page tables: the page table entry format,
// a three-level walker and the Map/Unmap/Translate operations built on top
// of it. The walk dereferences page-table frames directly: the kernel
// identity maps every physical frame in its own address space, so a
// page-table frame's physical address doubles as a dereferenceable kernel
// virtual address and no recursive mapping trick is needed.
package vmm

import (
	"unsafe"

	"rvkernel/kernel"
	"rvkernel/kernel/mem"
)

// PTEFlag describes a single bit in an Sv39 page table entry.
type PTEFlag uint64

// Sv39 page table entry flag bits.
const (
	FlagValid PTEFlag = 1 << iota
	FlagRead
	FlagWrite
	FlagExec
	FlagUser
	FlagGlobal
	FlagAccessed
	FlagDirty
)

// ppnShift is the bit offset of the PPN field within a page table entry.
const ppnShift = 10

// ppnMask covers the 44-bit PPN field once shifted into place.
const ppnMask = uint64(1)<<(ppnShift+mem.PPNBits) - 1<<ppnShift

var (
	// ErrInvalidMapping is returned when a virtual address has no mapping.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	// physToVirtFn maps a physical address to a kernel-dereferenceable
	// pointer. It is the identity function once the kernel's physical
	// memory identity map is active; tests substitute a function backed
	// by a plain Go byte slice standing in for RAM.
	physToVirtFn = identityPhysToVirt
)

func identityPhysToVirt(pa mem.PhysAddr) unsafe.Pointer { return unsafe.Pointer(uintptr(pa)) }

// SetPhysToVirtFn overrides how page-table walks dereference a physical
// address. The default treats physical addresses as directly
// dereferenceable pointers, which is only true once the kernel's
// identity map of physical memory is active; packages built on vmm
// (addrspace) that run their own tests on a hosted test runner call this to
// install a fake-RAM-backed stand-in before exercising Map/Unmap/Translate.
// Passing nil puts the identity default back.
func SetPhysToVirtFn(fn func(mem.PhysAddr) unsafe.Pointer) {
	if fn == nil {
		fn = identityPhysToVirt
	}
	physToVirtFn = fn
}

// PhysToVirt resolves a physical address to a kernel-dereferenceable
// pointer through the currently installed hook. Every package that touches
// physical memory directly (addrspace copying ELF bytes into frames, trap
// viewing a trap-context frame) goes through this one seam so a hosted
// test run can back "RAM" with a plain byte slice in a single place.
func PhysToVirt(pa mem.PhysAddr) unsafe.Pointer { return physToVirtFn(pa) }

// pageTableEntry is a single 64-bit Sv39 PTE.
type pageTableEntry uint64

// HasFlags reports whether every bit in flags is set.
func (pte pageTableEntry) HasFlags(flags PTEFlag) bool {
	return uint64(pte)&uint64(flags) == uint64(flags)
}

// SetFlags sets the given bits, leaving others untouched.
func (pte *pageTableEntry) SetFlags(flags PTEFlag) {
	*pte = pageTableEntry(uint64(*pte) | uint64(flags))
}

// ClearFlags clears the given bits, leaving others untouched.
func (pte *pageTableEntry) ClearFlags(flags PTEFlag) {
	*pte = pageTableEntry(uint64(*pte) &^ uint64(flags))
}

// PPN returns the physical page number this entry points to.
func (pte pageTableEntry) PPN() mem.PPN {
	return mem.PPN((uint64(pte) & ppnMask) >> ppnShift)
}

// SetPPN replaces the physical page number this entry points to.
func (pte *pageTableEntry) SetPPN(ppn mem.PPN) {
	*pte = pageTableEntry((uint64(*pte) &^ ppnMask) | (uint64(ppn)<<ppnShift)&ppnMask)
}

func ptePtr(root mem.PPN, index uint64) *pageTableEntry {
	tableAddr := root.Address()
	entryAddr := mem.PhysAddr(uintptr(tableAddr) + uintptr(index)*8)
	return (*pageTableEntry)(physToVirtFn(entryAddr))
}
