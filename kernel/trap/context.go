// Package trap implements the trampoline and the trap context: the single
// page mapped at the same virtual address (config.Trampoline) in every
// address space, and the per-task register snapshot at config.TrapContext
// that the trampoline's save/restore routines dump and reload across a
// user/supervisor privilege switch. The context is a plain fixed-layout
// struct written by assembly; RISC-V dispatches every trap through the
// single stvec-addressed vector.
package trap

import (
	"reflect"
	"unsafe"

	"rvkernel/kernel/mem"
	"rvkernel/kernel/vmm"
)

// Context is the per-task trap context: every general-purpose register,
// the two CSRs needed to resume the trapped instruction, and the three
// fields the trap entry needs to find its way into the kernel.
type Context struct {
	// X holds the 32 RISC-V integer registers, x0 (always zero, never
	// written) through x31. a0..a7 are x[10..18).
	X [32]uint64
	// Sstatus is the supervisor status CSR value to restore before sret.
	Sstatus uint64
	// Sepc is the supervisor exception PC: the user instruction to
	// resume at (or resume past, for a completed syscall).
	Sepc uint64
	// KernelSatp is the kernel address space's satp token, loaded by
	// alltraps before it can dereference kernel data structures (it
	// runs with the *user* page table still active until this swap).
	KernelSatp uint64
	// KernelSP is the virtual address of the top of this task's kernel
	// stack, loaded by alltraps right after the satp swap.
	KernelSP uint64
	// TrapHandler is the address of the code alltraps jumps to
	// once it has saved user state and switched to the kernel's page
	// table and stack. See entry.go: it is always the address of the
	// trapVector shim that calls trapEntry, never a pointer to application code in sched or syscall — those
	// packages plug themselves in via EntryFn instead, which keeps this
	// package free of an import cycle back to task/sched/syscall.
	TrapHandler uint64
}

const (
	spRegIndex = 2  // x2
	a0Index    = 10 // x[10+n] is a_n
)

// sstatusSPPBit is bit 8 of sstatus: the supervisor-previous-privilege
// bit. Clearing it (the value this package always constructs) means sret
// drops to user mode.
const sstatusSPPBit = 1 << 8

// NewUserContext builds the trap context written into a freshly created
// task's trap-context page: execution resumes at entry with the user
// stack pointer set to userSP, and any
// trap taken from user mode will land back in the kernel on kernelSP using
// kernelSatp as the active page table.
func NewUserContext(entry, userSP mem.VirtAddr, kernelSatp uint64, kernelSP mem.VirtAddr) Context {
	var ctx Context
	ctx.Sepc = uint64(entry)
	ctx.Sstatus &^= sstatusSPPBit
	ctx.KernelSatp = kernelSatp
	ctx.KernelSP = uint64(kernelSP)
	ctx.TrapHandler = uint64(TrapHandlerAddr())
	ctx.X[spRegIndex] = uint64(userSP)
	return ctx
}

// RegA returns the value of argument/return register a_n (x[10+n]), the
// RISC-V calling-convention slot for syscall argument n or (n==0) the
// return value.
func (c *Context) RegA(n int) uint64 { return c.X[a0Index+n] }

// SetRegA writes argument/return register a_n.
func (c *Context) SetRegA(n int, v uint64) { c.X[a0Index+n] = v }

// ContextAt views the framed trap-context page backed by ppn as a
// *Context. The kernel always reaches a task's trap context this way:
// through its own identity map of physical memory, never through the
// task's own (possibly inactive) page table. The access goes through
// vmm's phys-to-virt seam so hosted tests can back the frame with fake
// RAM.
func ContextAt(ppn mem.PPN) *Context {
	return (*Context)(vmm.PhysToVirt(ppn.Address()))
}

// Bytes views ctx as a raw byte slice, used by task.Fork to copy a trap
// context byte-for-byte into a child task's trap-context page.
func Bytes(ctx *Context) []byte {
	return *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Data: uintptr(unsafe.Pointer(ctx)),
		Len:  int(unsafe.Sizeof(*ctx)),
		Cap:  int(unsafe.Sizeof(*ctx)),
	}))
}
