package trap

import (
	"rvkernel/kernel"
	"rvkernel/kernel/config"
	"rvkernel/kernel/cpu"
	"rvkernel/kernel/mem"
)

// EntryFn is invoked by trapEntry with the decoded trap cause and the
// stval CSR every time a user task traps into the kernel. The syscall
// layer installs the real handler at boot; keeping it a var breaks the
// import cycle this package would otherwise have back to task/sched/syscall.
var EntryFn func(cause Cause, stval uintptr)

var errNoEntryFn = &kernel.Error{Module: "trap", Message: "trap taken before a handler was installed"}
var errEntryReturned = &kernel.Error{Module: "trap", Message: "trap handler returned instead of restoring a task"}

// trapEntry is the first Go code to run after alltraps has saved user
// state, switched to the kernel page table and loaded the task's kernel
// stack. Its address (via the trapVector assembly shim) is what
// NewUserContext stores in Context.TrapHandler. It never returns: EntryFn
// always ends in a Restore or a panic.
func trapEntry() {
	if EntryFn == nil {
		panic(errNoEntryFn)
	}
	EntryFn(Cause(cpu.ReadScause()), cpu.ReadStval())
	panic(errEntryReturned)
}

// restoreJumpFn is substituted by sched's tests; the real implementation
// ends in an sret to user mode, which a hosted test runner cannot survive.
var restoreJumpFn = restoreJump

// SetRestoreJumpFn overrides the final jump into the restoreAll trampoline
// routine. Follows the same test-seam convention as vmm.SetFlushTLBEntryFn:
// hosted tests swap in a recorder before exercising the scheduling path,
// and passing nil puts the real routine back.
func SetRestoreJumpFn(fn func(restoreVA, userCtxVA uintptr, userSatp uint64)) {
	if fn == nil {
		fn = restoreJump
	}
	restoreJumpFn = fn
}

// TrampolinePhysFrame returns the physical frame holding the trampoline
// page. Before paging is enabled the kernel runs identity-mapped, so
// alltraps' link address doubles as its physical address; boot captures
// this frame once and hands it to every address-space constructor.
func TrampolinePhysFrame() mem.PPN {
	return mem.PhysAddr(allTrapsAddr()).Floor()
}

// Init points stvec at the trampoline so that every subsequent trap enters
// alltraps through its fixed high virtual address, valid in both kernel
// and user space. Must be called after the kernel address space is active.
func Init() {
	cpu.WriteStvec(uintptr(config.Trampoline))
}

// Restore hands the CPU to the task whose address space is identified by
// userSatp, resuming it from the register snapshot at config.TrapContext
// inside that space. This is the only way out of the kernel and it does
// not return.
func Restore(userSatp uint64) {
	off := restoreAddr() - allTrapsAddr()
	restoreJumpFn(uintptr(config.Trampoline)+off, uintptr(config.TrapContext), userSatp)
}
