package trap

// The four functions below are implemented in entry_riscv64.s and
// trampoline_riscv64.s.

// TrapHandlerAddr returns the address alltraps jumps to after saving
// user state: the trapVector assembly shim wrapping trapEntry.
func TrapHandlerAddr() uintptr

// allTrapsAddr returns the link address of alltraps, the first byte of
// the trampoline page.
func allTrapsAddr() uintptr

// restoreAddr returns the link address of restoreAll within the trampoline
// page.
func restoreAddr() uintptr

// restoreJump flushes the instruction cache and jumps to restoreAll through
// its trampoline-page virtual address with a0 = the trap-context VA and
// a1 = the user satp value. It does not return.
func restoreJump(restoreVA, userCtxVA uintptr, userSatp uint64)
