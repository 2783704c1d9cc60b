// Package config collects the compile-time constants that describe the
// target platform's memory map and the kernel's fixed capacity limits.
package config

// PageShift is log2(PageSize).
const PageShift = 12

// PageSize is the MMU page size in bytes.
const PageSize = 1 << PageShift

// ClockFreq is the frequency, in Hz, of the timer used to derive wall-clock
// time from the `time` CSR.
const ClockFreq = 12500000

// MemoryEnd is the first physical address not backed by usable RAM.
const MemoryEnd = 0x8800_0000

// KernelStackPages is the number of pages reserved for each task's kernel
// stack.
const KernelStackPages = 20

// UserStackPages is the number of pages reserved for each task's user stack.
const UserStackPages = 20

// MaxAppNum bounds the number of concurrently live tasks (and therefore the
// size of the kernel stack pool).
const MaxAppNum = 10

// MaxSyscallNum bounds the syscall number space tracked by per-task
// counters; see task.Inner.SyscallTimes and the taskinfo syscall.
const MaxSyscallNum = 500

// Trampoline is the fixed virtual address, identical in every address
// space, at which the single trampoline page (trap save/restore code) is
// mapped. It occupies the last page of the 39-bit (sign-extended) address
// space.
const Trampoline = ^uintptr(0) - PageSize + 1

// TrapContext is the fixed virtual address of the per-task trap context
// page, immediately below the trampoline.
const TrapContext = Trampoline - PageSize
