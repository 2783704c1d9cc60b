// Package task implements the process model: a reference-shared Task
// handle owning a PID, a kernel stack, an address space and a trap-context
// frame, with fork-style duplication. The outer handle is shared by the
// current-task slot, the ready queue and the parent's children list, while
// the mutable inner state is guarded by a cell that panics on re-entrant
// access.
package task

import (
	"rvkernel/kernel"
	"rvkernel/kernel/addrspace"
	"rvkernel/kernel/apps"
	"rvkernel/kernel/config"
	"rvkernel/kernel/kstack"
	"rvkernel/kernel/mem"
	"rvkernel/kernel/pid"
	"rvkernel/kernel/timer"
	"rvkernel/kernel/trap"
	"rvkernel/kernel/vmm"
)

// State is the task lifecycle state.
type State int

const (
	StateUnInit State = iota
	StateReady
	StateRunning
	StateExited
)

// String names the state for trap-path logging.
func (s State) String() string {
	switch s {
	case StateUnInit:
		return "UnInit"
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateExited:
		return "Exited"
	}
	return "unknown"
}

var (
	errUnknownApp      = &kernel.Error{Module: "task", Message: "no embedded application with that name"}
	errReentrantAccess = &kernel.Error{Module: "task", Message: "re-entrant exclusive access to task inner state"}
)

// FrameSource is the two-way frame capability a task's address space
// needs: fresh frames for areas and page tables, and somewhere to return
// them when the task is reaped. pmm.Allocator satisfies it.
type FrameSource interface {
	vmm.FrameAllocator
	vmm.FrameDeallocator
}

// Package-wide collaborators, wired once by boot before the first Task is
// created.
var (
	frameAlloc      FrameSource
	pids            pid.Allocator
	stacks          kstack.Pool
	catalog         apps.Catalog
	kernelSatp      uint64
	trampolineFrame mem.PPN
)

// Setup wires the package's collaborators: the physical frame allocator
// every address space draws from, the embedded app catalog New resolves
// names against, the kernel address space's satp token and the physical
// frame of the trampoline page.
func Setup(alloc FrameSource, cat apps.Catalog, satp uint64, trampoline mem.PPN) {
	frameAlloc = alloc
	catalog = cat
	kernelSatp = satp
	trampolineFrame = trampoline
}

// Inner is the mutable half of a Task, reachable only through
// ExclusiveAccess.
type Inner struct {
	State        State
	TrapCtxPPN   mem.PPN
	AddrSpace    *addrspace.AddressSpace
	SyscallTimes [config.MaxSyscallNum]uint32
	Children     []*Task
	ExitCode     int32
}

// TrapContext returns the task's trap-context page, reached through the
// kernel's identity map of physical memory rather than the task's own
// page table.
func (i *Inner) TrapContext() *trap.Context {
	return trap.ContextAt(i.TrapCtxPPN)
}

// Task is the shared outer handle. The immutable fields are fixed at
// creation; everything that changes over the task's life sits in the inner
// cell.
type Task struct {
	pidHandle   pid.Handle
	Name        string
	StartTimeMs uint64

	// KernelStackBottom/Top delimit the task's slot in the kernel-stack
	// pool.
	KernelStackBottom, KernelStackTop mem.VirtAddr

	borrowed bool
	inner    Inner
}

// PID returns the task's process id.
func (t *Task) PID() pid.PID { return t.pidHandle.PID }

// ExclusiveAccess hands out the task's mutable inner state. On a single
// HART the only way a second borrow can happen while one is live is a code
// path that re-enters the task subsystem while already inside it, which is
// a kernel bug: it panics rather than waiting. Release with ReleaseAccess.
func (t *Task) ExclusiveAccess() *Inner {
	if t.borrowed {
		panic(errReentrantAccess)
	}
	t.borrowed = true
	return &t.inner
}

// ReleaseAccess ends the exclusive borrow started by ExclusiveAccess.
func (t *Task) ReleaseAccess() {
	t.borrowed = false
}

// New builds a Ready task running the embedded application name: a fresh
// address space from the app's ELF image, a kernel stack slot, and a trap
// context that resumes at the ELF entry point on the new user stack.
func New(name string) (*Task, *kernel.Error) {
	image, ok := catalog.ELF(name)
	if !ok {
		return nil, errUnknownApp
	}

	space, userSP, entry, err := addrspace.FromELF(frameAlloc, image, trampolineFrame)
	if err != nil {
		return nil, err
	}
	space.SetFrameDeallocator(frameAlloc)

	t := &Task{
		pidHandle:   pid.NewHandle(&pids),
		Name:        name,
		StartTimeMs: timer.NowMs(),
	}
	t.KernelStackBottom, t.KernelStackTop = stacks.Alloc(t.PID())

	ctxPPN, err := space.TrapContextPPN()
	if err != nil {
		return nil, err
	}

	*trap.ContextAt(ctxPPN) = trap.NewUserContext(entry, userSP, kernelSatp, t.KernelStackTop)

	t.inner = Inner{
		State:      StateReady,
		TrapCtxPPN: ctxPPN,
		AddrSpace:  space,
	}
	return t, nil
}

// Reap releases every resource an Exited task still holds: its address
// space (user frames and page-table nodes), its kernel-stack slot and its
// PID. Only the parent calls this, from waitpid, after removing the child
// from its children list.
func (t *Task) Reap() {
	inner := t.ExclusiveAccess()
	inner.AddrSpace.Release()
	inner.AddrSpace = nil
	t.ReleaseAccess()

	stacks.Dealloc(t.PID())
	t.pidHandle.Release()
}
