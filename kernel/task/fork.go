package task

import (
	"rvkernel/kernel"
	"rvkernel/kernel/addrspace"
	"rvkernel/kernel/pid"
	"rvkernel/kernel/timer"
	"rvkernel/kernel/trap"
)

// Fork duplicates parent: a fresh PID and kernel stack, a byte-for-byte
// clone of the parent's address space, and a trap context
// copied from the parent's with a0 forced to 0 so the child observes fork
// returning 0. The child is appended to the parent's children list and
// returned Ready; the syscall layer enqueues it and writes the child's PID
// into the parent's a0.
func Fork(parent *Task) (*Task, *kernel.Error) {
	pInner := parent.ExclusiveAccess()
	defer parent.ReleaseAccess()

	childSpace, err := addrspace.FromExistedUser(frameAlloc, pInner.AddrSpace, trampolineFrame)
	if err != nil {
		return nil, err
	}
	childSpace.SetFrameDeallocator(frameAlloc)

	child := &Task{
		pidHandle:   pid.NewHandle(&pids),
		Name:        parent.Name,
		StartTimeMs: timer.NowMs(),
	}
	child.KernelStackBottom, child.KernelStackTop = stacks.Alloc(child.PID())

	ctxPPN, err := childSpace.TrapContextPPN()
	if err != nil {
		return nil, err
	}

	// FromExistedUser already cloned the trap-context page along with the
	// rest of the parent's framed areas; re-copying from the parent's
	// live context picks up any register the dispatcher mutated since.
	childCtx := trap.ContextAt(ctxPPN)
	copy(trap.Bytes(childCtx), trap.Bytes(pInner.TrapContext()))
	childCtx.SetRegA(0, 0)
	childCtx.KernelSP = uint64(child.KernelStackTop)

	child.inner = Inner{
		State:      StateReady,
		TrapCtxPPN: ctxPPN,
		AddrSpace:  childSpace,
	}

	pInner.Children = append(pInner.Children, child)
	return child, nil
}
