package syscall

import (
	"rvkernel/kernel"
	"rvkernel/kernel/kfmt"
	"rvkernel/kernel/sched"
	"rvkernel/kernel/task"
	"rvkernel/kernel/timer"
	"rvkernel/kernel/trap"
)

var (
	errNoCurrentTask  = &kernel.Error{Module: "trap", Message: "trap taken with no current task"}
	errUnhandledCause = &kernel.Error{Module: "trap", Message: "unhandled trap cause"}
)

// Install registers HandleTrap as the kernel's trap entry point. Called
// once by boot after the trampoline vector is live; the indirection
// through trap.EntryFn is what keeps the trap package below this one in
// the import graph.
func Install() {
	trap.EntryFn = HandleTrap
}

// HandleTrap is the supervisor trap handler, dispatched on the decoded
// scause:
//
//   - a user environment call advances sepc past the ecall, dispatches the
//     syscall and resumes the same task;
//   - a fatal fault (page/access fault, illegal instruction) terminates
//     the task with exit code -1 and schedules the next one;
//   - a supervisor timer interrupt re-arms the timer, requeues the task
//     and schedules the next one — the preemption path;
//   - anything else is a kernel bug and panics.
//
// It never returns: every arm ends in a restore or a panic.
func HandleTrap(cause trap.Cause, stval uintptr) {
	cur := sched.Current()
	if cur == nil {
		panic(errNoCurrentTask)
	}

	kfmt.Debugf("trap", "pid=%d cause=%s stval=0x%x\n", int64(cur.PID()), cause.String(), uintptr(stval))

	switch {
	case cause == trap.CauseUserEnvCall:
		inner := cur.ExclusiveAccess()
		inner.TrapContext().Sepc += 4
		cur.ReleaseAccess()

		Dispatch(cur)

		inner = cur.ExclusiveAccess()
		inner.State = task.StateReady
		cur.ReleaseAccess()
		sched.RunTask(cur)

	case cause == trap.CauseSupervisorTimer:
		timer.SetNextTrigger()

		inner := cur.ExclusiveAccess()
		inner.State = task.StateReady
		cur.ReleaseAccess()

		sched.AddTask(cur)
		sched.RunNext()

	case cause.IsFatalFault():
		kfmt.Warnf("trap", "pid=%d %s at 0x%x, killing task\n", int64(cur.PID()), cause.String(), uintptr(stval))
		exitCurrent(cur, -1)

	default:
		panic(errUnhandledCause)
	}
}
