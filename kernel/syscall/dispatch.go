package syscall

import (
	"rvkernel/kernel/config"
	"rvkernel/kernel/kfmt"
	"rvkernel/kernel/sched"
	"rvkernel/kernel/task"
)

// Dispatch decodes and executes the system call the current task trapped
// with: a7 carries the number, a0..a2 the arguments, and the result is
// written back into a0. The per-task syscall counter is bumped before
// dispatch so taskinfo observes the call that is currently executing.
//
// exit and yield hand the CPU away and never reach the write-back at the
// bottom; every other syscall returns here so its result lands in a0
// before the handler resumes the task.
func Dispatch(cur *task.Task) {
	inner := cur.ExclusiveAccess()
	ctx := inner.TrapContext()
	num := ctx.RegA(7)
	a0, a1, a2 := ctx.RegA(0), ctx.RegA(1), ctx.RegA(2)
	if num < config.MaxSyscallNum {
		inner.SyscallTimes[num]++
	}
	cur.ReleaseAccess()

	kfmt.Debugf("syscall", "pid=%d %s(%d) a0=0x%x a1=0x%x a2=0x%x\n",
		int64(cur.PID()), name(num), num, a0, a1, a2)

	var ret int64
	switch num {
	case SysExit:
		exitCurrent(cur, int32(a0))
	case SysYield:
		yieldCurrent(cur)
	case SysWrite:
		ret = sysWrite(cur, a0, a1, a2)
	case SysGettimeofday:
		ret = sysGettimeofday(cur, a0)
	case SysGetpid:
		ret = int64(cur.PID())
	case SysMunmap:
		ret = sysMunmap(cur, a0, a1)
	case SysFork:
		ret = sysFork(cur)
	case SysMmap:
		ret = sysMmap(cur, a0, a1, a2)
	case SysWaitpid:
		ret = sysWaitpid(cur, int64(a0), a1)
	case SysTaskinfo:
		ret = sysTaskinfo(cur, a0)
	default:
		kfmt.Warnf("syscall", "pid=%d unsupported syscall %d, killing task\n", int64(cur.PID()), num)
		exitCurrent(cur, -1)
	}

	inner = cur.ExclusiveAccess()
	inner.TrapContext().SetRegA(0, uint64(ret))
	cur.ReleaseAccess()

	kfmt.Debugf("syscall", "pid=%d %s ret=%d\n", int64(cur.PID()), name(num), ret)
}

// exitCurrent marks the current task Exited with the given code and hands
// the CPU to the next ready task. The task is not requeued; it stays on
// its parent's children list until waitpid reaps it.
func exitCurrent(cur *task.Task, code int32) {
	inner := cur.ExclusiveAccess()
	inner.State = task.StateExited
	inner.ExitCode = code
	cur.ReleaseAccess()

	kfmt.Infof("task", "pid=%d exited with code %d\n", int64(cur.PID()), code)
	sched.RunNext()
}

// yieldCurrent implements sys_yield: result 0 in a0, back of the ready
// queue, next task runs.
func yieldCurrent(cur *task.Task) {
	inner := cur.ExclusiveAccess()
	inner.TrapContext().SetRegA(0, 0)
	inner.State = task.StateReady
	cur.ReleaseAccess()

	sched.AddTask(cur)
	sched.RunNext()
}
