// Package sched implements the FIFO ready queue of runnable tasks and the
// single-HART processor slot holding the task currently on the CPU, plus
// RunNext/RunTask, the only two ways control ever leaves the kernel.
package sched

import (
	"rvkernel/kernel"
	"rvkernel/kernel/kfmt"
	"rvkernel/kernel/sync"
	"rvkernel/kernel/task"
	"rvkernel/kernel/trap"
)

var (
	errAllTasksComplete = &kernel.Error{Module: "sched", Message: "no ready task left to run"}
	errNotReady         = &kernel.Error{Module: "sched", Message: "dequeued task is not in the Ready state"}
)

var (
	queueMu sync.Spinlock
	queue   []*task.Task

	currentMu sync.Spinlock
	current   *task.Task
)

// AddTask appends t to the tail of the ready queue.
func AddTask(t *task.Task) {
	queueMu.Acquire()
	queue = append(queue, t)
	queueMu.Release()
}

// fetchReadyTask dequeues the head of the ready queue. An empty queue
// means every task has exited: on this fixed-workload kernel that is the
// end of the run, and it panics.
func fetchReadyTask() *task.Task {
	queueMu.Acquire()
	if len(queue) == 0 {
		queueMu.Release()
		panic(errAllTasksComplete)
	}
	t := queue[0]
	queue = queue[1:]
	queueMu.Release()

	inner := t.ExclusiveAccess()
	state := inner.State
	t.ReleaseAccess()
	if state != task.StateReady {
		panic(errNotReady)
	}
	return t
}

// Current returns the task occupying the processor slot, or nil before the
// first RunNext.
func Current() *task.Task {
	currentMu.Acquire()
	t := current
	currentMu.Release()
	return t
}

func setCurrent(t *task.Task) {
	currentMu.Acquire()
	current = t
	currentMu.Release()
}

// QueuedTasks reports the number of tasks waiting in the ready queue; used
// by tests to verify requeue behavior.
func QueuedTasks() int {
	queueMu.Acquire()
	n := len(queue)
	queueMu.Release()
	return n
}

// Reset clears the queue and the processor slot. Test-only seam: the
// package-level queue and slot are process-wide singletons that individual
// tests need to start from empty.
func Reset() {
	queueMu.Acquire()
	queue = nil
	queueMu.Release()
	setCurrent(nil)
}

// RunNext pops the next ready task, installs it in the processor slot and
// restores its user context. Popped means Running, and the state field is
// set to match. Never returns in the normal path: trap.Restore ends in an
// sret.
func RunNext() {
	t := fetchReadyTask()
	setCurrent(t)

	inner := t.ExclusiveAccess()
	inner.State = task.StateRunning
	satp := inner.AddrSpace.Satp()
	t.ReleaseAccess()

	kfmt.Debugf("sched", "run task pid=%d name=%s\n", int64(t.PID()), t.Name)
	trap.Restore(satp)
}

// RunTask resumes t without going through the queue: the post-syscall
// fast path where the current task keeps the CPU. Like RunNext it does not
// return.
func RunTask(t *task.Task) {
	setCurrent(t)

	inner := t.ExclusiveAccess()
	inner.State = task.StateRunning
	satp := inner.AddrSpace.Satp()
	t.ReleaseAccess()

	trap.Restore(satp)
}
