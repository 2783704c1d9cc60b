package sched

import (
	"testing"

	"rvkernel/kernel/addrspace"
	"rvkernel/kernel/mem"
	"rvkernel/kernel/task"
	"rvkernel/kernel/trap"
	"rvkernel/kernel/vmm"
)

// readyTask builds a bare Ready task with just enough inner state for
// RunNext to compute a satp: a page table rooted at the given frame.
func readyTask(t *testing.T, root mem.PPN) *task.Task {
	t.Helper()
	tk := &task.Task{}
	inner := tk.ExclusiveAccess()
	inner.State = task.StateReady
	inner.AddrSpace = &addrspace.AddressSpace{PageTable: &vmm.PageTable{Root: root}}
	tk.ReleaseAccess()
	return tk
}

// installRestoreRecorder replaces the restore jump with a recorder so the
// run functions return to the test instead of sret-ing into user mode.
func installRestoreRecorder(t *testing.T) *[]uint64 {
	t.Helper()
	var restored []uint64
	trap.SetRestoreJumpFn(func(restoreVA, userCtxVA uintptr, userSatp uint64) {
		restored = append(restored, userSatp)
	})
	t.Cleanup(func() { trap.SetRestoreJumpFn(nil) })
	return &restored
}

func satpFor(root mem.PPN) uint64 {
	return (&vmm.PageTable{Root: root}).Satp()
}

func TestRunNextIsFIFO(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	restored := installRestoreRecorder(t)

	first := readyTask(t, 0x100)
	second := readyTask(t, 0x200)
	AddTask(first)
	AddTask(second)

	RunNext()
	if Current() != first {
		t.Fatal("expected the first enqueued task to run first")
	}
	inner := first.ExclusiveAccess()
	if inner.State != task.StateRunning {
		t.Fatalf("expected popped task to be Running; got %s", inner.State)
	}
	first.ReleaseAccess()

	RunNext()
	if Current() != second {
		t.Fatal("expected the second enqueued task to run second")
	}
	if QueuedTasks() != 0 {
		t.Fatalf("expected an empty queue; got %d entries", QueuedTasks())
	}

	want := []uint64{satpFor(0x100), satpFor(0x200)}
	if len(*restored) != 2 || (*restored)[0] != want[0] || (*restored)[1] != want[1] {
		t.Fatalf("expected restores with satp %#x,%#x; got %v", want[0], want[1], *restored)
	}
}

func TestRunTaskKeepsQueueUntouched(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	installRestoreRecorder(t)

	cur := readyTask(t, 0x300)
	queued := readyTask(t, 0x400)
	AddTask(queued)

	RunTask(cur)
	if Current() != cur {
		t.Fatal("expected RunTask to install the given task as current")
	}
	if QueuedTasks() != 1 {
		t.Fatalf("expected the queue to keep its entry; got %d", QueuedTasks())
	}
}

func TestRunNextPanicsWhenAllTasksComplete(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	installRestoreRecorder(t)

	defer func() {
		if recover() == nil {
			t.Fatal("expected RunNext on an empty queue to panic")
		}
	}()
	RunNext()
}

func TestFetchAssertsReadyState(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	installRestoreRecorder(t)

	stale := &task.Task{} // zero value: UnInit
	AddTask(stale)

	defer func() {
		if recover() == nil {
			t.Fatal("expected dequeuing a non-Ready task to panic")
		}
	}()
	RunNext()
}
