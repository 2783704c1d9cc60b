package syscall

import (
	"reflect"
	"unsafe"

	"rvkernel/kernel/config"
	"rvkernel/kernel/kfmt"
	"rvkernel/kernel/mem"
	"rvkernel/kernel/sched"
	"rvkernel/kernel/task"
	"rvkernel/kernel/timer"
	"rvkernel/kernel/vmm"
)

// stdout is the only file descriptor sys_write accepts.
const stdout = 1

// TaskInfo is the record sys_taskinfo copies out to the caller. State is
// always task.StateRunning: the caller is necessarily the task on the CPU.
type TaskInfo struct {
	State        uint64
	SyscallTimes [config.MaxSyscallNum]uint32
	ExecTimeMs   uint64
}

func sysWrite(cur *task.Task, fd, buf, length uint64) int64 {
	if fd != stdout {
		return -1
	}

	inner := cur.ExclusiveAccess()
	data, err := inner.AddrSpace.UserBytes(mem.VirtAddr(buf), int(length))
	cur.ReleaseAccess()
	if err != nil {
		kfmt.Debugf("syscall", "pid=%d write: bad user buffer 0x%x: %s\n", int64(cur.PID()), buf, err.Message)
		return -1
	}

	kfmt.Printf("%s", data)
	return int64(length)
}

func sysGettimeofday(cur *task.Task, tvPtr uint64) int64 {
	tv := timer.Now()

	inner := cur.ExclusiveAccess()
	err := inner.AddrSpace.PutUserBytes(mem.VirtAddr(tvPtr), structBytes(unsafe.Pointer(&tv), unsafe.Sizeof(tv)))
	cur.ReleaseAccess()
	if err != nil {
		return -1
	}
	return 0
}

func sysTaskinfo(cur *task.Task, infoPtr uint64) int64 {
	var info TaskInfo
	info.State = uint64(task.StateRunning)
	info.ExecTimeMs = timer.NowMs() - cur.StartTimeMs

	inner := cur.ExclusiveAccess()
	info.SyscallTimes = inner.SyscallTimes
	err := inner.AddrSpace.PutUserBytes(mem.VirtAddr(infoPtr), structBytes(unsafe.Pointer(&info), unsafe.Sizeof(info)))
	cur.ReleaseAccess()
	if err != nil {
		return -1
	}
	return 0
}

func sysMmap(cur *task.Task, start, length, port uint64) int64 {
	if port&^0x7 != 0 || port&0x7 == 0 {
		kfmt.Debugf("syscall", "pid=%d mmap: bad port 0x%x\n", int64(cur.PID()), port)
		return -1
	}
	if length == 0 {
		return 0
	}

	perm := vmm.FlagUser
	if port&0x1 != 0 {
		perm |= vmm.FlagRead
	}
	if port&0x2 != 0 {
		perm |= vmm.FlagWrite
	}
	if port&0x4 != 0 {
		perm |= vmm.FlagExec
	}

	inner := cur.ExclusiveAccess()
	err := inner.AddrSpace.InsertFramedArea(mem.VirtAddr(start), mem.VirtAddr(start+length), perm)
	cur.ReleaseAccess()
	if err != nil {
		kfmt.Debugf("syscall", "pid=%d mmap failed: %s\n", int64(cur.PID()), err.Message)
		return -1
	}
	return 0
}

func sysMunmap(cur *task.Task, start, length uint64) int64 {
	if mem.VirtAddr(start).PageOffset() != 0 {
		return -1
	}

	inner := cur.ExclusiveAccess()
	err := inner.AddrSpace.UnmapArea(mem.VirtAddr(start), mem.VirtAddr(start+length))
	cur.ReleaseAccess()
	if err != nil {
		kfmt.Debugf("syscall", "pid=%d munmap failed: %s\n", int64(cur.PID()), err.Message)
		return -1
	}
	return 0
}

func sysFork(cur *task.Task) int64 {
	child, err := task.Fork(cur)
	if err != nil {
		kfmt.Warnf("syscall", "pid=%d fork failed: %s\n", int64(cur.PID()), err.Message)
		return -1
	}

	sched.AddTask(child)
	kfmt.Infof("task", "pid=%d forked child pid=%d\n", int64(cur.PID()), int64(child.PID()))
	return int64(child.PID())
}

// sysWaitpid polls the caller's children: target -1 matches any child, a
// positive target that specific one. -1 means no matching
// child exists, -2 that none of the matching children has exited yet;
// otherwise the exited child is removed, its exit code copied to the user
// buffer, its resources freed, and its PID returned.
func sysWaitpid(cur *task.Task, target int64, ecPtr uint64) int64 {
	inner := cur.ExclusiveAccess()

	matching := false
	found := -1
	for i, c := range inner.Children {
		if target != -1 && int64(c.PID()) != target {
			continue
		}
		matching = true

		ci := c.ExclusiveAccess()
		exited := ci.State == task.StateExited
		c.ReleaseAccess()
		if exited {
			found = i
			break
		}
	}

	if !matching {
		cur.ReleaseAccess()
		return -1
	}
	if found < 0 {
		cur.ReleaseAccess()
		return -2
	}

	child := inner.Children[found]
	inner.Children = append(inner.Children[:found], inner.Children[found+1:]...)

	ci := child.ExclusiveAccess()
	ec := ci.ExitCode
	child.ReleaseAccess()

	if ecPtr != 0 {
		if err := inner.AddrSpace.PutUserBytes(mem.VirtAddr(ecPtr), structBytes(unsafe.Pointer(&ec), unsafe.Sizeof(ec))); err != nil {
			// Bad user buffer: put the child back and report a
			// validation failure without reaping anything.
			inner.Children = append(inner.Children, child)
			cur.ReleaseAccess()
			return -1
		}
	}
	cur.ReleaseAccess()

	reapedPID := int64(child.PID())
	child.Reap()
	return reapedPID
}

// structBytes views the n bytes of the struct at p as a byte slice, used
// to copy fixed-layout records (timeval, TaskInfo, exit codes) out to user
// memory through PutUserBytes.
func structBytes(p unsafe.Pointer, n uintptr) []byte {
	return *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{Data: uintptr(p), Len: int(n), Cap: int(n)}))
}
