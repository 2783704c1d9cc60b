package task

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"
	"unsafe"

	"rvkernel/kernel"
	"rvkernel/kernel/apps"
	"rvkernel/kernel/mem"
	"rvkernel/kernel/pmm"
	"rvkernel/kernel/timer"
	"rvkernel/kernel/vmm"
)

// fakeRAM backs vmm's phys-to-virt seam with plain Go slices standing in
// for physical frames, the same technique addrspace's own tests use.
type fakeRAM struct{ frames [][]byte }

func newFakeRAM(n int) *fakeRAM {
	r := &fakeRAM{frames: make([][]byte, n)}
	for i := range r.frames {
		r.frames[i] = make([]byte, mem.PageSize)
	}
	return r
}

func (r *fakeRAM) install(t *testing.T) {
	t.Helper()
	vmm.SetPhysToVirtFn(func(pa mem.PhysAddr) unsafe.Pointer {
		frame := uintptr(pa) / uintptr(mem.PageSize)
		off := uintptr(pa) % uintptr(mem.PageSize)
		return unsafe.Pointer(&r.frames[frame][off])
	})
	vmm.SetFlushTLBEntryFn(func(uintptr) {})
	t.Cleanup(func() {
		vmm.SetPhysToVirtFn(func(pa mem.PhysAddr) unsafe.Pointer { return unsafe.Pointer(uintptr(pa)) })
		vmm.SetFlushTLBEntryFn(nil)
	})
}

// fakeSource is a FrameSource over fakeRAM recording every Dealloc, used
// to verify reaping returns what was allocated.
type fakeSource struct {
	ram       *fakeRAM
	next      pmm.Frame
	allocated int
	freed     int
}

func (a *fakeSource) Alloc() (pmm.Frame, *kernel.Error) {
	if int(a.next) >= len(a.ram.frames) {
		return pmm.InvalidFrame, &kernel.Error{Module: "task_test", Message: "fake allocator exhausted"}
	}
	f := a.next
	a.next++
	a.allocated++
	return f, nil
}

func (a *fakeSource) Dealloc(f pmm.Frame) { a.freed++ }

// buildTestELF assembles a minimal ELF64/EM_RISCV image with one RWX
// PT_LOAD segment holding payload at vaddr, entry at vaddr.
func buildTestELF(t *testing.T, vaddr uint64, payload []byte) []byte {
	t.Helper()

	const ehsize = 64
	const phentsize = 56

	var buf bytes.Buffer
	buf.Write([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0})
	buf.Write(make([]byte, 8))

	write16 := func(v uint16) { binary.Write(&buf, binary.LittleEndian, v) }
	write32 := func(v uint32) { binary.Write(&buf, binary.LittleEndian, v) }
	write64 := func(v uint64) { binary.Write(&buf, binary.LittleEndian, v) }

	write16(uint16(elf.ET_EXEC))
	write16(uint16(elf.EM_RISCV))
	write32(1)
	write64(vaddr)
	write64(ehsize)
	write64(0)
	write32(0)
	write16(ehsize)
	write16(phentsize)
	write16(1)
	write16(0)
	write16(0)
	write16(0)

	const phOff = ehsize + phentsize
	write32(uint32(elf.PT_LOAD))
	write32(uint32(elf.PF_R | elf.PF_W | elf.PF_X))
	write64(phOff)
	write64(vaddr)
	write64(vaddr)
	write64(uint64(len(payload)))
	write64(uint64(len(payload)))
	write64(uint64(mem.PageSize))

	buf.Write(payload)
	return buf.Bytes()
}

const testKernelSatp = uint64(8)<<60 | 0x1234

// setupTaskEnv wires the package singletons to a fake RAM, a fake clock
// and a single-app catalog, returning the frame source for bookkeeping
// checks.
func setupTaskEnv(t *testing.T, frames int, appName string, image []byte) *fakeSource {
	t.Helper()

	ram := newFakeRAM(frames)
	ram.install(t)
	src := &fakeSource{ram: ram}

	// Reserve a stand-in trampoline frame so user spaces have a real
	// PPN to map at config.Trampoline.
	trampoline, err := src.Alloc()
	if err != nil {
		t.Fatalf("unexpected error reserving trampoline frame: %v", err)
	}

	origNow := timer.NowFn
	timer.NowFn = func() uint64 { return 0 }
	t.Cleanup(func() { timer.NowFn = origNow })

	cat := apps.NewStaticCatalog([]string{appName}, [][]byte{image})
	Setup(src, cat, testKernelSatp, mem.PPN(trampoline))
	return src
}

func TestNewBuildsReadyTask(t *testing.T) {
	const vaddr = 0x10000
	payload := []byte("user program image")
	setupTaskEnv(t, 128, "hello", buildTestELF(t, vaddr, payload))

	tk, err := New("hello")
	if err != nil {
		t.Fatalf("unexpected error creating task: %v", err)
	}
	if tk.Name != "hello" {
		t.Fatalf("expected task name hello; got %s", tk.Name)
	}

	inner := tk.ExclusiveAccess()
	defer tk.ReleaseAccess()

	if inner.State != StateReady {
		t.Fatalf("expected new task to be Ready; got %s", inner.State)
	}

	ctx := inner.TrapContext()
	if ctx.Sepc != vaddr {
		t.Fatalf("expected sepc at ELF entry %#x; got %#x", vaddr, ctx.Sepc)
	}
	if ctx.KernelSatp != testKernelSatp {
		t.Fatalf("expected kernel satp %#x in trap context; got %#x", testKernelSatp, ctx.KernelSatp)
	}
	if ctx.KernelSP != uint64(tk.KernelStackTop) {
		t.Fatalf("expected kernel sp %#x; got %#x", tk.KernelStackTop, ctx.KernelSP)
	}
	if ctx.X[2] == 0 {
		t.Fatal("expected a nonzero user stack pointer in x2")
	}
}

func TestNewUnknownAppFails(t *testing.T) {
	setupTaskEnv(t, 64, "hello", buildTestELF(t, 0x10000, []byte("x")))

	if _, err := New("no-such-app"); err == nil {
		t.Fatal("expected unknown app name to be rejected")
	}
}

func TestForkSnapshotAndIsolation(t *testing.T) {
	const vaddr = 0x10000
	payload := []byte("fork snapshot pattern")
	setupTaskEnv(t, 256, "hello", buildTestELF(t, vaddr, payload))

	parent, err := New("hello")
	if err != nil {
		t.Fatalf("unexpected error creating parent: %v", err)
	}

	child, err := Fork(parent)
	if err != nil {
		t.Fatalf("unexpected error forking: %v", err)
	}
	if child.PID() == parent.PID() {
		t.Fatal("expected child to get a fresh PID")
	}

	pInner := parent.ExclusiveAccess()
	if len(pInner.Children) != 1 || pInner.Children[0] != child {
		t.Fatal("expected child on the parent's children list")
	}
	pSpace := pInner.AddrSpace
	parent.ReleaseAccess()

	cInner := child.ExclusiveAccess()
	if cInner.State != StateReady {
		t.Fatalf("expected forked child to be Ready; got %s", cInner.State)
	}
	if got := cInner.TrapContext().RegA(0); got != 0 {
		t.Fatalf("expected a0=0 in child trap context; got %d", got)
	}
	if got := cInner.TrapContext().KernelSP; got != uint64(child.KernelStackTop) {
		t.Fatalf("expected child kernel sp %#x; got %#x", child.KernelStackTop, got)
	}
	cSpace := cInner.AddrSpace
	child.ReleaseAccess()

	got, kerr := cSpace.UserBytes(mem.VirtAddr(vaddr), len(payload))
	if kerr != nil {
		t.Fatalf("unexpected error reading child memory: %v", kerr)
	}
	if string(got) != string(payload) {
		t.Fatalf("expected child memory to equal parent's; got %q", got)
	}

	// Writes after the fork must not be visible across the two spaces.
	if kerr := cSpace.PutUserBytes(mem.VirtAddr(vaddr), []byte("CHILD")); kerr != nil {
		t.Fatalf("unexpected error writing child memory: %v", kerr)
	}
	parentBytes, kerr := pSpace.UserBytes(mem.VirtAddr(vaddr), len(payload))
	if kerr != nil {
		t.Fatalf("unexpected error reading parent memory: %v", kerr)
	}
	if string(parentBytes) != string(payload) {
		t.Fatalf("expected parent memory unchanged after child write; got %q", parentBytes)
	}
}

func TestReapReturnsEveryFrame(t *testing.T) {
	src := setupTaskEnv(t, 256, "hello", buildTestELF(t, 0x10000, []byte("bytes")))

	before := src.allocated
	tk, err := New("hello")
	if err != nil {
		t.Fatalf("unexpected error creating task: %v", err)
	}
	taskFrames := src.allocated - before

	tk.Reap()
	if src.freed != taskFrames {
		t.Fatalf("expected Reap to return all %d frames; freed %d", taskFrames, src.freed)
	}
}

func TestExclusiveAccessReentrancyPanics(t *testing.T) {
	tk := &Task{}
	tk.ExclusiveAccess()

	defer func() {
		if recover() == nil {
			t.Fatal("expected re-entrant exclusive access to panic")
		}
	}()
	tk.ExclusiveAccess()
}
