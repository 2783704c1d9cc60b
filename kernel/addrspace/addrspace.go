// Package addrspace implements the address-space abstraction: a page
// table plus an ordered collection of logical memory areas, built once for
// the kernel and once per user task, with ELF loading and fork-time
// cloning.
package addrspace

import (
	"reflect"
	"unsafe"

	"rvkernel/kernel"
	"rvkernel/kernel/config"
	"rvkernel/kernel/mem"
	"rvkernel/kernel/pmm"
	"rvkernel/kernel/vmm"
)

// AreaType distinguishes framed areas (backed by freshly allocated frames)
// from identity areas (VPN == PPN, used only in kernel space).
type AreaType int

const (
	AreaFramed AreaType = iota
	AreaIdentity
)

// MapArea is a contiguous [StartVPN, EndVPN) region with a single
// permission mask and mapping mode. Framed areas record the frame backing
// each page so the area can release them on teardown.
type MapArea struct {
	StartVPN, EndVPN mem.VPN
	Perm             vmm.PTEFlag
	Type             AreaType
	Frames           map[mem.VPN]mem.PPN
}

func newFramedArea(start, end mem.VPN, perm vmm.PTEFlag) *MapArea {
	return &MapArea{StartVPN: start, EndVPN: end, Perm: perm, Type: AreaFramed, Frames: make(map[mem.VPN]mem.PPN)}
}

// overlaps reports whether a and b share any VPN.
func (a *MapArea) overlaps(start, end mem.VPN) bool {
	return a.StartVPN < end && start < a.EndVPN
}

var (
	errAreaOverlap       = &kernel.Error{Module: "addrspace", Message: "memory area overlaps an existing area"}
	errUnalignedVA       = &kernel.Error{Module: "addrspace", Message: "virtual address is not page-aligned"}
	errNoMatchingArea    = &kernel.Error{Module: "addrspace", Message: "no area matches the requested range exactly"}
	errBadELF            = &kernel.Error{Module: "addrspace", Message: "invalid or unsupported ELF image"}
	errNotUserAccessible = &kernel.Error{Module: "addrspace", Message: "virtual address is not a user-accessible mapped page"}
)

// AddressSpace is a page table together with the memory areas it maps.
// Every address space (kernel or user) additionally maps the trampoline at
// config.Trampoline; user spaces also map a trap-context page at
// config.TrapContext.
type AddressSpace struct {
	PageTable *vmm.PageTable
	Areas     []*MapArea
	alloc     vmm.FrameAllocator
	dealloc   vmm.FrameDeallocator
}

// SetFrameDeallocator registers where UnmapArea and Release return the
// frames they tear down. Spaces built without one (tests with a
// bump-only fake allocator) simply drop the frame handles instead.
func (as *AddressSpace) SetFrameDeallocator(d vmm.FrameDeallocator) { as.dealloc = d }

// TrapContextPPN returns the physical frame backing the trap-context page,
// used by Task.New to seed TrapContext fields by dereferencing it through
// the kernel's identity map.
func (as *AddressSpace) TrapContextPPN() (mem.PPN, *kernel.Error) {
	pa, err := as.PageTable.Translate(mem.VirtAddr(config.TrapContext))
	if err != nil {
		return 0, err
	}
	return pa.Floor(), nil
}

// Satp returns the satp CSR value that activates this address space.
func (as *AddressSpace) Satp() uint64 { return as.PageTable.Satp() }

// Activate installs this address space's page table as the active one.
func (as *AddressSpace) Activate() { as.PageTable.Activate() }

// Translate resolves a user virtual page to its physical page number,
// refusing pages that are not present or not user-accessible.
func (as *AddressSpace) Translate(vpn mem.VPN) (mem.PPN, *kernel.Error) {
	pa, flags, err := as.PageTable.TranslateWithFlags(vpn.Address())
	if err != nil {
		return 0, err
	}
	if flags&vmm.FlagUser == 0 {
		return 0, errNotUserAccessible
	}
	return pa.Floor(), nil
}

// UserBytes reads length bytes of user memory starting at va, refusing any
// page that is not mapped and user-accessible. A buffer that spans more
// than one page is handled by calling Translate once per page rather than
// assuming a single contiguous physical run.
func (as *AddressSpace) UserBytes(va mem.VirtAddr, length int) ([]byte, *kernel.Error) {
	out := make([]byte, 0, length)
	for len(out) < length {
		cur := va + mem.VirtAddr(len(out))
		ppn, err := as.Translate(cur.Floor())
		if err != nil {
			return nil, err
		}
		off := cur.PageOffset()
		room := int(mem.PageSize) - int(off)
		n := length - len(out)
		if n > room {
			n = room
		}
		out = append(out, bytesAt(ppn.Address()+mem.PhysAddr(off), n)...)
	}
	return out, nil
}

// PutUserBytes is the write-direction counterpart of UserBytes: it copies
// data into user memory starting at va, used by syscalls that copy a
// kernel-built result out to the caller (gettimeofday, taskinfo, waitpid's
// exit_code pointer).
func (as *AddressSpace) PutUserBytes(va mem.VirtAddr, data []byte) *kernel.Error {
	written := 0
	for written < len(data) {
		cur := va + mem.VirtAddr(written)
		ppn, err := as.Translate(cur.Floor())
		if err != nil {
			return err
		}
		off := cur.PageOffset()
		room := int(mem.PageSize) - int(off)
		n := len(data) - written
		if n > room {
			n = room
		}
		copy(bytesAt(ppn.Address()+mem.PhysAddr(off), n), data[written:written+n])
		written += n
	}
	return nil
}

// bytesAt views n bytes of physical memory starting at pa as a Go byte
// slice, resolved through vmm's phys-to-virt seam (the identity map on the
// real target, fake RAM under test). n must not cross a page boundary.
func bytesAt(pa mem.PhysAddr, n int) []byte {
	return *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{Data: uintptr(vmm.PhysToVirt(pa)), Len: n, Cap: n}))
}

// insertArea maps every VPN in area with area.Perm, allocating a frame per
// page for framed areas or using VPN==PPN for identity areas, then records
// it. It fails (without partially registering the area) if any VPN in the
// range is already covered by an existing area.
func (as *AddressSpace) insertArea(area *MapArea) *kernel.Error {
	for _, existing := range as.Areas {
		if existing.overlaps(area.StartVPN, area.EndVPN) {
			return errAreaOverlap
		}
	}

	for vpn := area.StartVPN; vpn < area.EndVPN; vpn++ {
		var ppn mem.PPN
		switch area.Type {
		case AreaIdentity:
			ppn = mem.PPN(vpn)
		default:
			frame, err := as.alloc.Alloc()
			if err != nil {
				return err
			}
			ppn = mem.PPN(frame)
			area.Frames[vpn] = ppn
		}
		if err := as.PageTable.Map(vpn.Address(), ppn, area.Perm); err != nil {
			return err
		}
	}

	as.Areas = append(as.Areas, area)
	return nil
}

// InsertFramedArea maps [startVA, endVA) with freshly allocated frames and
// the given permission bits (R/W/X only; U is added by the caller when the
// area belongs to a user space). It is the operation behind the mmap
// syscall.
func (as *AddressSpace) InsertFramedArea(startVA, endVA mem.VirtAddr, perm vmm.PTEFlag) *kernel.Error {
	if startVA.PageOffset() != 0 {
		return errUnalignedVA
	}
	area := newFramedArea(startVA.Floor(), endVA.Ceil(), perm)
	return as.insertArea(area)
}

// UnmapArea removes the area recorded for exactly [startVA, endVA),
// unmapping every page and releasing its frames. A range that does not
// exactly match a recorded area's bounds fails; partial unmap is not
// supported.
func (as *AddressSpace) UnmapArea(startVA, endVA mem.VirtAddr) *kernel.Error {
	startVPN, endVPN := startVA.Floor(), endVA.Ceil()

	idx := -1
	for i, area := range as.Areas {
		if area.StartVPN == startVPN && area.EndVPN == endVPN {
			idx = i
			break
		}
	}
	if idx == -1 {
		return errNoMatchingArea
	}

	area := as.Areas[idx]
	for vpn := area.StartVPN; vpn < area.EndVPN; vpn++ {
		if err := as.PageTable.Unmap(vpn.Address()); err != nil {
			return err
		}
	}
	as.releaseAreaFrames(area)

	as.Areas = append(as.Areas[:idx], as.Areas[idx+1:]...)
	return nil
}

// releaseAreaFrames returns a framed area's frames to the registered
// deallocator, if any.
func (as *AddressSpace) releaseAreaFrames(area *MapArea) {
	if as.dealloc == nil || area.Type != AreaFramed {
		return
	}
	for _, ppn := range area.Frames {
		as.dealloc.Dealloc(pmm.Frame(ppn))
	}
	area.Frames = nil
}

// Release tears the whole address space down: every framed area's frames
// and every page-table node frame go back to the registered deallocator.
// Called when a parent reaps an exited child via waitpid. The space must
// not be used afterwards.
func (as *AddressSpace) Release() {
	for _, area := range as.Areas {
		as.releaseAreaFrames(area)
	}
	as.Areas = nil
	if as.dealloc != nil {
		as.PageTable.Release(as.dealloc)
	}
}

// mapTrampoline maps the trampoline page at config.Trampoline, pointing to
// the single physical frame holding the save/restore routines. Every
// address space (kernel and user) shares the same physical frame so the
// mapping remains valid across the satp switch inside the trap entry.
func (as *AddressSpace) mapTrampoline(trampolineFrame mem.PPN) *kernel.Error {
	return as.PageTable.Map(mem.VirtAddr(config.Trampoline), trampolineFrame, vmm.FlagRead|vmm.FlagExec)
}

// mapTrapContext reserves the per-task trap-context page at
// config.TrapContext. It is always readable/writable from supervisor mode
// only (no U bit).
func (as *AddressSpace) mapTrapContext() *kernel.Error {
	area := newFramedArea(mem.VirtAddr(config.TrapContext).Floor(), mem.VirtAddr(config.TrapContext+uintptr(mem.PageSize)).Floor(), vmm.FlagRead|vmm.FlagWrite)
	return as.insertArea(area)
}
