package addrspace

import (
	"rvkernel/kernel"
	"rvkernel/kernel/config"
	"rvkernel/kernel/mem"
	"rvkernel/kernel/vmm"
)

// KernelLayout describes the boundaries of the loaded kernel image, as
// provided by the linker script. The early boot code fills it in from the
// linker symbols and hands it to boot.Kmain, which passes it to NewKernel.
type KernelLayout struct {
	TextStart, TextEnd     mem.VirtAddr
	RodataStart, RodataEnd mem.VirtAddr
	DataStart, DataEnd     mem.VirtAddr
	BSSStart, BSSEnd       mem.VirtAddr
	EKernel                mem.VirtAddr
}

func newAddressSpace(alloc vmm.FrameAllocator) (*AddressSpace, *kernel.Error) {
	pt, err := vmm.NewPageTable(alloc)
	if err != nil {
		return nil, err
	}
	return &AddressSpace{PageTable: pt, alloc: alloc}, nil
}

// NewKernel builds the single kernel address space: identity maps of the
// kernel's text/rodata/data/bss sections plus the remaining physical memory
// up to config.MemoryEnd, and the trampoline.
func NewKernel(alloc vmm.FrameAllocator, layout KernelLayout, trampolineFrame mem.PPN) (*AddressSpace, *kernel.Error) {
	as, err := newAddressSpace(alloc)
	if err != nil {
		return nil, err
	}

	sections := []struct {
		start, end mem.VirtAddr
		perm       vmm.PTEFlag
	}{
		{layout.TextStart, layout.TextEnd, vmm.FlagRead | vmm.FlagExec},
		{layout.RodataStart, layout.RodataEnd, vmm.FlagRead},
		{layout.DataStart, layout.DataEnd, vmm.FlagRead | vmm.FlagWrite},
		{layout.BSSStart, layout.BSSEnd, vmm.FlagRead | vmm.FlagWrite},
		{layout.EKernel, mem.VirtAddr(config.MemoryEnd), vmm.FlagRead | vmm.FlagWrite},
	}

	for _, s := range sections {
		if s.start >= s.end {
			continue
		}
		area := &MapArea{StartVPN: s.start.Floor(), EndVPN: s.end.Ceil(), Perm: s.perm, Type: AreaIdentity, Frames: nil}
		if err := as.insertArea(area); err != nil {
			return nil, err
		}
	}

	if err := as.mapTrampoline(trampolineFrame); err != nil {
		return nil, err
	}

	return as, nil
}
