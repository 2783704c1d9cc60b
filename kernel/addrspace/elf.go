package addrspace

import (
	"bytes"
	"debug/elf"
	"rvkernel/kernel"
	"rvkernel/kernel/config"
	"rvkernel/kernel/mem"
	"rvkernel/kernel/vmm"
)

// FromELF parses a user program image and builds a fresh user address
// space for it: one framed area per PT_LOAD segment (permissions derived
// from p_flags plus U), a framed user stack immediately above the highest
// segment, a trap-context page and the trampoline. It returns the new
// space, the initial user stack pointer and the entry point.
// trampolineFrame is the physical frame holding the trap save/restore
// routines, shared by every address space.
func FromELF(alloc vmm.FrameAllocator, image []byte, trampolineFrame mem.PPN) (as *AddressSpace, userSP mem.VirtAddr, entry mem.VirtAddr, kerr *kernel.Error) {
	f, err := elf.NewFile(bytes.NewReader(image))
	if err != nil {
		return nil, 0, 0, errBadELF
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS64 || f.Machine != elf.EM_RISCV {
		return nil, 0, 0, errBadELF
	}

	as, kerr = newAddressSpace(alloc)
	if kerr != nil {
		return nil, 0, 0, kerr
	}

	var maxVA mem.VirtAddr
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}

		perm := vmm.FlagUser
		if prog.Flags&elf.PF_R != 0 {
			perm |= vmm.FlagRead
		}
		if prog.Flags&elf.PF_W != 0 {
			perm |= vmm.FlagWrite
		}
		if prog.Flags&elf.PF_X != 0 {
			perm |= vmm.FlagExec
		}

		startVA := mem.VirtAddr(prog.Vaddr)
		endVA := mem.VirtAddr(prog.Vaddr + prog.Memsz)
		area := newFramedArea(startVA.Floor(), endVA.Ceil(), perm)
		if kerr = as.insertArea(area); kerr != nil {
			return nil, 0, 0, kerr
		}

		data := make([]byte, prog.Filesz)
		if prog.Filesz > 0 {
			if _, err := prog.ReadAt(data, 0); err != nil {
				return nil, 0, 0, errBadELF
			}
		}
		if kerr = copyIntoArea(as, area, startVA, data); kerr != nil {
			return nil, 0, 0, kerr
		}

		if endVA > maxVA {
			maxVA = endVA
		}
	}

	if maxVA == 0 {
		return nil, 0, 0, errBadELF
	}

	stackBottom := maxVA.Ceil().Address()
	stackTop := stackBottom + mem.VirtAddr(uintptr(config.UserStackPages)*uintptr(mem.PageSize))
	stackArea := newFramedArea(stackBottom.Floor(), stackTop.Floor(), vmm.FlagRead|vmm.FlagWrite|vmm.FlagUser)
	if kerr = as.insertArea(stackArea); kerr != nil {
		return nil, 0, 0, kerr
	}

	if kerr = as.mapTrapContext(); kerr != nil {
		return nil, 0, 0, kerr
	}
	if kerr = as.mapTrampoline(trampolineFrame); kerr != nil {
		return nil, 0, 0, kerr
	}

	return as, stackTop, mem.VirtAddr(f.Entry), nil
}

// copyIntoArea writes data starting at startVA into the frames owned by
// area, which must already cover [startVA, startVA+len(data)).
func copyIntoArea(as *AddressSpace, area *MapArea, startVA mem.VirtAddr, data []byte) *kernel.Error {
	written := 0
	for vpn := area.StartVPN; vpn < area.EndVPN && written < len(data); vpn++ {
		ppn, ok := area.Frames[vpn]
		if !ok {
			return errBadELF
		}

		var off uintptr
		if written == 0 {
			off = startVA.PageOffset()
		}

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
