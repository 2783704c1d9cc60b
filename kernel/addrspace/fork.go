package addrspace

import (
	"rvkernel/kernel"
	"rvkernel/kernel/mem"
	"rvkernel/kernel/vmm"
)

// FromExistedUser builds a new user address space that is a byte-for-byte
// copy of parent: every framed memory area — the trap-context page
// included — is recreated with identical permissions and freshly allocated
// frames, and each frame's contents are copied from the parent's
// corresponding frame. The trampoline is mapped fresh; it has no per-task
// contents to copy.
func FromExistedUser(alloc vmm.FrameAllocator, parent *AddressSpace, trampolineFrame mem.PPN) (*AddressSpace, *kernel.Error) {
	child, err := newAddressSpace(alloc)
	if err != nil {
		return nil, err
	}

	for _, parentArea := range parent.Areas {
		if parentArea.Type != AreaFramed {
			continue
		}

		childArea := newFramedArea(parentArea.StartVPN, parentArea.EndVPN, parentArea.Perm)
		if err := child.insertArea(childArea); err != nil {
			return nil, err
		}

		for vpn := parentArea.StartVPN; vpn < parentArea.EndVPN; vpn++ {
			srcPPN, ok := parentArea.Frames[vpn]
			if !ok {
				continue
			}
			dstPPN := childArea.Frames[vpn]
			copyFrame(srcPPN, dstPPN)
		}
	}

	if err := child.mapTrampoline(trampolineFrame); err != nil {
		return nil, err
	}

	return child, nil
}

// copyFrame copies one page's worth of bytes from src to dst, both
// resolved through vmm's phys-to-virt seam like every other direct access
// to physical memory.
func copyFrame(src, dst mem.PPN) {
	copy(bytesAt(dst.Address(), int(mem.PageSize)), bytesAt(src.Address(), int(mem.PageSize)))
}
