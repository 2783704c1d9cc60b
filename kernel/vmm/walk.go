package vmm

import (
	"rvkernel/kernel"
	"rvkernel/kernel/mem"
	"rvkernel/kernel/pmm"
)

var errAllocatorNotSet = &kernel.Error{Module: "vmm", Message: "no frame allocator registered for page table construction"}

// FrameAllocator is the minimal capability PageTable needs from pmm.Allocator.
type FrameAllocator interface {
	Alloc() (pmm.Frame, *kernel.Error)
}

// PageTable is a root Sv39 page table together with the allocator used to
// materialize missing intermediate tables on demand.
type PageTable struct {
	Root  mem.PPN
	Alloc FrameAllocator
}

// findPTE walks the three Sv39 levels for vpn, returning the leaf entry.
// When create is true, missing intermediate tables are allocated and
// zeroed; otherwise the walk stops at the first absent entry and returns
// ErrInvalidMapping.
func (pt *PageTable) findPTE(vpn mem.VPN, create bool) (*pageTableEntry, *kernel.Error) {
	idx := vpn.Indexes()
	root := pt.Root

	for level := 0; level < mem.VPNLevels-1; level++ {
		pte := ptePtr(root, idx[level])
		if !pte.HasFlags(FlagValid) {
			if !create {
				return nil, ErrInvalidMapping
			}
			if pt.Alloc == nil {
				return nil, errAllocatorNotSet
			}
			frame, err := pt.Alloc.Alloc()
			if err != nil {
				return nil, err
			}
			*pte = 0
			pte.SetPPN(mem.PPN(frame))
			pte.SetFlags(FlagValid)
		}
		root = pte.PPN()
	}

	return ptePtr(root, idx[mem.VPNLevels-1]), nil
}
