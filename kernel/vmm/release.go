package vmm

import (
	"rvkernel/kernel/mem"
	"rvkernel/kernel/pmm"
)

// entriesPerTable is the number of PTEs in one 4 KiB page-table node.
const entriesPerTable = uint64(mem.PageSize) / 8

// FrameDeallocator is the capability needed to return frames to pmm when a
// page table or address space is torn down.
type FrameDeallocator interface {
	Dealloc(f pmm.Frame)
}

// Release returns every node frame owned by the page table (root and all
// intermediate tables) to dealloc. Leaf PTEs point to frames owned by the
// surrounding address space's memory areas, never by the table itself, so
// they are left untouched. The table must not be used afterwards.
func (pt *PageTable) Release(dealloc FrameDeallocator) {
	releaseTable(pt.Root, 0, dealloc)
	pt.Root = 0
}

func releaseTable(table mem.PPN, level int, dealloc FrameDeallocator) {
	if level < mem.VPNLevels-1 {
		for i := uint64(0); i < entriesPerTable; i++ {
			pte := ptePtr(table, i)
			if !pte.HasFlags(FlagValid) {
				continue
			}
			// An entry with any of R/W/X set is a leaf, even at a
			// non-terminal level (a superpage); only plain
			// next-level pointers are descended into.
			if uint64(*pte)&uint64(FlagRead|FlagWrite|FlagExec) != 0 {
				continue
			}
			releaseTable(pte.PPN(), level+1, dealloc)
		}
	}
	dealloc.Dealloc(pmm.Frame(table))
}
