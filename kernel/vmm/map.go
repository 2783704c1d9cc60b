package vmm

import (
	"rvkernel/kernel"
	"rvkernel/kernel/cpu"
	"rvkernel/kernel/mem"
)

var (
	// flushTLBEntryFn is substituted in tests; the real implementation
	// issues an SFENCE.VMA which faults outside of supervisor mode.
	flushTLBEntryFn = cpu.FlushTLBEntry

	errAlreadyMapped = &kernel.Error{Module: "vmm", Message: "virtual page is already mapped"}
)

// SetFlushTLBEntryFn overrides the TLB-flush hook used by Map/Unmap. The
// default is cpu.FlushTLBEntry, a real SFENCE.VMA instruction that
// is only valid in supervisor mode; packages that build on vmm (addrspace)
// and run their own tests on a hosted test runner call this to install a
// no-op before exercising Map/Unmap. Passing nil puts the real flush back.
func SetFlushTLBEntryFn(fn func(uintptr)) {
	if fn == nil {
		fn = cpu.FlushTLBEntry
	}
	flushTLBEntryFn = fn
}

// NewPageTable allocates and zeroes a fresh root table backed by alloc.
func NewPageTable(alloc FrameAllocator) (*PageTable, *kernel.Error) {
	root, err := alloc.Alloc()
	if err != nil {
		return nil, err
	}
	return &PageTable{Root: mem.PPN(root), Alloc: alloc}, nil
}

// Map installs a mapping from va's page to frame with the given permission
// flags, allocating any missing intermediate tables. FlagValid is added
// automatically; at least one of FlagRead/FlagWrite/FlagExec must be present
// since an all-zero permission PTE (V=1, R=W=X=0) denotes a pointer to the
// next level rather than a leaf in Sv39.
func (pt *PageTable) Map(va mem.VirtAddr, frame mem.PPN, flags PTEFlag) *kernel.Error {
	pte, err := pt.findPTE(va.Floor(), true)
	if err != nil {
		return err
	}
	if pte.HasFlags(FlagValid) {
		return errAlreadyMapped
	}

	*pte = 0
	pte.SetPPN(frame)
	pte.SetFlags(flags | FlagValid)
	flushTLBEntryFn(uintptr(va))
	return nil
}

// Unmap clears the leaf mapping for va's page. It does not reclaim the
// physical frame; callers that own the frame are responsible for returning
// it to the allocator.
func (pt *PageTable) Unmap(va mem.VirtAddr) *kernel.Error {
	pte, err := pt.findPTE(va.Floor(), false)
	if err != nil {
		return err
	}
	if !pte.HasFlags(FlagValid) {
		return ErrInvalidMapping
	}
	*pte = 0
	flushTLBEntryFn(uintptr(va))
	return nil
}

// Translate resolves va to the physical address it is currently mapped to.
func (pt *PageTable) Translate(va mem.VirtAddr) (mem.PhysAddr, *kernel.Error) {
	pte, err := pt.findPTE(va.Floor(), false)
	if err != nil {
		return 0, err
	}
	if !pte.HasFlags(FlagValid) {
		return 0, ErrInvalidMapping
	}
	return mem.PhysAddr(uintptr(pte.PPN().Address()) + va.PageOffset()), nil
}

// TranslateWithFlags resolves va like Translate but also returns the leaf
// PTE's permission flags, letting callers enforce access-mode checks that
// Translate alone cannot express, notably refusing user-pointer
// translations through pages that are not both valid and user-accessible.
func (pt *PageTable) TranslateWithFlags(va mem.VirtAddr) (mem.PhysAddr, PTEFlag, *kernel.Error) {
	pte, err := pt.findPTE(va.Floor(), false)
	if err != nil {
		return 0, 0, err
	}
	if !pte.HasFlags(FlagValid) {
		return 0, 0, ErrInvalidMapping
	}
	const allFlags = FlagValid | FlagRead | FlagWrite | FlagExec | FlagUser | FlagGlobal | FlagAccessed | FlagDirty
	flags := PTEFlag(*pte) & allFlags
	return mem.PhysAddr(uintptr(pte.PPN().Address()) + va.PageOffset()), flags, nil
}

// Satp computes the value to load into the satp CSR to activate this table
// in Sv39 mode (mode field 8 in the top 4 bits, PPN in the low 44 bits).
func (pt *PageTable) Satp() uint64 {
	const modeSv39 = uint64(8) << 60
	return modeSv39 | uint64(pt.Root)
}

// Activate loads this table's satp value and flushes the TLB.
func (pt *PageTable) Activate() {
	cpu.WriteSatp(pt.Satp())
}
