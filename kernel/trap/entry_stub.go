//go:build !riscv64

package trap

import "rvkernel/kernel"

// Hosted stand-ins for the trampoline symbols. The two routine addresses
// sit at fixed synthetic offsets on the same fake page so the offset
// arithmetic in Restore keeps working; actually jumping into user mode has
// no hosted equivalent, so restoreJump panics when a test exercises the
// scheduling path without first installing a recorder via
// SetRestoreJumpFn.

const (
	stubTrampolineBase = uintptr(0x0020_0000)
	stubRestoreOffset  = uintptr(0x100)
	stubVectorOffset   = uintptr(0x800)
)

var errNoHostedRestore = &kernel.Error{Module: "trap", Message: "sret to user mode needs riscv64 supervisor mode"}

func TrapHandlerAddr() uintptr { return stubTrampolineBase + stubVectorOffset }

func allTrapsAddr() uintptr { return stubTrampolineBase }

func restoreAddr() uintptr { return stubTrampolineBase + stubRestoreOffset }

func restoreJump(restoreVA, userCtxVA uintptr, userSatp uint64) {
	panic(errNoHostedRestore)
}
