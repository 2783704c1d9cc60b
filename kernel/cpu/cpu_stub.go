//go:build !riscv64

package cpu

// The operations in this package are single RV64 supervisor instructions
// with no portable equivalent. On any other GOARCH (the hosted test runner)
// the package still has to compile because everything above it links
// against these symbols; packages that exercise code paths reaching them
// swap in their own stand-ins through the function-variable seams
// (vmm.SetFlushTLBEntryFn, timer.NowFn, kfmt's halt hook). Reaching one of
// these bodies at run time means a seam was left unswapped, which is a test
// bug: they panic instead of faking an answer.

func unavailable(op string) {
	panic("cpu: " + op + " needs riscv64 supervisor mode")
}

// Halt stops instruction execution on the current HART.
func Halt() { unavailable("Halt") }

// EnableInterrupts sets sstatus.SIE.
func EnableInterrupts() { unavailable("EnableInterrupts") }

// DisableInterrupts clears sstatus.SIE.
func DisableInterrupts() { unavailable("DisableInterrupts") }

// ReadSatp returns the current value of the satp CSR.
func ReadSatp() uint64 { unavailable("ReadSatp"); return 0 }

// WriteSatp installs a new satp value and flushes the TLB.
func WriteSatp(satp uint64) { unavailable("WriteSatp") }

// FlushTLBEntry flushes the TLB entry that translates virtAddr.
func FlushTLBEntry(virtAddr uintptr) { unavailable("FlushTLBEntry") }

// ReadScause returns the supervisor trap cause CSR.
func ReadScause() uint64 { unavailable("ReadScause"); return 0 }

// ReadStval returns the supervisor trap value CSR.
func ReadStval() uintptr { unavailable("ReadStval"); return 0 }

// WriteStvec installs the supervisor trap-vector base address.
func WriteStvec(addr uintptr) { unavailable("WriteStvec") }

// EnableTimerInterrupt sets sie.STIE.
func EnableTimerInterrupt() { unavailable("EnableTimerInterrupt") }

// ReadTime returns the value of the `time` CSR.
func ReadTime() uint64 { unavailable("ReadTime"); return 0 }

// SbiSetTimer issues the legacy SBI SET_TIMER call.
func SbiSetTimer(stimeValue uint64) { unavailable("SbiSetTimer") }
