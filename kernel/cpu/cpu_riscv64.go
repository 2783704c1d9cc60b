// Package cpu exposes the small set of RV64 supervisor-mode operations that
// cannot be expressed in portable Go: CSR reads/writes, TLB maintenance and
// halting the HART. Each function is declared here and implemented in
// cpu_riscv64.s.
package cpu

// Halt stops instruction execution on the current HART. Used by kfmt.Panic
// as the terminal action of an unrecoverable kernel error.
func Halt()

// EnableInterrupts sets sstatus.SIE, allowing supervisor-mode interrupts
// (notably the timer) to be taken.
func EnableInterrupts()

// DisableInterrupts clears sstatus.SIE.
func DisableInterrupts()

// ReadSatp returns the current value of the satp CSR (paging mode + root
// page-table PPN of the address space active on this HART).
func ReadSatp() uint64

// WriteSatp installs a new satp value and executes an sfence.vma to flush
// stale TLB entries for the previous address space.
func WriteSatp(satp uint64)

// FlushTLBEntry flushes the TLB entry that translates virtAddr.
func FlushTLBEntry(virtAddr uintptr)

// ReadScause returns the supervisor trap cause CSR: the interrupt bit in
// bit 63 plus the exception/interrupt code in the low bits.
func ReadScause() uint64

// ReadStval returns the supervisor trap value CSR: the faulting virtual
// address for page/access faults, or the offending instruction bits for an
// illegal-instruction trap.
func ReadStval() uintptr

// WriteStvec installs the supervisor trap-vector base address in direct
// mode (low two bits zero: every trap jumps to exactly this address).
func WriteStvec(addr uintptr)

// EnableTimerInterrupt sets sie.STIE so supervisor timer interrupts are
// delivered once sstatus.SIE is also set.
func EnableTimerInterrupt()

// ReadTime returns the value of the `time` CSR, a free-running counter
// incremented at config.ClockFreq, used to derive wall-clock time for
// gettimeofday and taskinfo.
func ReadTime() uint64

// SbiSetTimer issues the legacy SBI SET_TIMER call (extension/function 0),
// arming the next timer interrupt to fire when the `time` CSR reaches
// stimeValue. Supervisor code cannot program the timer directly on RV64;
// it must ask the firmware running at a higher privilege level (SBI) to do
// so.
func SbiSetTimer(stimeValue uint64)
