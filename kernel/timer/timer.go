// Package timer derives wall-clock time from the RV64 `time` CSR and
// drives timer-interrupt preemption.
package timer

import (
	"rvkernel/kernel/config"
	"rvkernel/kernel/cpu"
)

// TimeSliceMs is the length, in milliseconds, of one scheduling quantum:
// the interval SetNextTrigger schedules the next timer interrupt at.
const TimeSliceMs = 10

// ticksPerSlice is the number of `time` CSR ticks in one TimeSliceMs
// quantum.
const ticksPerSlice = uint64(config.ClockFreq) * TimeSliceMs / 1000

// TimeVal mirrors the POSIX struct timeval copied out to user memory by
// sys_gettimeofday.
type TimeVal struct {
	Sec  int64
	Usec int64
}

// NowFn reads the current tick count. It is a var so tests can run without
// a real `time` CSR.
var NowFn = cpu.ReadTime

// ArmTimerFn issues the SBI call that arms the next timer interrupt. A
// var for the same reason.
var ArmTimerFn = cpu.SbiSetTimer

// Now returns the current wall-clock time as a TimeVal, matching
// get_time_ms's tick-to-millisecond conversion as it would appear once
// split into seconds and microseconds.
func Now() TimeVal {
	ticks := NowFn()
	ms := ticks * 1000 / uint64(config.ClockFreq)
	return TimeVal{Sec: int64(ms / 1000), Usec: int64((ms % 1000) * 1000)}
}

// NowMs returns the current wall-clock time in milliseconds, used for
// Task.StartTimeMs and the taskinfo exec_time_ms calculation.
func NowMs() uint64 {
	return NowFn() * 1000 / uint64(config.ClockFreq)
}

// SetNextTrigger arms the timer interrupt to fire one quantum from now.
func SetNextTrigger() {
	ArmTimerFn(NowFn() + ticksPerSlice)
}
