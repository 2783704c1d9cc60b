package kfmt

import "io"

// LogLevel orders the severities of the kernel's structured log output.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
)

// minLogLevel suppresses log lines below it. Debug output from the trap
// path is verbose (one line per trap); SetLogLevel(LogInfo) silences it.
// It defaults to showing everything, and boot leaves it there.
var minLogLevel = LogDebug

// SetLogLevel discards subsequent log lines below level.
func SetLogLevel(level LogLevel) { minLogLevel = level }

// logWriters carries one prefix-injecting writer per level. The writers
// are stateful (they track line boundaries), so a message split across
// several Fprintf calls is still tagged exactly once per line.
var logWriters = [...]PrefixWriter{
	LogDebug: {Prefix: []byte("debug ")},
	LogInfo:  {Prefix: []byte("info  ")},
	LogWarn:  {Prefix: []byte("warn  ")},
}

// Debugf emits a debug-level log line attributed to the given subsystem.
// Like Printf it never allocates; the trap handler logs through it on
// every trap taken.
func Debugf(module, format string, args ...interface{}) {
	logf(LogDebug, module, format, args...)
}

// Infof emits an info-level log line attributed to the given subsystem.
func Infof(module, format string, args ...interface{}) {
	logf(LogInfo, module, format, args...)
}

// Warnf emits a warn-level log line attributed to the given subsystem.
func Warnf(module, format string, args ...interface{}) {
	logf(LogWarn, module, format, args...)
}

func logf(level LogLevel, module, format string, args ...interface{}) {
	if level < minLogLevel {
		return
	}

	w := &logWriters[level]
	w.Sink = logSink()
	Fprintf(w, "%s: ", module)
	Fprintf(w, format, args...)
}

// logSink resolves where log lines go right now: the console once it is
// attached, the early-output buffer before that.
func logSink() io.Writer {
	if outputSink != nil {
		return outputSink
	}
	return &earlyOut
}
