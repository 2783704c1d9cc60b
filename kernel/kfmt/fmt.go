// Package kfmt provides the kernel's formatted output: an allocation-free
// Printf subset that is safe to call before the Go allocator is usable, an
// early-output buffer that retains messages emitted before the console
// driver attaches, and a leveled log layer for the trap and scheduling
// paths.
package kfmt

import (
	"io"
	"unsafe"
)

// numBufLen bounds the formatted width of a single integer, including any
// padding requested by the verb.
const numBufLen = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueBytes       = []byte("true")
	falseBytes      = []byte("false")

	// numBuf holds the digits of the integer currently being formatted.
	// It lives in .bss so using it needs no allocator.
	numBuf [numBufLen]byte

	// byteBuf carries single characters (format literals, pad bytes)
	// into doWrite.
	byteBuf = []byte{0}

	// earlyOut retains output emitted before a console sink is attached.
	earlyOut earlyBuffer

	// outputSink is where Printf sends its output. While it is nil the
	// output is retained in earlyOut instead.
	outputSink io.Writer
)

// SetOutputSink directs all further Printf output to w and drains anything
// retained in the early-output buffer into it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyOut)
	}
}

// Printf formats its arguments to the output sink. It allocates no memory
// and is therefore safe to call at any point after boot hands over control,
// including before the Go allocator is initialized.
//
// The supported verb subset is %s (string or []byte), %d (base 10),
// %x (base 16, lower case), %o (base 8) and %t (bool). An optional decimal
// width before the verb left-pads the value: with spaces for %s and %d,
// with zeroes for %x and %o. Pointer and Stringer formatting are
// unsupported; both would drag in runtime machinery that cannot run this
// early.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves like Printf but sends the formatted output to w.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	argIndex := 0

	for i := 0; i < len(format); {
		c := format[i]
		if c != '%' {
			writeByte(w, c)
			i++
			continue
		}

		// Scan the directive: %, optional width digits, verb.
		i++
		if i == len(format) {
			doWrite(w, errNoVerb)
			break
		}
		if format[i] == '%' {
			writeByte(w, '%')
			i++
			continue
		}

		width := 0
		for i < len(format) && format[i] >= '0' && format[i] <= '9' {
			width = width*10 + int(format[i]-'0')
			i++
		}
		if i == len(format) {
			doWrite(w, errNoVerb)
			break
		}

		verb := format[i]
		i++
		switch verb {
		case 's', 'd', 'x', 'o', 't':
			if argIndex == len(args) {
				doWrite(w, errMissingArg)
				continue
			}
			arg := args[argIndex]
			argIndex++

			switch verb {
			case 's':
				formatString(w, arg, width)
			case 'd':
				formatInt(w, arg, 10, width)
			case 'x':
				formatInt(w, arg, 16, width)
			case 'o':
				formatInt(w, arg, 8, width)
			case 't':
				formatBool(w, arg)
			}
		default:
			doWrite(w, errNoVerb)
		}
	}

	for ; argIndex < len(args); argIndex++ {
		doWrite(w, errExtraArg)
	}
}

// formatBool writes "true" or "false". Width is ignored for booleans.
func formatBool(w io.Writer, v interface{}) {
	switch b := v.(type) {
	case bool:
		if b {
			doWrite(w, trueBytes)
		} else {
			doWrite(w, falseBytes)
		}
	default:
		doWrite(w, errWrongArgType)
	}
}

// formatString writes a string or byte-slice value, space-padded on the
// left up to width. The bytes go out one at a time: handing a substring to
// doWrite would convert it to []byte and allocate.
func formatString(w io.Writer, v interface{}, width int) {
	switch s := v.(type) {
	case string:
		for pad := width - len(s); pad > 0; pad-- {
			writeByte(w, ' ')
		}
		for i := 0; i < len(s); i++ {
			writeByte(w, s[i])
		}
	case []byte:
		for pad := width - len(s); pad > 0; pad-- {
			writeByte(w, ' ')
		}
		doWrite(w, s)
	default:
		doWrite(w, errWrongArgType)
	}
}

// formatInt writes an integer value in the given base: digits are rendered
// right to left into numBuf, then padding (and the sign, for negative
// base-10 values) goes out in front of them.
func formatInt(w io.Writer, v interface{}, base, width int) {
	neg, uval, ok := intValue(v)
	if !ok {
		doWrite(w, errWrongArgType)
		return
	}

	padCh := byte(' ')
	if base != 10 {
		padCh = '0'
	}
	if width >= numBufLen {
		width = numBufLen - 1
	}

	i := numBufLen
	for {
		digit := byte(uval % uint64(base))
		i--
		if digit < 10 {
			numBuf[i] = '0' + digit
		} else {
			numBuf[i] = 'a' + digit - 10
		}
		uval /= uint64(base)
		if uval == 0 {
			break
		}
	}

	used := numBufLen - i
	if neg {
		used++
	}
	if neg && padCh == '0' {
		// Zero padding goes between the sign and the digits.
		writeByte(w, '-')
		neg = false
	}
	for ; used < width; used++ {
		writeByte(w, padCh)
	}
	if neg {
		writeByte(w, '-')
	}
	doWrite(w, numBuf[i:])
}

// intValue normalizes any built-in integer value into a sign flag and a
// magnitude.
func intValue(v interface{}) (neg bool, uval uint64, ok bool) {
	var sval int64

	switch t := v.(type) {
	case uint8:
		return false, uint64(t), true
	case uint16:
		return false, uint64(t), true
	case uint32:
		return false, uint64(t), true
	case uint64:
		return false, t, true
	case uint:
		return false, uint64(t), true
	case uintptr:
		return false, uint64(t), true
	case int8:
		sval = int64(t)
	case int16:
		sval = int64(t)
	case int32:
		sval = int64(t)
	case int64:
		sval = t
	case int:
		sval = int64(t)
	default:
		return false, 0, false
	}

	if sval < 0 {
		return true, uint64(-sval), true
	}
	return false, uint64(sval), true
}

// writeByte sends a single byte through the shared buffer.
func writeByte(w io.Writer, c byte) {
	byteBuf[0] = c
	doWrite(w, byteBuf)
}

// doWrite is a proxy that uses the runtime.noescape hack to hide p from the
// compiler's escape analysis. Without this hack, the compiler cannot
// properly detect that p does not escape (due to the call through the yet
// unknown outputSink io.Writer) and plays it safe by flagging it as
// escaping. This causes all calls to Printf to call runtime.convT2E which
// triggers a memory allocation, crashing the kernel if a call to Printf is
// made before the Go allocator is initialized.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyOut.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied
// over from runtime/stubs.go
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
