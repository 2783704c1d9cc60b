// Package kernel provides the handful of primitives that every other kernel
// package depends on: the error type used across fallible kernel operations
// and a raw memory helper that does not require the Go allocator to be
// usable.
package kernel

import (
	"reflect"
	"unsafe"
)

// Error describes a kernel error. All kernel errors are defined as package
// level variables that are pointers to Error so that returning one never
// requires an allocation (the kernel starts life with no heap at all).
type Error struct {
	// Module is the subsystem that detected the error.
	Module string
	// Message describes what went wrong.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "[" + e.Module + "] " + e.Message
}

// Memset sets size bytes starting at addr to value. The implementation
// follows the doubling trick used by bytes.Repeat: after writing the first
// byte it doubles the written region on each iteration instead of looping
// byte by byte, which matters since this is on the hot path of zeroing
// freshly allocated physical frames.
func Memset(addr uintptr, value byte, size uintptr) {
	if size == 0 {
		return
	}

	target := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: addr,
	}))

	target[0] = value
	for index := uintptr(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}
