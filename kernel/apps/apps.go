// Package apps describes the embedded ELF payload catalog: the list of
// (name, byte range) entries the boot image carries for the user programs
// linked into it. The boot-image packer and the _num_app/_app_names linker
// symbols it reads live outside the kernel core; this package defines the
// contract and a couple of concrete implementations of it.
package apps

import "unsafe"

// Catalog resolves an embedded application's name to the bytes of its ELF
// image. Task.New looks up a program this way before calling
// addrspace.FromELF.
type Catalog interface {
	// Names returns every embedded application name, in link order.
	Names() []string
	// ELF returns the byte range for name, or ok==false if no such
	// application was linked into the image.
	ELF(name string) (image []byte, ok bool)
}

// StaticCatalog is a Catalog backed by an in-memory name/image table. It is
// what tools/mkimage generates as Go source for the kernel to embed, and
// what tests use in place of a real boot image.
type StaticCatalog struct {
	order  []string
	images map[string][]byte
}

// NewStaticCatalog builds a catalog from parallel name/image slices,
// preserving the given order for Names.
func NewStaticCatalog(names []string, images [][]byte) *StaticCatalog {
	c := &StaticCatalog{order: append([]string(nil), names...), images: make(map[string][]byte, len(names))}
	for i, name := range names {
		c.images[name] = images[i]
	}
	return c
}

// Names implements Catalog.
func (c *StaticCatalog) Names() []string { return c.order }

// ELF implements Catalog.
func (c *StaticCatalog) ELF(name string) ([]byte, bool) {
	img, ok := c.images[name]
	return img, ok
}

// LinkerCatalog reads the _num_app/_app_names table the linker script
// embeds in the kernel image: a usize count followed by
// num_app+1 usize byte-addresses (the last one a sentinel marking the end
// of the final image), paired with NUL-separated ASCII names at
// _app_names. Unlike StaticCatalog it never copies the ELF bytes — it
// hands out slices directly over the embedded image, matching
// get_app_elf's unsafe core::slice::from_raw_parts.
type LinkerCatalog struct {
	names  []string
	starts []uintptr // len(names)+1; starts[i]..starts[i+1] bounds names[i]'s image
}

// NewLinkerCatalog parses the boot-image layout starting at numAppPtr (the
// address of the linker symbol _num_app) and namesPtr (_app_names).
func NewLinkerCatalog(numAppPtr, namesPtr unsafe.Pointer) *LinkerCatalog {
	numApp := *(*uintptr)(numAppPtr)

	starts := make([]uintptr, numApp+1)
	addrs := unsafe.Slice((*uintptr)(unsafe.Add(numAppPtr, unsafe.Sizeof(uintptr(0)))), numApp+1)
	copy(starts, addrs)

	names := make([]string, 0, numApp)
	cursor := (*byte)(namesPtr)
	for i := uintptr(0); i < numApp; i++ {
		start := cursor
		length := 0
		for *cursor != 0 {
			cursor = (*byte)(unsafe.Add(unsafe.Pointer(cursor), 1))
			length++
		}
		names = append(names, string(unsafe.Slice(start, length)))
		cursor = (*byte)(unsafe.Add(unsafe.Pointer(cursor), 1)) // skip the NUL
	}

	return &LinkerCatalog{names: names, starts: starts}
}

// Names implements Catalog.
func (c *LinkerCatalog) Names() []string { return c.names }

// ELF implements Catalog.
func (c *LinkerCatalog) ELF(name string) ([]byte, bool) {
	for i, n := range c.names {
		if n == name {
			addr := unsafe.Pointer(c.starts[i])
			length := int(c.starts[i+1] - c.starts[i])
			return unsafe.Slice((*byte)(addr), length), true
		}
	}
	return nil, false
}
