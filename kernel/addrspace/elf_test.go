package addrspace

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"rvkernel/kernel/mem"
)

// buildMinimalRISCV64ELF assembles a tiny valid ELF64/EM_RISCV image with a
// single PT_LOAD segment containing payload at the given virtual address,
// entry point equal to vaddr. No section headers are emitted; debug/elf
// parses program headers without them.
func buildMinimalRISCV64ELF(t *testing.T, vaddr uint64, payload []byte) []byte {
	t.Helper()

	const ehsize = 64
	const phentsize = 56

	var buf bytes.Buffer
	buf.Write([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0})
	buf.Write(make([]byte, 8)) // e_ident padding

	write16 := func(v uint16) { binary.Write(&buf, binary.LittleEndian, v) }
	write32 := func(v uint32) { binary.Write(&buf, binary.LittleEndian, v) }
	write64 := func(v uint64) { binary.Write(&buf, binary.LittleEndian, v) }

	write16(uint16(elf.ET_EXEC))
	write16(uint16(elf.EM_RISCV))
	write32(1)      // e_version
	write64(vaddr)  // e_entry
	write64(ehsize) // e_phoff
	write64(0)      // e_shoff
	write32(0)      // e_flags
	write16(ehsize)
	write16(phentsize)
	write16(1) // e_phnum
	write16(0) // e_shentsize
	write16(0) // e_shnum
	write16(0) // e_shstrndx

	const phOff = ehsize + phentsize
	write32(uint32(elf.PT_LOAD))
	write32(uint32(elf.PF_R | elf.PF_W | elf.PF_X))
	write64(phOff)                // p_offset
	write64(vaddr)                // p_vaddr
	write64(vaddr)                // p_paddr
	write64(uint64(len(payload))) // p_filesz
	write64(uint64(len(payload))) // p_memsz
	write64(uint64(mem.PageSize)) // p_align

	buf.Write(payload)

	if got := buf.Len(); got != phOff+len(payload) {
		t.Fatalf("internal test builder mismatch: buf len %d, want %d", got, phOff+len(payload))
	}
	return buf.Bytes()
}

func TestFromELFRejectsBadMagic(t *testing.T) {
	if _, _, _, err := FromELF(nil, []byte("not an elf"), 0); err == nil {
		t.Fatal("expected malformed ELF to be rejected")
	}
}

func TestFromELFLoadsSegment(t *testing.T) {
	ram := newFakeRAM(32)
	ram.install(t)

	alloc := &fakeAllocator{ram: ram}

	const vaddr = 0x10000
	payload := []byte("hello from user space")
	image := buildMinimalRISCV64ELF(t, vaddr, payload)

	trampoline, err := alloc.Alloc()
	if err != nil {
		t.Fatalf("unexpected error reserving trampoline frame: %v", err)
	}

	as, sp, entry, err := FromELF(alloc, image, mem.PPN(trampoline))
	if err != nil {
		t.Fatalf("unexpected error loading ELF: %v", err)
	}
	if entry != mem.VirtAddr(vaddr) {
		t.Fatalf("expected entry %#x; got %#x", vaddr, entry)
	}
	if sp <= mem.VirtAddr(vaddr) {
		t.Fatalf("expected user stack pointer above segment; got %#x", sp)
	}

	pa, err := as.PageTable.Translate(mem.VirtAddr(vaddr))
	if err != nil {
		t.Fatalf("unexpected error translating loaded segment: %v", err)
	}

	frameIdx := uintptr(pa) / uintptr(mem.PageSize)
	off := uintptr(pa) % uintptr(mem.PageSize)
	got := ram.frames[frameIdx][off : off+uintptr(len(payload))]
	if string(got) != string(payload) {
		t.Fatalf("expected loaded segment bytes %q; got %q", payload, got)
	}
}
