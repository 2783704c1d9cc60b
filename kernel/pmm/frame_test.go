package pmm

import (
	"testing"

	"rvkernel/kernel/mem"
)

func withNoopZero(t *testing.T) {
	orig := zeroFrameFn
	zeroFrameFn = func(Frame) {}
	t.Cleanup(func() { zeroFrameFn = orig })
}

func TestFrameMethods(t *testing.T) {
	for frameIndex := uint64(0); frameIndex < 128; frameIndex++ {
		f := Frame(frameIndex)
		if !f.Valid() {
			t.Errorf("expected frame %d to be valid", frameIndex)
		}
		if exp, got := mem.PhysAddr(frameIndex<<mem.PageShift), f.Address(); got != exp {
			t.Errorf("expected frame %d Address() to return %x; got %x", frameIndex, exp, got)
		}
	}

	if InvalidFrame.Valid() {
		t.Error("expected InvalidFrame.Valid() to return false")
	}
}

func TestAllocDealloc(t *testing.T) {
	withNoopZero(t)

	var a Allocator
	a.Init(Frame(0), Frame(4))

	var got []Frame
	for i := 0; i < 4; i++ {
		f, err := a.Alloc()
		if err != nil {
			t.Fatalf("unexpected error allocating frame %d: %v", i, err)
		}
		got = append(got, f)
	}

	if _, err := a.Alloc(); err == nil {
		t.Fatal("expected allocator to report out of frames")
	}

	a.Dealloc(got[2])
	f, err := a.Alloc()
	if err != nil {
		t.Fatalf("unexpected error re-allocating freed frame: %v", err)
	}
	if f != got[2] {
		t.Fatalf("expected recycled frame %v to be reissued; got %v", got[2], f)
	}
}

func TestDoubleFreePanics(t *testing.T) {
	withNoopZero(t)

	var a Allocator
	a.Init(Frame(0), Frame(4))

	f, err := a.Alloc()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a.Dealloc(f)

	defer func() {
		if recover() == nil {
			t.Fatal("expected double free to panic")
		}
	}()
	a.Dealloc(f)
}

func TestStatsConservation(t *testing.T) {
	withNoopZero(t)

	var a Allocator
	a.Init(Frame(0), Frame(16))

	var held []Frame
	for i := 0; i < 10; i++ {
		f, err := a.Alloc()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		held = append(held, f)
	}
	for _, f := range held[:5] {
		a.Dealloc(f)
	}

	allocatedSinceBase, recycledLen := a.Stats()
	if allocatedSinceBase != 10 {
		t.Fatalf("expected cursor to have advanced by 10; got %d", allocatedSinceBase)
	}
	if recycledLen != 5 {
		t.Fatalf("expected 5 recycled frames; got %d", recycledLen)
	}
}
