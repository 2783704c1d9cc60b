package pid

import "testing"

func TestAllocIsMonotonicThenRecycles(t *testing.T) {
	var a Allocator

	first := a.Alloc()
	second := a.Alloc()
	if first != 0 || second != 1 {
		t.Fatalf("expected PIDs 0,1; got %d,%d", first, second)
	}

	a.Dealloc(first)
	third := a.Alloc()
	if third != first {
		t.Fatalf("expected recycled PID %d to be reissued; got %d", first, third)
	}

	fourth := a.Alloc()
	if fourth != 2 {
		t.Fatalf("expected bump cursor to resume at 2; got %d", fourth)
	}
}

func TestHandleReleaseTwicePanics(t *testing.T) {
	var a Allocator
	h := NewHandle(&a)

	defer func() {
		if recover() == nil {
			t.Fatal("expected second Release to panic")
		}
	}()
	h.Release()
	h.Release()
}

func TestHandleReleaseReturnsPIDToAllocator(t *testing.T) {
	var a Allocator
	h := NewHandle(&a)
	h.Release()

	if got := a.Alloc(); got != h.PID {
		t.Fatalf("expected released PID %d to be reused; got %d", h.PID, got)
	}
}
