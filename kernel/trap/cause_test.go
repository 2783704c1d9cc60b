package trap

import "testing"

func TestCauseClassification(t *testing.T) {
	specs := []struct {
		cause     Cause
		interrupt bool
		fatal     bool
		name      string
	}{
		{CauseUserEnvCall, false, false, "UserEnvCall"},
		{CauseIllegalInstruction, false, true, "IllegalInstruction"},
		{CauseLoadFault, false, true, "LoadFault"},
		{CauseStoreFault, false, true, "StoreFault"},
		{CauseLoadPageFault, false, true, "LoadPageFault"},
		{CauseStorePageFault, false, true, "StorePageFault"},
		{CauseSupervisorTimer, true, false, "SupervisorTimer"},
		{Cause(3), false, false, "unknown"},
	}

	for _, spec := range specs {
		if got := spec.cause.IsInterrupt(); got != spec.interrupt {
			t.Errorf("%s: IsInterrupt=%t, want %t", spec.name, got, spec.interrupt)
		}
		if got := spec.cause.IsFatalFault(); got != spec.fatal {
			t.Errorf("%s: IsFatalFault=%t, want %t", spec.name, got, spec.fatal)
		}
		if got := spec.cause.String(); got != spec.name {
			t.Errorf("expected cause %d to format as %s; got %s", uint64(spec.cause), spec.name, got)
		}
	}
}

func TestRegAAccessors(t *testing.T) {
	var ctx Context
	ctx.SetRegA(0, 0x1234)
	ctx.SetRegA(7, 64)

	if ctx.X[10] != 0x1234 {
		t.Fatalf("expected a0 in x10; got %#x", ctx.X[10])
	}
	if ctx.X[17] != 64 {
		t.Fatalf("expected a7 in x17; got %#x", ctx.X[17])
	}
	if ctx.RegA(0) != 0x1234 || ctx.RegA(7) != 64 {
		t.Fatalf("expected accessors to round-trip; got a0=%#x a7=%#x", ctx.RegA(0), ctx.RegA(7))
	}
}
