package kfmt

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutputSink(&buf)
	t.Cleanup(func() {
		SetOutputSink(nil)
		SetLogLevel(LogDebug)
	})
	buf.Reset()

	SetLogLevel(LogInfo)
	Debugf("trap", "suppressed line\n")
	Infof("task", "pid=%d exited\n", 3)
	Warnf("pmm", "low on frames\n")

	out := buf.String()
	if strings.Contains(out, "suppressed line") {
		t.Fatalf("expected the debug line dropped at LogInfo; got %q", out)
	}
	if !strings.Contains(out, "info  task: pid=3 exited\n") {
		t.Fatalf("expected a tagged info line; got %q", out)
	}
	if !strings.Contains(out, "warn  pmm: low on frames\n") {
		t.Fatalf("expected a tagged warn line; got %q", out)
	}
}

func TestLogBeforeConsoleAttachIsRetained(t *testing.T) {
	t.Cleanup(func() {
		SetOutputSink(nil)
		SetLogLevel(LogDebug)
	})

	// No sink yet: the line lands in the early buffer and is drained into
	// the console the moment it attaches.
	outputSink = nil
	Infof("boot", "before console\n")

	var buf bytes.Buffer
	SetOutputSink(&buf)
	if !strings.Contains(buf.String(), "info  boot: before console\n") {
		t.Fatalf("expected the early log line drained into the sink; got %q", buf.String())
	}
}
