// Package boot orchestrates kernel bring-up, from the point the early
// assembly hands over a stack and a console to the moment the first task's
// user context is restored: a single exported Kmain invoked by the rt0
// code, wiring the console into kfmt first so every later step can log,
// then initializing subsystems in dependency order.
package boot

import (
	"io"

	"rvkernel/kernel/addrspace"
	"rvkernel/kernel/apps"
	"rvkernel/kernel/config"
	"rvkernel/kernel/cpu"
	"rvkernel/kernel/kfmt"
	"rvkernel/kernel/mem"
	"rvkernel/kernel/pmm"
	"rvkernel/kernel/sched"
	"rvkernel/kernel/syscall"
	"rvkernel/kernel/task"
	"rvkernel/kernel/timer"
	"rvkernel/kernel/trap"
)

// initApp is the name of the task created at boot; it forks everything
// else. If the embedded catalog has no app by this name, every cataloged
// app is started instead.
const initApp = "initproc"

// frameAllocator is the kernel's only physical frame allocator, serving
// [ekernel, MemoryEnd).
var frameAllocator pmm.Allocator

// Kmain is invoked by the early boot assembly once a minimal stack is set
// up. console is the UART-backed writer from the out-of-scope driver
// layer; layout carries the linker-script section symbols; catalog
// resolves embedded application names to ELF images. Kmain does not
// return: it ends in sched.RunNext restoring the first user context.
func Kmain(console io.Writer, layout addrspace.KernelLayout, catalog apps.Catalog) {
	kfmt.SetOutputSink(console)
	kfmt.Printf("rvkernel: booting\n")

	base := mem.PPN(mem.VirtAddr(layout.EKernel).Ceil())
	end := mem.PhysAddr(config.MemoryEnd).Floor()
	frameAllocator.Init(pmm.Frame(base), pmm.Frame(end))
	kfmt.Infof("pmm", "serving frames 0x%x..0x%x\n", uintptr(base), uintptr(end))

	trampolineFrame := trap.TrampolinePhysFrame()

	kernelSpace, err := addrspace.NewKernel(&frameAllocator, layout, trampolineFrame)
	if err != nil {
		panic(err)
	}
	kernelSpace.SetFrameDeallocator(&frameAllocator)
	kernelSpace.Activate()
	kfmt.Infof("vmm", "kernel space active, satp=0x%x\n", kernelSpace.Satp())

	trap.Init()
	syscall.Install()

	task.Setup(&frameAllocator, catalog, kernelSpace.Satp(), trampolineFrame)

	cpu.EnableTimerInterrupt()
	timer.SetNextTrigger()

	spawnInitialTasks(catalog)
	sched.RunNext()
}

// spawnInitialTasks creates and enqueues the boot task set: initproc when
// the catalog carries one, otherwise every embedded app in link order.
func spawnInitialTasks(catalog apps.Catalog) {
	names := []string{initApp}
	if _, ok := catalog.ELF(initApp); !ok {
		names = catalog.Names()
	}

	for _, name := range names {
		t, err := task.New(name)
		if err != nil {
			panic(err)
		}
		kfmt.Infof("task", "created pid=%d name=%s\n", int64(t.PID()), name)
		sched.AddTask(t)
	}
}
