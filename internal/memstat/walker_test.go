package memstat

import (
	"testing"

	"github.com/lumen-lang/lumen/internal/allocator"
	"github.com/lumen-lang/lumen/internal/gc"
)

func newTestRuntime() *gc.Runtime {
	ar := allocator.NewArena(64 * 1024)
	return gc.NewRuntime(ar.FuncTable())
}

func TestComputeCountsObjectsAndShapes(t *testing.T) {
	rt := newTestRuntime()

	shape := rt.NewShape(nil)
	a := rt.NewObject(shape, 7, nil)
	b := rt.NewObject(shape, 7, nil)
	c := rt.NewObject(nil, 9, nil)

	stats := Compute(rt)

	if stats.Objects != 3 {
		t.Fatalf("expected 3 objects, got %d", stats.Objects)
	}
	if stats.ObjectsByClass[7] != 2 {
		t.Fatalf("expected 2 objects of class 7, got %d", stats.ObjectsByClass[7])
	}
	if stats.ObjectsByClass[9] != 1 {
		t.Fatalf("expected 1 object of class 9, got %d", stats.ObjectsByClass[9])
	}
	if stats.Shapes != 1 {
		t.Fatalf("expected 1 shape, got %d", stats.Shapes)
	}

	rt.Release(a)
	rt.Release(b)
	rt.Release(c)
	rt.Release(shape)
}

func TestComputeSplitsFastAndSlowArrays(t *testing.T) {
	rt := newTestRuntime()

	fast := rt.NewObject(nil, 0, nil)
	fast.Flags |= gc.FlagFastArray
	fast.Props = make([]gc.PropertySlot, 3)

	slow := rt.NewObject(nil, 0, nil)
	slow.Props = make([]gc.PropertySlot, 2)

	stats := Compute(rt)

	if stats.ArraysFast != 1 {
		t.Fatalf("expected 1 fast array, got %d", stats.ArraysFast)
	}
	if stats.ArraysSlow != 1 {
		t.Fatalf("expected 1 slow array, got %d", stats.ArraysSlow)
	}
	if stats.Properties != 5 {
		t.Fatalf("expected 5 total property slots, got %d", stats.Properties)
	}

	rt.Release(fast)
	rt.Release(slow)
}

func TestComputeCountsSharedValueOnce(t *testing.T) {
	rt := newTestRuntime()

	shared := rt.NewObject(nil, 0, nil) // held by both holders below, refcount 3
	holderA := rt.NewObject(nil, 0, nil)
	holderB := rt.NewObject(nil, 0, nil)

	holderA.Props = make([]gc.PropertySlot, 1)
	holderA.SetValue(rt, 0, gc.GCValue{Cell: shared})
	holderB.Props = make([]gc.PropertySlot, 1)
	holderB.SetValue(rt, 0, gc.GCValue{Cell: shared})

	stats := Compute(rt)

	if stats.Objects != 3 {
		t.Fatalf("expected 3 objects, got %d", stats.Objects)
	}

	rt.Release(shared)
	rt.Release(holderA)
	rt.Release(holderB)
}

func TestComputeTalliesFunctionBytecode(t *testing.T) {
	rt := newTestRuntime()

	f := rt.NewFunctionBytecode(nil)
	f.Opcodes = make([]byte, 40)
	f.PCToLine = make([]gc.PCLine, 5)
	f.ConstantPool = make([]gc.GCValue, 2)

	stats := Compute(rt)

	if stats.Functions.Count != 1 {
		t.Fatalf("expected 1 function, got %d", stats.Functions.Count)
	}
	if stats.Functions.OpcodeBytes != 40 {
		t.Fatalf("expected 40 opcode bytes, got %d", stats.Functions.OpcodeBytes)
	}
	if stats.Functions.PCLineBytes != 5*pcLineRowSize {
		t.Fatalf("expected %d pc-line bytes, got %d", 5*pcLineRowSize, stats.Functions.PCLineBytes)
	}

	rt.Release(f)
}

func TestComputeReportsAllocatorTotals(t *testing.T) {
	rt := newTestRuntime()

	stats := Compute(rt)
	if stats.AllocatorBytesInUse < 0 {
		t.Fatalf("expected non-negative allocator bytes in use, got %d", stats.AllocatorBytesInUse)
	}

	obj := rt.NewObject(nil, 0, nil)
	rt.Release(obj)
}

func TestComputeIsReadOnly(t *testing.T) {
	rt := newTestRuntime()

	a := rt.NewObject(nil, 0, nil)
	before := rt.LiveCount()

	Compute(rt)

	if rt.LiveCount() != before {
		t.Fatalf("Compute must not mutate live count: before=%d after=%d", before, rt.LiveCount())
	}
	if a.RefCount != 1 {
		t.Fatalf("Compute must not mutate refcounts: got %d", a.RefCount)
	}

	rt.Release(a)
}
