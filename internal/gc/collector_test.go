package gc

import (
	"testing"

	"github.com/lumen-lang/lumen/internal/allocator"
)

func newTestRuntime() *Runtime {
	ar := allocator.NewArena(64 * 1024)
	return NewRuntime(ar.FuncTable())
}

func assertIdleInvariants(t *testing.T, rt *Runtime) {
	t.Helper()

	if rt.Phase() != PhaseIdle {
		t.Fatalf("expected phase idle, got %s", rt.Phase())
	}
	if rt.TentativeCount() != 0 {
		t.Fatalf("expected empty tentative list, got %d", rt.TentativeCount())
	}
	if rt.PendingFreeCount() != 0 {
		t.Fatalf("expected empty pending-free list, got %d", rt.PendingFreeCount())
	}

	rt.registry.live.each(func(c Cell) {
		if c.header().mark != markNone {
			t.Fatalf("live cell of type %s has non-zero mark after GC", c.header().Type)
		}
	})
}

// TestAcyclicDrop is scenario 1: releasing the only reference to an
// object with no cyclic property reclaims it immediately, with no
// cycle collection involved.
func TestAcyclicDrop(t *testing.T) {
	rt := newTestRuntime()
	baseline := rt.LiveCount()

	a := rt.NewObject(nil, 0, nil)
	a.Props = []PropertySlot{{Kind: PropValue, Value: GCValue{}}} // opaque "x"

	if rt.LiveCount() != baseline+1 {
		t.Fatalf("expected one new live cell, got %d", rt.LiveCount()-baseline)
	}

	rt.Release(a)

	if rt.LiveCount() != baseline {
		t.Fatalf("expected live count back to baseline after acyclic release, got %d (baseline %d)", rt.LiveCount(), baseline)
	}
	if rt.GCRuns() != 0 {
		t.Fatalf("acyclic drop must not invoke the cycle collector, gcRuns=%d", rt.GCRuns())
	}
}

// TestAcyclicChainFullyReclaimed is invariant P2: dropping the last
// external reference to the root of a multi-level acyclic chain
// reclaims the root and every descendant, without invoking the cycle
// collector. A bare refcount decrement on the root alone would leak b
// and c, since nothing else ever walks the root's properties to drop
// the references it held.
func TestAcyclicChainFullyReclaimed(t *testing.T) {
	rt := newTestRuntime()
	baseline := rt.LiveCount()

	a := rt.NewObject(nil, 0, nil)
	b := rt.NewObject(nil, 0, nil)
	c := rt.NewObject(nil, 0, nil)

	a.Props = make([]PropertySlot, 1)
	a.SetValue(rt, 0, GCValue{Cell: b})
	b.Props = make([]PropertySlot, 1)
	b.SetValue(rt, 0, GCValue{Cell: c})

	rt.Release(b) // a's property retain is the only remaining owner
	rt.Release(c) // b's property retain is the only remaining owner

	if rt.LiveCount() != baseline+3 {
		t.Fatalf("expected 3 new live cells before release, got %d", rt.LiveCount()-baseline)
	}

	rt.Release(a)

	if rt.LiveCount() != baseline {
		t.Fatalf("expected the whole chain reclaimed, got %d live cells above baseline", rt.LiveCount()-baseline)
	}
	if rt.GCRuns() != 0 {
		t.Fatalf("acyclic chain reclaim must not invoke the cycle collector, gcRuns=%d", rt.GCRuns())
	}
}

// TestSelfCycle is scenario 2: an object pointing at itself survives
// its external release until an explicit RunGC reclaims it.
func TestSelfCycle(t *testing.T) {
	rt := newTestRuntime()
	baseline := rt.LiveCount()

	a := rt.NewObject(nil, 0, nil)
	a.Props = make([]PropertySlot, 1)
	a.SetValue(rt, 0, GCValue{Cell: a})

	if a.RefCount != 2 {
		t.Fatalf("expected refcount 2 before external release, got %d", a.RefCount)
	}

	rt.Release(a)

	if a.RefCount != 1 {
		t.Fatalf("expected refcount 1 after external release (self-edge only), got %d", a.RefCount)
	}
	if rt.LiveCount() != baseline+1 {
		t.Fatalf("self-cycle must not be reclaimed by refcounting alone")
	}

	rt.RunGC()

	if rt.LiveCount() != baseline {
		t.Fatalf("expected live count back to baseline after RunGC, got %d (baseline %d)", rt.LiveCount(), baseline)
	}

	assertIdleInvariants(t, rt)
}

func buildEmitterCycle(t *testing.T, rt *Runtime) (e *Object, listener *FunctionBytecode, ref *VarRef) {
	t.Helper()

	e = rt.NewObject(nil, 0, nil)
	listener = rt.NewFunctionBytecode(nil)
	ref = rt.NewVarRef()

	rt.Retain(e)
	ref.Detach(GCValue{Cell: e})

	listener.ClosureCells = append(listener.ClosureCells, ref)
	rt.Retain(ref)
	rt.Release(ref) // sole ownership transfers to listener's closure

	e.Props = make([]PropertySlot, 1)
	e.SetValue(rt, 0, GCValue{Cell: listener})

	return e, listener, ref
}

// TestClosureRetainingEmitter is scenario 3: an EventEmitter holding a
// listener whose closure captures the emitter back is a three-cell
// cycle (E -> listener -> var-ref -> E) that only RunGC can break.
func TestClosureRetainingEmitter(t *testing.T) {
	rt := newTestRuntime()
	baseline := rt.LiveCount()

	e, listener, ref := buildEmitterCycle(t, rt)

	rt.Release(e)
	rt.Release(listener)

	if e.RefCount != 1 {
		t.Fatalf("expected E.ref_count == 1 before GC, got %d", e.RefCount)
	}
	if listener.RefCount != 1 {
		t.Fatalf("expected listener.ref_count == 1 before GC, got %d", listener.RefCount)
	}

	rt.RunGC()

	if rt.LiveCount() != baseline {
		t.Fatalf("expected cycle fully reclaimed, live count %d (baseline %d)", rt.LiveCount(), baseline)
	}

	_ = ref
	assertIdleInvariants(t, rt)
}

// TestSurvivorAfterScan is scenario 4: the same cycle as scenario 3,
// but with an external reference to the listener retained. RunGC must
// free nothing and must restore every cell's pre-GC refcount exactly.
func TestSurvivorAfterScan(t *testing.T) {
	rt := newTestRuntime()
	baseline := rt.LiveCount()

	e, listener, _ := buildEmitterCycle(t, rt)
	rt.Release(e) // drop only E's external reference

	eRefBefore := e.RefCount
	listenerRefBefore := listener.RefCount

	rt.RunGC()

	if rt.LiveCount() != baseline+3 {
		t.Fatalf("expected nothing reclaimed while listener is externally held, live count %d (baseline %d)", rt.LiveCount(), baseline)
	}
	if e.RefCount != eRefBefore {
		t.Fatalf("E.ref_count changed across RunGC: before=%d after=%d", eRefBefore, e.RefCount)
	}
	if listener.RefCount != listenerRefBefore {
		t.Fatalf("listener.ref_count changed across RunGC: before=%d after=%d", listenerRefBefore, listener.RefCount)
	}

	assertIdleInvariants(t, rt)

	rt.Release(listener)
	rt.RunGC()

	if rt.LiveCount() != baseline {
		t.Fatalf("expected full reclaim once listener's external ref is also dropped, live count %d", rt.LiveCount())
	}
}

// TestWeakMapCleanup is scenario 5: dropping the last external
// reference to a weak-map key reclaims the key immediately and
// invalidates the map's record — and its stored value — along the
// way, with no RunGC required.
func TestWeakMapCleanup(t *testing.T) {
	rt := newTestRuntime()
	baseline := rt.LiveCount()

	k := rt.NewObject(nil, 0, nil)
	v := rt.NewObject(nil, 0, nil)

	w := NewWeakMap()
	w.Set(rt, k, GCValue{Cell: v})
	rt.Release(v) // drop test's external ref; only the weak-map's record holds it now

	if !w.Has(k) {
		t.Fatal("expected weak-map to hold k before release")
	}

	rt.Release(k) // drop the only strong reference to k

	if w.Has(k) {
		t.Fatal("expected weak-map record for k to be gone after k's death")
	}
	if rt.LiveCount() != baseline {
		t.Fatalf("expected both k and v reclaimed, live count %d (baseline %d)", rt.LiveCount(), baseline)
	}
	if rt.GCRuns() != 0 {
		t.Fatal("weak-map cleanup must not require a cycle collection")
	}
}

func TestRunGCIdleAfterNoOp(t *testing.T) {
	rt := newTestRuntime()
	rt.RunGC()
	assertIdleInvariants(t, rt)
}
