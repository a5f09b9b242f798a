package gc

import (
	"unsafe"

	"github.com/lumen-lang/lumen/internal/allocator"
	lumenerrors "github.com/lumen-lang/lumen/internal/errors"
)

// Config configures a Runtime's collection policy. Mirrors the
// teacher's plain-struct-plus-functional-options texture
// (allocator.Config, BlockPolicy/GCAvoidanceConfig in the teacher's
// internal/runtime) rather than a config file or env parser.
type Config struct {
	GCThreshold uintptr
	MemoryLimit uintptr
}

type Option func(*Config)

// WithGCThreshold sets the allocator's initial GC watermark. Zero
// disables automatic triggering (§6 "a sentinel value disables
// auto-GC").
func WithGCThreshold(bytes uintptr) Option {
	return func(c *Config) { c.GCThreshold = bytes }
}

// WithMemoryLimit sets a hard ceiling past which Runtime.Alloc fails
// (returns nil, as on out-of-memory) even if the underlying table
// would satisfy the request. Zero means no limit.
func WithMemoryLimit(bytes uintptr) Option {
	return func(c *Config) { c.MemoryLimit = bytes }
}

func defaultConfig() Config {
	return Config{GCThreshold: 4 << 20}
}

// Runtime is the process-wide state described in §3: the allocator
// function table, allocation counters, GC threshold/phase, the object
// registry, and every attached Context. Unlike the teacher's
// GlobalAllocator package variable, nothing here is a package-level
// global — every field lives on the Runtime value the host
// constructs, one per OS thread (§9 "Global state").
type Runtime struct {
	config   Config
	alloc    *allocator.Allocator
	registry *ObjectRegistry

	Contexts []*Context

	gcRuns             uint64
	bytesFreedTotal    uintptr
	bytesReclaimedLast uintptr

	oom bool
}

// NewRuntime wires an allocation function table to a fresh Runtime
// that triggers its own collector when the allocator's watermark is
// crossed. The allocator↔GC circular dependency is broken by having
// Runtime implement allocator.GCTrigger and injecting it into
// allocator.New, instead of a shared global referencing both.
func NewRuntime(table allocator.FuncTable, opts ...Option) *Runtime {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	rt := &Runtime{config: cfg}
	rt.registry = newObjectRegistry(rt)
	rt.alloc = allocator.New(table, rt, allocator.WithThreshold(cfg.GCThreshold))

	return rt
}

// MaybeCollect implements allocator.GCTrigger: invoked by the
// allocator before an allocation that would cross its threshold.
func (rt *Runtime) MaybeCollect(pendingSize uintptr) (uintptr, bool) {
	before := rt.bytesFreedTotal
	rt.runGC()

	return rt.bytesFreedTotal - before, true
}

// SetMemoryLimit installs a hard allocation ceiling (§6
// set_memory_limit).
func (rt *Runtime) SetMemoryLimit(bytes uintptr) { rt.config.MemoryLimit = bytes }

// SetGCThreshold changes the allocator's auto-collection watermark; a
// zero value disables automatic triggering (§6 set_gc_threshold).
func (rt *Runtime) SetGCThreshold(bytes uintptr) { rt.alloc.SetThreshold(bytes) }

// GCThreshold returns the allocator's current watermark.
func (rt *Runtime) GCThreshold() uintptr { return rt.alloc.Threshold() }

// RunGC forces a full synchronous collection (§6 run_gc).
func (rt *Runtime) RunGC() { rt.runGC() }

// NewContext creates and attaches a fresh execution realm to rt. The
// Runtime holds the only root reference to it.
func (rt *Runtime) NewContext() *Context {
	ctx := &Context{
		PerClassProto:  make(map[int]*Object),
		WellKnownCtors: make(map[string]*Object),
	}

	rt.registry.register(ctx, CellContext)
	ctx.RefCount = 1
	rt.Contexts = append(rt.Contexts, ctx)

	return ctx
}

// NewObject allocates and registers a plain object cell with refcount
// 1 — the caller owns the single reference NewObject returns.
func (rt *Runtime) NewObject(shape *Shape, classID int, desc *ClassDescriptor) *Object {
	obj := &Object{Shape: shape, ClassID: classID, desc: desc}
	if shape != nil {
		rt.Retain(shape)
	}

	rt.registry.register(obj, CellObject)
	obj.RefCount = 1

	return obj
}

// NewFunctionBytecode allocates and registers a function-bytecode
// cell bound to realm.
func (rt *Runtime) NewFunctionBytecode(realm *Context) *FunctionBytecode {
	f := &FunctionBytecode{Realm: realm}
	if realm != nil {
		rt.Retain(realm)
	}

	rt.registry.register(f, CellFunctionBytecode)
	f.RefCount = 1

	return f
}

// NewVarRef allocates and registers an attached captured-variable
// cell.
func (rt *Runtime) NewVarRef() *VarRef {
	v := &VarRef{}
	rt.registry.register(v, CellVarRef)
	v.RefCount = 1

	return v
}

// NewShape allocates and registers a hidden-class cell.
func (rt *Runtime) NewShape(proto *Object) *Shape {
	s := &Shape{Proto: proto}
	if proto != nil {
		rt.Retain(proto)
	}

	rt.registry.register(s, CellShape)
	s.RefCount = 1

	return s
}

// NewAsyncFuncState allocates and registers a suspended
// async-function frame cell.
func (rt *Runtime) NewAsyncFuncState() *AsyncFuncState {
	a := &AsyncFuncState{}
	rt.registry.register(a, CellAsyncFuncState)
	a.RefCount = 1

	return a
}

// Retain increments c's strong-reference count.
func (rt *Runtime) Retain(c Cell) { rt.registry.retain(c) }

// Release decrements c's strong-reference count, draining the
// zero-refcount free list immediately if the collector is idle (§4.2
// "zero-refcount drain").
func (rt *Runtime) Release(c Cell) {
	rt.registry.release(c)
	if rt.registry.phase == PhaseIdle {
		rt.registry.drain()
	}
}

// freeCell is the sole path to reclaiming a cell: weak-reference
// invalidation, the class finalizer (for objects), then either the
// actual free or — if the finalizer resurrected the cell by retaining
// it — restaging it on pendingFree (§9 "a single free_gc_object
// dispatch"). Called from exactly the registry's drain loop and the
// collector's phase-3 sweep.
//
// A cell arriving here from phase 3 routinely still carries a
// nonzero refcount: phase 2 deliberately restored every count phase 1
// took away, so cycle partners that are being destroyed in this same
// sweep still "hold" each other right up to the end. That is not
// resurrection. Only an increase in RefCount across the finalizer
// call — a new retain the finalizer itself performed — counts as
// resurrection and defers reclamation.
//
// Releasing c's own held references (trace) runs unconditionally,
// even on the resurrection path: c's fields are about to be
// considered destroyed either way, and the drain loop's explicit
// pendingFree iteration (registry.drain) is what lets this cascade
// through an arbitrarily long chain without recursing.
func (rt *Runtime) freeCell(c Cell) {
	resetWeakRefs(rt, c)

	before := c.header().RefCount

	if obj, ok := c.(*Object); ok && obj.desc != nil && obj.desc.Finalizer != nil {
		obj.desc.Finalizer(rt, obj)
	}

	c.trace(func(ref Cell) { rt.Release(ref) })

	if c.header().RefCount > before {
		rt.registry.moveTo(c, &rt.registry.pendingFree)
		return
	}

	rt.bytesFreedTotal += rt.cellSize(c)
}

func (rt *Runtime) cellSize(c Cell) uintptr {
	if obj, ok := c.(*Object); ok && obj.desc != nil && obj.desc.SizeHint != nil {
		return obj.desc.SizeHint(obj.Payload)
	}

	return 0
}

// LiveCount, TentativeCount, and PendingFreeCount expose registry
// sizes for diagnostics and tests.
func (rt *Runtime) LiveCount() int               { return rt.registry.live.len() }
func (rt *Runtime) TentativeCount() int          { return rt.registry.tentative.len() }
func (rt *Runtime) PendingFreeCount() int        { return rt.registry.pendingFree.len() }
func (rt *Runtime) Phase() Phase                 { return rt.registry.phase }
func (rt *Runtime) GCRuns() uint64               { return rt.gcRuns }
func (rt *Runtime) BytesReclaimedLast() uintptr  { return rt.bytesReclaimedLast }

// WalkLive calls fn once for every cell currently on the live list,
// passing its concrete Cell value and cell-type tag. Read-only —
// fn must not Retain, Release, or otherwise mutate rt; the memory
// walker (§4.5) is the sole intended caller.
func (rt *Runtime) WalkLive(fn func(c Cell, kind CellType)) {
	rt.registry.live.each(func(c Cell) { fn(c, c.header().Type) })
}

// AllocatorBytesInUse and AllocatorBlockCount expose the underlying
// allocator's counters for the memory walker's allocator-level totals
// (§4.5), without handing out the *allocator.Allocator itself.
func (rt *Runtime) AllocatorBytesInUse() uintptr { return rt.alloc.BytesInUse() }
func (rt *Runtime) AllocatorBlockCount() uintptr { return rt.alloc.BlockCount() }

// Alloc allocates raw, non-GC-managed bytes through rt's allocator —
// for C-function records, array-buffer backing, and other opaque
// payload storage that never participates in tracing directly. A
// request that would take the allocator's bytes in use past the
// memory limit returns nil.
func (rt *Runtime) Alloc(size uintptr) unsafe.Pointer {
	if limit := rt.config.MemoryLimit; limit > 0 && rt.alloc.BytesInUse()+size > limit {
		return nil
	}
	return rt.alloc.Alloc(size)
}

// Free releases bytes previously returned by Alloc.
func (rt *Runtime) Free(ptr unsafe.Pointer, size uintptr) { rt.alloc.Free(ptr, size) }

// OOM raises the language-visible out-of-memory condition a
// Context-level wrapper must surface on allocation failure (§7).
func (rt *Runtime) OOM(context string) error {
	rt.oom = true
	return lumenerrors.OutOfMemory(0, context)
}
