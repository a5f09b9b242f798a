// Package allocator wraps a pluggable malloc/realloc/free quartet for the
// lumen heap runtime. Every allocation the GC core performs is routed
// through the active Allocator's FuncTable, never through a bare
// system-allocator call, so a host can plug in a tracked or sandboxed
// allocator without touching the GC.
package allocator

import (
	"unsafe"

	lumenerrors "github.com/lumen-lang/lumen/internal/errors"
)

// FuncTable is the host-pluggable allocation backend. A backend need not be
// thread-safe; the runtime model is single-threaded cooperative (see the
// Concurrency section of the spec), so Allocator never calls into a table
// from more than one goroutine concurrently.
type FuncTable struct {
	Alloc      func(size uintptr) unsafe.Pointer
	Realloc    func(ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer
	Free       func(ptr unsafe.Pointer, size uintptr)
	UsableSize func(ptr unsafe.Pointer, requested uintptr) uintptr
}

// GCTrigger is implemented by the GC runtime and invoked by the allocator
// before every allocating call so the collector can run synchronously when
// the heap watermark is crossed. It must not itself allocate through this
// Allocator (that would re-enter maybeTriggerGC).
type GCTrigger interface {
	// MaybeCollect is called with the size of the pending allocation. It
	// returns the number of bytes reclaimed, if it chose to collect.
	MaybeCollect(pendingSize uintptr) (reclaimed uintptr, collected bool)
}

// Config configures an Allocator. Mirrors the teacher's functional-options
// shape (WithX(...) Option) rather than a config file or env parser — there
// is no ambient configuration library in this corpus to reach for.
type Config struct {
	Threshold       uintptr
	ForceGCOnAlloc  bool // overridden to true by debug builds, see debug.go
	OOMRetryCollect bool
}

// Option mutates a Config.
type Option func(*Config)

// WithThreshold sets the initial GC threshold in bytes. Zero disables
// automatic triggering until SetThreshold is called.
func WithThreshold(bytes uintptr) Option {
	return func(c *Config) { c.Threshold = bytes }
}

// WithForceGCOnAlloc forces maybeTriggerGC to run on every allocating call,
// independent of the threshold. Debug builds enable this unconditionally.
func WithForceGCOnAlloc(force bool) Option {
	return func(c *Config) { c.ForceGCOnAlloc = force }
}

func defaultConfig() *Config {
	return &Config{
		Threshold:       0,
		OOMRetryCollect: true,
	}
}

// Allocator is the per-Runtime allocation façade described in spec §4.1.
// There is deliberately no package-level global instance: the spec's design
// notes forbid a hidden global allocator, so every Runtime owns its own.
type Allocator struct {
	table     FuncTable
	trigger   GCTrigger
	config    *Config
	bytesUsed uintptr
	blocks    uintptr
}

// New creates an Allocator bound to table, invoking trigger.MaybeCollect
// before each allocating call. trigger may be nil during bring-up/tests, in
// which case maybeTriggerGC is a no-op.
func New(table FuncTable, trigger GCTrigger, opts ...Option) *Allocator {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if debugForceGC {
		cfg.ForceGCOnAlloc = true
	}

	return &Allocator{table: table, trigger: trigger, config: cfg}
}

// BytesInUse returns the allocator's current accounting total.
func (a *Allocator) BytesInUse() uintptr { return a.bytesUsed }

// BlockCount returns the number of live blocks tracked by accounting.
func (a *Allocator) BlockCount() uintptr { return a.blocks }

// Threshold returns the current GC trigger threshold.
func (a *Allocator) Threshold() uintptr { return a.config.Threshold }

// SetThreshold changes the GC trigger threshold. A zero value disables
// automatic triggering (the sentinel described in §6's set_gc_threshold).
func (a *Allocator) SetThreshold(bytes uintptr) { a.config.Threshold = bytes }

// maybeTriggerGC runs before every allocating call. When bytesUsed+size
// exceeds the threshold it asks the GC trigger to collect and resets the
// threshold to 1.5x the new high-water mark, per §4.1.
func (a *Allocator) maybeTriggerGC(size uintptr) {
	if a.trigger == nil {
		return
	}

	disabled := a.config.Threshold == 0
	overThreshold := !disabled && a.bytesUsed+size > a.config.Threshold

	if !overThreshold && !a.config.ForceGCOnAlloc {
		return
	}

	reclaimed, collected := a.trigger.MaybeCollect(size)
	if collected && reclaimed > 0 && reclaimed <= a.bytesUsed {
		a.bytesUsed -= reclaimed
	}

	if a.config.Threshold > 0 {
		a.config.Threshold = a.bytesUsed + a.bytesUsed/2
	}
}

// Alloc allocates size bytes, returning nil on failure. Matches §4.1:
// alloc-family calls never raise an exception themselves; only the
// Context-level wrappers do.
func (a *Allocator) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	a.maybeTriggerGC(size)

	ptr := a.table.Alloc(size)
	if ptr == nil && a.config.OOMRetryCollect && a.trigger != nil {
		if _, collected := a.trigger.MaybeCollect(size); collected {
			ptr = a.table.Alloc(size)
		}
	}

	if ptr == nil {
		return nil
	}

	a.bytesUsed += a.usable(ptr, size)
	a.blocks++
	debugPostAllocValidate(a, ptr, size)

	return ptr
}

// AllocZeroed allocates size bytes, zero-initialized.
func (a *Allocator) AllocZeroed(size uintptr) unsafe.Pointer {
	ptr := a.Alloc(size)
	if ptr == nil {
		return nil
	}

	b := unsafe.Slice((*byte)(ptr), int(size))
	for i := range b {
		b[i] = 0
	}

	return ptr
}

// Realloc resizes ptr (which may be nil, behaving as Alloc) to newSize,
// returning nil on failure and leaving the original block untouched.
func (a *Allocator) Realloc(ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer {
	if ptr == nil {
		return a.Alloc(newSize)
	}

	if newSize == 0 {
		a.Free(ptr, oldSize)
		return nil
	}

	a.maybeTriggerGC(newSize)

	oldUsable := a.usable(ptr, oldSize)
	newPtr := a.table.Realloc(ptr, oldSize, newSize)

	if newPtr == nil {
		return nil
	}

	a.bytesUsed = a.bytesUsed - oldUsable + a.usable(newPtr, newSize)

	return newPtr
}

// Free releases ptr, which must have been returned by Alloc/AllocZeroed/
// Realloc on this Allocator.
func (a *Allocator) Free(ptr unsafe.Pointer, size uintptr) {
	if ptr == nil {
		return
	}

	used := a.usable(ptr, size)
	a.table.Free(ptr, size)

	if used <= a.bytesUsed {
		a.bytesUsed -= used
	} else {
		a.bytesUsed = 0
	}

	if a.blocks > 0 {
		a.blocks--
	}
}

// UsableSize returns the number of bytes actually reserved for ptr.
func (a *Allocator) UsableSize(ptr unsafe.Pointer, requested uintptr) uintptr {
	return a.usable(ptr, requested)
}

func (a *Allocator) usable(ptr unsafe.Pointer, requested uintptr) uintptr {
	if a.table.UsableSize == nil {
		return requested
	}

	return a.table.UsableSize(ptr, requested)
}

// Strdup copies s into a newly allocated, NUL-free byte buffer owned by
// this Allocator.
func (a *Allocator) Strdup(s string) []byte {
	if len(s) == 0 {
		return nil
	}

	ptr := a.Alloc(uintptr(len(s)))
	if ptr == nil {
		return nil
	}

	dst := unsafe.Slice((*byte)(ptr), len(s))
	copy(dst, s)

	return dst
}

// ReallocArray grows the array backing store at ptr (elemSize*cap bytes) to
// hold at least needed elements, using the 1.5x-or-requested growth
// heuristic from §4.1 and rounding up to the allocator's usable size. It
// writes the new element capacity back through capOut.
func (a *Allocator) ReallocArray(ptr unsafe.Pointer, elemSize uintptr, capOut *uintptr, needed uintptr) unsafe.Pointer {
	if elemSize == 0 {
		return ptr
	}

	oldCap := *capOut
	if needed <= oldCap {
		return ptr
	}

	grown := oldCap + oldCap/2
	if grown < needed {
		grown = needed
	}

	oldSize := oldCap * elemSize
	newSize := grown * elemSize

	newPtr := a.Realloc(ptr, oldSize, newSize)
	if newPtr == nil {
		return nil
	}

	usable := a.usable(newPtr, newSize)
	*capOut = usable / elemSize

	return newPtr
}

// OOM constructs the language-visible out-of-memory error for a Context-level
// wrapper around requested bytes.
func OOM(requested uintptr, context string) error {
	return lumenerrors.OutOfMemory(requested, context)
}
