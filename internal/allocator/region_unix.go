//go:build unix

package allocator

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmapRegion backs one Arena chunk with a single anonymous private
// mapping, fixed for its entire lifetime: once mapped, a region's base
// address never changes and the mapping is never unmapped while the
// Arena that owns it is alive. Arena.alloc grows by chaining on a new
// region rather than asking an existing one to relocate, so every
// pointer ever handed out of a region stays valid for as long as the
// Arena lives (growing in place by remapping would invalidate every
// outstanding pointer into the old mapping the moment it was
// unmapped). Grounded on golang.org/x/sys usage elsewhere in this
// dependency family for raw OS memory/I/O primitives (the teacher's
// internal/runtime/asyncio pollers use the same package for syscalls);
// the mmap-for-an-arena idea itself mirrors other_examples' arena.go,
// which mmaps an anonymous region for a language runtime's arena
// scope.
type mmapRegion struct {
	data []byte
}

func newRegion(size uintptr) region {
	mapped, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return &mmapRegion{}
	}

	return &mmapRegion{data: mapped}
}

func (r *mmapRegion) base() unsafe.Pointer {
	if len(r.data) == 0 {
		return nil
	}

	return unsafe.Pointer(&r.data[0])
}

func (r *mmapRegion) len() uintptr { return uintptr(len(r.data)) }
