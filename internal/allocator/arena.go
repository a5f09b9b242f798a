package allocator

import "unsafe"

// Arena is a region-backed allocator: it bump-allocates from a chain of
// fixed-capacity mappings and keeps a size-classed free list so that
// blocks freed individually can be reused without returning memory to
// the OS, matching the "arena" backend sketched for this runtime family
// (cf. other_examples' mmap-based arena.go for a language runtime's
// arena scope). Unlike that sketch, every call here goes through real
// Go/unix syscalls instead of emitted assembly.
//
// Growing the arena never relocates memory already handed out: each
// growth step reserves a brand-new, independently-backed region and
// starts bump-allocating from it, so every pointer Alloc/Realloc ever
// returned stays valid for the Arena's entire lifetime — a pointer into
// an earlier chunk is never touched again, let alone unmapped, once a
// later chunk exists.
//
// Arena is not safe for concurrent use; the heap runtime it backs is
// single-threaded cooperative (see the Concurrency section of the spec).
type Arena struct {
	chunks    []region
	offset    uintptr                      // bump offset within the current (last) chunk
	freeLists map[uintptr][]unsafe.Pointer // size class -> freed block pointers
	sizeOf    map[unsafe.Pointer]uintptr   // live pointer -> block size, for Realloc/Free
}

// region abstracts one fixed-capacity backing mapping. A region's base
// address and length never change after newRegion returns it — growing
// the Arena chains on a new region instead of asking an existing one to
// relocate.
type region interface {
	base() unsafe.Pointer
	len() uintptr
}

// NewArena creates an Arena whose first chunk holds initialSize bytes
// (64 KiB when initialSize is zero).
func NewArena(initialSize uintptr) *Arena {
	if initialSize == 0 {
		initialSize = 64 * 1024
	}

	return &Arena{
		chunks:    []region{newRegion(initialSize)},
		freeLists: make(map[uintptr][]unsafe.Pointer),
		sizeOf:    make(map[unsafe.Pointer]uintptr),
	}
}

// currentChunk is the chunk alloc bump-allocates from next.
func (ar *Arena) currentChunk() region { return ar.chunks[len(ar.chunks)-1] }

// FuncTable returns the FuncTable view of this arena for use with
// allocator.New.
func (ar *Arena) FuncTable() FuncTable {
	return FuncTable{
		Alloc:      ar.alloc,
		Realloc:    ar.realloc,
		Free:       ar.free,
		UsableSize: ar.usableSize,
	}
}

func sizeClassOf(size uintptr) uintptr {
	// Round up to the next power of two to keep the free-list index space
	// small without wasting more than 2x per block.
	cls := uintptr(16)
	for cls < size {
		cls <<= 1
	}

	return cls
}

func (ar *Arena) alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	cls := sizeClassOf(size)

	if free := ar.freeLists[cls]; len(free) > 0 {
		ptr := free[len(free)-1]
		ar.freeLists[cls] = free[:len(free)-1]
		ar.sizeOf[ptr] = cls

		return ptr
	}

	cur := ar.currentChunk()
	if ar.offset+cls > cur.len() {
		// The current chunk has no room left: reserve a fresh one sized
		// to hold at least this allocation and bump-allocate from it
		// instead. Every pointer already returned out of cur remains
		// valid — cur is kept in ar.chunks, never touched again, never
		// unmapped.
		newLen := cur.len() * 2
		for newLen < cls {
			newLen *= 2
		}

		next := newRegion(newLen)
		if next.base() == nil && newLen > 0 {
			return nil
		}

		ar.chunks = append(ar.chunks, next)
		ar.offset = 0
		cur = next
	}

	ptr := unsafe.Add(cur.base(), ar.offset)
	ar.offset += cls
	ar.sizeOf[ptr] = cls

	return ptr
}

func (ar *Arena) realloc(ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer {
	newPtr := ar.alloc(newSize)
	if newPtr == nil {
		return nil
	}

	if ptr != nil && oldSize > 0 {
		n := oldSize
		if newSize < n {
			n = newSize
		}

		copy(unsafe.Slice((*byte)(newPtr), n), unsafe.Slice((*byte)(ptr), n))
		ar.free(ptr, oldSize)
	}

	return newPtr
}

func (ar *Arena) free(ptr unsafe.Pointer, _ uintptr) {
	if ptr == nil {
		return
	}

	cls, ok := ar.sizeOf[ptr]
	if !ok {
		return
	}

	delete(ar.sizeOf, ptr)
	ar.freeLists[cls] = append(ar.freeLists[cls], ptr)
}

func (ar *Arena) usableSize(_ unsafe.Pointer, requested uintptr) uintptr {
	return sizeClassOf(requested)
}

// Reset discards every outstanding allocation and rewinds the bump
// pointer to the start of the first chunk, for arena-scoped hosts that
// want to free an entire scope at once without walking individual
// blocks. Every pointer handed out before Reset is invalidated by
// definition — that is the operation's contract (§6 "arena-scoped
// reset"), unlike an ordinary grow, which never invalidates anything.
// Chunks grown past the first are dropped here rather than kept around
// unused.
func (ar *Arena) Reset() {
	ar.chunks = ar.chunks[:1]
	ar.offset = 0
	ar.freeLists = make(map[uintptr][]unsafe.Pointer)
	ar.sizeOf = make(map[unsafe.Pointer]uintptr)
}
