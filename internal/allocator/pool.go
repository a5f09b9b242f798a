package allocator

import (
	"sync"
	"unsafe"
)

// PooledBackend is an alternate FuncTable implementation that recycles
// fixed-size buffers through a sync.Pool per size class, instead of
// Arena's chain of bump-allocated regions. Grounded on the teacher's
// internal/allocator/allocator.go MemoryPool/OptimizedAllocator, fixed to
// actually remember which pool a pointer came from — the teacher's Free
// tried every pool in turn "inefficiently" because it never recorded the
// size class at allocation time; PooledBackend records it.
type PooledBackend struct {
	mu     sync.Mutex
	pools  map[uintptr]*sync.Pool
	sizeOf map[unsafe.Pointer]uintptr
}

// NewPooledBackend creates an empty PooledBackend. Pools are created
// lazily per size class on first use.
func NewPooledBackend() *PooledBackend {
	return &PooledBackend{
		pools:  make(map[uintptr]*sync.Pool),
		sizeOf: make(map[unsafe.Pointer]uintptr),
	}
}

// FuncTable returns the FuncTable view of this backend.
func (p *PooledBackend) FuncTable() FuncTable {
	return FuncTable{
		Alloc:      p.alloc,
		Realloc:    p.realloc,
		Free:       p.free,
		UsableSize: p.usableSize,
	}
}

func (p *PooledBackend) poolFor(cls uintptr) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()

	pool, ok := p.pools[cls]
	if !ok {
		size := cls
		pool = &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, size)
				return &buf
			},
		}
		p.pools[cls] = pool
	}

	return pool
}

func (p *PooledBackend) alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	cls := sizeClassOf(size)
	buf := p.poolFor(cls).Get().(*[]byte)
	ptr := unsafe.Pointer(&(*buf)[0])

	p.mu.Lock()
	p.sizeOf[ptr] = cls
	p.mu.Unlock()

	return ptr
}

func (p *PooledBackend) realloc(ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer {
	newPtr := p.alloc(newSize)
	if newPtr == nil {
		return nil
	}

	if ptr != nil && oldSize > 0 {
		n := oldSize
		if newSize < n {
			n = newSize
		}

		copy(unsafe.Slice((*byte)(newPtr), n), unsafe.Slice((*byte)(ptr), n))
		p.free(ptr, oldSize)
	}

	return newPtr
}

func (p *PooledBackend) free(ptr unsafe.Pointer, _ uintptr) {
	if ptr == nil {
		return
	}

	p.mu.Lock()
	cls, ok := p.sizeOf[ptr]
	delete(p.sizeOf, ptr)
	p.mu.Unlock()

	if !ok {
		return
	}

	buf := unsafe.Slice((*byte)(ptr), cls)
	p.poolFor(cls).Put(&buf)
}

func (p *PooledBackend) usableSize(_ unsafe.Pointer, requested uintptr) uintptr {
	return sizeClassOf(requested)
}
