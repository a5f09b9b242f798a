package gc

// Cell is implemented by every heap-allocated thing the collector
// manages: objects, shapes, function bytecode, variable references,
// async function frames, and contexts. trace must invoke visit once
// for every Cell this cell holds a strong reference to — the collector
// and the memory walker both rely on trace being exhaustive.
type Cell interface {
	header() *Header
	trace(visit func(Cell))
}

// Visit is the callback signature passed to trace implementations.
type Visit func(Cell)

// cellList is an intrusive doubly linked list threaded through each
// Cell's embedded Header. A Cell belongs to at most one cellList at a
// time (the registry's live, tentative, or pending-free list), so
// splicing in or out never allocates. Grounded on the same
// prev/next-on-the-node pattern as block_manager.go's BlockHeader
// list, generalized from a single free list to three registry lists
// sharing one node shape.
type cellList struct {
	head Cell
	tail Cell
	size int
}

func (l *cellList) pushBack(c Cell) {
	h := c.header()
	h.prev = nil
	h.next = nil

	if l.tail == nil {
		l.head = c
		l.tail = c
	} else {
		l.tail.header().next = c
		h.prev = l.tail
		l.tail = c
	}

	l.size++
}

// remove splices c out of the list. c must currently belong to this
// list; callers track membership themselves (the registry only ever
// moves a cell between lists it owns).
func (l *cellList) remove(c Cell) {
	h := c.header()

	if h.prev != nil {
		h.prev.header().next = h.next
	} else {
		l.head = h.next
	}

	if h.next != nil {
		h.next.header().prev = h.prev
	} else {
		l.tail = h.prev
	}

	h.prev = nil
	h.next = nil
	l.size--
}

func (l *cellList) each(fn func(Cell)) {
	for c := l.head; c != nil; c = c.header().next {
		fn(c)
	}
}

func (l *cellList) len() int { return l.size }
