package gc

// ObjectRegistry owns the three lists every GC cell moves between
// over its lifetime (§3): live (reachable, or not yet proven
// otherwise), tentative (provisionally unreachable during a
// collection), and pendingFree (refcount has hit zero and the cell is
// waiting for the drain loop or cycle sweep to actually reclaim it).
//
// Grounded on internal/runtime/block_manager.go's free/large/pinned
// list partitioning, retargeted from block-manager's size-class split
// to the live/tentative/pendingFree partition §4.2-§4.3 need. where
// tracks which of the three lists currently owns a cell — the
// intrusive prev/next pointers alone are enough to splice a known
// list, but not enough to tell a caller which list a cell is
// currently on.
type ObjectRegistry struct {
	rt *Runtime

	live        cellList
	tentative   cellList
	pendingFree cellList

	phase Phase

	where map[Cell]*cellList
}

func newObjectRegistry(rt *Runtime) *ObjectRegistry {
	return &ObjectRegistry{
		rt:    rt,
		where: make(map[Cell]*cellList),
	}
}

// register appends a freshly allocated cell to the live list with a
// zeroed mark (§4.2 "register"). Callers retain it immediately
// afterward — register itself does not touch RefCount.
func (r *ObjectRegistry) register(c Cell, typ CellType) {
	h := c.header()
	h.Type = typ
	h.mark = markNone

	r.live.pushBack(c)
	r.where[c] = &r.live
}

// unregister splices c out of whichever list currently owns it. It
// never frees — callers (the drain loop, the cycle sweep, and runtime
// teardown) are responsible for that (§4.2 "unregister").
func (r *ObjectRegistry) unregister(c Cell) {
	if l, ok := r.where[c]; ok {
		l.remove(c)
		delete(r.where, c)
	}
}

func (r *ObjectRegistry) moveTo(c Cell, dst *cellList) {
	if l, ok := r.where[c]; ok {
		l.remove(c)
	}
	dst.pushBack(c)
	r.where[c] = dst
}

func (r *ObjectRegistry) setPhase(p Phase) {
	debugAssert(legalPhaseTransition(r.phase, p), invariantPhaseTransition(r.phase, p))
	r.phase = p
}

// retain increments c's strong-reference count.
func (r *ObjectRegistry) retain(c Cell) {
	c.header().RefCount++
}

// release decrements c's strong-reference count. When it reaches
// zero, c is moved onto pendingFree, unless c is already off every
// list (it has been handed to freeCell and must not be destroyed a
// second time); release itself never frees —
// only the drain loop and the cycle sweep do, so a long chain of
// cells releasing each other in turn cannot recurse past this one
// frame (§9 "Stack depth").
func (r *ObjectRegistry) release(c Cell) {
	h := c.header()

	debugAssert(h.RefCount > 0, invariantRefCountUnderflow(c))
	if h.RefCount <= 0 {
		return
	}

	h.RefCount--
	if h.RefCount == 0 {
		if _, ok := r.where[c]; !ok {
			return
		}
		r.moveTo(c, &r.pendingFree)
	}
}

// drain iteratively frees every cell on pendingFree, in FIFO order,
// until the list is empty — an explicit loop rather than mutual
// recursion between release and the per-cell destructor, so an
// arbitrarily long chain of cells releasing the next on destruction
// cannot overflow the call stack.
func (r *ObjectRegistry) drain() {
	prev := r.phase
	r.setPhase(PhaseDecref)

	for r.pendingFree.len() > 0 {
		c := r.pendingFree.head
		r.unregister(c)
		r.rt.freeCell(c)
	}

	r.phase = prev
}
