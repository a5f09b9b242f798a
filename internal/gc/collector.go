package gc

// runGC runs one synchronous trial-deletion collection over the live
// list: phase 1 speculatively decrements every live cell's referents,
// phase 2 scans surviving cells to restore counts and rescue false
// positives, and phase 3 frees whatever is left on the tentative list
// (§4.3). Grounded on the Bacon & Rajan-style algorithm the teacher's
// internal/runtime/refcount_optimizer.go CycleDetector/CycleBreaker
// gesture at but never implement ("Complex cycle detection algorithm
// would go here") — this is the real three-phase pass those stubs
// stand in for.
func (rt *Runtime) runGC() {
	reg := rt.registry
	before := rt.bytesFreedTotal

	rt.decrefPhase(reg)
	rt.scanRestorePhase(reg)
	rt.collectWhitePhase(reg)

	reg.phase = PhaseIdle
	rt.gcRuns++
	rt.bytesReclaimedLast = rt.bytesFreedTotal - before
}

// decrefPhase is phase 1: trace every live cell's outgoing references,
// decrementing each referent, then mark the cell. A referent whose
// count reaches zero while already marked this pass is spliced onto
// tentative — it has now been decremented by every live cell that
// holds it, so any remaining strong references to it must originate
// from within the heap graph itself.
func (rt *Runtime) decrefPhase(reg *ObjectRegistry) {
	reg.setPhase(PhaseDecref)
	reg.tentative = cellList{}

	var snapshot []Cell
	reg.live.each(func(c Cell) { snapshot = append(snapshot, c) })

	for _, c := range snapshot {
		c.trace(func(ref Cell) {
			h := ref.header()
			h.RefCount--
			if h.RefCount == 0 && h.mark == markDecremented {
				reg.moveTo(ref, &reg.tentative)
			}
		})
		c.header().mark = markDecremented
	}

	// A cell decremented to zero by a neighbor processed earlier in
	// this same pass, before the cell itself was marked, is missed by
	// the inline check above — the decision above is order-sensitive,
	// the true refcount after a full pass is not. Sweep once more for
	// anything left on live with a zero count; every one of them has
	// had every internal edge accounted for by now.
	var missed []Cell
	reg.live.each(func(c Cell) {
		if c.header().RefCount == 0 {
			missed = append(missed, c)
		}
	})
	for _, c := range missed {
		reg.moveTo(c, &reg.tentative)
	}
}

// scanRestorePhase is phase 2: walk the survivors on live, resetting
// their mark and re-incrementing every referent. A referent whose
// count transitions 0→1 here was wrongly placed on tentative — it is
// reachable from a surviving cell after all — so it is spliced back
// to live. Because cellList.each follows the live list's prev/next
// chain live, splicing a rescued cell onto live's tail mid-iteration
// means this same loop goes on to trace it too — rescue is therefore
// transitive: a cell reachable only through another just-rescued cell
// is picked up in the same pass, not a later one. Then tentative is
// walked a second time purely to restore the counts phase 1 took
// away, without moving anything, so that any finalizer run in phase 3
// sees accurate counts on cells that remain condemned.
func (rt *Runtime) scanRestorePhase(reg *ObjectRegistry) {
	reg.setPhase(PhaseScanRestore)

	reg.live.each(func(c Cell) {
		c.header().mark = markNone
		c.trace(func(ref Cell) {
			h := ref.header()
			wasZero := h.RefCount == 0
			h.RefCount++

			if wasZero && reg.where[ref] == &reg.tentative {
				reg.moveTo(ref, &reg.live)
				ref.header().mark = markNone
			}
		})
	})

	var condemned []Cell
	reg.tentative.each(func(c Cell) { condemned = append(condemned, c) })
	for _, c := range condemned {
		c.trace(func(ref Cell) {
			ref.header().RefCount++
		})
	}
}

// collectWhitePhase is phase 3: drain tentative. Object and
// FunctionBytecode cells run their full destructor path (weak-ref
// invalidation, finalizer, reclaim); every other cell kind is simply
// moved to pendingFree, since it will be cleaned up once its last
// referrer — which is itself in tentative — has been destroyed. The
// registry's own drain then sweeps pendingFree and actually returns
// memory.
func (rt *Runtime) collectWhitePhase(reg *ObjectRegistry) {
	reg.setPhase(PhaseCollectWhite)

	for reg.tentative.len() > 0 {
		c := reg.tentative.head
		reg.unregister(c)

		switch c.header().Type {
		case CellObject, CellFunctionBytecode:
			rt.freeCell(c)
		default:
			reg.moveTo(c, &reg.pendingFree)
		}
	}

	reg.drain()
}
