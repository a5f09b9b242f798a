package gc

// WeakRef is one entry in a weak-map/set: it references Target
// without contributing to Target's ref_count, and owns Value as a
// strong reference released when the record itself is torn down
// (§3 "Weak-reference record"). WeakRef is never traced from Target —
// walking the backlink chain is a lookaside index, not an ownership
// edge; the weak-map owns the record, the target merely threads it
// onto its own list (§9 "Back-references").
type WeakRef struct {
	Target Cell
	Value  GCValue

	nextOnTarget *WeakRef

	// unlink detaches this record from its owning weak-map's bucket.
	// Supplied by the map so resetWeakRefs doesn't need to know
	// concrete weak-map internals.
	unlink func(*WeakRef)
}

// headerOwner is implemented by cell kinds that can be weakly
// referenced. Only Object can be a weak-map/set key in this model.
type headerOwner interface {
	weakHead() **WeakRef
}

func (o *Object) weakHead() **WeakRef { return &o.WeakHead }

// registerWeakRef links w into target's backlink list. Called once a
// weak-map has created the record and attached it to its own bucket.
func registerWeakRef(target headerOwner, w *WeakRef) {
	head := target.weakHead()
	w.nextOnTarget = *head
	*head = w
}

// resetWeakRefs runs the two-pass invalidation required before a
// cell's finalizer executes (§4.2). Pass 1 unlinks every record on c's
// backlink chain from its owning map; pass 2 releases each record's
// stored value. The passes cannot be merged: releasing a value can
// itself trigger further frees that walk other weak lists, and those
// must never observe a partially unlinked list on this target. Unlike
// the source this was distilled from (see the Open Questions in
// SPEC_FULL.md), pass 1 fully detaches every record from *head before
// pass 2 touches any value, so a re-entrant release mid pass-2 can
// never revisit an already-unlinked record.
func resetWeakRefs(rt *Runtime, c Cell) {
	owner, ok := c.(headerOwner)
	if !ok {
		return
	}

	head := owner.weakHead()
	if *head == nil {
		return
	}

	var records []*WeakRef
	for w := *head; w != nil; w = w.nextOnTarget {
		records = append(records, w)
	}
	*head = nil

	for _, w := range records {
		if w.unlink != nil {
			w.unlink(w)
		}
	}

	for _, w := range records {
		if w.Value.Cell != nil {
			rt.Release(w.Value.Cell)
		}
	}
}

// WeakMap is a minimal weak-map implementation standing in for the
// host-defined "weak-map/set" class the collector only ever sees
// through the Weak-reference record contract (§3/§4.2) — concrete
// enough to back scenario 5 (weak-map cleanup) and any host binding
// that wants one.
type WeakMap struct {
	buckets map[*Object]*WeakRef
}

func NewWeakMap() *WeakMap {
	return &WeakMap{buckets: make(map[*Object]*WeakRef)}
}

// Set installs value for key, retaining value but not key.
func (m *WeakMap) Set(rt *Runtime, key *Object, value GCValue) {
	if old, ok := m.buckets[key]; ok {
		if old.Value.Cell != nil {
			rt.Release(old.Value.Cell)
		}
		old.Value = GCValue{} // old stays on key's backlink chain; its value is already released
		delete(m.buckets, key)
	}

	if value.Cell != nil {
		rt.Retain(value.Cell)
	}

	w := &WeakRef{Target: key, Value: value}
	w.unlink = func(rec *WeakRef) {
		if m.buckets[key] == rec {
			delete(m.buckets, key)
		}
	}

	m.buckets[key] = w
	registerWeakRef(key, w)
}

func (m *WeakMap) Get(key *Object) (GCValue, bool) {
	w, ok := m.buckets[key]
	if !ok {
		return GCValue{}, false
	}
	return w.Value, true
}

func (m *WeakMap) Has(key *Object) bool {
	_, ok := m.buckets[key]
	return ok
}

func (m *WeakMap) Len() int { return len(m.buckets) }
