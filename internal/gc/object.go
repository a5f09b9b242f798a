package gc

// GCValue is a property or constant-pool slot's value as far as the
// collector is concerned: either it holds a strong reference to
// another cell (Cell != nil) or it is an opaque scalar the GC does not
// own (a number, an interned atom id, a boolean) and Cell is nil.
// The concrete scalar representation belongs to the excluded
// string/value-representation collaborator (§1); this core only
// needs to know whether a slot is a GC edge.
type GCValue struct {
	Cell Cell
}

// PropertyKind discriminates what a PropertySlot actually holds.
type PropertyKind uint8

const (
	PropValue PropertyKind = iota
	PropAccessor
	PropVarRef
	PropAutoInit
)

// PropertySlot is one entry in an Object's parallel property array,
// addressed by the matching index in its Shape's property table.
type PropertySlot struct {
	Kind PropertyKind

	Value GCValue // PropValue

	Getter Cell // PropAccessor
	Setter Cell // PropAccessor

	Ref *VarRef // PropVarRef — the captured-variable cell itself

	AutoInit *Context // PropAutoInit — realm to initialize from on first access
}

// ObjectFlags mirrors the teacher's ObjectFlags bitset, narrowed to
// the two flags §3 actually names for the GC's purposes.
type ObjectFlags uint8

const (
	FlagFastArray ObjectFlags = 1 << iota
	FlagFreeMark
)

// Object is the dominant GC cell (§3): a Shape pointer, a parallel
// Props array, a class-id plus opaque per-class Payload, the head of
// its weak-reference backlink chain, and a small flag set.
type Object struct {
	Header

	Shape    *Shape
	Props    []PropertySlot
	ClassID  int
	Payload  interface{}
	WeakHead *WeakRef
	Flags    ObjectFlags

	desc *ClassDescriptor
}

func (o *Object) trace(visit func(Cell)) {
	if o.Shape != nil {
		visit(o.Shape)
	}

	for i := range o.Props {
		p := &o.Props[i]

		switch p.Kind {
		case PropValue:
			if p.Value.Cell != nil {
				visit(p.Value.Cell)
			}
		case PropAccessor:
			if p.Getter != nil {
				visit(p.Getter)
			}
			if p.Setter != nil {
				visit(p.Setter)
			}
		case PropVarRef:
			if p.Ref != nil {
				visit(p.Ref)
			}
		case PropAutoInit:
			if p.AutoInit != nil {
				visit(p.AutoInit)
			}
		}
	}

	if o.desc != nil && o.desc.Tracer != nil {
		o.desc.Tracer(o, visit)
	}
}

// ClassDescriptor exposes o's class descriptor to collaborators
// outside this package (the snapshot writer's display-name and
// per-class size accounting) without handing out the raw field.
func (o *Object) ClassDescriptor() *ClassDescriptor { return o.desc }

// SizeHint reports the estimated byte footprint of o's opaque payload
// as its class descriptor computes it, or zero if o has no descriptor
// or the descriptor does not report one. Used by the read-only memory
// walker (§4.5); never consulted by the collector itself.
func (o *Object) SizeHint() uintptr {
	if o.desc == nil || o.desc.SizeHint == nil {
		return 0
	}
	return o.desc.SizeHint(o.Payload)
}

// Get returns the value of the property at index idx: for a var-ref
// slot, the Value of the var-ref it points at (whether or not that
// var-ref is detached); for any other slot kind, the slot's own Value
// field, which is empty for accessor and autoinit slots.
func (o *Object) Get(idx int) GCValue {
	p := &o.Props[idx]

	switch p.Kind {
	case PropVarRef:
		if p.Ref != nil {
			return p.Ref.Value
		}
		return GCValue{}
	default:
		return p.Value
	}
}

// SetValue installs a plain value at property index idx, retaining
// the new reference and releasing whatever the slot held before —
// callers never need to manage refcounts on object fields by hand.
func (o *Object) SetValue(rt *Runtime, idx int, v GCValue) {
	p := &o.Props[idx]

	if v.Cell != nil {
		rt.Retain(v.Cell)
	}

	old := *p
	*p = PropertySlot{Kind: PropValue, Value: v}

	// Release every reference the old slot owned, by its kind: the
	// same set Object.trace visits for it.
	(&Object{Props: []PropertySlot{old}}).trace(func(c Cell) { rt.Release(c) })
}

// Shape is the hidden class describing an Object's property layout:
// a prototype pointer plus a property table, deduplicated by a
// hash-chain link (§3 "Shape").
type Shape struct {
	Header

	Proto *Object
	Props []ShapeProperty
	next  *Shape
}

// ShapeProperty names one property slot's key/flags pairing the way
// the hidden-class descriptor stores it.
type ShapeProperty struct {
	Atom  string
	Flags uint8
}

func (s *Shape) trace(visit func(Cell)) {
	if s.Proto != nil {
		visit(s.Proto)
	}
}
