package gc

// EdgeKind classifies a reference edge the way the snapshot writer's
// node/edge table needs it classified (§4.4 edge_fields enumeration).
// It lives in this package rather than internal/snapshot so a
// ClassDescriptor's SnapshotWalker can report edge kinds without the
// gc package importing its own consumer.
type EdgeKind uint8

const (
	EdgeContext EdgeKind = iota
	EdgeElement
	EdgeProperty
	EdgeInternal
	EdgeHidden
	EdgeShortcut
	EdgeWeak
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeContext:
		return "context"
	case EdgeElement:
		return "element"
	case EdgeProperty:
		return "property"
	case EdgeInternal:
		return "internal"
	case EdgeHidden:
		return "hidden"
	case EdgeShortcut:
		return "shortcut"
	case EdgeWeak:
		return "weak"
	default:
		return "internal"
	}
}

// SnapshotEdge is what a ClassDescriptor.SnapshotWalker reports for
// one outgoing reference: the kind the inspector should render it as,
// the property name (or the decimal index, for Element edges), and
// the referent.
type SnapshotEdge struct {
	Kind EdgeKind
	Name string
	To   Cell
}

// ClassDescriptor is the capability contract a host-defined class
// supplies for every object created with its class-id (§6 "Per-class
// descriptors"). All fields are optional — a nil value means "nothing
// extra beyond the object's own properties" for that cell kind.
// Grounded on the teacher's RefCountStrategy-style small-interface
// collaborator pattern (internal/runtime/refcount_optimizer.go),
// generalized from a single strategy method to the four independent
// capabilities this spec names: finalizer, tracer, snapshot walker,
// size hint.
type ClassDescriptor struct {
	ClassName string

	// SizeHint estimates the byte footprint of an object's opaque
	// payload for the memory walker and the snapshot writer's
	// self_size field.
	SizeHint func(payload interface{}) uintptr

	// Finalizer runs once, after weak-reference invalidation and
	// before the cell is actually reclaimed.
	Finalizer func(rt *Runtime, obj *Object)

	// Tracer enumerates payload-specific strong references (fast-array
	// values, array-buffer backing, bound-function closure, C-function
	// realm, typed-array backing, map/set entries, regexp strings,
	// for-in iterator subject, etc. — §4.3's per-payload coverage
	// list) beyond the object's own Shape and Props, which Object.trace
	// already covers unconditionally.
	Tracer func(obj *Object, visit Visit)

	// SnapshotWalker enumerates the same payload-specific references
	// for the snapshot writer, which needs an edge kind and display
	// name per reference rather than a bare visit.
	SnapshotWalker func(obj *Object, emit func(SnapshotEdge))

	// NameHint resolves the snapshot writer's display-name algorithm
	// (§4.4 step 5) for an individual object: an own "name" property
	// that is a string, or a constructor's "name" property. The GC
	// core has no access to materialized string content (§1 excludes
	// the string-representation collaborator), so a class descriptor
	// that wants anything beyond the bare ClassName wires this in,
	// backed by whatever atom/string service (§6) the host has.
	// Returning ok=false falls through to ClassName.
	NameHint func(obj *Object) (name string, ok bool)
}
