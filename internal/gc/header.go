// Package gc implements the hybrid reference-counted heap and
// cycle-collecting tracing garbage collector that backs a Context's
// object graph: plain refcounting reclaims acyclic garbage the instant
// it drops to zero, and a synchronous trial-deletion collector (see
// collector.go) reclaims the cycles refcounting alone cannot.
//
// Grounded on the teacher's internal/runtime/block_manager.go BlockHeader
// (Magic/Size/TypeID/RefCount/Flags/Prev/Next on an intrusive doubly
// linked list) and internal/runtime/refcount_optimizer.go's
// RefCountedObject/ObjectFlags shape, generalized from a debug canary
// scheme into the actual header every heap cell carries.
package gc

// CellType tags the concrete shape behind a Cell so the collector and
// snapshot walker can dispatch without a type switch on every visit.
type CellType uint8

const (
	CellObject CellType = iota
	CellFunctionBytecode
	CellVarRef
	CellShape
	CellAsyncFuncState
	CellContext
)

func (t CellType) String() string {
	switch t {
	case CellObject:
		return "object"
	case CellFunctionBytecode:
		return "function_bytecode"
	case CellVarRef:
		return "var_ref"
	case CellShape:
		return "shape"
	case CellAsyncFuncState:
		return "async_function_state"
	case CellContext:
		return "context"
	default:
		return "unknown"
	}
}

// mark records what the trial-deletion collector believes about a
// cell during a single phase-1 decref pass: markNone outside
// collection, markDecremented once phase 1 has visited it.
type mark uint8

const (
	markNone mark = iota
	markDecremented
)

// Header is embedded as the first field of every heap cell. RefCount
// is the strong-reference count maintained by retain/release; mark is
// collector-private scratch state that must read back as markNone
// whenever phase = idle; prev/next splice the cell into exactly one
// of the registry's three lists at any time.
type Header struct {
	RefCount int32
	Type     CellType
	mark     mark

	prev Cell
	next Cell
}

func (h *Header) header() *Header { return h }

// Phase identifies which stage of a collection (if any) is in
// progress. A Runtime spends almost all its life in PhaseIdle; the
// other phases exist only for the duration of a single RunGC call and
// are exposed so a debug server or test can assert on a snapshot mid
// collection.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseDecref
	PhaseScanRestore
	PhaseCollectWhite
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDecref:
		return "decref"
	case PhaseScanRestore:
		return "scan_restore"
	case PhaseCollectWhite:
		return "collect_white"
	default:
		return "unknown"
	}
}

func legalPhaseTransition(from, to Phase) bool {
	switch from {
	case PhaseIdle:
		return to == PhaseDecref
	case PhaseDecref:
		return to == PhaseScanRestore || to == PhaseIdle
	case PhaseScanRestore:
		return to == PhaseCollectWhite
	case PhaseCollectWhite:
		return to == PhaseIdle || to == PhaseDecref
	default:
		return false
	}
}
