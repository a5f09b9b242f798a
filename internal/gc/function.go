package gc

// FunctionBytecode is a GC cell holding a compiled function body's
// constant pool, closure-variable descriptors, and a back-pointer to
// the realm it was compiled under (§3 "Function Bytecode"). Template
// objects embedded in the constant pool can themselves participate in
// reference cycles (a default-parameter closure capturing the
// function that declares it, for instance), so FunctionBytecode is a
// first-class cell rather than plain allocator memory the way raw
// opcodes are.
type FunctionBytecode struct {
	Header

	Name         string
	ConstantPool []GCValue
	ClosureVars  []ClosureVarDesc

	// ClosureCells holds the actual captured-variable cells a given
	// closure instance was built over — the runtime counterpart to
	// ClosureVars' compile-time descriptors, and the edge that makes a
	// closure capturing its own enclosing object a genuine reference
	// cycle rather than a one-way pointer.
	ClosureCells []*VarRef

	Opcodes       []byte
	DebugFilename string
	DebugSource   string
	PCToLine      []PCLine

	Realm *Context
}

// ClosureVarDesc names one variable a closure captures from an
// enclosing scope, either a local of the immediately enclosing
// function or one it in turn captured from further out.
type ClosureVarDesc struct {
	Name      string
	IsLocal   bool
	ParentIdx int
}

// PCLine is one row of a program-counter-to-source-line table kept
// for debug info.
type PCLine struct {
	PC   uint32
	Line uint32
}

func (f *FunctionBytecode) trace(visit func(Cell)) {
	for _, c := range f.ConstantPool {
		if c.Cell != nil {
			visit(c.Cell)
		}
	}

	for _, cell := range f.ClosureCells {
		if cell != nil {
			visit(cell)
		}
	}

	if f.Realm != nil {
		visit(f.Realm)
	}
}

// VarRef backs a single closure-captured variable (§3 "Var-Ref"). While
// its owning frame is live it aliases a stack slot the GC does not
// own; Detach is called on frame exit to make it own Value outright.
// Only a detached VarRef traces its Value — an attached one's value
// is a transient alias to a stack slot, not a strong reference this
// cell holds.
type VarRef struct {
	Header

	Detached bool
	Value    GCValue
}

// Detach makes v own val outright once its enclosing frame has
// exited. Detaching twice would silently drop the first owned value
// without releasing it, so debug builds assert against it.
func (v *VarRef) Detach(val GCValue) {
	debugAssert(!v.Detached, invariantDoubleDetach(v))
	v.Detached = true
	v.Value = val
}

func (v *VarRef) trace(visit func(Cell)) {
	if v.Detached && v.Value.Cell != nil {
		visit(v.Value.Cell)
	}
}

// AsyncFuncState is the suspended-frame cell backing an in-flight
// async function (§3). Active records whether the frame is currently
// suspended awaiting resumption; the two resolver callbacks are
// always traced unconditionally since the returned promise may still
// be pending regardless of Active.
type AsyncFuncState struct {
	Header

	Active  bool
	Frame   *Object
	Resolve Cell
	Reject  Cell
}

func (a *AsyncFuncState) trace(visit func(Cell)) {
	if a.Active && a.Frame != nil {
		visit(a.Frame)
	}
	if a.Resolve != nil {
		visit(a.Resolve)
	}
	if a.Reject != nil {
		visit(a.Reject)
	}
}
