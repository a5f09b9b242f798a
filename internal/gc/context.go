package gc

// ErrorKind indexes a Context's table of native-error prototypes.
type ErrorKind int

const (
	ErrorKindError ErrorKind = iota
	ErrorKindTypeError
	ErrorKindRangeError
	ErrorKindReferenceError
	ErrorKindSyntaxError
	ErrorKindEvalError
	ErrorKindURIError
	errorKindCount
)

// Module is iterated by a Context's trace but is not itself a GC cell
// (§3): the collector reaches its exported var-refs and namespace
// objects only through the owning Context.
type Module struct {
	Name string

	ExportedVars []*VarRef
	Namespace    *Object
	FunctionObj  *Object
	ExceptionObj *Object
	MetaObj      *Object
}

// Context is one execution realm sharing a Runtime's heap and GC
// state (§3 "Context"). It holds the global object, per-class
// prototypes, native-error prototypes, well-known constructors, an
// array-shape cache, and the list of loaded modules. A Context is
// itself a GC cell; the Runtime holds the only root reference to each
// one it creates (Runtime.Contexts).
type Context struct {
	Header

	Global    *Object
	GlobalVar *Object

	PerClassProto    map[int]*Object
	NativeErrorProto [errorKindCount]*Object

	ThrowTypeErrorThunk *FunctionBytecode
	EvalThunk           *FunctionBytecode

	ArrayProtoIterator *Object
	IteratorProto      *Object
	AsyncIteratorProto *Object

	WellKnownCtors  map[string]*Object
	ArrayShapeCache *Shape

	Modules []*Module
}

func (c *Context) trace(visit func(Cell)) {
	for _, m := range c.Modules {
		for _, ev := range m.ExportedVars {
			if ev != nil {
				visit(ev)
			}
		}
		if m.Namespace != nil {
			visit(m.Namespace)
		}
		if m.FunctionObj != nil {
			visit(m.FunctionObj)
		}
		if m.ExceptionObj != nil {
			visit(m.ExceptionObj)
		}
		if m.MetaObj != nil {
			visit(m.MetaObj)
		}
	}

	if c.Global != nil {
		visit(c.Global)
	}
	if c.GlobalVar != nil {
		visit(c.GlobalVar)
	}
	if c.ThrowTypeErrorThunk != nil {
		visit(c.ThrowTypeErrorThunk)
	}
	if c.EvalThunk != nil {
		visit(c.EvalThunk)
	}
	if c.ArrayProtoIterator != nil {
		visit(c.ArrayProtoIterator)
	}
	if c.IteratorProto != nil {
		visit(c.IteratorProto)
	}
	if c.AsyncIteratorProto != nil {
		visit(c.AsyncIteratorProto)
	}

	for _, p := range c.NativeErrorProto {
		if p != nil {
			visit(p)
		}
	}
	for _, p := range c.PerClassProto {
		if p != nil {
			visit(p)
		}
	}
	for _, ctor := range c.WellKnownCtors {
		if ctor != nil {
			visit(ctor)
		}
	}
	if c.ArrayShapeCache != nil {
		visit(c.ArrayShapeCache)
	}
}
