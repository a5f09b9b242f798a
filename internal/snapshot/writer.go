package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	lumenerrors "github.com/lumen-lang/lumen/internal/errors"
	"github.com/lumen-lang/lumen/internal/gc"
)

// dumpContext owns the state one BuildSnapshot call accumulates: the
// flat nodes/edges arrays, the per-node edge-count scratch (folded
// into nodes only once every edge has been emitted), and the two
// interned tables (§4.4 step 1).
type dumpContext struct {
	rt *gc.Runtime

	nodes      []int64
	edgeCounts []int
	edges      []int64
	edgeFrom   []int // edgeFrom[i] is the origin node index of edges[i*edgeFieldCount:]

	strings *stringInterner
	nodeIdx *nodeIndex
}

func newDumpContext(rt *gc.Runtime) *dumpContext {
	return &dumpContext{
		rt:      rt,
		strings: newStringInterner(),
		nodeIdx: newNodeIndex(rt.LiveCount() + 1),
	}
}

// internNode returns c's node index, allocating a zeroed 5-int row
// the first time c is seen. The row's fields are filled in later by
// visitCell; allocating it here lets emitEdge reference a node that
// visitCell has not reached yet (the live list's iteration order is
// allocation order, not graph order, so a referent can easily sort
// after its referrer).
func (d *dumpContext) internNode(key any) int {
	idx, isNew := d.nodeIdx.intern(key)
	if isNew {
		d.nodes = append(d.nodes, 0, 0, 0, 0, 0)
		d.edgeCounts = append(d.edgeCounts, 0)
	}
	return idx
}

func (d *dumpContext) setNode(idx int, typ NodeType, name string, id int64, selfSize int64) {
	base := idx * nodeFieldCount
	d.nodes[base+0] = int64(typ)
	d.nodes[base+1] = int64(d.strings.Intern(name))
	d.nodes[base+2] = id
	d.nodes[base+3] = selfSize
	// edge_count (base+4) is filled in once, after every emitEdge call
	// for every node has run — see finalize.
}

// emitEdge appends one 3-int edge row from the node at fromIdx to to,
// interning to's node if this is the first time the traversal has
// reached it. to_node is the referent's node index multiplied by
// nodeFieldCount, matching the inspector's convention (§4.4).
func (d *dumpContext) emitEdge(fromIdx int, kind gc.EdgeKind, name string, to any) {
	d.appendEdge(fromIdx, kind, name, d.internNode(to))
}

// appendEdge is emitEdge's tail once the referent's node index is
// already known — shared with emitSyntheticGroup so the group's own
// link edge stays recorded in edgeFrom exactly like every other edge.
func (d *dumpContext) appendEdge(fromIdx int, kind gc.EdgeKind, name string, toIdx int) {
	d.edges = append(d.edges,
		int64(EdgeType(kind)),
		int64(d.strings.Intern(name)),
		int64(toIdx*nodeFieldCount),
	)
	d.edgeFrom = append(d.edgeFrom, fromIdx)
	d.edgeCounts[fromIdx]++
}

func (d *dumpContext) finalize() {
	for i, ec := range d.edgeCounts {
		d.nodes[i*nodeFieldCount+4] = int64(ec)
	}
}

// BuildSnapshot visits every cell on rt's live list, rooted at ctx,
// and returns the resulting Document (§4.4 steps 1-5). ctx anchors
// the snapshot at node 0 regardless of where it falls in the live
// list's allocation order (§8 P7).
func BuildSnapshot(rt *gc.Runtime, ctx *gc.Context) *Document {
	d := buildDumpContext(rt, ctx)

	return &Document{
		Snapshot: snapshotHeader{
			Meta:      newMetaBlock(),
			NodeCount: d.nodeIdx.len(),
			EdgeCount: len(d.edges) / edgeFieldCount,
		},
		Nodes:   d.nodes,
		Edges:   d.edges,
		Strings: d.strings.Strings(),
	}
}

// buildDumpContext runs the traversal and returns the populated
// dumpContext itself, so tests can resolve a cell's actual node index
// (via nodeIdx.lookup) instead of re-deriving the intern order by
// hand — synthetic grouping nodes (§4.4 step 4) are interned between
// ordinary cells, so indices are not simply allocation order.
func buildDumpContext(rt *gc.Runtime, ctx *gc.Context) *dumpContext {
	d := newDumpContext(rt)

	rootIdx := d.internNode(ctx) // always index 0: the first intern call of a fresh dumpContext
	d.visitContext(rootIdx, ctx)

	rt.WalkLive(func(c gc.Cell, kind gc.CellType) {
		// ctx was already visited above to guarantee it lands on node 0
		// regardless of where it falls in live-list order; every other
		// context cell (a second realm sharing this Runtime) still goes
		// through the ordinary CellContext case below.
		if other, ok := c.(*gc.Context); ok && other == ctx {
			return
		}
		d.visitCell(c, kind)
	})

	d.finalize()

	return d
}

func (d *dumpContext) visitCell(c gc.Cell, kind gc.CellType) {
	idx := d.internNode(c)

	switch kind {
	case gc.CellContext:
		d.visitContext(idx, c.(*gc.Context))
	case gc.CellObject:
		d.visitObject(idx, c.(*gc.Object))
	case gc.CellFunctionBytecode:
		d.visitFunction(idx, c.(*gc.FunctionBytecode))
	case gc.CellVarRef:
		d.visitVarRef(idx, c.(*gc.VarRef))
	case gc.CellShape:
		d.visitShape(idx, c.(*gc.Shape))
	case gc.CellAsyncFuncState:
		d.visitAsyncState(idx, c.(*gc.AsyncFuncState))
	}
}

const (
	contextBaseSize  = 256
	varRefSize       = 32
	asyncStateSize   = 48
	shapeHeaderSize  = 24
	shapePropSize    = 16
	propertySlotSize = 32
)

// visitContext emits the root node plus its named context edges, and
// the two synthetic grouping nodes step 4 asks for so fixed-size
// array-shaped Context fields (native-error prototypes, per-class
// prototypes) render as arrays in an inspector rather than as a
// sprawl of same-named internal edges.
func (d *dumpContext) visitContext(idx int, ctx *gc.Context) {
	d.setNode(idx, NodeObject, contextDisplayName(ctx), int64(idx+1), contextBaseSize)

	if ctx.Global != nil {
		d.emitEdge(idx, gc.EdgeProperty, "global", ctx.Global)
	}
	if ctx.GlobalVar != nil {
		d.emitEdge(idx, gc.EdgeContext, "global_var", ctx.GlobalVar)
	}
	if ctx.ThrowTypeErrorThunk != nil {
		d.emitEdge(idx, gc.EdgeContext, "throw_type_error_thunk", ctx.ThrowTypeErrorThunk)
	}
	if ctx.EvalThunk != nil {
		d.emitEdge(idx, gc.EdgeContext, "eval_thunk", ctx.EvalThunk)
	}
	if ctx.ArrayProtoIterator != nil {
		d.emitEdge(idx, gc.EdgeContext, "array_proto_iterator", ctx.ArrayProtoIterator)
	}
	if ctx.IteratorProto != nil {
		d.emitEdge(idx, gc.EdgeContext, "iterator_proto", ctx.IteratorProto)
	}
	if ctx.AsyncIteratorProto != nil {
		d.emitEdge(idx, gc.EdgeContext, "async_iterator_proto", ctx.AsyncIteratorProto)
	}
	if ctx.ArrayShapeCache != nil {
		d.emitEdge(idx, gc.EdgeInternal, "array_shape_cache", ctx.ArrayShapeCache)
	}

	for name, ctor := range ctx.WellKnownCtors {
		if ctor != nil {
			d.emitEdge(idx, gc.EdgeContext, "ctor:"+name, ctor)
		}
	}

	d.emitSyntheticGroup(idx, "native_error_protos", nativeErrorProtoCells(ctx))
	d.emitSyntheticGroup(idx, "per_class_protos", perClassProtoCells(ctx))

	for _, m := range ctx.Modules {
		d.visitModule(idx, m)
	}
}

func nativeErrorProtoCells(ctx *gc.Context) []gc.Cell {
	var out []gc.Cell
	for _, p := range ctx.NativeErrorProto {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func perClassProtoCells(ctx *gc.Context) []gc.Cell {
	var out []gc.Cell
	for _, p := range ctx.PerClassProto {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// emitSyntheticGroup materializes a synthetic "Array" node for a
// fixed-size collection of Context fields and links each live member
// as an element edge off of it — step 4's grouping-node behavior.
// An empty members slice still gets a group node (zero elements),
// matching how the real inspector renders an unused prototype table.
func (d *dumpContext) emitSyntheticGroup(parentIdx int, edgeName string, members []gc.Cell) {
	group := new(syntheticGroupKey)
	groupIdx := d.internNode(group)
	d.setNode(groupIdx, NodeSynthetic, "Array", int64(groupIdx+1), int64(len(members))*8)
	d.appendEdge(parentIdx, gc.EdgeInternal, edgeName, groupIdx)

	for i, m := range members {
		d.emitEdge(groupIdx, gc.EdgeElement, fmt.Sprintf("%d", i), m)
	}
}

// syntheticGroupKey is a snapshot-only node identity — it is never a
// real GC cell (step 4's grouping nodes don't exist on the heap), so
// it is just a unique pointer for nodeIndex's interning, not a
// gc.Cell.
type syntheticGroupKey struct{ _ byte }

func (d *dumpContext) visitModule(ctxIdx int, m *gc.Module) {
	if m.Namespace != nil {
		d.emitEdge(ctxIdx, gc.EdgeContext, "module:"+m.Name, m.Namespace)
	}
	if m.FunctionObj != nil {
		d.emitEdge(ctxIdx, gc.EdgeContext, "module_func:"+m.Name, m.FunctionObj)
	}
	if m.ExceptionObj != nil {
		d.emitEdge(ctxIdx, gc.EdgeContext, "module_exception:"+m.Name, m.ExceptionObj)
	}
	if m.MetaObj != nil {
		d.emitEdge(ctxIdx, gc.EdgeContext, "module_meta:"+m.Name, m.MetaObj)
	}
	for i, ev := range m.ExportedVars {
		if ev != nil {
			d.emitEdge(ctxIdx, gc.EdgeContext, fmt.Sprintf("module_export:%s.%d", m.Name, i), ev)
		}
	}
}

// classifyObject picks the node type for an Object cell: an array
// for a fast-array-flagged object, a closure for one whose class
// descriptor marks it as the function class, an object otherwise.
func classifyObject(o *gc.Object) NodeType {
	if o.Flags&gc.FlagFastArray != 0 {
		return NodeArray
	}
	if desc := o.ClassDescriptor(); desc != nil && desc.ClassName == "Function" {
		return NodeClosure
	}
	return NodeObject
}

func (d *dumpContext) visitObject(idx int, o *gc.Object) {
	selfSize := int64(len(o.Props)) * propertySlotSize
	if hint := o.SizeHint(); hint > 0 {
		selfSize += int64(hint)
	}

	d.setNode(idx, classifyObject(o), resolveObjectName(o), int64(idx+1), selfSize)

	if o.Shape != nil {
		d.emitEdge(idx, gc.EdgeInternal, "shape", o.Shape)
	}

	isArray := o.Flags&gc.FlagFastArray != 0
	for i := range o.Props {
		p := &o.Props[i]
		name := propertyEdgeName(o, i, isArray)

		switch p.Kind {
		case gc.PropValue:
			if p.Value.Cell != nil {
				kind := gc.EdgeProperty
				if isArray {
					kind = gc.EdgeElement
				}
				d.emitEdge(idx, kind, name, p.Value.Cell)
			}
		case gc.PropAccessor:
			if p.Getter != nil {
				d.emitEdge(idx, gc.EdgeProperty, name+".getter", p.Getter)
			}
			if p.Setter != nil {
				d.emitEdge(idx, gc.EdgeProperty, name+".setter", p.Setter)
			}
		case gc.PropVarRef:
			if p.Ref != nil {
				d.emitEdge(idx, gc.EdgeProperty, name, p.Ref)
			}
		case gc.PropAutoInit:
			if p.AutoInit != nil {
				d.emitEdge(idx, gc.EdgeInternal, name+".autoinit", p.AutoInit)
			}
		}
	}

	if desc := o.ClassDescriptor(); desc != nil && desc.SnapshotWalker != nil {
		desc.SnapshotWalker(o, func(e gc.SnapshotEdge) {
			if e.To != nil {
				d.emitEdge(idx, e.Kind, e.Name, e.To)
			}
		})
	}
}

func propertyEdgeName(o *gc.Object, i int, isArray bool) string {
	if o.Shape != nil && i < len(o.Shape.Props) {
		if isArray {
			return fmt.Sprintf("%d", i)
		}
		return o.Shape.Props[i].Atom
	}
	return fmt.Sprintf("%d", i)
}

func (d *dumpContext) visitFunction(idx int, f *gc.FunctionBytecode) {
	selfSize := int64(len(f.Opcodes)) + int64(len(f.ConstantPool))*8 + int64(len(f.PCToLine))*8
	name := f.Name
	if name == "" {
		name = "(anonymous)"
	}

	d.setNode(idx, NodeCode, name, int64(idx+1), selfSize)

	for i, c := range f.ConstantPool {
		if c.Cell != nil {
			d.emitEdge(idx, gc.EdgeInternal, fmt.Sprintf("const[%d]", i), c.Cell)
		}
	}
	for i, cell := range f.ClosureCells {
		if cell != nil {
			d.emitEdge(idx, gc.EdgeInternal, fmt.Sprintf("closure[%d]", i), cell)
		}
	}
	if f.Realm != nil {
		d.emitEdge(idx, gc.EdgeContext, "realm", f.Realm)
	}
}

func (d *dumpContext) visitVarRef(idx int, v *gc.VarRef) {
	d.setNode(idx, NodeHidden, "var_ref", int64(idx+1), varRefSize)
	if v.Detached && v.Value.Cell != nil {
		d.emitEdge(idx, gc.EdgeInternal, "value", v.Value.Cell)
	}
}

func (d *dumpContext) visitShape(idx int, s *gc.Shape) {
	selfSize := int64(shapeHeaderSize + len(s.Props)*shapePropSize)
	d.setNode(idx, NodeHidden, "shape", int64(idx+1), selfSize)
	if s.Proto != nil {
		d.emitEdge(idx, gc.EdgeInternal, "prototype", s.Proto)
	}
}

func (d *dumpContext) visitAsyncState(idx int, a *gc.AsyncFuncState) {
	d.setNode(idx, NodeHidden, "async_function_state", int64(idx+1), asyncStateSize)
	if a.Active && a.Frame != nil {
		d.emitEdge(idx, gc.EdgeInternal, "frame", a.Frame)
	}
	if a.Resolve != nil {
		d.emitEdge(idx, gc.EdgeInternal, "resolve", a.Resolve)
	}
	if a.Reject != nil {
		d.emitEdge(idx, gc.EdgeInternal, "reject", a.Reject)
	}
}

// WriteJSON serializes d as compact JSON, matching the teacher's
// debug_http.go encoder configuration (escaping disabled — snapshot
// string content may legitimately contain "<"/">"/"&" from source
// text or property names, and HTML-escaping those would corrupt the
// format a real inspector expects to parse byte-for-byte).
func (doc *Document) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

// Writer adapts BuildSnapshot to gc.SnapshotWriter so the debug HTTP
// server's /gc/snapshot handler can stream a live Runtime's snapshot
// without internal/gc importing internal/snapshot (see
// internal/gc/debug_http.go's comment on the interface split).
type Writer struct {
	Context *gc.Context
}

func (w *Writer) WriteTo(out http.ResponseWriter, rt *gc.Runtime) error {
	if w.Context == nil {
		return lumenerrors.SnapshotIOFailure("<http>", fmt.Errorf("snapshot.Writer has no Context configured"))
	}

	doc := BuildSnapshot(rt, w.Context)
	if err := doc.WriteJSON(out); err != nil {
		return lumenerrors.SnapshotIOFailure("<http>", err)
	}
	return nil
}

// filenameFor stamps a snapshot filename "Heap.YYYYMMDD.HHMMSS.mmm.heapsnapshot"
// (§4.4 step 6).
func filenameFor(t time.Time) string {
	return fmt.Sprintf("Heap.%s.%s.%03d.heapsnapshot",
		t.Format("20060102"), t.Format("150405"), t.Nanosecond()/1e6)
}

// DumpHeapSnapshot builds ctx's snapshot and writes it to a
// timestamped file under dir (§6 dump_heap_snapshot), returning the
// path written. Partial files from a failed write are not cleaned up
// (§7 "Snapshot I/O failure").
func DumpHeapSnapshot(rt *gc.Runtime, ctx *gc.Context, dir string) (string, error) {
	path := filepath.Join(dir, filenameFor(time.Now()))

	f, err := os.Create(path)
	if err != nil {
		return "", lumenerrors.SnapshotIOFailure(path, err)
	}
	defer f.Close()

	doc := BuildSnapshot(rt, ctx)
	if err := doc.WriteJSON(f); err != nil {
		return "", lumenerrors.SnapshotIOFailure(path, err)
	}

	return path, nil
}
